// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/gsheets-app/google-sheets/internal/logging"

// debugEnabled is set by --verbose. Pool and migration timings are noisy at
// debug level otherwise.
var debugEnabled bool

// SetDebug enables or disables DB debug logging.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

func dbLogf(format string, v ...any) {
	if !debugEnabled {
		return
	}
	logging.L.With("component", "db").Debugf(format, v...)
}
