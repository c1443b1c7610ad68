// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for google-sheets.
//
// Usage:
//
//	go run . serve
//	./google-sheets deploy --dry-run
//
// See --help for the full list of commands.
package main

import (
	"os"

	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}
