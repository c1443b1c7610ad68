// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package envcheck guards commands that cannot run without certain
// environment variables.
package envcheck

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissing is matched by every MissingError via errors.Is.
var ErrMissing = errors.New("required environment variable missing")

// MissingError lists the variables that were unset or empty, in the order
// they were requested.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("ERROR: %s variable must be defined, exiting", e.Names[0])
	}
	return fmt.Sprintf("ERROR: %s variables must be defined, exiting", strings.Join(e.Names, ", "))
}

// Is lets errors.Is(err, ErrMissing) succeed.
func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// Require checks the process environment. A variable that is set to an
// empty string (or only whitespace) counts as missing.
func Require(names ...string) error {
	return RequireFrom(os.LookupEnv, names...)
}

// RequireFrom is Require with an injectable lookup.
func RequireFrom(lookup func(string) (string, bool), names ...string) error {
	var missing []string
	for _, name := range names {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Names: missing}
}

// MapLookup adapts a map to the lookup signature used by RequireFrom.
func MapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}
