// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicate is returned when attempting to insert a record that already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnsupportedURL is returned by Open for schemes without a driver.
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// MapDBError maps constraint violations reported by any of the drivers to
// ErrDuplicate. The match is on the message text so this file needs no
// driver imports.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	// Postgres unique violation (23505), SQLite unique constraint
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") {
		return ErrDuplicate
	}
	return err
}
