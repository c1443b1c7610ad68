// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars contains variables injected at build time.
package buildvars

// Version is set at link time via `-ldflags -X github.com/gsheets-app/google-sheets/buildvars.Version=...`.
// It will be empty for local or development builds.
var Version string

// Commit is the git revision the binary was built from, when known.
var Commit string

// VersionOrDefault returns `Version` if set, otherwise returns the provided default.
func VersionOrDefault(def string) string {
	if len(Version) > 0 {
		return Version
	}
	return def
}
