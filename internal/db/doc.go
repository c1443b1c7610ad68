// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db opens the service database from DATABASE_URL, applies the
// embedded migrations and stores the audit trail of deploys and processing
// requests. Postgres is the production backend. SQLite serves local runs
// and tests.
package db
