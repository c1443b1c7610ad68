// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli implements the google-sheets command line: the HTTP server,
// deployment to the Docker host, and the helpers the pipeline calls.
package cli
