//go:build !windows

// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"net"
	"os"

	"github.com/gsheets-app/google-sheets/internal/logging"
	"golang.org/x/crypto/ssh/agent"
)

// getSSHAgent connects to the agent listening on SSH_AUTH_SOCK, if any.
func getSSHAgent() agent.Agent {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		logging.Debugf("ssh agent at %s unavailable: %v", sock, err)
		return nil
	}
	return agent.NewClient(conn)
}
