// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package deploy rolls a new image of the service out to the Docker host
// over a single SSH connection.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gsheets-app/google-sheets/internal/imagetag"
	"github.com/gsheets-app/google-sheets/internal/logtrim"
	"github.com/gsheets-app/google-sheets/internal/security"
)

const (
	DefaultUser        = "azureuser"
	DefaultKeyFile     = "key.pem"
	DefaultComposeFile = "google-sheets-docker-compose.yaml"
	DefaultPullSettle  = 10 * time.Second
)

// ErrKeyFileMissing is returned when the SSH private key file does not exist.
var ErrKeyFileMissing = errors.New("ssh key file not found")

// Config describes one deployment.
type Config struct {
	Host string
	User string
	// KeyFile is the PEM private key used to log in.
	KeyFile string
	// KnownHostsFile is verified when set. Empty accepts any host key.
	KnownHostsFile string
	// ComposeFile is the local compose file uploaded to RemoteDir.
	ComposeFile string
	RemoteDir   string

	Registry         string
	Repository       string
	Tag              string
	RegistryUser     string
	RegistryPassword security.Secret

	// Env is exported to docker compose on the remote host. Values may be
	// secrets; they are sent over the session's stdin only.
	Env map[string]string

	LogGlob    string
	LogMaxSize int64
	LogKeep    int64
	PullSettle time.Duration
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.KeyFile == "" {
		c.KeyFile = DefaultKeyFile
	}
	if c.ComposeFile == "" {
		c.ComposeFile = DefaultComposeFile
	}
	if c.RemoteDir == "" {
		c.RemoteDir = "/home/" + c.User
	}
	if c.Registry == "" {
		c.Registry = imagetag.DefaultRegistry
	}
	if c.PullSettle == 0 {
		c.PullSettle = DefaultPullSettle
	}
	return c
}

// Image is the fully qualified image reference that will be pulled.
func (c Config) Image() string {
	c = c.withDefaults()
	return imagetag.ImageRef(c.Registry, c.Repository, c.Tag)
}

// RemoteComposePath is where the compose file lands on the host.
func (c Config) RemoteComposePath() string {
	c = c.withDefaults()
	return path.Join(c.RemoteDir, path.Base(strings.ReplaceAll(c.ComposeFile, `\`, "/")))
}

// Validate checks that every required value is present and that the key
// and compose files exist locally.
func (c Config) Validate() error {
	c = c.withDefaults()
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(c.Repository) == "" {
		missing = append(missing, "repository")
	}
	if strings.TrimSpace(c.Tag) == "" {
		missing = append(missing, "tag")
	}
	if strings.TrimSpace(c.RegistryUser) == "" {
		missing = append(missing, "registry user")
	}
	if c.RegistryPassword.IsEmpty() {
		missing = append(missing, "registry password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("deploy config incomplete: missing %s", strings.Join(missing, ", "))
	}
	for name := range c.Env {
		if !validEnvName(name) {
			return fmt.Errorf("invalid environment variable name %q", name)
		}
	}
	if c.LogKeep > c.LogMaxSize {
		return fmt.Errorf("log keep size must not exceed log max size")
	}
	if c.LogMaxSize > 0 {
		if _, err := logtrim.RemoteCommand(c.LogGlob, c.LogMaxSize, c.LogKeep); err != nil {
			return fmt.Errorf("log glob: %w", err)
		}
	}
	if _, err := os.Stat(c.KeyFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeyFileMissing, c.KeyFile)
		}
		return fmt.Errorf("stat key file: %w", err)
	}
	if _, err := os.Stat(c.ComposeFile); err != nil {
		return fmt.Errorf("compose file: %w", err)
	}
	return nil
}

func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
