// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import "time"

// Config is the full application configuration. Every section can be set
// from google-sheets.yaml, the environment, or flags.
type Config struct {
	// Language selects the locale of command line messages.
	Language string         `mapstructure:"language" yaml:"language"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	OAuth    OAuthConfig    `mapstructure:"oauth" yaml:"oauth"`
	Deploy   DeployConfig   `mapstructure:"deploy" yaml:"deploy"`
	Checks   ChecksConfig   `mapstructure:"checks" yaml:"checks"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type DatabaseConfig struct {
	// URL is DATABASE_URL. Empty disables persistence.
	URL        string `mapstructure:"url" yaml:"url,omitempty"`
	WaspDBName string `mapstructure:"wasp_db_name" yaml:"wasp_db_name"`
}

type ServerConfig struct {
	Host             string        `mapstructure:"host" yaml:"host"`
	Port             int           `mapstructure:"port" yaml:"port"`
	Migrate          bool          `mapstructure:"migrate" yaml:"migrate"`
	ClientSecretFile string        `mapstructure:"client_secret_file" yaml:"client_secret_file"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type OAuthConfig struct {
	ClientID       string `mapstructure:"client_id" yaml:"client_id,omitempty"`
	ProjectID      string `mapstructure:"project_id" yaml:"project_id,omitempty"`
	ClientSecret   string `mapstructure:"client_secret" yaml:"-"`
	RedirectDomain string `mapstructure:"redirect_domain" yaml:"redirect_domain,omitempty"`
	RedirectPath   string `mapstructure:"redirect_path" yaml:"redirect_path"`
}

type DeployConfig struct {
	Domain           string        `mapstructure:"domain" yaml:"domain,omitempty"`
	User             string        `mapstructure:"user" yaml:"user"`
	KeyFile          string        `mapstructure:"key_file" yaml:"key_file"`
	KnownHostsFile   string        `mapstructure:"known_hosts_file" yaml:"known_hosts_file,omitempty"`
	ComposeFile      string        `mapstructure:"compose_file" yaml:"compose_file"`
	RemoteDir        string        `mapstructure:"remote_dir" yaml:"remote_dir"`
	Registry         string        `mapstructure:"registry" yaml:"registry"`
	Repository       string        `mapstructure:"repository" yaml:"repository,omitempty"`
	Tag              string        `mapstructure:"tag" yaml:"tag,omitempty"`
	RegistryUser     string        `mapstructure:"registry_user" yaml:"registry_user,omitempty"`
	RegistryPassword string        `mapstructure:"registry_password" yaml:"-"`
	LogGlob          string        `mapstructure:"log_glob" yaml:"log_glob"`
	LogMaxSize       string        `mapstructure:"log_max_size" yaml:"log_max_size"`
	LogKeep          string        `mapstructure:"log_keep" yaml:"log_keep"`
	PullSettle       time.Duration `mapstructure:"pull_settle" yaml:"pull_settle"`

	// AuditURL is the database deploy runs are recorded in. Empty disables it.
	AuditURL string `mapstructure:"audit_url" yaml:"audit_url,omitempty"`
}

type ChecksConfig struct {
	Strict   bool `mapstructure:"strict" yaml:"strict"`
	Parallel int  `mapstructure:"parallel" yaml:"parallel"`
}

// Defaults returns the default values keyed by config path. Every key is
// listed so AutomaticEnv can see it during Unmarshal.
func Defaults() map[string]any {
	return map[string]any{
		"language":                  "en",
		"log.level":                 "info",
		"database.url":              "",
		"database.wasp_db_name":     "waspdb",
		"server.host":               "0.0.0.0",
		"server.port":               8000,
		"server.migrate":            true,
		"server.client_secret_file": "client_secret.json",
		"server.shutdown_timeout":   15 * time.Second,
		"oauth.client_id":           "",
		"oauth.project_id":          "",
		"oauth.client_secret":       "",
		"oauth.redirect_domain":     "",
		"oauth.redirect_path":       "/login/callback",
		"deploy.domain":             "",
		"deploy.repository":         "",
		"deploy.tag":                "",
		"deploy.registry_user":      "",
		"deploy.registry_password":  "",
		"deploy.known_hosts_file":   "",
		"deploy.user":               "azureuser",
		"deploy.key_file":           "key.pem",
		"deploy.compose_file":       "google-sheets-docker-compose.yaml",
		"deploy.remote_dir":         "/home/azureuser",
		"deploy.registry":           "ghcr.io",
		"deploy.log_glob":           "/var/lib/docker/containers/*/*-json.log",
		"deploy.log_max_size":       "1GB",
		"deploy.log_keep":           "100MB",
		"deploy.pull_settle":        10 * time.Second,
		"deploy.audit_url":          "",
		"checks.strict":             false,
		"checks.parallel":           4,
	}
}
