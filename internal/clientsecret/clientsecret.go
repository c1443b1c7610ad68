// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package clientsecret writes and reads the Google OAuth2 "web" client
// credentials file the service needs at startup.
package clientsecret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2/google"

	"github.com/gsheets-app/google-sheets/internal/security"
)

const (
	AuthURI        = "https://accounts.google.com/o/oauth2/auth"
	TokenURI       = "https://oauth2.googleapis.com/token"
	CertURL        = "https://www.googleapis.com/oauth2/v1/certs"
	DefaultPath    = "/login/callback"
	DefaultProject = "google-sheets"
)

// ErrIncomplete is returned by Build when a required credential is empty.
var ErrIncomplete = errors.New("client secret: incomplete credentials")

// Options carries the values that vary per deployment.
type Options struct {
	ClientID       string
	ProjectID      string
	ClientSecret   security.Secret
	RedirectDomain string
	RedirectPath   string
}

// Web is the "web" object of client_secret.json.
type Web struct {
	ClientID                string   `json:"client_id"`
	ProjectID               string   `json:"project_id"`
	AuthURI                 string   `json:"auth_uri"`
	TokenURI                string   `json:"token_uri"`
	AuthProviderX509CertURL string   `json:"auth_provider_x509_cert_url"`
	ClientSecret            string   `json:"client_secret"`
	RedirectURIs            []string `json:"redirect_uris"`
}

// File is the full document as Google issues it.
type File struct {
	Web Web `json:"web"`
}

// Settings is the subset of the file the login flow consumes.
type Settings struct {
	AuthURI      string
	TokenURL     string
	ClientID     string
	ClientSecret security.Secret
	RedirectURI  string
}

// Build fills the fixed Google endpoints around the deployment values.
func Build(o Options) (File, error) {
	var missing []string
	if strings.TrimSpace(o.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if o.ClientSecret.IsEmpty() {
		missing = append(missing, "client secret")
	}
	domain := strings.TrimSpace(o.RedirectDomain)
	if domain == "" {
		missing = append(missing, "redirect domain")
	}
	if len(missing) > 0 {
		return File{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	domain = strings.TrimSuffix(domain, "/")
	p := o.RedirectPath
	if p == "" {
		p = DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	project := o.ProjectID
	if project == "" {
		project = DefaultProject
	}

	return File{Web: Web{
		ClientID:                o.ClientID,
		ProjectID:               project,
		AuthURI:                 AuthURI,
		TokenURI:                TokenURI,
		AuthProviderX509CertURL: CertURL,
		ClientSecret:            o.ClientSecret.Reveal(),
		RedirectURIs:            []string{"https://" + domain + p},
	}}, nil
}

// Write stores f at path with 0600 permissions. The file is written to a
// temporary sibling first and renamed into place.
func Write(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode client secret: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".client_secret-*.json")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write client secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close client secret: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod client secret: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move client secret into place: %w", err)
	}
	return nil
}

// Load reads path and validates it the same way the Google client library
// does before handing out the settings.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a client_secret.json document.
func Parse(data []byte) (Settings, error) {
	cfg, err := google.ConfigFromJSON(data)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid client secret: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Settings{}, fmt.Errorf("decode client secret: %w", err)
	}
	if f.Web.ClientID == "" {
		return Settings{}, errors.New("invalid client secret: only the \"web\" client type is supported")
	}
	return Settings{
		AuthURI:      cfg.Endpoint.AuthURL,
		TokenURL:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: security.FromString(cfg.ClientSecret),
		RedirectURI:  cfg.RedirectURL,
	}, nil
}
