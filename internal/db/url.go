// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"fmt"
	"strings"
)

const (
	// ConnectTimeout is the value appended to Postgres URLs that do not set one.
	ConnectTimeout     = "connect_timeout=60"
	DefaultWaspDBName  = "waspdb"
	dialectPostgres    = "postgres"
	dialectSQLite      = "sqlite"
	connectTimeoutName = "connect_timeout"
	schemaName         = "schema"
	searchPathName     = "search_path"
)

// WithConnectTimeout appends connect_timeout=60 unless the URL already
// carries a connect_timeout parameter.
func WithConnectTimeout(url string) string {
	if strings.Contains(url, connectTimeoutName) {
		return url
	}
	if strings.Contains(url, "?") {
		if strings.HasSuffix(url, "?") || strings.HasSuffix(url, "&") {
			return url + ConnectTimeout
		}
		return url + "&" + ConnectTimeout
	}
	return url + "?" + ConnectTimeout
}

// WaspURL points url at the database the web frontend owns by replacing
// the database name (the last path segment). Query parameters are kept.
func WaspURL(url, name string) (string, error) {
	if name == "" {
		name = DefaultWaspDBName
	}
	base, query := url, ""
	if i := strings.IndexByte(url, '?'); i >= 0 {
		base, query = url[:i], url[i:]
	}
	hostStart := 0
	if i := strings.Index(base, "://"); i >= 0 {
		hostStart = i + 3
	}
	slash := strings.LastIndexByte(base, '/')
	if slash < hostStart {
		return "", fmt.Errorf("database url has no database name: %q", redactURL(url))
	}
	return WithConnectTimeout(base[:slash+1] + name + query), nil
}

// schemaToSearchPath rewrites the Prisma style schema parameter, which the
// pgx driver would send to the server as an unknown runtime parameter, to
// search_path. An explicit search_path wins and schema is dropped.
func schemaToSearchPath(url string) string {
	i := strings.IndexByte(url, '?')
	if i < 0 {
		return url
	}
	params := strings.Split(url[i+1:], "&")
	hasSearchPath := false
	for _, p := range params {
		if strings.HasPrefix(p, searchPathName+"=") {
			hasSearchPath = true
		}
	}
	out := params[:0]
	for _, p := range params {
		if v, ok := strings.CutPrefix(p, schemaName+"="); ok {
			if hasSearchPath || v == "" {
				continue
			}
			p = searchPathName + "=" + v
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return url[:i]
	}
	return url[:i+1] + strings.Join(out, "&")
}

// dialectFor returns the dialect and the DSN handed to the driver.
func dialectFor(url string) (dialect, dsn string, err error) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return dialectPostgres, WithConnectTimeout(schemaToSearchPath(url)), nil
	case lower == ":memory:", strings.HasPrefix(lower, "file:"):
		return dialectSQLite, url, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return dialectSQLite, url[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "sqlite:"):
		return dialectSQLite, url[len("sqlite:"):], nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, redactURL(url))
	}
}

// redactURL hides the password of a URL for error messages.
func redactURL(url string) string {
	at := strings.LastIndexByte(url, '@')
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	if i := strings.IndexByte(creds, ':'); i >= 0 {
		return url[:scheme+3] + creds[:i] + ":xxxxx" + url[at:]
	}
	return url
}
