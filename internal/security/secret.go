// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package security holds helpers for sensitive values such as registry
// passwords and OAuth client secrets.
package security

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

const redacted = "[SECRET]"

// Secret is a thin wrapper around a byte slice holding sensitive material.
// Formatting, JSON and text encoding all print a placeholder instead of the
// value, so a Secret can travel through logged structs safely.
type Secret []byte

// FromString creates a Secret from a string.
func FromString(in string) Secret { return Secret([]byte(in)) }

// FromBytes creates a Secret from bytes. The input is copied.
func FromBytes(in []byte) Secret {
	out := make([]byte, len(in))
	copy(out, in)
	return Secret(out)
}

// String redacts the secret for fmt.Print* convenience.
func (s Secret) String() string { return redacted }

// Format implements fmt.Formatter so `%v`, `%#v`, `%s` and `%q` are redacted.
func (s Secret) Format(f fmt.State, c rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalJSON redacts secrets in JSON marshaling.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// MarshalText redacts secrets for text encoding.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Reveal returns the plain value. Only call it where the value leaves the
// process on purpose (a file written with 0600, stdin of a remote command).
func (s Secret) Reveal() string { return string(s) }

// IsEmpty reports whether the secret holds no data.
func (s Secret) IsEmpty() bool { return len(s) == 0 }

// Bytes returns a copy of the underlying bytes.
func (s Secret) Bytes() []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}

// Zero overwrites the underlying byte slice with zeros.
func (s *Secret) Zero() {
	if s == nil || *s == nil {
		return
	}
	for i := range *s {
		(*s)[i] = 0
	}
}
