// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package compose reads a Docker Compose file far enough to know which
// services it starts and which environment variables it interpolates.
package compose

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a parsed Compose document.
type File struct {
	Path string

	root     yaml.Node
	services []string
	refs     map[string]Reference
}

// Reference is one interpolated variable. A variable referenced both with
// and without a default counts as having no default.
type Reference struct {
	Name       string
	HasDefault bool
}

// Load reads and parses path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse parses a Compose document from memory.
func Parse(data []byte) (*File, error) {
	f := &File{refs: map[string]Reference{}}
	if err := yaml.Unmarshal(data, &f.root); err != nil {
		return nil, fmt.Errorf("parse compose yaml: %w", err)
	}
	doc := &f.root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("compose file must be a mapping")
	}

	var raw struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	for name := range raw.Services {
		f.services = append(f.services, name)
	}
	sort.Strings(f.services)

	f.collect(doc)
	return f, nil
}

// Services returns the service names in sorted order.
func (f *File) Services() []string {
	return append([]string(nil), f.services...)
}

// Variables returns every interpolated variable name, sorted and unique.
func (f *File) Variables() []string {
	names := make([]string, 0, len(f.refs))
	for name := range f.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// References returns the variables together with their default flag.
func (f *File) References() []Reference {
	out := make([]Reference, 0, len(f.refs))
	for _, name := range f.Variables() {
		out = append(out, f.refs[name])
	}
	return out
}

// MissingVariables lists variables without a default that env does not
// provide or provides empty.
func (f *File) MissingVariables(env map[string]string) []string {
	var missing []string
	for _, ref := range f.References() {
		if ref.HasDefault {
			continue
		}
		if strings.TrimSpace(env[ref.Name]) == "" {
			missing = append(missing, ref.Name)
		}
	}
	return missing
}

func (f *File) collect(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode:
		// Keys are not interpolated.
		for i := 1; i < len(n.Content); i += 2 {
			f.collect(n.Content[i])
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range n.Content {
			f.collect(c)
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			f.collect(n.Alias)
		}
	case yaml.ScalarNode:
		for _, ref := range scan(n.Value) {
			prev, seen := f.refs[ref.Name]
			if seen {
				ref.HasDefault = prev.HasDefault && ref.HasDefault
			}
			f.refs[ref.Name] = ref
		}
	}
}

// scan finds $VAR and ${VAR...} references in s. "$$" is a literal dollar.
func scan(s string) []Reference {
	var out []Reference
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			continue
		}
		next := s[i+1]
		switch {
		case next == '$':
			i++
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return out
			}
			body := s[i+2 : i+2+end]
			name, rest := splitName(body)
			if name != "" {
				hasDefault := strings.HasPrefix(rest, ":-") || strings.HasPrefix(rest, "-") ||
					strings.HasPrefix(rest, ":+") || strings.HasPrefix(rest, "+")
				out = append(out, Reference{Name: name, HasDefault: hasDefault})
			}
			i += 2 + end
		case isNameStart(next):
			name, _ := splitName(s[i+1:])
			out = append(out, Reference{Name: name})
			i += len(name)
		}
	}
	return out
}

func splitName(s string) (string, string) {
	if s == "" || !isNameStart(s[0]) {
		return "", s
	}
	j := 1
	for j < len(s) && (isNameStart(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
		j++
	}
	return s[:j], s[j:]
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
