// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package coverage combines Go coverage profiles produced by several test
// runs (one per OS and toolchain in the CI matrix) into one profile.
package coverage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/tools/cover"
)

// ErrModeMismatch is returned when profiles were recorded with different
// -covermode values.
var ErrModeMismatch = errors.New("coverage: profiles use different modes")

type blockKey struct {
	startLine, startCol, endLine, endCol int
}

// ParseFiles reads every profile file.
func ParseFiles(paths ...string) ([][]*cover.Profile, error) {
	out := make([][]*cover.Profile, 0, len(paths))
	for _, p := range paths {
		profiles, err := cover.ParseProfiles(p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		out = append(out, profiles)
	}
	return out, nil
}

// Merge combines the profile sets. Blocks are matched by position; set mode
// ORs the counts, count and atomic modes add them.
func Merge(sets ...[]*cover.Profile) ([]*cover.Profile, error) {
	mode := ""
	byFile := map[string]*cover.Profile{}
	blocks := map[string]map[blockKey]int{}

	for _, set := range sets {
		for _, p := range set {
			if mode == "" {
				mode = p.Mode
			} else if p.Mode != mode {
				return nil, fmt.Errorf("%w: %s and %s", ErrModeMismatch, mode, p.Mode)
			}
			dst, ok := byFile[p.FileName]
			if !ok {
				dst = &cover.Profile{FileName: p.FileName, Mode: p.Mode}
				byFile[p.FileName] = dst
				blocks[p.FileName] = map[blockKey]int{}
			}
			index := blocks[p.FileName]
			for _, b := range p.Blocks {
				k := blockKey{b.StartLine, b.StartCol, b.EndLine, b.EndCol}
				i, seen := index[k]
				if !seen {
					index[k] = len(dst.Blocks)
					dst.Blocks = append(dst.Blocks, b)
					continue
				}
				if mode == "set" {
					if b.Count > 0 {
						dst.Blocks[i].Count = 1
					}
				} else {
					dst.Blocks[i].Count += b.Count
				}
			}
		}
	}

	out := make([]*cover.Profile, 0, len(byFile))
	for _, p := range byFile {
		sort.Slice(p.Blocks, func(a, b int) bool {
			x, y := p.Blocks[a], p.Blocks[b]
			if x.StartLine != y.StartLine {
				return x.StartLine < y.StartLine
			}
			return x.StartCol < y.StartCol
		})
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FileName < out[b].FileName })
	return out, nil
}

// Percent is the share of statements executed at least once, 0 to 100.
func Percent(profiles []*cover.Profile) float64 {
	var total, covered int64
	for _, p := range profiles {
		for _, b := range p.Blocks {
			total += int64(b.NumStmt)
			if b.Count > 0 {
				covered += int64(b.NumStmt)
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100
}

// Write renders profiles in the go test -coverprofile format.
func Write(w io.Writer, profiles []*cover.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "mode: %s\n", profiles[0].Mode); err != nil {
		return err
	}
	for _, p := range profiles {
		for _, b := range p.Blocks {
			if _, err := fmt.Fprintf(w, "%s:%d.%d,%d.%d %d %d\n",
				p.FileName, b.StartLine, b.StartCol, b.EndLine, b.EndCol, b.NumStmt, b.Count); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteFile writes profiles to path.
func WriteFile(path string, profiles []*cover.Profile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, profiles); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
