// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// Call is one recorded interaction with a FakeRemote.
type Call struct {
	Command string
	Stdin   string
	// Upload calls set Local and Remote instead of Command.
	Local, Remote string
	Content       string
}

// FakeRemote records commands and uploads instead of talking to a host.
type FakeRemote struct {
	mu     sync.Mutex
	Calls  []Call
	closed bool

	// Fail maps a command substring to the error returned for it.
	Fail map[string]error
	// Output maps a command substring to the output returned for it.
	Output map[string]string
	// UploadErr, when set, is returned by Upload.
	UploadErr error
}

// NewFakeRemote returns a ready-to-use FakeRemote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{Fail: map[string]error{}, Output: map[string]string{}}
}

func (f *FakeRemote) Run(ctx context.Context, cmd string, stdin io.Reader) (string, error) {
	var in string
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		in = string(b)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Command: cmd, Stdin: in})

	out := ""
	for sub, o := range f.Output {
		if strings.Contains(cmd, sub) {
			out = o
		}
	}
	for sub, err := range f.Fail {
		if strings.Contains(cmd, sub) {
			return out, err
		}
	}
	return out, nil
}

func (f *FakeRemote) Upload(ctx context.Context, local, remote string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Local: local, Remote: remote, Content: string(data)})
	return f.UploadErr
}

func (f *FakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeRemote) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Commands returns the recorded commands, skipping uploads.
func (f *FakeRemote) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if c.Command != "" {
			out = append(out, c.Command)
		}
	}
	return out
}
