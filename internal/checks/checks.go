// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package checks runs the formatter, linters and security scanner used by
// the pipeline and summarizes their results.
package checks

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Tool is one external check.
type Tool struct {
	Name    string
	Command []string
	// FailOnOutput treats any output as a failure (gofmt -l exits 0).
	FailOnOutput bool
}

// Status of a tool run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one tool.
type Result struct {
	Tool     Tool
	Status   Status
	Output   string
	Duration time.Duration
	Err      error
}

// Failed reports whether any result failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}

// DefaultTools are the checks run by the pipeline.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "gofmt", Command: []string{"gofmt", "-l", "."}, FailOnOutput: true},
		{Name: "go vet", Command: []string{"go", "vet", "./..."}},
		{Name: "golangci-lint", Command: []string{"golangci-lint", "run"}},
		{Name: "gosec", Command: []string{"gosec", "-quiet", "./..."}},
	}
}

// ErrToolMissing is recorded when a tool binary is not installed.
var ErrToolMissing = errors.New("tool not installed")

// Hooks replaced in tests.
var (
	lookPath    = exec.LookPath
	commandFunc = exec.CommandContext
)

// Options control Run.
type Options struct {
	Dir      string
	Parallel int
	// Strict fails missing tools instead of skipping them.
	Strict bool
}

// Run executes tools in dir with at most opts.Parallel at a time. Results
// keep the order of tools.
func Run(ctx context.Context, tools []Tool, opts Options) []Result {
	results := make([]Result, len(tools))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, t := range tools {
		g.Go(func() error {
			results[i] = runTool(ctx, t, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runTool(ctx context.Context, t Tool, opts Options) Result {
	res := Result{Tool: t}
	if len(t.Command) == 0 {
		res.Status, res.Err = StatusFailed, errors.New("empty command")
		return res
	}
	if _, err := lookPath(t.Command[0]); err != nil {
		res.Err = ErrToolMissing
		res.Status = StatusSkipped
		if opts.Strict {
			res.Status = StatusFailed
		}
		return res
	}

	start := time.Now()
	cmd := commandFunc(ctx, t.Command[0], t.Command[1:]...)
	cmd.Dir = opts.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Output = strings.TrimSpace(out.String())

	switch {
	case err != nil:
		res.Status, res.Err = StatusFailed, err
	case t.FailOnOutput && res.Output != "":
		res.Status = StatusFailed
	default:
		res.Status = StatusPassed
	}
	return res
}
