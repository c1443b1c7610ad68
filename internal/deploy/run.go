// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gsheets-app/google-sheets/internal/logging"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StatusOK      StepStatus = "ok"
	StatusFailed  StepStatus = "failed"
	StatusIgnored StepStatus = "ignored"
	StatusSkipped StepStatus = "skipped"
	StatusPlanned StepStatus = "planned"
)

// StepResult records what happened to a step.
type StepResult struct {
	Name     string
	Status   StepStatus
	Output   string
	Err      error
	Duration time.Duration
}

// Result describes a deployment run.
type Result struct {
	RunID      uuid.UUID
	Host       string
	Image      string
	Started    time.Time
	Finished   time.Time
	Steps      []StepResult
	FailedStep string
}

// Succeeded reports whether every required step passed.
func (r Result) Succeeded() bool { return r.FailedStep == "" }

// Status is "succeeded", "failed" or "planned".
func (r Result) Status() string {
	switch {
	case r.FailedStep != "":
		return "failed"
	case len(r.Steps) > 0 && r.Steps[0].Status == StatusPlanned:
		return "planned"
	default:
		return "succeeded"
	}
}

// hooks replaced in tests.
var (
	now   = time.Now
	sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
)

// Run executes the plan for cfg on remote, one step after another. It
// stops at the first failing step that does not allow failure; the
// remaining steps are reported as skipped.
func Run(ctx context.Context, remote Remote, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	res := Result{RunID: uuid.New(), Host: cfg.Host, Image: cfg.Image(), Started: now()}
	steps := Plan(cfg)
	log := logging.L.With("run", res.RunID.String())
	log.Infof("deploying %s to %s", res.Image, cfg.Host)

	var runErr error
	for i, step := range steps {
		if runErr != nil {
			res.Steps = append(res.Steps, StepResult{Name: step.Name, Status: StatusSkipped})
			continue
		}
		log.Infof("[%d/%d] %s: %s", i+1, len(steps), step.Name, step.Describe())

		start := now()
		out, err := execStep(ctx, remote, step)
		sr := StepResult{Name: step.Name, Output: out, Err: err, Duration: now().Sub(start), Status: StatusOK}
		if out != "" {
			log.Debugf("%s output:\n%s", step.Name, strings.TrimRight(out, "\n"))
		}

		if err != nil {
			if step.AllowFailure && ctx.Err() == nil {
				sr.Status = StatusIgnored
				log.Warnf("%s: %s (%v)", step.Name, step.FailureNote, err)
			} else {
				sr.Status = StatusFailed
				res.FailedStep = step.Name
				runErr = fmt.Errorf("step %s failed: %w", step.Name, err)
				log.Errorf("%s failed: %v", step.Name, err)
			}
		}
		res.Steps = append(res.Steps, sr)
	}
	res.Finished = now()

	if runErr == nil {
		log.Infof("deployment finished in %s", res.Finished.Sub(res.Started).Round(time.Millisecond))
	}
	return res, runErr
}

func execStep(ctx context.Context, remote Remote, step Step) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case step.Upload != nil:
		return "", remote.Upload(ctx, step.Upload.Local, step.Upload.Remote)
	case step.Wait > 0:
		return "", sleep(ctx, step.Wait)
	default:
		var stdin io.Reader
		if !step.Stdin.IsEmpty() {
			stdin = bytes.NewReader(step.Stdin.Bytes())
		}
		return remote.Run(ctx, step.Command, stdin)
	}
}

// DryRun returns the plan as a result without touching the host.
func DryRun(cfg Config) Result {
	cfg = cfg.withDefaults()
	res := Result{RunID: uuid.New(), Host: cfg.Host, Image: cfg.Image(), Started: now()}
	for _, step := range Plan(cfg) {
		res.Steps = append(res.Steps, StepResult{Name: step.Name, Status: StatusPlanned, Output: step.Describe()})
	}
	res.Finished = res.Started
	return res
}
