// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/internal/logtrim"
	"github.com/gsheets-app/google-sheets/internal/security"
)

// Step names in execution order.
const (
	StepTrimLogs       = "trim-logs"
	StepComposeDown    = "compose-down"
	StepContainerPrune = "container-prune"
	StepUploadCompose  = "upload-compose"
	StepRegistryLogin  = "registry-login"
	StepPullImage      = "pull-image"
	StepSettle         = "settle"
	StepSystemPrune    = "system-prune"
	StepComposeUp      = "compose-up"
)

// Upload copies a local file to the remote host.
type Upload struct {
	Local  string
	Remote string
}

// Step is one unit of work in a deployment. Exactly one of Command, Upload
// or Wait is set.
type Step struct {
	Name    string
	Command string
	// Display is what gets logged in place of Command.
	Display string
	Stdin   security.Secret
	Upload  *Upload
	Wait    time.Duration

	AllowFailure bool
	// FailureNote is logged when an allowed failure happens.
	FailureNote string
}

// Plan returns the ordered steps for cfg. It does not validate cfg.
func Plan(cfg Config) []Step {
	cfg = cfg.withDefaults()
	composePath := cfg.RemoteComposePath()
	compose := func(args ...string) string {
		return shellquote.Join(append([]string{"docker", "compose", "-f", composePath}, args...)...)
	}

	var steps []Step

	if cfg.LogMaxSize > 0 {
		cmd, err := logtrim.RemoteCommand(cfg.LogGlob, cfg.LogMaxSize, cfg.LogKeep)
		if err != nil {
			logging.Warnf("skipping log trimming: %v", err)
		} else {
			steps = append(steps, Step{
				Name:         StepTrimLogs,
				Command:      cmd,
				AllowFailure: true,
				FailureNote:  "Log trimming failed",
			})
		}
	}

	steps = append(steps,
		Step{
			Name:         StepComposeDown,
			Command:      compose("down"),
			AllowFailure: true,
			FailureNote:  "No containers available to stop",
		},
		Step{
			Name:         StepContainerPrune,
			Command:      "docker container prune -f",
			AllowFailure: true,
			FailureNote:  "No stopped containers to delete",
		},
		Step{
			Name:   StepUploadCompose,
			Upload: &Upload{Local: cfg.ComposeFile, Remote: composePath},
		},
		Step{
			Name:    StepRegistryLogin,
			Command: shellquote.Join("docker", "login", "--username", cfg.RegistryUser, "--password-stdin", cfg.Registry),
			Stdin:   security.FromBytes(append(cfg.RegistryPassword.Bytes(), '\n')),
		},
		Step{
			Name:    StepPullImage,
			Command: shellquote.Join("docker", "pull", cfg.Image()),
		},
		Step{
			Name: StepSettle,
			Wait: cfg.PullSettle,
		},
		Step{
			Name:         StepSystemPrune,
			Command:      "docker system prune -f",
			AllowFailure: true,
			FailureNote:  "No images to delete",
		},
		Step{
			Name:    StepComposeUp,
			Command: "sh -s",
			Display: fmt.Sprintf("%s (with %d exported variables)", compose("up", "-d"), len(cfg.Env)),
			Stdin:   security.FromString(composeUpScript(cfg.Env, compose("up", "-d"))),
		},
	)
	return steps
}

// composeUpScript exports env and starts the stack. Names are sorted so the
// script is stable.
func composeUpScript(env map[string]string, up string) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("set -e\n")
	for _, name := range names {
		fmt.Fprintf(&b, "export %s=%s\n", name, shellquote.Join(env[name]))
	}
	b.WriteString(up)
	b.WriteString("\n")
	return b.String()
}

// Describe returns the loggable form of the step.
func (s Step) Describe() string {
	switch {
	case s.Upload != nil:
		return fmt.Sprintf("upload %s -> %s", s.Upload.Local, s.Upload.Remote)
	case s.Wait > 0:
		return fmt.Sprintf("wait %s", s.Wait)
	case s.Display != "":
		return s.Display
	default:
		return s.Command
	}
}
