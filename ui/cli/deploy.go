// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gsheets-app/google-sheets/internal/compose"
	"github.com/gsheets-app/google-sheets/internal/config"
	"github.com/gsheets-app/google-sheets/internal/db"
	"github.com/gsheets-app/google-sheets/internal/deploy"
	"github.com/gsheets-app/google-sheets/internal/envcheck"
	"github.com/gsheets-app/google-sheets/internal/i18n"
	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/internal/logtrim"
	"github.com/gsheets-app/google-sheets/internal/security"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

// deployRequiredEnv must be set in the pipeline before a deployment.
var deployRequiredEnv = []string{
	"TAG",
	"GITHUB_USERNAME",
	"GITHUB_PASSWORD",
	"DOMAIN",
	"REDIRECT_DOMAIN",
	"CLIENT_SECRET",
	"DATABASE_URL",
}

// Hooks replaced in tests.
var (
	dialRemote = func(ctx context.Context, cfg deploy.Config) (deploy.Remote, error) {
		d, err := deploy.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	scanHostKey           = deploy.ScanHostKey
	stdin       io.Reader = os.Stdin
	lookupEnv             = os.LookupEnv
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the current image to the Docker host over SSH",
	Long: `Connects to DOMAIN as the deploy user with the key file and:
1. trims oversized container logs,
2. stops the compose stack and prunes stopped containers,
3. uploads the compose file,
4. logs in to the registry and pulls the image for TAG,
5. prunes unused images,
6. starts the stack with the runtime variables the compose file uses.

Use --dry-run to print the plan without connecting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runDeploy(ctx, appConfig, dryRun)
	},
}

var trustHostCmd = &cobra.Command{
	Use:   "trust-host [host]",
	Short: "Add the deploy host's SSH key to the known hosts file",
	Long: `Connects to the host (DOMAIN by default), shows the fingerprint of its
public key and, after confirmation, appends it to the known hosts file so
later deployments verify the host.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := appConfig.Deploy.Domain
		if len(args) > 0 {
			host = args[0]
		}
		if host == "" {
			return errors.New("no host given and DOMAIN is not set")
		}
		file := appConfig.Deploy.KnownHostsFile
		if file == "" {
			return errors.New("no known hosts file configured (--known-hosts)")
		}
		yes, _ := cmd.Flags().GetBool("yes")

		fmt.Fprintln(stdout, i18n.T("deploy.trust.retrieving", host))
		key, err := scanHostKey(host)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, i18n.T("deploy.trust.unknown_host", host))
		fmt.Fprintln(stdout, i18n.T("deploy.trust.fingerprint", key.Type(), ssh.FingerprintSHA256(key)))
		if !yes {
			ans := promptForConfirmation(i18n.T("deploy.trust.confirm"))
			if ans != "yes" && ans != "y" {
				fmt.Fprintln(stdout, i18n.T("deploy.trust.cancelled"))
				return nil
			}
		}
		if err := deploy.TrustHost(host, file, key); err != nil {
			return err
		}
		fmt.Fprintln(stdout, i18n.T("deploy.trust.added", host, key.Type(), file))
		return nil
	},
}

var deployHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Deploy.AuditURL == "" {
			return errors.New("no audit database configured (deploy.audit_url)")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		d, err := openDatabase(cmd.Context(), appConfig.Deploy.AuditURL, true)
		if err != nil {
			return err
		}
		defer d.Close()
		runs, steps, err := db.NewAuditStore(d).RecentDeploys(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(stdout, i18n.T("deploy.history.empty"))
			return nil
		}
		for i, r := range runs {
			line := fmt.Sprintf("%s  %-9s %s -> %s (%s)", r.StartedAt.Format(time.RFC3339), r.Status, r.Image, r.Host,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
			if r.FailedStep != "" {
				line += " " + i18n.T("deploy.history.failed_at", r.FailedStep)
			}
			fmt.Fprintln(stdout, line)
			for _, s := range steps[i] {
				fmt.Fprintf(stdout, "    %-16s %s\n", s.Name, s.Status)
			}
		}
		return nil
	},
}

func init() {
	f := deployCmd.PersistentFlags()
	f.String("host", "", "Docker host to deploy to (DOMAIN)")
	f.String("user", "azureuser", "SSH user")
	f.String("key-file", "key.pem", "SSH private key")
	f.String("known-hosts", "", "known_hosts file; empty skips host key verification")
	f.String("audit-url", "", "Database deploy runs are recorded in")
	mustAnnotate(f, map[string]string{
		"host":        "deploy.domain",
		"user":        "deploy.user",
		"key-file":    "deploy.key_file",
		"known-hosts": "deploy.known_hosts_file",
		"audit-url":   "deploy.audit_url",
	})

	lf := deployCmd.Flags()
	lf.Bool("dry-run", false, "Print the steps without connecting")
	lf.String("tag", "", "Image tag (TAG)")
	lf.String("repository", "", "Image repository (GITHUB_REPOSITORY)")
	lf.String("registry", "ghcr.io", "Container registry (REGISTRY)")
	lf.String("compose-file", "google-sheets-docker-compose.yaml", "Compose file to upload")
	lf.String("remote-dir", "/home/azureuser", "Directory on the host for the compose file")
	lf.String("log-max-size", "1GB", "Trim container logs larger than this (0 disables)")
	lf.String("log-keep", "100MB", "Bytes kept at the end of a trimmed log")
	lf.Duration("pull-settle", 10*time.Second, "Wait after pulling before pruning images")
	mustAnnotate(lf, map[string]string{
		"tag":          "deploy.tag",
		"repository":   "deploy.repository",
		"registry":     "deploy.registry",
		"compose-file": "deploy.compose_file",
		"remote-dir":   "deploy.remote_dir",
		"log-max-size": "deploy.log_max_size",
		"log-keep":     "deploy.log_keep",
		"pull-settle":  "deploy.pull_settle",
	})

	trustHostCmd.Flags().BoolP("yes", "y", false, "Trust the key without asking")
	deployHistoryCmd.Flags().Int("limit", 10, "Number of runs to show")
	deployCmd.AddCommand(trustHostCmd, deployHistoryCmd)
}

// buildDeployConfig maps configuration onto deploy.Config. Env is filled
// later from the compose file.
func buildDeployConfig(c config.Config) (deploy.Config, error) {
	maxSize, err := logtrim.ParseSize(c.Deploy.LogMaxSize)
	if err != nil {
		return deploy.Config{}, fmt.Errorf("log max size: %w", err)
	}
	keep, err := logtrim.ParseSize(c.Deploy.LogKeep)
	if err != nil {
		return deploy.Config{}, fmt.Errorf("log keep: %w", err)
	}
	return deploy.Config{
		Host:             c.Deploy.Domain,
		User:             c.Deploy.User,
		KeyFile:          c.Deploy.KeyFile,
		KnownHostsFile:   c.Deploy.KnownHostsFile,
		ComposeFile:      c.Deploy.ComposeFile,
		RemoteDir:        c.Deploy.RemoteDir,
		Registry:         c.Deploy.Registry,
		Repository:       c.Deploy.Repository,
		Tag:              c.Deploy.Tag,
		RegistryUser:     c.Deploy.RegistryUser,
		RegistryPassword: security.FromString(c.Deploy.RegistryPassword),
		LogGlob:          c.Deploy.LogGlob,
		LogMaxSize:       maxSize,
		LogKeep:          keep,
		PullSettle:       c.Deploy.PullSettle,
	}, nil
}

// composeEnv returns the values of the variables the compose file
// references, taken from the environment, and fails when one without a
// default is missing.
func composeEnv(path string) (map[string]string, error) {
	f, err := compose.Load(path)
	if err != nil {
		return nil, err
	}
	env := map[string]string{}
	for _, name := range f.Variables() {
		if v, ok := lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			env[name] = v
		}
	}
	if missing := f.MissingVariables(env); len(missing) > 0 {
		return nil, &envcheck.MissingError{Names: missing}
	}
	return env, nil
}

func runDeploy(ctx context.Context, c config.Config, dryRun bool) error {
	if err := envcheck.RequireFrom(lookupEnv, deployRequiredEnv...); err != nil {
		return err
	}

	cfg, err := buildDeployConfig(c)
	if err != nil {
		return err
	}
	if cfg.Env, err = composeEnv(cfg.ComposeFile); err != nil {
		return fmt.Errorf("compose file %s: %w", cfg.ComposeFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		res := deploy.DryRun(cfg)
		fmt.Fprintln(stdout, i18n.T("deploy.plan_header", res.Image, res.Host))
		for i, step := range res.Steps {
			fmt.Fprintf(stdout, "%2d. %-16s %s\n", i+1, step.Name, step.Output)
		}
		return nil
	}

	remote, err := dialRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer remote.Close()

	res, runErr := deploy.Run(ctx, remote, cfg)
	printDeployResult(res)
	if c.Deploy.AuditURL != "" {
		if err := recordDeploy(ctx, c.Deploy.AuditURL, res); err != nil {
			logging.Warnf("could not record deploy run: %v", err)
		}
	}
	return runErr
}

func printDeployResult(res deploy.Result) {
	fmt.Fprintln(stdout, i18n.T("deploy.summary", res.Status(), res.Image, res.Host))
	for _, s := range res.Steps {
		line := fmt.Sprintf("  %-16s %-8s", s.Name, s.Status)
		if s.Duration > 0 {
			line += " " + s.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintln(stdout, strings.TrimRight(line, " "))
	}
}

// recordDeploy stores res in the audit database at url.
func recordDeploy(ctx context.Context, url string, res deploy.Result) error {
	d, err := openDatabase(ctx, url, true)
	if err != nil {
		return err
	}
	defer d.Close()

	steps := make([]db.StepRecord, 0, len(res.Steps))
	for _, s := range res.Steps {
		rec := db.StepRecord{Name: s.Name, Status: string(s.Status), Duration: s.Duration}
		if s.Err != nil {
			rec.Error = s.Err.Error()
		}
		steps = append(steps, rec)
	}
	run := db.DeployRunModel{
		ID:         res.RunID.String(),
		Host:       res.Host,
		Image:      res.Image,
		StartedAt:  res.Started.UTC(),
		FinishedAt: res.Finished.UTC(),
		Status:     res.Status(),
		FailedStep: res.FailedStep,
	}
	store := db.NewAuditStore(d)
	if err := store.RecordDeploy(ctx, run, steps); err != nil {
		return err
	}
	return store.LogCorrelated(ctx, run.ID, "DEPLOY", fmt.Sprintf("%s %s to %s", run.Status, run.Image, run.Host))
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Fprint(stdout, prompt)
	reader := bufio.NewReader(stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}
