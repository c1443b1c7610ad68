// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gsheets-app/google-sheets/internal/checks"
	"github.com/gsheets-app/google-sheets/internal/coverage"
	"github.com/gsheets-app/google-sheets/internal/envcheck"
	"github.com/gsheets-app/google-sheets/internal/imagetag"
	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/internal/logtrim"
	"github.com/spf13/cobra"
)

// runChecks is replaced in tests.
var runChecks = checks.Run

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Environment helpers",
}

var envCheckCmd = &cobra.Command{
	Use:   "check NAME...",
	Short: "Fail when any of the named variables is unset or empty",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := envcheck.RequireFrom(lookupEnv, args...); err != nil {
			return err
		}
		logging.Infof("all %d variables are set", len(args))
		return nil
	},
}

var clientSecretCmd = &cobra.Command{
	Use:   "client-secret",
	Short: "OAuth client secret helpers",
}

var clientSecretWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Write client_secret.json from CLIENT_SECRET and REDIRECT_DOMAIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if err := envcheck.RequireFrom(lookupEnv, "CLIENT_SECRET", "REDIRECT_DOMAIN"); err != nil {
			return err
		}
		settings, err := writeClientSecret(appConfig, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s (client %s, redirect %s)\n", out, settings.ClientID, settings.RedirectURI)
		return nil
	},
}

var imageTagCmd = &cobra.Command{
	Use:   "image-tag [ref]",
	Short: "Print the image tag for a git ref",
	Long: `Prints "latest" for the main branch and "dev" for the dev branch. The
ref defaults to GITHUB_REF. Other branches have no deploy target and exit
nonzero. With --image the full image reference is printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, _ := lookupEnv("GITHUB_REF")
		if len(args) > 0 {
			ref = args[0]
		}
		if ref == "" {
			return errors.New("no ref given and GITHUB_REF is not set")
		}
		target, err := imagetag.Resolve(ref)
		if err != nil {
			return err
		}
		image, _ := cmd.Flags().GetBool("image")
		if !image {
			fmt.Fprintln(stdout, target.Tag)
			return nil
		}
		if appConfig.Deploy.Repository == "" {
			return errors.New("GITHUB_REPOSITORY is not set")
		}
		fmt.Fprintln(stdout, imagetag.ImageRef(appConfig.Deploy.Registry, appConfig.Deploy.Repository, target.Tag))
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Container log helpers",
}

var logsTrimCmd = &cobra.Command{
	Use:   "trim FILE...",
	Short: "Keep only the tail of oversized log files",
	Long: `Trims each FILE larger than --max-size down to its last --keep bytes. The
file is rewritten in place so the container runtime keeps writing to it.
With --archive-dir the removed head is stored zstd-compressed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxFlag, _ := cmd.Flags().GetString("max-size")
		keepFlag, _ := cmd.Flags().GetString("keep")
		archiveDir, _ := cmd.Flags().GetString("archive-dir")
		maxSize, err := logtrim.ParseSize(maxFlag)
		if err != nil {
			return err
		}
		keep, err := logtrim.ParseSize(keepFlag)
		if err != nil {
			return err
		}

		var failed int
		for _, path := range args {
			trimmed, err := trimLog(path, maxSize, keep, archiveDir)
			switch {
			case err != nil:
				failed++
				logging.Errorf("%s: %v", path, err)
			case trimmed:
				fmt.Fprintf(stdout, "trimmed %s\n", path)
			default:
				logging.Debugf("%s is below %s", path, humanize.IBytes(uint64(maxSize)))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be trimmed", failed, len(args))
		}
		return nil
	},
}

// trimLog trims path, creating an archive only when the file is over the
// threshold.
func trimLog(path string, maxSize, keep int64, archiveDir string) (bool, error) {
	if archiveDir == "" {
		return logtrim.TrimFile(path, maxSize, keep, nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.Size() <= maxSize {
		return false, nil
	}
	archive, name, err := logtrim.ArchiveWriter(archiveDir, filepath.Base(path))
	if err != nil {
		return false, err
	}
	trimmed, err := logtrim.TrimFile(path, maxSize, keep, archive)
	if cerr := archive.Close(); err == nil {
		err = cerr
	}
	if err != nil || !trimmed {
		_ = os.Remove(name)
		return trimmed, err
	}
	logging.Infof("archived head of %s to %s", path, name)
	return true, nil
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Coverage profile helpers",
}

var coverageMergeCmd = &cobra.Command{
	Use:   "merge FILES...",
	Short: "Merge go test coverage profiles",
	Long: `Merges coverage profiles from several test runs (for example the jobs of
a test matrix) into one. Profiles must share a mode; "set" blocks are ORed
and "count"/"atomic" blocks are summed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		failUnder, _ := cmd.Flags().GetFloat64("fail-under")

		sets, err := coverage.ParseFiles(args...)
		if err != nil {
			return err
		}
		merged, err := coverage.Merge(sets...)
		if err != nil {
			return err
		}
		if out == "" || out == "-" {
			err = coverage.Write(stdout, merged)
		} else {
			err = coverage.WriteFile(out, merged)
		}
		if err != nil {
			return err
		}

		pct := coverage.Percent(merged)
		logging.Infof("%s", coverageSummary(len(args), len(merged), pct, failUnder))
		if failUnder > 0 && pct < failUnder {
			return fmt.Errorf("coverage %.1f%% is below %.1f%%", pct, failUnder)
		}
		return nil
	},
}

var (
	coverageOK  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	coverageLow = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func coverageSummary(inputs, files int, pct, failUnder float64) string {
	style := coverageOK
	if failUnder > 0 && pct < failUnder {
		style = coverageLow
	}
	return fmt.Sprintf("merged %d profiles covering %d files: %s of statements",
		inputs, files, style.Render(fmt.Sprintf("%.1f%%", pct)))
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run gofmt, go vet, golangci-lint and gosec",
	Long: `Runs the static analysis tools used by the pipeline and prints a summary.
Tools that are not installed are skipped unless --strict is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		results := runChecks(cmd.Context(), checks.DefaultTools(), checks.Options{
			Dir:      dir,
			Parallel: appConfig.Checks.Parallel,
			Strict:   appConfig.Checks.Strict,
		})
		fmt.Fprint(stdout, checks.Render(results))
		if checks.Failed(results) {
			var names []string
			for _, r := range results {
				if r.Status == checks.StatusFailed {
					names = append(names, r.Tool.Name)
				}
			}
			return fmt.Errorf("checks failed: %s", strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	envCmd.AddCommand(envCheckCmd)

	clientSecretWriteCmd.Flags().String("out", "client_secret.json", "File to write")
	clientSecretCmd.AddCommand(clientSecretWriteCmd)

	imageTagCmd.Flags().Bool("image", false, "Print <registry>/<repository>:<tag>")
	imageTagCmd.Flags().String("repository", "", "Image repository (GITHUB_REPOSITORY)")
	imageTagCmd.Flags().String("registry", imagetag.DefaultRegistry, "Container registry (REGISTRY)")
	mustAnnotate(imageTagCmd.Flags(), map[string]string{
		"repository": "deploy.repository",
		"registry":   "deploy.registry",
	})

	lf := logsTrimCmd.Flags()
	lf.String("max-size", "100MB", "Trim files larger than this")
	lf.String("keep", "10MB", "Bytes kept at the end of each file")
	lf.String("archive-dir", "", "Store the removed part here, zstd-compressed")
	logsCmd.AddCommand(logsTrimCmd)

	coverageMergeCmd.Flags().StringP("output", "o", "coverage.out", "Merged profile (- for stdout)")
	coverageMergeCmd.Flags().Float64("fail-under", 0, "Fail when total coverage is below this percentage")
	coverageCmd.AddCommand(coverageMergeCmd)

	cf := checkCmd.Flags()
	cf.Bool("strict", false, "Fail when a tool is not installed")
	cf.Int("parallel", 4, "Tools run at the same time")
	cf.String("dir", ".", "Directory to check")
	mustAnnotate(cf, map[string]string{
		"strict":   "checks.strict",
		"parallel": "checks.parallel",
	})
}
