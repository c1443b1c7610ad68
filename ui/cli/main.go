// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, configuration loading and version
// reporting. Subcommands live in the other files of this package.

package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/gsheets-app/google-sheets/buildvars"
	"github.com/gsheets-app/google-sheets/internal/config"
	"github.com/gsheets-app/google-sheets/internal/db"
	"github.com/gsheets-app/google-sheets/internal/i18n"
	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/spf13/cobra"
)

const modulePath = "github.com/gsheets-app/google-sheets"

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)
var cfgFile string
var verbose bool
var showVersionFlag bool

var appConfig config.Config

// stdout is where command results go; replaced in tests.
var stdout io.Writer = os.Stdout

// setupDefaultServices loads .env, the config file, the environment and
// the flags of cmd into appConfig and applies the log level.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(""); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, config.Defaults(), optionalConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	level := appConfig.Log.Level
	if verbose {
		level = "debug"
		db.SetDebug(true)
	}
	if err := logging.SetLevel(level); err != nil {
		return err
	}
	i18n.Init(appConfig.Language)
	return nil
}

// Execute runs the CLI entrypoint. main should call this and handle the
// process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		// Make sure the user-provided file exists to avoid unwanted behavior.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out = out + " (" + c + ")"
	}
	if d != "" {
		out = out + " built: " + d
	}
	return out
}

// NewRootCmd creates and configures a new root cobra command. Tests call it
// to get a fresh root.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google-sheets",
		Short: "google-sheets service and deployment tooling",
		Long: `google-sheets runs the campaign processing service and the tooling
around it: deployment to the Docker host over SSH, image tag selection,
client_secret.json generation, coverage merging and static analysis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Fprintln(stdout, compositeVersion())
				os.Exit(0)
			}
			return setupDefaultServices(cmd, args)
		},
	}
	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	if cmd.PersistentFlags().Lookup("log.level") == nil {
		cmd.PersistentFlags().String("log.level", "info", "Log level (debug, info, warn, error)")
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			fmt.Fprintf(stdout, "version: %s\n", v)
			fmt.Fprintf(stdout, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(stdout, "built: %s\n", d)
			}
		},
	}

	cmd.AddCommand(
		serveCmd,
		migrateCmd,
		dbCmd,
		deployCmd,
		envCmd,
		clientSecretCmd,
		imageTagCmd,
		logsCmd,
		coverageCmd,
		checkCmd,
		processCmd,
		versionCmd,
	)
	return cmd
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	if buildvars.Commit != "" {
		resolvedCommit = buildvars.Commit
	}
	resolvedDate := buildDate

	if info == nil {
		if local, found := debug.ReadBuildInfo(); found {
			info = local
		}
	}

	if info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// Some build paths only record our module as a dependency.
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	// As a last resort show the commit passed via ldflags.
	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
