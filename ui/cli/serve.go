// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gsheets-app/google-sheets/internal/clientsecret"
	"github.com/gsheets-app/google-sheets/internal/config"
	"github.com/gsheets-app/google-sheets/internal/db"
	"github.com/gsheets-app/google-sheets/internal/envcheck"
	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/internal/security"
	"github.com/gsheets-app/google-sheets/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errNoDatabase is returned by database commands when DATABASE_URL is unset.
var errNoDatabase = errors.New("DATABASE_URL is not set")

// listenAndServe is replaced in tests so serve can be exercised without
// binding a port.
var listenAndServe = func(ctx context.Context, s *server.Server) error {
	return s.ListenAndServe(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Write client_secret.json, migrate the database and start the HTTP server",
	Long: `Starts the service the way the container entrypoint does:
1. Checks that CLIENT_SECRET and REDIRECT_DOMAIN are set.
2. Writes client_secret.json for the OAuth web client and reads it back.
3. Opens DATABASE_URL when set and applies migrations (--migrate).
4. Serves HTTP on 0.0.0.0:$PORT. Forwarded headers from the reverse
   proxy are trusted for the client address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, appConfig)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("host", "0.0.0.0", "Address to bind")
	f.Int("port", 8000, "Port to listen on (PORT)")
	f.Bool("migrate", true, "Apply database migrations before serving")
	f.String("client-secret-file", "client_secret.json", "Where to write the OAuth client secret")
	mustAnnotate(f, map[string]string{
		"host":               "server.host",
		"port":               "server.port",
		"migrate":            "server.migrate",
		"client-secret-file": "server.client_secret_file",
	})
}

// mustAnnotate ties flags to config keys. A typo is a programming error.
func mustAnnotate(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := config.Annotate(flags, flag, key); err != nil {
			panic(fmt.Sprintf("annotate %s: %v", flag, err))
		}
	}
}

// clientSecretOptions collects the OAuth values from configuration.
func clientSecretOptions(c config.Config) clientsecret.Options {
	return clientsecret.Options{
		ClientID:       c.OAuth.ClientID,
		ProjectID:      c.OAuth.ProjectID,
		ClientSecret:   security.FromString(c.OAuth.ClientSecret),
		RedirectDomain: c.OAuth.RedirectDomain,
		RedirectPath:   c.OAuth.RedirectPath,
	}
}

// writeClientSecret writes the client secret file and loads it back so a
// malformed file fails startup instead of the first login.
func writeClientSecret(c config.Config, path string) (clientsecret.Settings, error) {
	file, err := clientsecret.Build(clientSecretOptions(c))
	if err != nil {
		return clientsecret.Settings{}, err
	}
	if err := clientsecret.Write(path, file); err != nil {
		return clientsecret.Settings{}, err
	}
	return clientsecret.Load(path)
}

// openDatabase opens DATABASE_URL and applies migrations when asked.
func openDatabase(ctx context.Context, url string, migrate bool) (*db.DB, error) {
	if url == "" {
		return nil, errNoDatabase
	}
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if !migrate {
		return d, nil
	}
	applied, err := d.RunMigrations(ctx)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if len(applied) > 0 {
		logging.Infof("applied migrations: %v", applied)
	} else {
		logging.Infof("database schema is up to date")
	}
	return d, nil
}

func runServe(ctx context.Context, c config.Config) error {
	if err := envcheck.Require("CLIENT_SECRET", "REDIRECT_DOMAIN"); err != nil {
		return err
	}

	settings, err := writeClientSecret(c, c.Server.ClientSecretFile)
	if err != nil {
		return fmt.Errorf("client secret: %w", err)
	}
	logging.Infof("wrote %s (redirect %s)", c.Server.ClientSecretFile, settings.RedirectURI)

	var audit server.Auditor
	if c.Database.URL != "" {
		d, err := openDatabase(ctx, c.Database.URL, c.Server.Migrate)
		if err != nil {
			return err
		}
		defer d.Close()
		audit = db.NewAuditStore(d)
	} else {
		logging.Warnf("DATABASE_URL is not set; running without persistence")
	}

	v, _, _ := resolveBuildVersion(nil)
	srv := server.New(server.Options{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		Version:         v,
		Domain:          c.Deploy.Domain,
		Audit:           audit,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	})
	logging.Infof("starting server on %s (public url %s)", srv.Addr(), srv.BaseURL())
	return listenAndServe(ctx, srv)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase(cmd.Context(), appConfig.Database.URL, true)
		if err != nil {
			return err
		}
		defer d.Close()
		fmt.Fprintln(stdout, "Migrations applied.")
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database helpers",
}

var dbMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run database maintenance (VACUUM) for DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		d, err := openDatabase(ctx, appConfig.Database.URL, false)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.Maintain(ctx); err != nil {
			return fmt.Errorf("maintenance failed: %w", err)
		}
		fmt.Fprintln(stdout, "Maintenance completed successfully")
		return nil
	},
}

var dbWaspURLCmd = &cobra.Command{
	Use:   "wasp-url",
	Short: "Print the URL of the web frontend's database",
	Long: `Derives the frontend database URL from DATABASE_URL by replacing the
database name with WASP_DB_NAME (default waspdb) and adding connect_timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Database.URL == "" {
			return errNoDatabase
		}
		u, err := db.WaspURL(appConfig.Database.URL, appConfig.Database.WaspDBName)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, u)
		return nil
	},
}

func init() {
	dbMaintainCmd.Flags().Duration("timeout", 2*time.Minute, "Give up after this long (0 disables)")
	dbCmd.AddCommand(dbMaintainCmd, dbWaspURLCmd)
}
