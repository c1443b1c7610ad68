package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName = "google-sheets"
	// envPrefix applies to keys without an explicit binding in envBindings.
	envPrefix = "gsheets"
	// FlagAnnotation marks a cobra flag with the config key it overrides.
	FlagAnnotation = "gsheets_config_key"
)

// envBindings maps config keys to the plain variable names the deployment
// pipeline and the container runtime already export.
var envBindings = map[string]string{
	"deploy.tag":               "TAG",
	"deploy.registry_user":     "GITHUB_USERNAME",
	"deploy.registry_password": "GITHUB_PASSWORD",
	"deploy.domain":            "DOMAIN",
	"deploy.repository":        "GITHUB_REPOSITORY",
	"deploy.registry":          "REGISTRY",
	"oauth.redirect_domain":    "REDIRECT_DOMAIN",
	"oauth.client_secret":      "CLIENT_SECRET",
	"database.url":             "DATABASE_URL",
	"database.wasp_db_name":    "WASP_DB_NAME",
	"server.port":              "PORT",
}

// dotenvLoad is replaced in tests.
var dotenvLoad = godotenv.Load

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), appName)
		default:
			configDir = "/etc/" + appName
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, appName)
	}

	return filepath.Join(configDir, appName+".yaml"), nil
}

// GetConfigPath exposes the user or system config file location.
func GetConfigPath(system bool) (string, error) {
	return getConfigPath(system)
}

// LoadDotEnv loads .env from the working directory without overriding
// variables already present in the process environment. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return dotenvLoad(path)
}

// LoadConfig builds T from defaults, config files, the environment and the
// flags of cmd, in increasing order of precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(appName)
	v.SetConfigType("yaml")

	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return c, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if cmd != nil {
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// bindFlags binds annotated flags to their config key and dotted flag names
// ("log.level") to themselves.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := ""
		if keys, ok := f.Annotations[FlagAnnotation]; ok && len(keys) > 0 {
			key = keys[0]
		} else if strings.Contains(f.Name, ".") {
			key = f.Name
		}
		if key == "" {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

// Annotate attaches a config key to the named flag on cmd. Unknown flags are
// an error so typos surface at startup.
func Annotate(flags *pflag.FlagSet, flagName, key string) error {
	return flags.SetAnnotation(flagName, FlagAnnotation, []string{key})
}

// WriteConfigFile serializes c as YAML to the user (or system) config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file may contain registry and OAuth secrets.
	return os.WriteFile(path, data, 0600)
}
