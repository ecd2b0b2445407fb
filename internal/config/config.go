// SPDX-License-Identifier: MPL-2.0

// Package config resolves wheelwright's own settings: the output directory,
// the log level, and the reproducible-build timestamp override. Settings come
// from an optional wheelwright.toml file merged with environment variables;
// the project manifest is deliberately not handled here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "wheelwright"
	// ConfigFileName is the settings file name (without extension).
	ConfigFileName = "wheelwright"

	// DefaultOutputDir is where archives land when nothing overrides it.
	DefaultOutputDir = "dist"

	// sourceDateEpochEnv is the conventional reproducible-build variable: a
	// Unix timestamp applied to every archive entry instead of the built-in
	// canonical epoch.
	sourceDateEpochEnv = "SOURCE_DATE_EPOCH"
)

// Settings are wheelwright's resolved tool settings.
type Settings struct {
	// OutputDir is the directory archives are written to, relative to the
	// working directory unless absolute.
	OutputDir string `mapstructure:"output_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// ConfigDir returns the wheelwright configuration directory using
// platform-specific conventions: %APPDATA% on Windows, Application Support
// on macOS, and $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load resolves settings from defaults, an optional settings file (the
// current directory first, then the platform config directory), and
// WHEELWRIGHT_* environment variables.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("WHEELWRIGHT")
	v.AutomaticEnv()

	v.SetConfigName(ConfigFileName)
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if cfgDir, err := ConfigDir(); err == nil {
		v.AddConfigPath(cfgDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		// No settings file is fine; defaults and env apply.
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &settings, nil
}

// SourceDateEpoch returns the timestamp override from SOURCE_DATE_EPOCH, or
// ok=false when the variable is unset. A set but unparsable value is an
// error rather than a silent fallback: a build that was asked to be pinned
// to a time must not quietly float.
func SourceDateEpoch() (time.Time, bool, error) {
	raw := os.Getenv(sourceDateEpochEnv)
	if raw == "" {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid %s value %q: %w", sourceDateEpochEnv, raw, err)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}
