// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/config"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the per-invocation Viper instance and the loaded config to
// subcommands.
type cli struct {
	v      *viper.Viper
	logger *slog.Logger
	cfg    *config.Config
}

// loadConfig decodes and validates the merged configuration once per
// invocation.
func (c *cli) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.FromViper(c.v)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// NewRootCmd creates the root cloudclip command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), logger: slog.Default()}

	root := &cobra.Command{
		Use:           "cloudclip",
		Short:         "Pull the shared cloud clipboard into the local clipboard",
		Long:          "cloudclip fetches the text shared by the mobile app from textdb or netcut, decrypts it and places it on the local clipboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", "", "load environment variables from this file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("strategy", "", "override the configured strategy (textdb or netcut)")

	root.AddCommand(
		newRefreshCmd(c),
		newServeCmd(c),
		newStatusCmd(c),
		newSettingsCmd(c),
		newSealCmd(c),
		newOpenCmd(c),
		newConfigCmd(c),
		newDoctorCmd(c),
		newVersionCmd(),
	)

	return root
}

// initViper layers defaults, config file, environment and flags on the
// command's Viper instance, then sets up logging.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := c.v

	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return cliperr.Errorf(cliperr.CodeCLISetupFailure, "loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cliperr.Errorf(cliperr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset so Viper does not try the bare name,
		// which would match a ./cloudclip binary.
		v.SetConfigName("cloudclip")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cloudclip")
		v.AddConfigPath("/etc/cloudclip")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cliperr.Errorf(cliperr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return cliperr.Errorf(cliperr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return cliperr.Errorf(cliperr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	if err := v.BindPFlag("strategy", cmd.Root().PersistentFlags().Lookup("strategy")); err != nil {
		return cliperr.Errorf(cliperr.CodeCLISetupFailure, "binding strategy flag: %w", err)
	}

	level := v.GetString("log.level")
	if v.GetBool("verbose") {
		level = "debug"
	}
	c.logger = newLogger(cmd.ErrOrStderr(), level, v.GetString("log.format"))
	slog.SetDefault(c.logger)

	secretFiles := []string{v.ConfigFileUsed()}
	if v.GetString("settings.backend") == "sqlite" {
		secretFiles = append(secretFiles, v.GetString("settings.path"))
	}
	config.WarnInsecurePermissions(c.logger, secretFiles...)
	settings.ResolveViperSecrets(v)

	return nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
