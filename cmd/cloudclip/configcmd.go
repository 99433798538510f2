// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"fmt"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// redactedKeys are masked by "config show".
var redactedKeys = [][]string{
	{"settings", "passphrase"},
}

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the merged configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runConfigShow(cmd, c)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file in use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := c.v.ConfigFileUsed()
				if path == "" {
					path = "(none, using defaults)"
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration for errors",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := c.loadConfig(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
				return err
			},
		},
	)

	return cmd
}

func runConfigShow(cmd *cobra.Command, c *cli) error {
	all := c.v.AllSettings()
	for _, path := range redactedKeys {
		redact(all, path)
	}

	data, err := yaml.Marshal(all)
	if err != nil {
		return cliperr.Errorf(cliperr.CodeCLIRequestFailure, "encoding config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// redact masks a non-empty value at path unless it is a keyring reference.
func redact(m map[string]any, path []string) {
	for i, key := range path {
		v, ok := m[key]
		if !ok {
			return
		}
		if i < len(path)-1 {
			next, ok := v.(map[string]any)
			if !ok {
				return
			}
			m = next
			continue
		}
		if s, ok := v.(string); ok && s != "" && !settings.IsKeyringURI(s) {
			m[key] = "[redacted]"
		}
	}
}
