// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

// keyAliases lets users type short names for the credential keys.
var keyAliases = map[string]string{
	"store_id":   settings.StoreIDKey.Primary,
	"note_name":  settings.StoreIDKey.Primary,
	"passphrase": settings.PassphraseKey.Primary,
	"note_pwd":   settings.PassphraseKey.Primary,
}

func resolveKey(name string) string {
	if key, ok := keyAliases[name]; ok {
		return key
	}
	return name
}

func isSecretKey(key string) bool {
	return key == settings.PassphraseKey.Primary || key == settings.PassphraseKey.Legacy
}

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the stored store ID and passphrase",
		Long: "Read and write the settings backend that refreshes load credentials from. " +
			"The aliases store_id and passphrase map to the keys the mobile app uses.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored setting keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(c, func(store settings.Store) error { return runSettingsList(cmd, store) })
			},
		},
		newSettingsGetCmd(c),
		newSettingsSetCmd(c),
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Delete a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(c, func(store settings.Store) error { return runSettingsDelete(cmd, store, args[0]) })
			},
		},
	)

	return cmd
}

func newSettingsGetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(c, func(store settings.Store) error { return runSettingsGet(cmd, store, args[0]) })
		},
	}
	cmd.Flags().Bool("reveal", false, "print the passphrase instead of redacting it")
	return cmd
}

func newSettingsSetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a setting",
		Long:  "Store a setting. Use --stdin to read the value from standard input so it stays out of shell history.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(c, func(store settings.Store) error { return runSettingsSet(cmd, store, args) })
		},
	}
	cmd.Flags().Bool("stdin", false, "read the value from standard input")
	return cmd
}

// withStore opens the configured settings backend for the duration of fn.
func withStore(c *cli, fn func(settings.Store) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := openSettings(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func runSettingsList(cmd *cobra.Command, store settings.Store) error {
	keys, err := store.Keys(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No settings stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, store settings.Store, name string) error {
	key := resolveKey(name)
	value, ok, err := store.Get(commandContext(cmd), key)
	if err != nil {
		return err
	}
	if !ok {
		return cliperr.Errorf(cliperr.CodeSettingsNotFound, "setting %q not found", key)
	}

	if reveal, _ := cmd.Flags().GetBool("reveal"); isSecretKey(key) && !reveal && !settings.IsKeyringURI(value) {
		value = "[redacted]"
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func runSettingsSet(cmd *cobra.Command, store settings.Store, args []string) error {
	key := resolveKey(args[0])

	var value string
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	switch {
	case fromStdin && len(args) == 2:
		return cliperr.New(cliperr.CodeCLIInputInvalid, "pass the value as an argument or with --stdin, not both")
	case fromStdin:
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return cliperr.Errorf(cliperr.CodeCLIInputInvalid, "reading value from stdin: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	case len(args) == 2:
		value = args[1]
	default:
		return cliperr.New(cliperr.CodeCLIInputInvalid, "missing value")
	}

	if err := store.Set(commandContext(cmd), key, value); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", key)
	return err
}

func runSettingsDelete(cmd *cobra.Command, store settings.Store, name string) error {
	key := resolveKey(name)
	if err := store.Delete(commandContext(cmd), key); err != nil {
		if cliperr.IsNotFound(err) {
			return cliperr.Errorf(cliperr.CodeSettingsNotFound, "setting %q not found", key)
		}
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
	return err
}
