// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/crypto"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/decode"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

func newSealCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal [text]",
		Short: "Encrypt text into a textdb payload",
		Long: "Encrypt text the way the mobile app does and print the URL-safe Base64 body to upload to textdb. " +
			"Reads standard input when no text is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(cmd, c, args)
		},
	}
	cmd.Flags().String("passphrase", "", "passphrase or keyring://service/key (default: stored passphrase)")
	return cmd
}

func newOpenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [payload]",
		Short: "Decrypt a textdb payload",
		Long:  "Decode and decrypt a textdb body. Reads standard input when no payload is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, c, args)
		},
	}
	cmd.Flags().String("passphrase", "", "passphrase or keyring://service/key (default: stored passphrase)")
	return cmd
}

func runSeal(cmd *cobra.Command, c *cli, args []string) error {
	text, err := argOrStdin(cmd, args)
	if err != nil {
		return err
	}
	passphrase, err := resolvePassphrase(cmd, c)
	if err != nil {
		return err
	}

	payload, err := crypto.Encrypt(text, passphrase)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), decode.EncodeURLSafe([]byte(payload)))
	return err
}

func runOpen(cmd *cobra.Command, c *cli, args []string) error {
	raw, err := argOrStdin(cmd, args)
	if err != nil {
		return err
	}
	passphrase, err := resolvePassphrase(cmd, c)
	if err != nil {
		return err
	}

	encoded := decode.URLSafeBase64(raw)
	if encoded == "" {
		return cliperr.New(cliperr.CodeDecodePayloadInvalid, "payload is empty")
	}
	text, err := crypto.Decrypt(encoded, passphrase)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

// argOrStdin returns the single argument or all of standard input with the
// trailing newline removed.
func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", cliperr.Errorf(cliperr.CodeCLIInputInvalid, "reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// resolvePassphrase prefers --passphrase and falls back to the settings store.
func resolvePassphrase(cmd *cobra.Command, c *cli) (string, error) {
	if flag, _ := cmd.Flags().GetString("passphrase"); flag != "" {
		return settings.ResolveValue(flag)
	}

	var passphrase string
	err := withStore(c, func(store settings.Store) error {
		v, ok, err := settings.Lookup(commandContext(cmd), store, settings.PassphraseKey)
		if err != nil {
			return err
		}
		if !ok {
			return cliperr.New(cliperr.CodeFetchCredentialsMissing,
				"no passphrase stored; pass --passphrase or run 'cloudclip settings set passphrase --stdin'")
		}
		passphrase = v
		return nil
	})
	return passphrase, err
}
