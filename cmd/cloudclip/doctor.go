// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/config"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/server"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

// clipboardProbe reports whether a desktop clipboard is usable.
var clipboardProbe = func() bool { return publish.SystemClipboard{}.Available() }

func newDoctorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, stored credentials, clipboard access, the local server and disk space.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, c)
		},
	}

	cmd.Flags().String("address", "", "server address to check (default: server.listen)")

	return cmd
}

func runDoctor(cmd *cobra.Command, c *cli) error {
	w := cmd.OutOrStdout()
	addr := serverAddress(cmd, c)

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Config", func() string { return checkConfig(c) }},
		{"Credentials", func() string { return checkCredentials(cmd, c) }},
		{"Permissions", func() string { return checkPermissions(c) }},
		{"Clipboard", checkClipboard},
		{"Server", func() string { return checkServer(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir(c)) }},
	}

	for _, check := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", check.name+":", check.fn()); err != nil {
			return err
		}
	}

	return nil
}

// dataDir is the directory holding the sqlite settings database.
func dataDir(c *cli) string {
	if path := c.v.GetString("settings.path"); path != "" {
		return filepath.Dir(path)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cloudclip")
}

func checkBinary() string {
	return fmt.Sprintf("cloudclip %s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(c *cli) string {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}

	source := "defaults (no config file found)"
	if used := c.v.ConfigFileUsed(); used != "" {
		source = used
	}
	return fmt.Sprintf("strategy %s, settings %s, loaded from %s", cfg.Strategy, cfg.Settings.Backend, source)
}

func checkCredentials(cmd *cobra.Command, c *cli) string {
	var result string
	err := withStore(c, func(store settings.Store) error {
		_, err := settings.LoadCredentials(commandContext(cmd), store)
		if err != nil {
			return err
		}
		result = "store ID and passphrase present"
		return nil
	})
	if err != nil {
		if cliperr.HasCode(err, cliperr.CodeFetchCredentialsMissing) {
			return fmt.Sprintf("missing (%s); run 'cloudclip settings set store_id <id>'", cliperr.FieldsOf(err)["setting_key"])
		}
		return fmt.Sprintf("error: %s", err)
	}
	return result
}

func checkPermissions(c *cli) string {
	cfg, err := c.loadConfig()
	if err != nil {
		return "skipped (config invalid)"
	}
	issues := config.CheckPermissions(cfg.SecretFiles(c.v.ConfigFileUsed())...)
	if len(issues) == 0 {
		return "ok"
	}
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return "insecure: " + strings.Join(parts, "; ")
}

func checkClipboard() string {
	if clipboardProbe() {
		return "available"
	}
	return "unavailable (install xclip, xsel or wl-clipboard); text is kept in memory only"
}

func checkServer(addr string) string {
	var body server.StatusBody
	if err := newServerClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if cliperr.HasCode(err, cliperr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'cloudclip serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("running at %s (%s, %d run(s))", addr, body.Strategy, body.Runs)
}

func checkDiskSpace(dir string) string {
	path := dir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	avail, err := availableBytes(path)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	return formatBytes(avail) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
