// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CLOUDCLIP"

// Config is the top-level cloudclip configuration.
type Config struct {
	Strategy string         `mapstructure:"strategy"`
	TextDB   TextDBConfig   `mapstructure:"textdb"`
	Netcut   NetcutConfig   `mapstructure:"netcut"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Settings SettingsConfig `mapstructure:"settings"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule string         `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
}

// TextDBConfig points the textdb strategy at its service.
type TextDBConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// NetcutConfig points the netcut strategy at its note API.
type NetcutConfig struct {
	APIURL     string            `mapstructure:"api_url"`
	RetryDelay time.Duration     `mapstructure:"retry_delay"`
	Headers    map[string]string `mapstructure:"headers"`
}

// HTTPConfig bounds outbound requests.
type HTTPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

// SettingsConfig selects where credentials are read from.
type SettingsConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Service    string `mapstructure:"service"`
	StoreID    string `mapstructure:"store_id"`
	Passphrase string `mapstructure:"passphrase"`
}

// NotifyConfig controls where run messages go besides the log.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Console    bool   `mapstructure:"console"`
}

// ServerConfig controls the local trigger server.
type ServerConfig struct {
	Listen      string          `mapstructure:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles the trigger endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default so that env overrides
// are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("strategy", "textdb")
	v.SetDefault("textdb.base_url", "https://textdb.online")
	v.SetDefault("textdb.retry_delay", "1s")
	v.SetDefault("netcut.api_url", "https://netcut.cn/api/note2/info/")
	v.SetDefault("netcut.retry_delay", "2s")
	v.SetDefault("netcut.headers", map[string]string{})
	v.SetDefault("http.connect_timeout", "10s")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("settings.backend", "sqlite")
	v.SetDefault("settings.path", DefaultSettingsPath())
	v.SetDefault("settings.service", "cloudclip")
	v.SetDefault("settings.store_id", "")
	v.SetDefault("settings.passphrase", "")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.console", true)
	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit.requests_per_second", 2.0)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("schedule", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SetupEnv enables CLOUDCLIP_* overrides, mapping "." in keys to "_".
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DefaultSettingsPath returns ~/.config/cloudclip/settings.db, or a relative
// file name when the home directory is unknown.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cloudclip-settings.db"
	}
	return filepath.Join(home, ".config", "cloudclip", "settings.db")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CLOUDCLIP_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cliperr.Errorf(cliperr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cliperr.Errorf(cliperr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// RetryDelay returns the configured delay for the selected strategy.
func (c *Config) RetryDelay() time.Duration {
	if c.Strategy == "netcut" {
		return c.Netcut.RetryDelay
	}
	return c.TextDB.RetryDelay
}

// Endpoint returns the configured URL for the selected strategy.
func (c *Config) Endpoint() string {
	if c.Strategy == "netcut" {
		return c.Netcut.APIURL
	}
	return c.TextDB.BaseURL
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStrategy()...)
	errs = append(errs, c.validateHTTP()...)
	errs = append(errs, c.validateSettings()...)
	errs = append(errs, c.validateNotify()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLog()...)

	if c.Schedule != "" {
		if err := trigger.ValidateSchedule(c.Schedule); err != nil {
			errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
				"config: schedule %q is not a valid cron expression: %w", c.Schedule, err))
		}
	}

	return errs
}

func (c *Config) validateStrategy() []error {
	var errs []error

	if !oneOf(c.Strategy, "netcut", "textdb") {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: strategy must be one of [netcut, textdb], got %q", c.Strategy))
	}

	errs = append(errs, validateURL("textdb.base_url", c.TextDB.BaseURL, true)...)
	errs = append(errs, validateURL("netcut.api_url", c.Netcut.APIURL, true)...)
	errs = append(errs, positive("textdb.retry_delay", c.TextDB.RetryDelay)...)
	errs = append(errs, positive("netcut.retry_delay", c.Netcut.RetryDelay)...)

	names := make([]string, 0, len(c.Netcut.Headers))
	for name := range c.Netcut.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\r\n:") {
			errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
				"config: netcut.headers has an invalid header name %q", name))
		}
	}

	return errs
}

func (c *Config) validateHTTP() []error {
	var errs []error
	errs = append(errs, positive("http.connect_timeout", c.HTTP.ConnectTimeout)...)
	errs = append(errs, positive("http.read_timeout", c.HTTP.ReadTimeout)...)
	return errs
}

func (c *Config) validateSettings() []error {
	var errs []error

	if !oneOf(c.Settings.Backend, "config", "keyring", "sqlite") {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: settings.backend must be one of [config, keyring, sqlite], got %q",
			c.Settings.Backend,
		))
	}

	if c.Settings.Backend == "sqlite" && c.Settings.Path == "" {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: settings.path must not be empty for the sqlite backend"))
	}

	if c.Settings.Backend == "keyring" && c.Settings.Service == "" {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: settings.service must not be empty for the keyring backend"))
	}

	return errs
}

func (c *Config) validateNotify() []error {
	return validateURL("notify.webhook_url", c.Notify.WebhookURL, false)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	}
	if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit.burst must be greater than 0 when rate limiting is enabled, got %d", rl.Burst))
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	if !oneOf(strings.ToLower(c.Log.Level), "debug", "error", "info", "warn") {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: log.level must be one of [debug, error, info, warn], got %q", c.Log.Level))
	}
	if !oneOf(strings.ToLower(c.Log.Format), "json", "text") {
		errs = append(errs, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: log.format must be one of [json, text], got %q", c.Log.Format))
	}

	return errs
}

func validateURL(key, raw string, required bool) []error {
	if raw == "" {
		if required {
			return []error{cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue, "config: %s must not be empty", key)}
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: %s must be an absolute http(s) URL, got %q", key, raw)}
	}
	return nil
}

func positive(key string, d time.Duration) []error {
	if d <= 0 {
		return []error{cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"config: %s must be greater than 0, got %s", key, d)}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
