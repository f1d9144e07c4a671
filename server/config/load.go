package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "VIDFETCH"

const (
	MinRecencyWindow = 300 * time.Second
	MaxRecencyWindow = 600 * time.Second
)

// SetDefaults registers every scalar default on v so environment variables
// can override keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.queue_size", d.Server.QueueSize)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.log_path", d.Logging.LogPath)
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("paths.download_path", d.Paths.DownloadPath)
	v.SetDefault("paths.downloader_path", d.Paths.DownloaderPath)
	v.SetDefault("paths.transcoder_name", d.Paths.TranscoderName)
	v.SetDefault("paths.database_path", d.Paths.DatabasePath)
	v.SetDefault("network.geo_bypass_country", d.Network.GeoBypassCountry)
	v.SetDefault("network.force_ipv4", d.Network.ForceIPv4)
	v.SetDefault("network.proxy", "")
	v.SetDefault("network.cookies_path", "")
	v.SetDefault("network.no_check_certificate", false)
	v.SetDefault("download.rate_limit", "")
	v.SetDefault("download.concurrent_fragments", d.Download.ConcurrentFragments)
	v.SetDefault("download.retries", d.Download.Retries)
	v.SetDefault("download.socket_timeout", d.Download.SocketTimeout)
	v.SetDefault("download.sleep_requests", d.Download.SleepRequests)
	v.SetDefault("download.max_sleep_requests", d.Download.MaxSleepRequests)
	v.SetDefault("download.recency_window", d.Download.RecencyWindow)
	v.SetDefault("extraction.max_retries", d.Extraction.MaxRetries)
	v.SetDefault("extraction.backoff", d.Extraction.Backoff)
	v.SetDefault("authentication.require_auth", false)
	v.SetDefault("auto_archive", d.AutoArchive)
}

// NewViper returns a viper instance reading the yaml file at path, with
// defaults and VIDFETCH_* environment overrides.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Decode reads the config file behind v, if any, into c and validates it.
func Decode(v *viper.Viper, c *Config) error {
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults", slog.String("path", v.ConfigFileUsed()), slog.Any("err", err))
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	c.path = v.ConfigFileUsed()

	if len(c.Network.Personas) == 0 {
		c.Network.Personas = DefaultPersonas()
	}
	if c.Network.Headers == nil {
		c.Network.Headers = DefaultHeaders()
	}

	return c.Validate()
}

// Load is NewViper followed by Decode into a fresh configuration.
func Load(path string) (*Config, error) {
	c := &Config{}
	if err := Decode(NewViper(path), c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.QueueSize <= 0 {
		errs = append(errs, errors.New("server.queue_size must be positive"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Download.RateLimit != "" {
		if _, err := humanize.ParseBytes(c.Download.RateLimit); err != nil {
			errs = append(errs, fmt.Errorf("download.rate_limit: %w", err))
		}
	}
	if c.Download.ConcurrentFragments < 1 {
		errs = append(errs, errors.New("download.concurrent_fragments must be at least 1"))
	}
	if c.Download.Retries < 0 {
		errs = append(errs, errors.New("download.retries must not be negative"))
	}
	if w := c.Download.RecencyWindow; w < MinRecencyWindow || w > MaxRecencyWindow {
		errs = append(errs, fmt.Errorf("download.recency_window must be between %s and %s, got %s",
			MinRecencyWindow, MaxRecencyWindow, w))
	}
	if c.Download.MaxSleepRequests != 0 && c.Download.MaxSleepRequests < c.Download.SleepRequests {
		errs = append(errs, errors.New("download.max_sleep_requests must not be lower than sleep_requests"))
	}
	if c.Extraction.MaxRetries < 1 {
		errs = append(errs, errors.New("extraction.max_retries must be at least 1"))
	}
	if c.Authentication.RequireAuth && c.Authentication.JWTSecret == "" {
		errs = append(errs, errors.New("authentication.jwt_secret is required when require_auth is set"))
	}

	return errors.Join(errs...)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level: unknown level %q", s)
}

// Marshal renders c as yaml. Secrets are masked.
func Marshal(c *Config) ([]byte, error) {
	out := *c
	if out.Authentication.PasswordHash != "" {
		out.Authentication.PasswordHash = "********"
	}
	if out.Authentication.JWTSecret != "" {
		out.Authentication.JWTSecret = "********"
	}
	return yaml.Marshal(&out)
}
