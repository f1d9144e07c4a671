package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

type Config struct {
	Server         ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging        LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Paths          PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Network        NetworkConfig    `yaml:"network" mapstructure:"network"`
	Download       DownloadConfig   `yaml:"download" mapstructure:"download"`
	Extraction     ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Authentication AuthConfig       `yaml:"authentication" mapstructure:"authentication"`
	AutoArchive    bool             `yaml:"auto_archive" mapstructure:"auto_archive"`
	path           string
}

type ServerConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	QueueSize int    `yaml:"queue_size" mapstructure:"queue_size"`
}

type LoggingConfig struct {
	Level             string `yaml:"level" mapstructure:"level"`
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
}

type PathsConfig struct {
	DownloadPath   string `yaml:"download_path" mapstructure:"download_path"`
	DownloaderPath string `yaml:"downloader_path" mapstructure:"downloader_path"`
	TranscoderName string `yaml:"transcoder_name" mapstructure:"transcoder_name"`
	DatabasePath   string `yaml:"database_path" mapstructure:"database_path"`
}

// NetworkConfig is shared by metadata extraction and downloads.
type NetworkConfig struct {
	Personas           []extractor.Persona `yaml:"personas" mapstructure:"personas"`
	Headers            map[string]string   `yaml:"headers" mapstructure:"headers"`
	GeoBypassCountry   string              `yaml:"geo_bypass_country" mapstructure:"geo_bypass_country"`
	ForceIPv4          bool                `yaml:"force_ipv4" mapstructure:"force_ipv4"`
	Proxy              string              `yaml:"proxy" mapstructure:"proxy"`
	CookiesPath        string              `yaml:"cookies_path" mapstructure:"cookies_path"`
	NoCheckCertificate bool                `yaml:"no_check_certificate" mapstructure:"no_check_certificate"`
}

type DownloadConfig struct {
	RateLimit           string        `yaml:"rate_limit" mapstructure:"rate_limit"`
	ConcurrentFragments int           `yaml:"concurrent_fragments" mapstructure:"concurrent_fragments"`
	Retries             int           `yaml:"retries" mapstructure:"retries"`
	SocketTimeout       time.Duration `yaml:"socket_timeout" mapstructure:"socket_timeout"`
	SleepRequests       float64       `yaml:"sleep_requests" mapstructure:"sleep_requests"`
	MaxSleepRequests    float64       `yaml:"max_sleep_requests" mapstructure:"max_sleep_requests"`
	RecencyWindow       time.Duration `yaml:"recency_window" mapstructure:"recency_window"`
}

type ExtractionConfig struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" mapstructure:"backoff"`
}

type AuthConfig struct {
	RequireAuth  bool   `yaml:"require_auth" mapstructure:"require_auth"`
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password" mapstructure:"password"`
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = Default()
		})
	}
	return instance
}

// Default returns a configuration with every documented default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      3033,
			QueueSize: 2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogPath: "vidfetch.log",
		},
		Paths: PathsConfig{
			DownloadPath:   os.TempDir(),
			DownloaderPath: "yt-dlp",
			TranscoderName: "ffmpeg",
			DatabasePath:   ".",
		},
		Network: NetworkConfig{
			Personas:         DefaultPersonas(),
			Headers:          DefaultHeaders(),
			GeoBypassCountry: "VN",
			ForceIPv4:        true,
		},
		Download: DownloadConfig{
			ConcurrentFragments: 1,
			Retries:             10,
			SocketTimeout:       30 * time.Second,
			SleepRequests:       0.5,
			MaxSleepRequests:    1.5,
			RecencyWindow:       300 * time.Second,
		},
		Extraction: ExtractionConfig{
			MaxRetries: extractor.DefaultMaxAttempts,
			Backoff:    extractor.DefaultBackoffStep,
		},
		AutoArchive: true,
	}
}

// DefaultPersonas lists the client identities tried in order when a
// platform blocks the previous one.
func DefaultPersonas() []extractor.Persona {
	return []extractor.Persona{
		{Name: "mobile", PlayerClients: []string{"android", "web"}},
		{Name: "desktop", PlayerClients: []string{"web"}},
		{Name: "embedded", PlayerClients: []string{"web_embedded", "tv"}},
	}
}

func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://www.youtube.com/",
		"Origin":          "https://www.youtube.com",
	}
}

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }

func (c *Config) DatabaseFile() string {
	return filepath.Join(c.Paths.DatabasePath, "vidfetch.db")
}
