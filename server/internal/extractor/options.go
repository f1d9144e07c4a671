package extractor

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Persona is a client identity presented to the platform. The set and
// order of personas is configuration; nothing here ranks them.
type Persona struct {
	Name          string            `yaml:"name" mapstructure:"name" json:"name"`
	PlayerClients []string          `yaml:"player_clients" mapstructure:"player_clients" json:"player_clients"`
	Headers       map[string]string `yaml:"headers" mapstructure:"headers" json:"headers,omitempty"`
}

// RetryPolicy bounds the attempts made for transient failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

const (
	DefaultMaxAttempts = 3
	DefaultBackoffStep = 1200 * time.Millisecond
	MaxBackoff         = 3 * time.Second
)

// LinearBackoff grows the delay by step per attempt, capped at MaxBackoff.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return min(step*time.Duration(attempt), MaxBackoff)
	}
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     LinearBackoff(DefaultBackoffStep),
		Retryable:   IsTransient,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = d.Backoff
	}
	if p.Retryable == nil {
		p.Retryable = d.Retryable
	}
	return p
}

// Options is the per call configuration of the extraction adapter.
type Options struct {
	CookiesPath        string
	Proxy              string
	Personas           []Persona
	GeoBypassCountry   string
	ForceIPv4          bool
	NoCheckCertificate bool
	Headers            map[string]string
	Retry              RetryPolicy
}

// args builds the yt-dlp flags for a metadata request under persona p.
func (o Options) args(url string, p *Persona) []string {
	args := []string{
		url,
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--no-colors",
	}

	if o.NoCheckCertificate {
		args = append(args, "--no-check-certificates")
	}
	if o.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if o.GeoBypassCountry != "" {
		args = append(args, "--geo-bypass-country", o.GeoBypassCountry)
	}
	if o.CookiesPath != "" {
		args = append(args, "--cookies", o.CookiesPath)
	}
	if o.Proxy != "" {
		args = append(args, "--proxy", o.Proxy)
	}

	headers := maps.Clone(o.Headers)
	if headers == nil {
		headers = map[string]string{}
	}
	if p != nil {
		if len(p.PlayerClients) > 0 {
			args = append(args,
				"--extractor-args",
				"youtube:player_client="+strings.Join(p.PlayerClients, ","),
			)
		}
		maps.Copy(headers, p.Headers)
	}

	for _, k := range slices.Sorted(maps.Keys(headers)) {
		args = append(args, "--add-header", fmt.Sprintf("%s:%s", k, headers[k]))
	}

	return args
}
