package config

import (
	"maps"

	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

// ExtractorOptions maps the network and extraction sections onto the
// metadata adapter options.
func (c *Config) ExtractorOptions() extractor.Options {
	return extractor.Options{
		CookiesPath:        c.Network.CookiesPath,
		Proxy:              c.Network.Proxy,
		Personas:           c.Network.Personas,
		GeoBypassCountry:   c.Network.GeoBypassCountry,
		ForceIPv4:          c.Network.ForceIPv4,
		NoCheckCertificate: c.Network.NoCheckCertificate,
		Headers:            maps.Clone(c.Network.Headers),
		Retry: extractor.RetryPolicy{
			MaxAttempts: c.Extraction.MaxRetries,
			Backoff:     extractor.LinearBackoff(c.Extraction.Backoff),
		},
	}
}

// NetworkOptions maps the network and download sections onto the transfer
// options. The first persona's player clients are used for downloads.
func (c *Config) NetworkOptions() downloaders.NetworkOptions {
	n := downloaders.NetworkOptions{
		RateLimit:           c.Download.RateLimit,
		ConcurrentFragments: c.Download.ConcurrentFragments,
		Retries:             c.Download.Retries,
		SocketTimeout:       c.Download.SocketTimeout,
		SleepRequests:       c.Download.SleepRequests,
		MaxSleepRequests:    c.Download.MaxSleepRequests,
		Proxy:               c.Network.Proxy,
		CookiesPath:         c.Network.CookiesPath,
		Headers:             maps.Clone(c.Network.Headers),
		NoCheckCertificate:  c.Network.NoCheckCertificate,
		ForceIPv4:           c.Network.ForceIPv4,
		GeoBypassCountry:    c.Network.GeoBypassCountry,
	}
	if len(c.Network.Personas) > 0 {
		p := c.Network.Personas[0]
		n.PlayerClients = p.PlayerClients
		if n.Headers == nil && len(p.Headers) > 0 {
			n.Headers = map[string]string{}
		}
		maps.Copy(n.Headers, p.Headers)
	}
	return n
}
