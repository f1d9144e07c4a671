package downloaders

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vidfetch/vidfetch/server/internal/formats"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
)

// NetworkOptions are pass-through transfer settings. Nothing here is
// computed by the orchestrator.
type NetworkOptions struct {
	RateLimit           string
	ConcurrentFragments int
	Retries             int
	SocketTimeout       time.Duration
	SleepRequests       float64
	MaxSleepRequests    float64
	Proxy               string
	CookiesPath         string
	Headers             map[string]string
	NoCheckCertificate  bool
	ForceIPv4           bool
	GeoBypassCountry    string
	PlayerClients       []string
}

// Request describes a single download attempt. Build a new one per attempt.
type Request struct {
	URL            string
	VideoID        string
	Kind           resolver.Kind
	Selected       *formats.QualityOption
	Format         string
	OutputTemplate string
	Transcode      resolver.TranscodeOptions
	Network        NetworkOptions
	AudioOnly      bool
}

// Args renders the request as yt-dlp flags, URL and progress templates
// excluded.
func (r Request) Args() []string {
	var args []string

	if r.Format != "" {
		args = append(args, "-f", r.Format)
	}
	if r.OutputTemplate != "" {
		args = append(args, "-o", buildTemplate(r.OutputTemplate, r.AudioOnly))
	}
	args = append(args, r.Transcode.Args()...)
	args = append(args, r.Network.args()...)

	return argsSanitizer(args)
}

func (n NetworkOptions) args() []string {
	args := []string{"--continue"}

	if n.Retries >= 0 {
		retries := strconv.Itoa(n.Retries)
		args = append(args, "--retries", retries, "--fragment-retries", retries)
	}
	if n.ConcurrentFragments > 0 {
		args = append(args, "-N", strconv.Itoa(n.ConcurrentFragments))
	}
	if n.RateLimit != "" {
		args = append(args, "--limit-rate", n.RateLimit)
	}
	if n.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(n.SocketTimeout.Seconds())))
	}
	if n.SleepRequests > 0 {
		args = append(args, "--sleep-requests", formatSeconds(n.SleepRequests))
	}
	if n.MaxSleepRequests > n.SleepRequests && n.SleepRequests > 0 {
		// yt-dlp randomizes between --sleep-interval and --max-sleep-interval
		args = append(args,
			"--sleep-interval", formatSeconds(n.SleepRequests),
			"--max-sleep-interval", formatSeconds(n.MaxSleepRequests),
		)
	}
	if n.Proxy != "" {
		args = append(args, "--proxy", n.Proxy)
	}
	if n.CookiesPath != "" {
		args = append(args, "--cookies", n.CookiesPath)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Headers)) {
		args = append(args, "--add-header", fmt.Sprintf("%s:%s", k, n.Headers[k]))
	}
	if n.NoCheckCertificate {
		args = append(args, "--no-check-certificates")
	}
	if n.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if n.GeoBypassCountry != "" {
		args = append(args, "--geo-bypass-country", n.GeoBypassCountry)
	}
	if len(n.PlayerClients) > 0 {
		args = append(args,
			"--extractor-args",
			"youtube:player_client="+strings.Join(n.PlayerClients, ","),
		)
	}

	return args
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
