package downloaders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
)

func TestRequestArgs(t *testing.T) {
	req := Request{
		URL:            "https://youtu.be/x",
		Format:         "137+bestaudio/best",
		OutputTemplate: "/tmp/ytb_video_x_1080p.mp4",
		Transcode:      resolver.TranscodeOptions{MergeOutputFormat: "mp4", RemuxVideo: "mp4", FFmpegLocation: "/usr/bin/ffmpeg"},
		Network: NetworkOptions{
			RateLimit:           "2M",
			ConcurrentFragments: 4,
			Retries:             10,
			SocketTimeout:       30 * time.Second,
			SleepRequests:       0.5,
			MaxSleepRequests:    1.5,
			Proxy:               "socks5://127.0.0.1:1080",
			CookiesPath:         "/tmp/cookies.txt",
			Headers:             map[string]string{"Referer": "https://www.youtube.com/", "Accept-Language": "en-US,en;q=0.9"},
			NoCheckCertificate:  true,
			ForceIPv4:           true,
			GeoBypassCountry:    "VN",
			PlayerClients:       []string{"android", "web"},
		},
	}

	assert.Equal(t, []string{
		"-f", "137+bestaudio/best",
		"-o", "/tmp/ytb_video_x_1080p.mp4",
		"--merge-output-format", "mp4",
		"--remux-video", "mp4",
		"--ffmpeg-location", "/usr/bin/ffmpeg",
		"--continue",
		"--retries", "10", "--fragment-retries", "10",
		"-N", "4",
		"--limit-rate", "2M",
		"--socket-timeout", "30",
		"--sleep-requests", "0.5",
		"--sleep-interval", "0.5", "--max-sleep-interval", "1.5",
		"--proxy", "socks5://127.0.0.1:1080",
		"--cookies", "/tmp/cookies.txt",
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Referer:https://www.youtube.com/",
		"--no-check-certificates",
		"--force-ipv4",
		"--geo-bypass-country", "VN",
		"--extractor-args", "youtube:player_client=android,web",
	}, req.Args())
}

func TestRequestArgs_AudioTemplate(t *testing.T) {
	req := Request{
		Format:         "bestaudio/best",
		OutputTemplate: "/tmp/ytb_video_x_audio",
		AudioOnly:      true,
		Network:        NetworkOptions{Retries: -1},
	}

	assert.Equal(t, []string{
		"-f", "bestaudio/best",
		"-o", "/tmp/ytb_video_x_audio.%(ext)s",
		"--continue",
	}, req.Args())
}

func TestArgsSanitizer(t *testing.T) {
	got := argsSanitizer([]string{"-f", "", "best", "${HOME}", "a && rm -rf /", "--no-part"})
	assert.Equal(t, []string{"-f", "best", "--no-part"}, got)
}

func TestArgsSanitizer_DropsFlagOfRejectedValue(t *testing.T) {
	got := argsSanitizer([]string{"--proxy", "http://${X}", "--cookies", "c.txt"})
	assert.Equal(t, []string{"--cookies", "c.txt"}, got)

	got = argsSanitizer([]string{"--no-part", "--exec=a && b", "x"})
	assert.Equal(t, []string{"--no-part", "x"}, got)

	got = argsSanitizer([]string{"--no-part", "--proxy", "${A}", "${B}"})
	assert.Equal(t, []string{"--no-part"}, got)
}

func TestBuildTemplate(t *testing.T) {
	assert.Equal(t, "/x/%(title)s.%(ext)s", buildTemplate("/x/%(title)s.%(ext)s.%(ext)s", false))
	assert.Equal(t, "/x/a.mp4", buildTemplate("/x/a.mp4", false))
	assert.Equal(t, "/x/a.%(ext)s", buildTemplate("/x/a", true))
}

func TestTransportError(t *testing.T) {
	err := &TransportError{ExitCode: 1, Stderr: []string{"ERROR: first", "WARNING: later"}}
	assert.Equal(t, "first", err.Reason())
	assert.Equal(t, "download failed: first", err.Error())

	err = &TransportError{ExitCode: 2, Stderr: []string{"Traceback", "KeyError: 'url'"}}
	assert.Equal(t, "KeyError: 'url'", err.Reason())

	err = &TransportError{ExitCode: 3}
	assert.Equal(t, "download failed with exit code 3", err.Error())
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateIdle.CanTransitionTo(StateRunning))
	assert.True(t, StateRunning.CanTransitionTo(StateFinished))
	assert.True(t, StateRunning.CanTransitionTo(StateFailed))
	assert.False(t, StateIdle.CanTransitionTo(StateFinished))
	assert.False(t, StateFinished.CanTransitionTo(StateRunning))
	assert.False(t, StateFailed.CanTransitionTo(StateRunning))
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
}
