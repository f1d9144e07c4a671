package planner

import (
	"regexp"
	"strings"

	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

type Platform string

const (
	PlatformFacebook Platform = "facebook"
	PlatformYouTube  Platform = "youtube"
	PlatformGeneric  Platform = "generic"
)

type ContentType string

const (
	ContentReel  ContentType = "reel"
	ContentVideo ContentType = "video"
	ContentShort ContentType = "short"
	ContentNone  ContentType = ""
)

var (
	facebookTokens = []string{"facebook.com", "fb.watch"}
	youtubeTokens  = []string{"youtube.com", "youtu.be"}
)

func DetectPlatform(url string) Platform {
	u := strings.ToLower(url)
	for _, t := range facebookTokens {
		if strings.Contains(u, t) {
			return PlatformFacebook
		}
	}
	for _, t := range youtubeTokens {
		if strings.Contains(u, t) {
			return PlatformYouTube
		}
	}
	return PlatformGeneric
}

// DetectContentType combines the URL path with the short-form heuristic of
// the metadata. meta may be nil.
func DetectContentType(url string, meta *extractor.Metadata) ContentType {
	switch DetectPlatform(url) {
	case PlatformFacebook:
		if strings.Contains(url, "/reel/") {
			return ContentReel
		}
		return ContentVideo
	case PlatformYouTube:
		if isShortURL(url) || (meta != nil && isShortURL(meta.WebpageURL)) {
			return ContentShort
		}
		if meta.IsShortForm() {
			return ContentShort
		}
		return ContentVideo
	}
	return ContentNone
}

func isShortURL(url string) bool { return strings.Contains(url, "/shorts/") }

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/.*[?&]v=([a-zA-Z0-9_-]{11})`),
}

// ExtractYouTubeID returns the 11 character video id found in url.
func ExtractYouTubeID(url string) (string, bool) {
	for _, re := range youtubeIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}
