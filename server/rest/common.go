package rest

import (
	"github.com/vidfetch/vidfetch/server/archive"
	"github.com/vidfetch/vidfetch/server/archiver"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/kv"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"github.com/vidfetch/vidfetch/server/internal/queue"
)

type ContainerArgs struct {
	MDB      *kv.Store
	MQ       *queue.MessageQueue
	Bus      *progress.Bus
	Pipeline *pipeline.Pipeline
	Archiver *archiver.Archiver
	Archive  *archive.Handler
	// Runner answers version queries.
	Runner extractor.Runner
}

type formatsRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type videoInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Uploader  string `json:"uploader,omitempty"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type formatsResponse struct {
	SessionID string    `json:"session_id"`
	Video     videoInfo `json:"metadata"`
	*pipeline.Inspection
}

type downloadRequest struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	FormatID  string `json:"format_id,omitempty"`
}

type downloadResponse struct {
	DownloadID  string   `json:"download_id"`
	DisplayName string   `json:"display_name"`
	Warnings    []string `json:"warnings,omitempty"`
}

type statusResponse struct {
	kv.DownloadSnapshot
	Last      *progress.Event `json:"last_event,omitempty"`
	SizeHuman string          `json:"size_human,omitempty"`
}

type cleanupResponse struct {
	Removed []string `json:"removed"`
}

type updateResponse struct {
	Output string `json:"output"`
}

type versionResponse struct {
	App        string `json:"app"`
	Downloader string `json:"yt-dlp"`
	Transcoder string `json:"transcoder,omitempty"`
}
