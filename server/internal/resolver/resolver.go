// Package resolver picks the yt-dlp format selector and post-processing
// options for a download from the requested kind, the selected quality and
// whether a transcoder is installed.
package resolver

import (
	"errors"
	"fmt"

	"github.com/vidfetch/vidfetch/server/internal/formats"
)

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

var ErrUnknownKind = errors.New("unknown download kind")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVideo, "":
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKind, s)
}

// yt-dlp selector grammar.
const (
	DefaultVideoSelector = "best[height<=1080]+bestaudio/best[height<=1080]/best"
	CappedVideoSelector  = "best[height<=720]/best"
	BestAudioSelector    = "bestaudio/best"
	MergeWithBestAudio   = "%s+bestaudio/best"

	MergeContainer = "mp4"
	AudioCodec     = "mp3"
	AudioBitrate   = "192"
)

// ErrTranscoderUnavailable is reported as a warning only: every path that
// needs the transcoder has a degraded selector.
var ErrTranscoderUnavailable = errors.New("transcoder not available, output will not be converted")

type Input struct {
	Kind                Kind
	Selected            *formats.QualityOption
	Options             []formats.QualityOption
	TranscoderAvailable bool
}

type Result struct {
	Format    string
	Transcode TranscodeOptions
	Warnings  []string
}

// Resolve is pure: it never fails and never touches the filesystem.
func Resolve(in Input) Result {
	if in.Kind == KindAudio {
		return resolveAudio(in)
	}
	return resolveVideo(in)
}

func resolveVideo(in Input) Result {
	sel := in.Selected
	if sel == nil || sel.FormatID == "" {
		return defaultVideo(in.TranscoderAvailable)
	}

	if sel.HasAudio {
		return Result{Format: sel.FormatID}
	}

	if in.TranscoderAvailable {
		return Result{
			Format: fmt.Sprintf(MergeWithBestAudio, sel.FormatID),
			Transcode: TranscodeOptions{
				MergeOutputFormat: MergeContainer,
				RemuxVideo:        MergeContainer,
			},
		}
	}

	res := Result{Warnings: []string{ErrTranscoderUnavailable.Error()}}
	if best, ok := formats.BestWithAudio(in.Options); ok {
		res.Format = best.FormatID
	} else {
		res.Format = CappedVideoSelector
	}
	return res
}

func defaultVideo(transcoder bool) Result {
	res := Result{Format: DefaultVideoSelector}
	if transcoder {
		res.Transcode.MergeOutputFormat = MergeContainer
	}
	return res
}

func resolveAudio(in Input) Result {
	if !in.TranscoderAvailable {
		return Result{
			Format:   BestAudioSelector,
			Warnings: []string{ErrTranscoderUnavailable.Error()},
		}
	}

	res := Result{
		Format: BestAudioSelector,
		Transcode: TranscodeOptions{
			ExtractAudio: true,
			AudioFormat:  AudioCodec,
			AudioQuality: AudioBitrate,
			KeepVideo:    false,
		},
	}
	if best, ok := formats.BestWithAudio(in.Options); ok {
		res.Format = best.FormatID
	}
	return res
}
