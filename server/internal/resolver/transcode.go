package resolver

// TranscodeOptions are the post-processing instructions handed to yt-dlp.
// The zero value means no transcoding at all.
//
// FFmpegLocation is not an instruction: it is rendered whenever set since
// yt-dlp may still need ffmpeg for fixups of a single-file download.
type TranscodeOptions struct {
	MergeOutputFormat string `json:"merge_output_format,omitempty"`
	ExtractAudio      bool   `json:"extract_audio,omitempty"`
	AudioFormat       string `json:"audio_format,omitempty"`
	AudioQuality      string `json:"audio_quality,omitempty"`
	RemuxVideo        string `json:"remux_video,omitempty"`
	KeepVideo         bool   `json:"keep_video,omitempty"`
	FFmpegLocation    string `json:"ffmpeg_location,omitempty"`
}

// IsZero reports whether no post-processing is requested.
func (t TranscodeOptions) IsZero() bool {
	return t.MergeOutputFormat == "" &&
		!t.ExtractAudio &&
		t.RemuxVideo == ""
}

// Args renders the options as yt-dlp flags.
func (t TranscodeOptions) Args() []string {
	var args []string
	if t.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", t.MergeOutputFormat)
	}
	if t.RemuxVideo != "" {
		args = append(args, "--remux-video", t.RemuxVideo)
	}
	if t.ExtractAudio {
		args = append(args, "-x")
		if t.AudioFormat != "" {
			args = append(args, "--audio-format", t.AudioFormat)
		}
		if t.AudioQuality != "" {
			args = append(args, "--audio-quality", t.AudioQuality)
		}
		if t.KeepVideo {
			args = append(args, "-k")
		}
	}
	if t.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", t.FFmpegLocation)
	}

	return args
}
