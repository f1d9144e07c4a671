// Package formats turns the raw stream list reported by yt-dlp into the
// deduplicated quality choices offered to the user.
package formats

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
)

const audioGlyph = " 🔊"

type QualityOption struct {
	Key      string  `json:"key"`
	FormatID string  `json:"format_id"`
	Label    string  `json:"label"`
	Height   int     `json:"height"`
	Ext      string  `json:"ext"`
	FPS      float64 `json:"fps,omitempty"`
	Filesize int64   `json:"filesize"`
	HasAudio bool    `json:"has_audio"`
	URL      string  `json:"url,omitempty"`
}

// Normalize keeps one option per "{height}p-{EXT}" key and returns them
// ranked audio first, then by height and size, all descending.
//
// Within a key a stream carrying audio is never replaced by an audio-less
// one, whatever their sizes.
func Normalize(streams []extractor.Format) []QualityOption {
	candidates := lo.Filter(streams, func(f extractor.Format, _ int) bool {
		return f.HasVideo() && (f.Height != nil || f.Quality != nil)
	})

	byKey := make(map[string]QualityOption, len(candidates))
	order := make([]string, 0, len(candidates))

	for _, f := range candidates {
		opt := newOption(f)

		current, seen := byKey[opt.Key]
		if !seen {
			order = append(order, opt.Key)
			byKey[opt.Key] = opt
			continue
		}
		if better(opt, current) {
			byKey[opt.Key] = opt
		}
	}

	options := lo.Map(order, func(k string, _ int) QualityOption {
		return byKey[k]
	})
	Sort(options)

	return options
}

// Sort orders options in place by (HasAudio, Height, Filesize) descending.
// The sort is stable so equal options keep their discovery order.
func Sort(options []QualityOption) {
	slices.SortStableFunc(options, func(a, b QualityOption) int {
		if a.HasAudio != b.HasAudio {
			if a.HasAudio {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Height, a.Height); c != 0 {
			return c
		}
		return cmp.Compare(b.Filesize, a.Filesize)
	})
}

// better reports whether a should replace b under the same key.
func better(a, b QualityOption) bool {
	if a.HasAudio != b.HasAudio {
		return a.HasAudio
	}
	return a.Filesize > b.Filesize
}

func newOption(f extractor.Format) QualityOption {
	ext := f.Ext
	if ext == "" {
		ext = "mp4"
	}

	opt := QualityOption{
		Key:      key(f.HeightOrZero(), ext),
		FormatID: f.FormatID,
		Height:   f.HeightOrZero(),
		Ext:      ext,
		FPS:      f.FPSOrZero(),
		Filesize: f.Size(),
		HasAudio: f.HasAudio(),
		URL:      f.URL,
	}
	opt.Label = label(opt)

	return opt
}

func key(height int, ext string) string {
	h := "NA"
	if height > 0 {
		h = strconv.Itoa(height)
	}
	return fmt.Sprintf("%sp-%s", h, strings.ToUpper(ext))
}

func label(o QualityOption) string {
	var sb strings.Builder

	if o.Height > 0 {
		fmt.Fprintf(&sb, "%dp - %s", o.Height, strings.ToUpper(o.Ext))
	} else {
		sb.WriteString(strings.ToUpper(o.Ext))
	}
	if o.FPS > 0 {
		fmt.Fprintf(&sb, " (%sfps)", strconv.FormatFloat(o.FPS, 'f', -1, 64))
	}
	if o.HasAudio {
		sb.WriteString(audioGlyph)
	}
	if o.Filesize > 0 {
		fmt.Fprintf(&sb, " (~%.1fMB)", float64(o.Filesize)/(1024*1024))
	}

	return sb.String()
}

// WithAudio returns the options that carry an audio track, order preserved.
func WithAudio(options []QualityOption) []QualityOption {
	return lo.Filter(options, func(o QualityOption, _ int) bool {
		return o.HasAudio
	})
}

// BestWithAudio returns the highest resolution audio-inclusive option.
func BestWithAudio(options []QualityOption) (QualityOption, bool) {
	withAudio := WithAudio(options)
	if len(withAudio) == 0 {
		return QualityOption{}, false
	}
	return lo.MaxBy(withAudio, func(a, b QualityOption) bool {
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.Filesize > b.Filesize
	}), true
}

func Find(options []QualityOption, formatID string) (QualityOption, bool) {
	return lo.Find(options, func(o QualityOption) bool {
		return o.FormatID == formatID
	})
}
