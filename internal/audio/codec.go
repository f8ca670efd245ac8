// Package audio converts between encoded audio files and trim.SampleBuffer
// and provides the post-filters applied to trimmed output.
package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maauso/audiotrim/internal/trim"
)

// Format is an audio container recognised by the codecs.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatMP4  Format = "mp4"
)

// inputFormats lists the containers accepted for decoding.
var inputFormats = map[Format]bool{
	FormatWAV:  true,
	FormatMP3:  true,
	FormatFLAC: true,
	FormatOGG:  true,
	FormatM4A:  true,
	FormatMP4:  true,
}

// outputFormats lists the containers the encoders can produce.
var outputFormats = map[Format]bool{
	FormatWAV:  true,
	FormatMP3:  true,
	FormatFLAC: true,
}

// ParseFormat resolves a format from a file name, an extension or a bare
// format name. Unknown formats return trim.ErrUnsupportedFormat.
func ParseFormat(hint string) (Format, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if ext := filepath.Ext(h); ext != "" {
		h = ext
	}
	f := Format(strings.TrimPrefix(h, "."))
	if !inputFormats[f] {
		return "", fmt.Errorf("%w: %q", trim.ErrUnsupportedFormat, hint)
	}
	return f, nil
}

// ParseOutputFormat is ParseFormat restricted to encodable formats.
func ParseOutputFormat(name string) (Format, error) {
	f, err := ParseFormat(name)
	if err != nil {
		return "", err
	}
	if !outputFormats[f] {
		return "", fmt.Errorf("%w: cannot encode %s", trim.ErrUnsupportedFormat, f)
	}
	return f, nil
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	case FormatOGG:
		return "audio/ogg"
	case FormatM4A, FormatMP4:
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// Quality holds encoder settings. Bitrate applies to mp3, SampleFormat to
// wav and flac.
type Quality struct {
	Bitrate      string `json:"bitrate,omitempty" yaml:"bitrate" validate:"omitempty,oneof=128k 192k 256k 320k"`
	SampleFormat string `json:"sample_format,omitempty" yaml:"sample_format" validate:"omitempty,oneof=s16 s24 s32"`
}

// DefaultQuality returns 128k mp3 and 16-bit PCM.
func DefaultQuality() Quality {
	return Quality{Bitrate: "128k", SampleFormat: "s16"}
}

// bitDepth maps the sample format to PCM bits per sample.
func (q Quality) bitDepth() int {
	switch q.SampleFormat {
	case "s24":
		return 24
	case "s32":
		return 32
	default:
		return 16
	}
}

// Decoder turns encoded bytes into a sample buffer. The hint is a file name
// or format name used to pick the container.
type Decoder interface {
	Decode(ctx context.Context, data []byte, hint string) (*trim.SampleBuffer, error)
}

// Encoder writes a sample buffer in the given container.
type Encoder interface {
	Encode(ctx context.Context, buf *trim.SampleBuffer, format Format, q Quality) ([]byte, error)
}

// Codec decodes and encodes audio.
type Codec interface {
	Decoder
	Encoder
}
