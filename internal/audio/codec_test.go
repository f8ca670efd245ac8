package audio

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiotrim/internal/trim"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		hint    string
		want    Format
		wantErr bool
	}{
		{"wav", FormatWAV, false},
		{".MP3", FormatMP3, false},
		{"episode 12.flac", FormatFLAC, false},
		{"/tmp/upload/talk.m4a", FormatM4A, false},
		{"clip.mp4", FormatMP4, false},
		{" ogg ", FormatOGG, false},
		{"notes.txt", "", true},
		{"", "", true},
		{"aiff", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, err := ParseFormat(tt.hint)
			if tt.wantErr {
				assert.ErrorIs(t, err, trim.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, name := range []string{"wav", "mp3", "flac"} {
		f, err := ParseOutputFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(name), f)
	}

	for _, name := range []string{"ogg", "m4a", "mp4", "opus"} {
		_, err := ParseOutputFormat(name)
		assert.ErrorIs(t, err, trim.ErrUnsupportedFormat, name)
	}
}

func TestFormat_ContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", FormatMP3.ContentType())
	assert.Equal(t, "audio/wav", FormatWAV.ContentType())
	assert.Equal(t, "audio/flac", FormatFLAC.ContentType())
	assert.Equal(t, "application/octet-stream", Format("xyz").ContentType())
}

// tone returns durationSec of a 440 Hz tone with the given silent spans,
// each given as {start, end} in seconds.
func tone(t *testing.T, rate, channels int, durationSec float64, silent ...[2]float64) *trim.SampleBuffer {
	t.Helper()
	frames := int(durationSec * float64(rate))
	samples := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		for _, s := range silent {
			if i >= int(s[0]*float64(rate)) && i < int(s[1]*float64(rate)) {
				v = 0
			}
		}
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	buf, err := trim.NewSampleBuffer(samples, rate, channels)
	require.NoError(t, err)
	return buf
}

func TestWAVCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		quality  Quality
		tol      float64
	}{
		{"mono 16-bit", 1, Quality{SampleFormat: "s16"}, 2.0 / 32767},
		{"stereo 16-bit", 2, Quality{}, 2.0 / 32767},
		{"mono 24-bit", 1, Quality{SampleFormat: "s24"}, 2.0 / 8388607},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tone(t, 8000, tt.channels, 0.25)
			codec := WAVCodec{}

			data, err := codec.Encode(context.Background(), in, FormatWAV, tt.quality)
			require.NoError(t, err)

			out, err := codec.Decode(context.Background(), data, "out.wav")
			require.NoError(t, err)

			assert.Equal(t, in.SampleRate, out.SampleRate)
			assert.Equal(t, in.Channels, out.Channels)
			require.Equal(t, len(in.Samples), len(out.Samples))
			assert.InDeltaSlice(t, in.Samples, out.Samples, tt.tol)
		})
	}
}

func TestWAVCodec_ClipsOutOfRange(t *testing.T) {
	in, err := trim.NewSampleBuffer([]float64{1.5, -2, 0}, 8000, 1)
	require.NoError(t, err)

	data, err := WAVCodec{}.Encode(context.Background(), in, FormatWAV, Quality{})
	require.NoError(t, err)
	out, err := WAVCodec{}.Decode(context.Background(), data, "wav")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, out.Samples[0], 1e-4)
	assert.InDelta(t, -1.0, out.Samples[1], 1e-4)
}

func TestWAVCodec_DecodeCorrupt(t *testing.T) {
	_, err := WAVCodec{}.Decode(context.Background(), []byte("definitely not a RIFF header"), "x.wav")

	assert.ErrorIs(t, err, trim.ErrCorruptData)
}

func TestWAVCodec_EncodeRejectsOtherFormats(t *testing.T) {
	_, err := WAVCodec{}.Encode(context.Background(), tone(t, 8000, 1, 0.1), FormatMP3, Quality{})

	assert.ErrorIs(t, err, trim.ErrUnsupportedFormat)
}

func TestWAVCodec_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WAVCodec{}.Decode(ctx, nil, "x.wav")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSeeker(t *testing.T) {
	w := &writeSeeker{}
	_, err := w.Write([]byte("hello world"))
	require.NoError(t, err)

	pos, err := w.Seek(6, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	_, err = w.Write([]byte("there"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(w.Bytes()))

	_, err = w.Seek(-100, 1)
	assert.Error(t, err)
}
