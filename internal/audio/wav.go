package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/audiotrim/internal/trim"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// WAVCodec decodes and encodes integer PCM WAV in process.
type WAVCodec struct{}

// Decode implements Decoder. Only integer PCM is accepted; other WAV
// encodings report trim.ErrUnsupportedFormat so a caller can fall back to
// ffmpeg.
func (WAVCodec) Decode(ctx context.Context, data []byte, _ string) (*trim.SampleBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", trim.ErrCorruptData)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav encoding %d", trim.ErrUnsupportedFormat, d.WavAudioFormat)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read pcm: %s", trim.ErrCorruptData, err.Error())
	}
	if pcm.Format == nil {
		return nil, fmt.Errorf("%w: missing format chunk", trim.ErrCorruptData)
	}

	depth := int(d.BitDepth)
	samples := make([]float64, len(pcm.Data))
	scale := math.Ldexp(1, depth-1)
	for i, v := range pcm.Data {
		if depth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		samples[i] = float64(v) / scale
	}

	buf, err := trim.NewSampleBuffer(samples, pcm.Format.SampleRate, pcm.Format.NumChannels)
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	return buf, nil
}

// Encode implements Encoder for FormatWAV.
func (WAVCodec) Encode(ctx context.Context, buf *trim.SampleBuffer, format Format, q Quality) ([]byte, error) {
	if format != FormatWAV {
		return nil, fmt.Errorf("%w: wav codec cannot encode %s", trim.ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return encodeWAV(buf, q.bitDepth())
}

func encodeWAV(buf *trim.SampleBuffer, depth int) ([]byte, error) {
	if buf == nil {
		return nil, errors.New("wav encode: nil buffer")
	}

	peak := math.Ldexp(1, depth-1) - 1
	ints := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		s = math.Max(-1, math.Min(1, s))
		ints[i] = int(math.Round(s * peak))
	}

	out := &writeSeeker{}
	enc := wav.NewEncoder(out, buf.SampleRate, depth, buf.Channels, wavFormatPCM)
	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           ints,
		SourceBitDepth: depth,
	}
	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("wav encode: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav encode: close: %w", err)
	}
	return out.Bytes(), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("writeSeeker: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

// Bytes returns the written data.
func (w *writeSeeker) Bytes() []byte {
	return w.buf
}
