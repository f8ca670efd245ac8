package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/maauso/audiotrim/internal/trim"
)

// FFmpegCodec implements Codec. WAV is handled in process; every other
// container goes through the ffmpeg CLI via temporary files that are
// removed before the call returns.
type FFmpegCodec struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	tempDir    string
	wav        WAVCodec
	logger     *slog.Logger
}

// FFmpegOption configures an FFmpegCodec.
type FFmpegOption func(*FFmpegCodec)

// WithTempDir sets the directory used for intermediate files.
func WithTempDir(dir string) FFmpegOption {
	return func(c *FFmpegCodec) {
		c.tempDir = dir
	}
}

// WithCodecLogger sets the logger.
func WithCodecLogger(logger *slog.Logger) FFmpegOption {
	return func(c *FFmpegCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewFFmpegCodec creates a new FFmpegCodec.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegCodec(ffmpegPath string, opts ...FFmpegOption) *FFmpegCodec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	c := &FFmpegCodec{ffmpegPath: ffmpegPath, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode implements Decoder.
func (c *FFmpegCodec) Decode(ctx context.Context, data []byte, hint string) (*trim.SampleBuffer, error) {
	format, err := ParseFormat(hint)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", trim.ErrCorruptData)
	}

	if format == FormatWAV {
		buf, err := c.wav.Decode(ctx, data, hint)
		if !errors.Is(err, trim.ErrUnsupportedFormat) {
			return buf, err
		}
		c.logger.Debug("wav encoding not handled in process, using ffmpeg", slog.String("error", err.Error()))
	}

	in, cleanupIn, err := c.writeTemp(data, "audiotrim-in-*."+string(format))
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	out, cleanupOut, err := c.reserveTemp("audiotrim-dec-*.wav")
	if err != nil {
		return nil, err
	}
	defer cleanupOut()

	// Drop any video stream and decode to 16-bit PCM at the source rate.
	args := []string{
		"-y",
		"-i", in,
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		out,
	}
	if err := c.runFFmpeg(ctx, args); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", trim.ErrCorruptData, err)
	}

	pcm, err := os.ReadFile(out) // #nosec G304 - path created by os.CreateTemp above
	if err != nil {
		return nil, fmt.Errorf("read decoded wav: %w", err)
	}
	return c.wav.Decode(ctx, pcm, out)
}

// Encode implements Encoder.
func (c *FFmpegCodec) Encode(ctx context.Context, buf *trim.SampleBuffer, format Format, q Quality) ([]byte, error) {
	if !outputFormats[format] {
		return nil, fmt.Errorf("%w: cannot encode %s", trim.ErrUnsupportedFormat, format)
	}
	if format == FormatWAV {
		return c.wav.Encode(ctx, buf, format, q)
	}

	// mp3 and flac encoders read 16-bit PCM unless a wider format is asked for.
	pcm, err := encodeWAV(buf, q.bitDepth())
	if err != nil {
		return nil, err
	}

	in, cleanupIn, err := c.writeTemp(pcm, "audiotrim-enc-*.wav")
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	out, cleanupOut, err := c.reserveTemp("audiotrim-out-*." + string(format))
	if err != nil {
		return nil, err
	}
	defer cleanupOut()

	args := []string{"-y", "-i", in}
	switch format {
	case FormatMP3:
		bitrate := q.Bitrate
		if bitrate == "" {
			bitrate = DefaultQuality().Bitrate
		}
		args = append(args, "-codec:a", "libmp3lame", "-b:a", bitrate)
	case FormatFLAC:
		sampleFmt := "s16"
		if q.bitDepth() > 16 {
			sampleFmt = "s32"
		}
		args = append(args, "-codec:a", "flac", "-sample_fmt", sampleFmt)
	}
	args = append(args, "-f", string(format), out)

	if err := c.runFFmpeg(ctx, args); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	data, err := os.ReadFile(out) // #nosec G304 - path created by os.CreateTemp above
	if err != nil {
		return nil, fmt.Errorf("read encoded %s: %w", format, err)
	}
	return data, nil
}

// writeTemp stores data in a new temporary file and returns its path and a
// cleanup func.
func (c *FFmpegCodec) writeTemp(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp(c.tempDir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// reserveTemp creates an empty temporary file for ffmpeg to overwrite.
func (c *FFmpegCodec) reserveTemp(pattern string) (string, func(), error) {
	return c.writeTemp(nil, pattern)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegCodec) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
