package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/maauso/audiotrim/internal/trim"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestAudio renders a 440 Hz tone with silent gaps to outputPath using
// ffmpeg's lavfi sources. silenceAt holds [start, duration] pairs in seconds.
func createTestAudio(t *testing.T, outputPath string, durationSec float64, silenceAt [][2]float64) {
	t.Helper()

	var inputs []string
	parts := 0
	current := 0.0
	addTone := func(d float64) {
		inputs = append(inputs, "-f", "lavfi", "-i", "sine=frequency=440:sample_rate=16000:duration="+formatDuration(d))
		parts++
	}

	for _, silence := range silenceAt {
		if silence[0] > current {
			addTone(silence[0] - current)
		}
		inputs = append(inputs,
			"-f", "lavfi", "-i", "anullsrc=channel_layout=mono:sample_rate=16000:duration="+formatDuration(silence[1]))
		parts++
		current = silence[0] + silence[1]
	}
	if current < durationSec {
		addTone(durationSec - current)
	}

	var concatInputs string
	for i := 0; i < parts; i++ {
		concatInputs += "[" + strconv.Itoa(i) + ":a]"
	}
	concatFilter := concatInputs + "concat=n=" + strconv.Itoa(parts) + ":v=0:a=1[out]"

	args := append(inputs,
		"-filter_complex", concatFilter,
		"-map", "[out]",
		"-ar", "16000", "-ac", "1",
		"-y", outputPath,
	)

	cmd := exec.Command("ffmpeg", args...)
	stderr, _ := cmd.CombinedOutput()
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Fatalf("failed to create test audio: %s", string(stderr))
	}
}

func formatDuration(sec float64) string {
	return fmt.Sprintf("%.3f", sec)
}

// assertNoTempFiles fails if the codec left files behind in dir.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestFFmpegCodec_WAVDoesNotNeedFFmpeg(t *testing.T) {
	codec := NewFFmpegCodec("/nonexistent/ffmpeg")
	in := tone(t, 16000, 1, 0.5)

	data, err := codec.Encode(context.Background(), in, FormatWAV, DefaultQuality())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	out, err := codec.Decode(context.Background(), data, "speech.wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Frames() != in.Frames() {
		t.Errorf("expected %d frames, got %d", in.Frames(), out.Frames())
	}
}

func TestFFmpegCodec_RejectsUnknownInput(t *testing.T) {
	codec := NewFFmpegCodec("")

	_, err := codec.Decode(context.Background(), []byte{1, 2, 3}, "notes.txt")
	if !errors.Is(err, trim.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFFmpegCodec_RejectsUnsupportedOutput(t *testing.T) {
	codec := NewFFmpegCodec("")

	_, err := codec.Encode(context.Background(), tone(t, 16000, 1, 0.1), FormatOGG, DefaultQuality())
	if !errors.Is(err, trim.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFFmpegCodec_EmptyInput(t *testing.T) {
	codec := NewFFmpegCodec("")

	_, err := codec.Decode(context.Background(), nil, "talk.mp3")
	if !errors.Is(err, trim.ErrCorruptData) {
		t.Errorf("expected ErrCorruptData, got %v", err)
	}
}

func TestFFmpegCodec_DecodeCorruptMP3(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	codec := NewFFmpegCodec("", WithTempDir(tmpDir))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := codec.Decode(ctx, []byte("this is plain text pretending to be an mp3"), "broken.mp3")
	if !errors.Is(err, trim.ErrCorruptData) {
		t.Fatalf("expected ErrCorruptData, got %v", err)
	}

	var ffErr *FFmpegError
	if !errors.As(err, &ffErr) {
		t.Errorf("expected *FFmpegError in chain, got %T", err)
	}
	assertNoTempFiles(t, tmpDir)
}

func TestFFmpegCodec_MP3RoundTrip(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	codec := NewFFmpegCodec("", WithTempDir(tmpDir))
	in := tone(t, 16000, 1, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := codec.Encode(ctx, in, FormatMP3, Quality{Bitrate: "192k"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected mp3 bytes")
	}

	out, err := codec.Decode(ctx, data, "roundtrip.mp3")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if out.SampleRate != 16000 {
		t.Errorf("expected 16000 Hz, got %d", out.SampleRate)
	}
	if diff := math.Abs(out.DurationMillis() - in.DurationMillis()); diff > 150 {
		t.Errorf("duration drifted by %.1f ms", diff)
	}
	assertNoTempFiles(t, tmpDir)
}

func TestFFmpegCodec_FLACIsLossless(t *testing.T) {
	checkFFmpeg(t)

	codec := NewFFmpegCodec("", WithTempDir(t.TempDir()))
	in := tone(t, 16000, 2, 0.5)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := codec.Encode(ctx, in, FormatFLAC, Quality{SampleFormat: "s16"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := codec.Decode(ctx, data, "x.flac")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if out.Channels != 2 || out.Frames() != in.Frames() {
		t.Fatalf("expected %d stereo frames, got %d frames with %d channels", in.Frames(), out.Frames(), out.Channels)
	}
	for i := range in.Samples {
		if math.Abs(in.Samples[i]-out.Samples[i]) > 2.0/32767 {
			t.Fatalf("sample %d differs: %f vs %f", i, in.Samples[i], out.Samples[i])
		}
	}
}

func TestFFmpegCodec_TrimGeneratedRecording(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	inputPath := filepath.Join(tmpDir, "recording.flac")

	// 10 seconds of tone with silence at 2-4 s and 6-9 s.
	createTestAudio(t, inputPath, 10, [][2]float64{{2, 2}, {6, 3}})

	data, err := os.ReadFile(inputPath)
	if err != nil {
		t.Fatalf("read test audio: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buf, err := NewFFmpegCodec("").Decode(ctx, data, inputPath)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	p := trim.DefaultParams()
	p.Strategy = trim.StrategyFixed
	res, err := trim.NewTrimmer(nil, nil).Trim(ctx, buf, p)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	if res.Summary.SegmentCount != 3 {
		t.Errorf("expected 3 segments, got %d", res.Summary.SegmentCount)
	}
	if math.Abs(res.Summary.FinalSeconds-5.6) > 0.1 {
		t.Errorf("expected about 5.6 s of output, got %.3f", res.Summary.FinalSeconds)
	}
}
