package trim

import (
	"fmt"
	"math"
)

// PadIntervals widens each speech interval by keepMs on both sides, clamps
// the result to [0, totalMs] and merges slices that touch or overlap after
// padding, so no span of audio is emitted twice.
func PadIntervals(speech []Interval, keepMs, totalMs float64) []Interval {
	slices := make([]Interval, 0, len(speech))
	for _, iv := range speech {
		padded := Interval{
			StartMs: math.Max(0, iv.StartMs-keepMs),
			EndMs:   math.Min(totalMs, iv.EndMs+keepMs),
		}
		if padded.EndMs <= padded.StartMs {
			continue
		}
		if n := len(slices); n > 0 && padded.StartMs <= slices[n-1].EndMs {
			slices[n-1].EndMs = math.Max(slices[n-1].EndMs, padded.EndMs)
			continue
		}
		slices = append(slices, padded)
	}
	return slices
}

// frameRange is a half-open range of sample frames.
type frameRange struct {
	start, end int
}

// millisToFrame converts a time offset to the nearest sample frame.
func millisToFrame(ms float64, sampleRate int) int {
	return int(math.Round(ms / 1000 * float64(sampleRate)))
}

// Reconstruct copies the given slices of buf into a new contiguous buffer.
// The output length is computed up front and the samples are copied once.
// An empty slice list reports ErrNoSpeechDetected.
func Reconstruct(buf *SampleBuffer, slices []Interval) (*SampleBuffer, error) {
	frames := buf.Frames()

	ranges := make([]frameRange, 0, len(slices))
	total := 0
	prevEnd := 0
	for _, iv := range slices {
		start := min(max(millisToFrame(iv.StartMs, buf.SampleRate), prevEnd), frames)
		end := min(millisToFrame(iv.EndMs, buf.SampleRate), frames)
		if end <= start {
			continue
		}
		ranges = append(ranges, frameRange{start: start, end: end})
		total += end - start
		prevEnd = end
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("reconstruct: %w", ErrNoSpeechDetected)
	}

	ch := buf.Channels
	out := make([]float64, 0, total*ch)
	for _, r := range ranges {
		out = append(out, buf.Samples[r.start*ch:r.end*ch]...)
	}

	return &SampleBuffer{Samples: out, SampleRate: buf.SampleRate, Channels: ch}, nil
}
