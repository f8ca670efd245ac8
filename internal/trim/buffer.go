// Package trim implements the silence trimming core: loudness profiling,
// threshold selection, silence segmentation, detection strategies and
// reconstruction of the retained speech into a single buffer.
//
// Everything in this package works on in-memory sample buffers. Decoding,
// encoding and file handling live in the audio and storage packages.
package trim

import (
	"fmt"
	"time"
)

// SampleBuffer holds decoded PCM audio as interleaved samples in [-1, 1].
// A buffer is treated as immutable once created; every stage that changes
// audio returns a new buffer.
type SampleBuffer struct {
	// Samples are interleaved by channel: frame i occupies
	// Samples[i*Channels : (i+1)*Channels].
	Samples []float64
	// SampleRate is the number of frames per second.
	SampleRate int
	// Channels is the number of interleaved channels.
	Channels int
}

// NewSampleBuffer creates a buffer and checks that its shape is consistent.
func NewSampleBuffer(samples []float64, sampleRate, channels int) (*SampleBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParameter, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidParameter, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a whole number of %d-channel frames",
			ErrCorruptData, len(samples), channels)
	}
	return &SampleBuffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the number of sample frames (samples per channel).
func (b *SampleBuffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// DurationMillis returns the buffer length in milliseconds.
func (b *SampleBuffer) DurationMillis() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) * 1000 / float64(b.SampleRate)
}

// Duration returns the buffer length as a time.Duration.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(b.DurationMillis() * float64(time.Millisecond))
}

// Mono returns one value per frame, averaging channels. For mono buffers the
// underlying slice is returned as is and must not be modified.
func (b *SampleBuffer) Mono() []float64 {
	if b.Channels == 1 {
		return b.Samples
	}
	frames := b.Frames()
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * b.Channels
		for c := 0; c < b.Channels; c++ {
			sum += b.Samples[base+c]
		}
		mono[i] = sum / float64(b.Channels)
	}
	return mono
}

// Clone returns a deep copy of the buffer.
func (b *SampleBuffer) Clone() *SampleBuffer {
	samples := make([]float64, len(b.Samples))
	copy(samples, b.Samples)
	return &SampleBuffer{Samples: samples, SampleRate: b.SampleRate, Channels: b.Channels}
}

// Interval is a half-open time span [StartMs, EndMs) relative to the start
// of a buffer.
type Interval struct {
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
}

// Duration returns the interval width in milliseconds.
func (i Interval) Duration() float64 {
	return i.EndMs - i.StartMs
}

// totalDuration sums the widths of a list of intervals.
func totalDuration(intervals []Interval) float64 {
	var total float64
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}
