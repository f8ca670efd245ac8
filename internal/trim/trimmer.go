package trim

import (
	"context"
	"fmt"
	"log/slog"
)

// Summary reports what a trim run did.
type Summary struct {
	OriginalSeconds  float64 `json:"original_duration"`
	FinalSeconds     float64 `json:"final_duration"`
	TimeSavedSeconds float64 `json:"time_saved"`
	ReductionPercent float64 `json:"reduction_percent"`
	SegmentCount     int     `json:"segments_count"`
	Strategy         string  `json:"method_used"`
	ThresholdDB      float64 `json:"threshold_db"`
}

// NewSummary builds a Summary from input and output durations.
func NewSummary(originalMs, finalMs float64, segments int, det Detection) Summary {
	s := Summary{
		OriginalSeconds:  originalMs / 1000,
		FinalSeconds:     finalMs / 1000,
		TimeSavedSeconds: (originalMs - finalMs) / 1000,
		SegmentCount:     segments,
		Strategy:         det.Strategy,
		ThresholdDB:      det.Threshold.DB,
	}
	if originalMs > 0 {
		s.ReductionPercent = (originalMs - finalMs) / originalMs * 100
	}
	return s
}

// Result is the output of Trimmer.Trim.
type Result struct {
	Buffer    *SampleBuffer
	Detection Detection
	// Slices are the padded, merged spans of the input that were kept.
	Slices  []Interval
	Summary Summary
}

// Trimmer validates parameters, detects silence and rebuilds the buffer.
// A Trimmer holds no per-request state and is safe for concurrent use.
type Trimmer struct {
	coordinator *Coordinator
	logger      *slog.Logger
}

// NewTrimmer creates a Trimmer. A nil coordinator gets the defaults.
func NewTrimmer(coordinator *Coordinator, logger *slog.Logger) *Trimmer {
	if logger == nil {
		logger = slog.Default()
	}
	if coordinator == nil {
		coordinator = NewCoordinator(WithCoordinatorLogger(logger))
	}
	return &Trimmer{coordinator: coordinator, logger: logger}
}

// Trim removes qualifying silence from buf.
func (t *Trimmer) Trim(ctx context.Context, buf *SampleBuffer, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if buf == nil || buf.SampleRate <= 0 || buf.Channels <= 0 {
		return nil, fmt.Errorf("%w: empty or malformed sample buffer", ErrInvalidParameter)
	}

	det, err := t.coordinator.Detect(ctx, buf, p)
	if err != nil {
		return nil, fmt.Errorf("detect silence: %w", err)
	}

	slices := PadIntervals(det.Speech, float64(p.KeepSilenceMs), det.TotalMs)
	out, err := Reconstruct(buf, slices)
	if err != nil {
		return nil, err
	}

	summary := NewSummary(buf.DurationMillis(), out.DurationMillis(), len(slices), det)
	t.logger.Debug("trim finished",
		slog.String("strategy", det.Strategy),
		slog.Float64("threshold_db", det.Threshold.DB),
		slog.Int("silences", len(det.Silences)),
		slog.Int("segments", len(slices)),
		slog.Float64("reduction_percent", summary.ReductionPercent),
	)

	return &Result{
		Buffer:    out,
		Detection: det,
		Slices:    slices,
		Summary:   summary,
	}, nil
}
