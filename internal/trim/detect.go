package trim

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Detector names reported in Detection.Strategy.
const (
	DetectorEnergy   = "energy"
	DetectorWindowed = "windowed"
)

// Detection is the outcome of one detection run.
type Detection struct {
	// Strategy is the name of the detector that produced the result.
	Strategy string `json:"strategy"`
	// Threshold is the silence level that was applied.
	Threshold Threshold `json:"threshold"`
	// TotalMs is the analysed buffer length.
	TotalMs float64 `json:"total_ms"`
	// Silences are the silent intervals, sorted and non-overlapping.
	Silences []Interval `json:"silences"`
	// Speech is the complement of Silences over [0, TotalMs).
	Speech []Interval `json:"speech"`
}

// Detector finds silent and speech intervals in a buffer. Implementations
// must not keep state between calls so one value can serve concurrent runs.
type Detector interface {
	Name() string
	Detect(ctx context.Context, buf *SampleBuffer, p Params, sel ThresholdSelector) (Detection, error)
}

// EnergyDetector classifies frames of an RMS energy profile.
type EnergyDetector struct{}

// Name implements Detector.
func (EnergyDetector) Name() string { return DetectorEnergy }

// Detect implements Detector.
func (EnergyDetector) Detect(ctx context.Context, buf *SampleBuffer, p Params, sel ThresholdSelector) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	profile := Profile(buf, p.SeekStepMs)
	th := sel.Select(profile)
	total := buf.DurationMillis()
	silences := DetectSilence(profile, th, float64(p.MinSilenceMs), total)
	return newDetection(DetectorEnergy, th, total, silences), nil
}

// WindowedDetector compares sliding windows of the minimum silence length
// against the threshold.
type WindowedDetector struct{}

// Name implements Detector.
func (WindowedDetector) Name() string { return DetectorWindowed }

// Detect implements Detector.
func (WindowedDetector) Detect(ctx context.Context, buf *SampleBuffer, p Params, sel ThresholdSelector) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	th := sel.Select(Profile(buf, p.SeekStepMs))
	silences := DetectSilenceWindowed(buf, th, p.MinSilenceMs, p.SeekStepMs)
	return newDetection(DetectorWindowed, th, buf.DurationMillis(), silences), nil
}

func newDetection(name string, th Threshold, total float64, silences []Interval) Detection {
	return Detection{
		Strategy:  name,
		Threshold: th,
		TotalMs:   total,
		Silences:  silences,
		Speech:    Gaps(total, silences),
	}
}

// SelectionPolicy picks one of two hybrid candidates. The first argument is
// the coarse result, the second the fine one.
type SelectionPolicy func(coarse, fine Detection) Detection

// MoreSegmentsWins prefers the candidate with strictly more speech
// intervals, treating finer segmentation as more effective trimming. Ties
// keep the coarse result. This is a heuristic, not a quality measure.
func MoreSegmentsWins(coarse, fine Detection) Detection {
	if len(fine.Speech) > len(coarse.Speech) {
		return fine
	}
	return coarse
}

// Coordinator runs the detector(s) required by a strategy.
type Coordinator struct {
	coarse Detector
	fine   Detector
	policy SelectionPolicy
	logger *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSelectionPolicy replaces the hybrid selection policy.
func WithSelectionPolicy(policy SelectionPolicy) CoordinatorOption {
	return func(c *Coordinator) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithDetectors replaces the coarse and fine detectors.
func WithDetectors(coarse, fine Detector) CoordinatorOption {
	return func(c *Coordinator) {
		if coarse != nil {
			c.coarse = coarse
		}
		if fine != nil {
			c.fine = fine
		}
	}
}

// WithCoordinatorLogger sets the logger used for degenerate-signal and
// selection messages.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator with the windowed detector as the
// coarse pipeline, the energy detector as the fine one and MoreSegmentsWins.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		coarse: WindowedDetector{},
		fine:   EnergyDetector{},
		policy: MoreSegmentsWins,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect runs the strategy named in p.
func (c *Coordinator) Detect(ctx context.Context, buf *SampleBuffer, p Params) (Detection, error) {
	var (
		det Detection
		err error
	)
	switch p.Strategy {
	case StrategyFixed:
		det, err = c.fine.Detect(ctx, buf, p, Manual(p.ThresholdDB))
	case StrategyAdaptive:
		det, err = c.fine.Detect(ctx, buf, p, Adaptive{})
	case StrategyHybrid:
		det, err = c.hybrid(ctx, buf, p)
	default:
		return Detection{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidParameter, p.Strategy)
	}
	if err != nil {
		return Detection{}, err
	}

	if det.Threshold.Degenerate {
		c.logger.Warn("degenerate signal, using threshold floor",
			slog.Float64("threshold_db", det.Threshold.DB),
			slog.String("strategy", string(p.Strategy)),
		)
	}
	return det, nil
}

// hybrid runs both detectors concurrently and applies the selection policy.
func (c *Coordinator) hybrid(ctx context.Context, buf *SampleBuffer, p Params) (Detection, error) {
	var coarse, fine Detection
	sel := Manual(p.ThresholdDB)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		d, err := c.coarse.Detect(egCtx, buf, p, sel)
		if err != nil {
			return fmt.Errorf("hybrid: %s detector: %w", c.coarse.Name(), err)
		}
		coarse = d
		return nil
	})
	eg.Go(func() error {
		d, err := c.fine.Detect(egCtx, buf, p, sel)
		if err != nil {
			return fmt.Errorf("hybrid: %s detector: %w", c.fine.Name(), err)
		}
		fine = d
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Detection{}, err
	}

	winner := c.policy(coarse, fine)
	c.logger.Debug("hybrid detection selected",
		slog.String("winner", winner.Strategy),
		slog.Int(coarse.Strategy+"_segments", len(coarse.Speech)),
		slog.Int(fine.Strategy+"_segments", len(fine.Speech)),
	)
	return winner, nil
}
