package trim

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Strategy names a silence detection mode.
type Strategy string

const (
	// StrategyFixed runs the energy detector with the caller's threshold.
	StrategyFixed Strategy = "fixed"
	// StrategyAdaptive runs the energy detector with a threshold derived
	// from the signal's own energy distribution.
	StrategyAdaptive Strategy = "adaptive"
	// StrategyHybrid runs the windowed and energy detectors and keeps the
	// result chosen by the coordinator's selection policy.
	StrategyHybrid Strategy = "hybrid"
)

// IsValid returns true if the strategy is known.
func (s Strategy) IsValid() bool {
	return s == StrategyFixed || s == StrategyAdaptive || s == StrategyHybrid
}

// Params configures one trim run.
type Params struct {
	// Strategy selects the detection mode. Default: adaptive.
	Strategy Strategy `json:"strategy" yaml:"strategy" validate:"required,oneof=fixed adaptive hybrid"`

	// MinSilenceMs is the shortest quiet run that counts as silence.
	// Shorter runs stay inside the surrounding speech.
	// Default: 500 milliseconds.
	MinSilenceMs int `json:"min_silence_ms" yaml:"min_silence_ms" validate:"min=200,max=3000"`

	// ThresholdDB is the silence level in dBFS used by the fixed and hybrid
	// strategies. Default: -40 dBFS.
	ThresholdDB float64 `json:"threshold_db" yaml:"threshold_db" validate:"min=-60,max=-20"`

	// KeepSilenceMs is the padding kept on both sides of each speech segment.
	// Default: 150 milliseconds.
	KeepSilenceMs int `json:"keep_silence_ms" yaml:"keep_silence_ms" validate:"min=50,max=500"`

	// SeekStepMs is the analysis hop of the energy profile and the step of
	// the windowed detector. Default: 10 milliseconds.
	SeekStepMs int `json:"seek_step_ms" yaml:"seek_step_ms" validate:"min=1,max=10"`
}

// DefaultParams returns the default trimming parameters.
func DefaultParams() Params {
	return Params{
		Strategy:      StrategyAdaptive,
		MinSilenceMs:  500,
		ThresholdDB:   -40,
		KeepSilenceMs: 150,
		SeekStepMs:    DefaultHopMillis,
	}
}

var validate = validator.New()

// Validate checks every parameter against its documented range.
// Violations are reported as ErrInvalidParameter.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err.Error())
	}
	return nil
}
