package trim

import (
	"math"
	"slices"
)

// Threshold bounds and the percentile used by the adaptive selector.
const (
	MinThresholdDB     = -60.0
	MaxThresholdDB     = -20.0
	AdaptivePercentile = 10.0
)

// ThresholdSource records how a threshold was chosen.
type ThresholdSource string

const (
	// SourceManual marks a caller-supplied threshold.
	SourceManual ThresholdSource = "manual"
	// SourceAdaptive marks a threshold derived from the energy profile.
	SourceAdaptive ThresholdSource = "adaptive"
)

// Threshold is a silence level in dBFS, always within
// [MinThresholdDB, MaxThresholdDB].
type Threshold struct {
	DB     float64         `json:"db"`
	Source ThresholdSource `json:"source"`
	// Degenerate is set when the adaptive percentile was zero and the floor
	// was substituted.
	Degenerate bool `json:"degenerate,omitempty"`
}

// Linear returns the threshold as an RMS amplitude.
func (t Threshold) Linear() float64 {
	return DBToAmplitude(t.DB)
}

// DBToAmplitude converts dBFS to a linear amplitude.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// AmplitudeToDB converts a linear amplitude to dBFS.
func AmplitudeToDB(amp float64) float64 {
	return 20 * math.Log10(amp)
}

// ClampThreshold limits a dB value to [MinThresholdDB, MaxThresholdDB].
// Every threshold in the package passes through here.
func ClampThreshold(db float64) float64 {
	switch {
	case math.IsNaN(db), db < MinThresholdDB:
		return MinThresholdDB
	case db > MaxThresholdDB:
		return MaxThresholdDB
	default:
		return db
	}
}

// ManualThreshold returns the caller's value, clamped.
func ManualThreshold(db float64) Threshold {
	return Threshold{DB: ClampThreshold(db), Source: SourceManual}
}

// AdaptiveThreshold derives a threshold from the 10th percentile of the
// profile's frame energies. A zero percentile (all-silent or empty input)
// yields the floor with Degenerate set instead of an error.
func AdaptiveThreshold(profile EnergyProfile) Threshold {
	p := Percentile(profile.Energies, AdaptivePercentile)
	if p <= 0 {
		return Threshold{DB: MinThresholdDB, Source: SourceAdaptive, Degenerate: true}
	}
	return Threshold{DB: ClampThreshold(AmplitudeToDB(p)), Source: SourceAdaptive}
}

// Percentile returns the q-th percentile of values using linear
// interpolation between the closest ranks. It returns 0 for no values.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q = math.Max(0, math.Min(100, q))
	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ThresholdSelector picks the threshold for one detection run.
type ThresholdSelector interface {
	Select(profile EnergyProfile) Threshold
}

// Manual is a ThresholdSelector returning a fixed dB value.
type Manual float64

// Select implements ThresholdSelector.
func (m Manual) Select(EnergyProfile) Threshold {
	return ManualThreshold(float64(m))
}

// Adaptive is a ThresholdSelector using AdaptiveThreshold.
type Adaptive struct{}

// Select implements ThresholdSelector.
func (Adaptive) Select(profile EnergyProfile) Threshold {
	return AdaptiveThreshold(profile)
}
