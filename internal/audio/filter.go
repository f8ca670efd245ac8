package audio

import (
	"math"

	"github.com/maauso/audiotrim/internal/trim"
)

// Post-filter tuning.
const (
	// NormalizeHeadroomDB is the gap left below full scale by Normalize.
	NormalizeHeadroomDB = 0.1
	// denoiseGateFactor multiplies the estimated noise floor to get the gate level.
	denoiseGateFactor = 2.0
	// denoiseAttenuation is the gain applied to gated frames.
	denoiseAttenuation = 0.1
)

// PostFilter transforms a trimmed buffer. Filters return a new buffer of the
// same duration and never modify their input.
type PostFilter func(buf *trim.SampleBuffer) *trim.SampleBuffer

// ApplyFilters runs filters in order.
func ApplyFilters(buf *trim.SampleBuffer, filters ...PostFilter) *trim.SampleBuffer {
	for _, f := range filters {
		buf = f(buf)
	}
	return buf
}

// Normalize scales the buffer so its peak sits NormalizeHeadroomDB below
// full scale. Silent buffers are returned unchanged.
func Normalize(buf *trim.SampleBuffer) *trim.SampleBuffer {
	out := buf.Clone()
	var peak float64
	for _, s := range out.Samples {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak == 0 {
		return out
	}

	gain := trim.DBToAmplitude(-NormalizeHeadroomDB) / peak
	for i := range out.Samples {
		out.Samples[i] *= gain
	}
	return out
}

// Denoise applies a frame-level noise gate. The noise floor is the 10th
// percentile of the RMS profile; frames below twice that level are
// attenuated.
func Denoise(buf *trim.SampleBuffer) *trim.SampleBuffer {
	out := buf.Clone()
	profile := trim.Profile(out, trim.DefaultHopMillis)
	gate := denoiseGateFactor * trim.Percentile(profile.Energies, trim.AdaptivePercentile)
	if gate == 0 {
		return out
	}

	hop := trim.HopSamples(out.SampleRate, trim.DefaultHopMillis)
	ch := out.Channels
	frames := out.Frames()
	for i, energy := range profile.Energies {
		if energy >= gate {
			continue
		}
		start := i * hop * ch
		end := min((i+1)*hop, frames) * ch
		for j := start; j < end; j++ {
			out.Samples[j] *= denoiseAttenuation
		}
	}
	return out
}
