package trim

import "math"

// DefaultHopMillis is the default analysis hop of the energy profile.
const DefaultHopMillis = 10

// EnergyProfile is a time-indexed loudness curve: one RMS value per
// non-overlapping analysis frame.
type EnergyProfile struct {
	// HopMillis is the exact duration of one frame, derived from the hop in
	// samples so that frame boundaries land on sample boundaries.
	HopMillis float64
	// Energies holds the RMS amplitude of each frame, all >= 0.
	Energies []float64
}

// Len returns the number of frames.
func (p EnergyProfile) Len() int {
	return len(p.Energies)
}

// TimeAt returns the start time of frame i in milliseconds.
func (p EnergyProfile) TimeAt(i int) float64 {
	return float64(i) * p.HopMillis
}

// HopSamples converts a hop length in milliseconds to whole samples,
// never less than one.
func HopSamples(sampleRate, hopMillis int) int {
	hop := int(math.Round(float64(sampleRate) * float64(hopMillis) / 1000))
	if hop < 1 {
		hop = 1
	}
	return hop
}

// Profile computes the RMS energy of consecutive frames of hopMillis.
// Multi-channel audio is averaged to mono first. The last frame may be
// shorter than the others.
func Profile(buf *SampleBuffer, hopMillis int) EnergyProfile {
	if hopMillis <= 0 {
		hopMillis = DefaultHopMillis
	}
	hop := HopSamples(buf.SampleRate, hopMillis)
	mono := buf.Mono()

	n := (len(mono) + hop - 1) / hop
	energies := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		end := min(start+hop, len(mono))
		var sum float64
		for _, s := range mono[start:end] {
			sum += s * s
		}
		energies[i] = math.Sqrt(sum / float64(end-start))
	}

	return EnergyProfile{
		HopMillis: float64(hop) * 1000 / float64(buf.SampleRate),
		Energies:  energies,
	}
}
