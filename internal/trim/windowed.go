package trim

import "math"

// DetectSilenceWindowed is the coarse detector. It slides a window of
// minSilenceMs across the buffer in steps of seekStepMs and marks every
// window whose RMS is at or below the threshold. Overlapping or adjacent
// silent windows are joined into one interval.
//
// Window energies come from a prefix sum of squares, so each window costs
// O(1) regardless of its length.
func DetectSilenceWindowed(buf *SampleBuffer, threshold Threshold, minSilenceMs, seekStepMs int) []Interval {
	mono := buf.Mono()
	n := len(mono)
	window := HopSamples(buf.SampleRate, minSilenceMs)
	step := HopSamples(buf.SampleRate, seekStepMs)
	if n < window {
		return nil
	}

	prefix := make([]float64, n+1)
	for i, s := range mono {
		prefix[i+1] = prefix[i] + s*s
	}
	limit := threshold.Linear()
	silentAt := func(start int) bool {
		rms := math.Sqrt((prefix[start+window] - prefix[start]) / float64(window))
		return rms <= limit
	}

	last := n - window
	var starts []int
	for s := 0; s <= last; s += step {
		if silentAt(s) {
			starts = append(starts, s)
		}
	}
	// The final window is always examined even when the step skips it.
	if last%step != 0 && silentAt(last) {
		starts = append(starts, last)
	}
	if len(starts) == 0 {
		return nil
	}

	toMillis := func(frame int) float64 {
		return float64(frame) * 1000 / float64(buf.SampleRate)
	}

	var silences []Interval
	rangeStart, prev := starts[0], starts[0]
	for _, s := range starts[1:] {
		continuous := s == prev+step
		hasGap := s > prev+window
		if !continuous && hasGap {
			silences = append(silences, Interval{StartMs: toMillis(rangeStart), EndMs: toMillis(prev + window)})
			rangeStart = s
		}
		prev = s
	}
	silences = append(silences, Interval{StartMs: toMillis(rangeStart), EndMs: toMillis(prev + window)})

	return silences
}
