package trim

// DetectSilence scans an energy profile and returns the silent intervals.
//
// A frame is quiet when its energy is below the threshold. A quiet run is
// reported only if it lasts at least minSilenceMs; shorter runs are left in
// the surrounding speech. A run still open at the end of the profile is
// closed at totalMs. The result is sorted and non-overlapping.
func DetectSilence(profile EnergyProfile, threshold Threshold, minSilenceMs, totalMs float64) []Interval {
	limit := threshold.Linear()

	var (
		silences  []Interval
		inSilence bool
		start     float64
	)

	for i, energy := range profile.Energies {
		now := profile.TimeAt(i)
		quiet := energy < limit

		switch {
		case quiet && !inSilence:
			inSilence = true
			start = now
		case !quiet && inSilence:
			if now-start >= minSilenceMs {
				silences = append(silences, Interval{StartMs: start, EndMs: now})
			}
			inSilence = false
		}
	}

	if inSilence && start < totalMs && totalMs-start >= minSilenceMs {
		silences = append(silences, Interval{StartMs: start, EndMs: totalMs})
	}

	return silences
}

// Gaps returns the complement of the silent intervals over [0, totalMs):
// the speech intervals before any padding. Zero-width gaps are dropped.
func Gaps(totalMs float64, silences []Interval) []Interval {
	var gaps []Interval
	cursor := 0.0
	for _, s := range silences {
		if s.StartMs-cursor > 0 {
			gaps = append(gaps, Interval{StartMs: cursor, EndMs: s.StartMs})
		}
		cursor = max(cursor, s.EndMs)
	}
	if totalMs-cursor > 0 {
		gaps = append(gaps, Interval{StartMs: cursor, EndMs: totalMs})
	}
	return gaps
}
