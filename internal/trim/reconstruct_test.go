package trim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadIntervals(t *testing.T) {
	tests := []struct {
		name   string
		speech []Interval
		keep   float64
		total  float64
		want   []Interval
	}{
		{
			name:   "two long pauses",
			speech: []Interval{{0, 2000}, {4000, 6000}, {9000, 10000}},
			keep:   150, total: 10000,
			want: []Interval{{0, 2150}, {3850, 6150}, {8850, 10000}},
		},
		{
			name:   "overlap after padding merges",
			speech: []Interval{{0, 1000}, {1200, 2000}},
			keep:   150, total: 3000,
			want: []Interval{{0, 2150}},
		},
		{
			name:   "touching slices merge",
			speech: []Interval{{100, 500}, {800, 1000}},
			keep:   150, total: 1000,
			want: []Interval{{0, 1000}},
		},
		{
			name:   "empty",
			speech: nil,
			keep:   150, total: 1000,
			want: []Interval{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PadIntervals(tt.speech, tt.keep, tt.total)
			assert.Equal(t, tt.want, got)
			assertSortedDisjoint(t, got)
		})
	}
}

func TestReconstruct_FullSliceIsIdentity(t *testing.T) {
	buf := makeSpeech(t, 2)

	out, err := Reconstruct(buf, []Interval{{0, buf.DurationMillis()}})

	require.NoError(t, err)
	assert.Equal(t, buf.Samples, out.Samples)
	assert.Equal(t, buf.SampleRate, out.SampleRate)
	assert.Equal(t, buf.Channels, out.Channels)
}

func TestReconstruct_NoSlices(t *testing.T) {
	buf := makeSpeech(t, 1)

	_, err := Reconstruct(buf, nil)

	assert.ErrorIs(t, err, ErrNoSpeechDetected)
}

func TestReconstruct_ConcatenatesInOrder(t *testing.T) {
	samples := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	buf, err := NewSampleBuffer(samples, 1000, 1)
	require.NoError(t, err)

	out, err := Reconstruct(buf, []Interval{{1, 3}, {6, 8}})

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 6, 7}, out.Samples)
}

func TestReconstruct_ClampsOverlapAndRange(t *testing.T) {
	samples := []float64{0, 1, 2, 3, 4, 5}
	buf, err := NewSampleBuffer(samples, 1000, 1)
	require.NoError(t, err)

	out, err := Reconstruct(buf, []Interval{{0, 3}, {2, 5}, {5, 50}})

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, out.Samples, "no sample may be emitted twice")
}

func TestReconstruct_KeepsChannelsInterleaved(t *testing.T) {
	samples := []float64{0, 10, 1, 11, 2, 12, 3, 13}
	buf, err := NewSampleBuffer(samples, 1000, 2)
	require.NoError(t, err)

	out, err := Reconstruct(buf, []Interval{{1, 3}})

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 11, 2, 12}, out.Samples)
	assert.Equal(t, 2, out.Channels)
}
