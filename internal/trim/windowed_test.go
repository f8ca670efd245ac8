package trim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSilenceWindowed_TwoLongPauses(t *testing.T) {
	buf := makeSpeech(t, 10, span{2, 4}, span{6, 9})

	silences := DetectSilenceWindowed(buf, ManualThreshold(-40), 500, 10)

	assert.Equal(t, []Interval{{2000, 4000}, {6000, 9000}}, silences)
}

func TestDetectSilenceWindowed_ShortRun(t *testing.T) {
	buf := makeSpeech(t, 5, span{2, 2.3})

	assert.Empty(t, DetectSilenceWindowed(buf, ManualThreshold(-40), 500, 10))
}

func TestDetectSilenceWindowed_BufferShorterThanWindow(t *testing.T) {
	buf, err := NewSampleBuffer(make([]float64, 1000), testRate, 1)
	require.NoError(t, err)

	assert.Nil(t, DetectSilenceWindowed(buf, ManualThreshold(-40), 500, 10))
}

func TestDetectSilenceWindowed_FinalWindowChecked(t *testing.T) {
	// 16080 samples: the last window start (8080) is not a multiple of the
	// 160-sample step.
	samples := make([]float64, 16080)
	for i := 0; i < 6400; i++ {
		samples[i] = 0.5
	}
	buf, err := NewSampleBuffer(samples, testRate, 1)
	require.NoError(t, err)

	silences := DetectSilenceWindowed(buf, ManualThreshold(-40), 500, 10)

	assert.Equal(t, []Interval{{400, 1005}}, silences)
}

func TestDetectSilenceWindowed_AllSilent(t *testing.T) {
	buf, err := NewSampleBuffer(make([]float64, 2*testRate), testRate, 1)
	require.NoError(t, err)

	silences := DetectSilenceWindowed(buf, ManualThreshold(-60), 500, 10)

	assert.Equal(t, []Interval{{0, 2000}}, silences)
}
