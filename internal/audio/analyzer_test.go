package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueSource struct {
	pending []float64
}

func (q *queueSource) ReadRecentOutput() []float64 {
	out := q.pending
	q.pending = nil
	return out
}

func (q *queueSource) SampleRate() int { return 44100 }

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/44100)
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestAnalyzerStoppedReturnsZeros(t *testing.T) {
	src := &queueSource{pending: sine(440, 0.8, 2048)}
	a := NewAnalyzer(src, 32)

	out := a.Sample()
	require.Len(t, out, 32)
	for _, v := range out {
		assert.Zero(t, v)
	}
	assert.Nil(t, src.pending, "samples are consumed even while stopped")
}

func TestAnalyzerValuesAreBounded(t *testing.T) {
	src := &queueSource{}
	a := NewAnalyzer(src, 32)
	a.SetStopped(false)

	src.pending = sine(1000, 1.0, 4096)
	out := a.Sample()
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestAnalyzerPeakFollowsFrequency(t *testing.T) {
	src := &queueSource{}
	a := NewAnalyzer(src, 32)
	a.SetStopped(false)

	src.pending = sine(200, 0.8, 2048)
	low := argmax(a.Sample())

	src.pending = sine(8000, 0.8, 2048)
	high := argmax(a.Sample())

	assert.Less(t, low, high)
}

func TestAnalyzerUnderrunDecays(t *testing.T) {
	src := &queueSource{}
	a := NewAnalyzer(src, 16)
	a.SetStopped(false)

	src.pending = sine(1000, 0.9, 2048)
	first := a.Sample()
	peak := argmax(first)
	require.Greater(t, first[peak], 0.0)

	second := a.Sample()
	assert.InDelta(t, first[peak]*DefaultDecay, second[peak], 1e-12)

	third := a.Sample()
	assert.InDelta(t, first[peak]*DefaultDecay*DefaultDecay, third[peak], 1e-12)
}

func TestAnalyzerSampleReturnsCopy(t *testing.T) {
	src := &queueSource{pending: sine(1000, 0.9, 2048)}
	a := NewAnalyzer(src, 8)
	a.SetStopped(false)

	out := a.Sample()
	out[0] = 42

	again := a.Sample()
	assert.NotEqual(t, 42.0, again[0])
}

func TestAnalyzerStopClearsHistory(t *testing.T) {
	src := &queueSource{pending: sine(1000, 0.9, 2048)}
	a := NewAnalyzer(src, 8)
	a.SetStopped(false)
	a.Sample()

	a.SetStopped(true)
	a.Sample()
	a.SetStopped(false)

	out := a.Sample()
	for _, v := range out {
		assert.Zero(t, v)
	}
}
