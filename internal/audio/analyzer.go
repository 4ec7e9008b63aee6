package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFT window over the newest samples. 1024 at 44.1kHz is ~23ms,
	// short enough to follow beats at animation rates.
	fftSize = 1024
	// DefaultBands is the number of bars the analyzer produces.
	DefaultBands = 32
	// DefaultDecay is applied per Sample call when no new audio arrived.
	DefaultDecay = 0.85

	minFreq   = 20.0
	maxFreq   = 20000.0
	floorDB   = -60.0
	spreading = 0.3
)

// PCMSource provides the mono samples produced since the last call.
type PCMSource interface {
	ReadRecentOutput() []float64
	SampleRate() int
}

// Analyzer turns recent PCM output into a vector of per-band intensities in
// [0, 1]. Its cadence is set by the caller, not by the sample rate.
type Analyzer struct {
	mu sync.Mutex

	source  PCMSource
	fft     *fourier.FFT
	window  []float64 // Hann
	history []float64 // newest fftSize samples, oldest first
	scratch []float64
	values  []float64
	bands   int
	decay   float64
	stopped atomic.Bool
}

// NewAnalyzer creates an analyzer with the given number of bands.
func NewAnalyzer(source PCMSource, bands int) *Analyzer {
	if bands <= 0 {
		bands = DefaultBands
	}
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	a := &Analyzer{
		source:  source,
		fft:     fourier.NewFFT(fftSize),
		window:  window,
		history: make([]float64, fftSize),
		scratch: make([]float64, fftSize),
		values:  make([]float64, bands),
		bands:   bands,
		decay:   DefaultDecay,
	}
	a.stopped.Store(true)
	return a
}

// Bands returns the length of the intensity vector.
func (a *Analyzer) Bands() int {
	return a.bands
}

// SetStopped tells the analyzer whether transport is Stopped. While
// stopped every sample is all zeros.
func (a *Analyzer) SetStopped(stopped bool) {
	a.stopped.Store(stopped)
}

// Sample consumes the audio produced since the previous call and returns a
// copy of the updated intensity vector. With no new audio the previous
// vector decays toward zero.
func (a *Analyzer) Sample() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := a.source.ReadRecentOutput()

	if a.stopped.Load() {
		clear(a.values)
		clear(a.history)
		return make([]float64, a.bands)
	}

	if len(fresh) == 0 {
		for i := range a.values {
			a.values[i] *= a.decay
		}
		return append([]float64(nil), a.values...)
	}

	a.push(fresh)
	a.compute(a.source.SampleRate())
	return append([]float64(nil), a.values...)
}

// push appends samples to the history, keeping the newest fftSize.
func (a *Analyzer) push(samples []float64) {
	if len(samples) >= fftSize {
		copy(a.history, samples[len(samples)-fftSize:])
		return
	}
	copy(a.history, a.history[len(samples):])
	copy(a.history[fftSize-len(samples):], samples)
}

func (a *Analyzer) compute(sampleRate int) {
	for i := range a.scratch {
		a.scratch[i] = a.history[i] * a.window[i]
	}
	coeffs := a.fft.Coefficients(nil, a.scratch)

	top := maxFreq
	if nyq := float64(sampleRate) / 2; nyq < top {
		top = nyq
	}
	logMin := math.Log10(minFreq)
	logRange := math.Log10(top) - logMin
	freqPerBin := float64(sampleRate) / fftSize

	sums := make([]float64, a.bands)
	counts := make([]int, a.bands)
	for bin := 1; bin < fftSize/2; bin++ {
		freq := float64(bin) * freqPerBin
		if freq < minFreq || freq > top {
			continue
		}
		band := int((math.Log10(freq) - logMin) / logRange * float64(a.bands))
		band = max(0, min(a.bands-1, band))

		c := coeffs[bin]
		magnitude := math.Hypot(real(c), imag(c))
		db := 20 * math.Log10(magnitude/fftSize+1e-10)
		sums[band] += clamp01((db - floorDB) / -floorDB)
		counts[band]++
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}

	// Bands too narrow to own a bin borrow from their neighbours
	for i := range a.values {
		v := sums[i]
		if i > 0 {
			v += sums[i-1] * spreading
		}
		if i < a.bands-1 {
			v += sums[i+1] * spreading
		}
		a.values[i] = clamp01(v)
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
