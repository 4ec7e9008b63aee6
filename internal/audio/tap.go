package audio

// sampleTap keeps the most recent mono samples written by the output path
// until the analyzer drains them. When full, the oldest samples are dropped.
type sampleTap struct {
	buf   []float64
	start int
	n     int
}

func newSampleTap(capacity int) *sampleTap {
	return &sampleTap{buf: make([]float64, capacity)}
}

// writePCM mixes interleaved s16le frames down to mono and appends them.
func (t *sampleTap) writePCM(data []byte, channels int) {
	frameSize := 2 * channels
	for i := 0; i+frameSize <= len(data); i += frameSize {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			offset := i + ch*2
			sample := int16(data[offset]) | int16(data[offset+1])<<8
			sum += float64(sample) / 32768.0
		}
		t.push(sum / float64(channels))
	}
}

func (t *sampleTap) push(v float64) {
	c := len(t.buf)
	if t.n < c {
		t.buf[(t.start+t.n)%c] = v
		t.n++
		return
	}
	t.buf[t.start] = v
	t.start = (t.start + 1) % c
}

// drain returns the buffered samples oldest first and empties the tap.
func (t *sampleTap) drain() []float64 {
	if t.n == 0 {
		return nil
	}
	out := make([]float64, t.n)
	for i := range out {
		out[i] = t.buf[(t.start+i)%len(t.buf)]
	}
	t.start, t.n = 0, 0
	return out
}

func (t *sampleTap) reset() {
	t.start, t.n = 0, 0
}
