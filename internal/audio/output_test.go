package audio

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStream serves a fixed PCM buffer.
type memStream struct {
	*bytes.Reader
	duration time.Duration
	closed   bool
}

func (s *memStream) Seek(pos time.Duration) error {
	offset := int64(pos.Seconds()*44100) * 4
	_, err := s.Reader.Seek(offset, io.SeekStart)
	return err
}

func (s *memStream) Duration() (time.Duration, bool) { return s.duration, true }
func (s *memStream) Close() error                    { s.closed = true; return nil }

type memDecoder struct {
	streams map[string]*memStream
}

func (d *memDecoder) Open(path string) (Stream, error) {
	s, ok := d.streams[path]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return s, nil
}

type stubPlayer struct{ playing bool }

func (p *stubPlayer) Play()           { p.playing = true }
func (p *stubPlayer) Pause()          { p.playing = false }
func (p *stubPlayer) IsPlaying() bool { return p.playing }
func (p *stubPlayer) Close() error    { return nil }

// pcm returns frames stereo frames of a constant sample value.
func pcm(frames int, value int16) []byte {
	out := make([]byte, 0, frames*4)
	for i := 0; i < frames*2; i++ {
		out = append(out, byte(value), byte(value>>8))
	}
	return out
}

func testEngine(streams map[string]*memStream) *Engine {
	e := newEngine(DefaultFormat, &memDecoder{streams: streams})
	e.player = &stubPlayer{}
	return e
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name     string
		volume   float64
		input    []byte
		expected []byte
	}{
		{
			name:     "full volume passthrough",
			volume:   1.0,
			input:    []byte{0x00, 0x10, 0xFF, 0x7F},
			expected: []byte{0x00, 0x10, 0xFF, 0x7F},
		},
		{
			name:     "half volume",
			volume:   0.5,
			input:    []byte{0x00, 0x10, 0xFE, 0x7F}, // 4096, 32766
			expected: []byte{0x00, 0x08, 0xFF, 0x3F}, // 2048, 16383
		},
		{
			name:     "zero volume",
			volume:   0.0,
			input:    []byte{0xFF, 0x7F, 0x00, 0x80},
			expected: []byte{0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), tt.input...)
			applyVolume(data, tt.volume)
			assert.Equal(t, tt.expected, data)
		})
	}
}

func TestSetVolumeClamp(t *testing.T) {
	e := testEngine(nil)

	e.SetVolume(-0.5)
	assert.Equal(t, 0.0, e.Volume())

	e.SetVolume(1.5)
	assert.Equal(t, 1.0, e.Volume())

	e.SetVolume(0.75)
	assert.Equal(t, 0.75, e.Volume())
}

func TestReadIsSilentUntilStarted(t *testing.T) {
	e := testEngine(map[string]*memStream{
		"a.wav": {Reader: bytes.NewReader(pcm(100, 1000))},
	})
	_, err := e.Open("a.wav")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, make([]byte, 64), buf)
	assert.Equal(t, time.Duration(0), e.Elapsed())
}

func TestReadTapsAndCountsFrames(t *testing.T) {
	e := testEngine(map[string]*memStream{
		"a.wav": {Reader: bytes.NewReader(pcm(441, 16384))},
	})
	_, err := e.Open("a.wav")
	require.NoError(t, err)
	e.Start()

	buf := make([]byte, 441*4)
	n, err := e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 441*4, n)

	assert.Equal(t, 10*time.Millisecond, e.Elapsed())
	samples := e.ReadRecentOutput()
	require.Len(t, samples, 441)
	assert.InDelta(t, 0.5, samples[0], 1e-9)
	assert.Empty(t, e.ReadRecentOutput(), "drained")
}

func TestTrackEndFiresOnce(t *testing.T) {
	e := testEngine(map[string]*memStream{
		"a.wav": {Reader: bytes.NewReader(pcm(10, 1))},
	})
	var calls atomic.Int32
	ended := make(chan Handle, 4)
	e.SetOnTrackEnd(func(h Handle) {
		calls.Add(1)
		ended <- h
	})

	h, err := e.Open("a.wav")
	require.NoError(t, err)
	e.Start()

	buf := make([]byte, 1024)
	for i := 0; i < 5; i++ {
		_, err := e.Read(buf)
		require.NoError(t, err)
	}

	select {
	case got := <-ended:
		assert.Equal(t, h, got)
	case <-time.After(time.Second):
		t.Fatal("track end not reported")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenReleasesPreviousStream(t *testing.T) {
	a := &memStream{Reader: bytes.NewReader(pcm(10, 1))}
	b := &memStream{Reader: bytes.NewReader(pcm(10, 1))}
	e := testEngine(map[string]*memStream{"a.wav": a, "b.wav": b})

	h1, err := e.Open("a.wav")
	require.NoError(t, err)
	h2, err := e.Open("b.wav")
	require.NoError(t, err)

	assert.True(t, a.closed)
	assert.False(t, b.closed)
	assert.Greater(t, h2, h1)

	_, err = e.Open("missing.wav")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.True(t, b.closed, "a failed open still releases the previous track")
}

func TestOpenWrapsDecoderFailures(t *testing.T) {
	e := newEngine(DefaultFormat, failingDecoder{})
	e.player = &stubPlayer{}

	_, err := e.Open("broken.mp3")
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, assert.AnError)
}

type failingDecoder struct{}

func (failingDecoder) Open(string) (Stream, error) { return nil, assert.AnError }

func TestSeekResetsElapsed(t *testing.T) {
	e := testEngine(map[string]*memStream{
		"a.wav": {Reader: bytes.NewReader(pcm(44100*2, 1)), duration: 2 * time.Second},
	})
	opened, err := e.Open("a.wav")
	require.NoError(t, err)
	e.Start()

	seeked, err := e.Seek(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, e.Elapsed())
	assert.Greater(t, seeked, opened, "a seek re-stamps the handle")

	e.Stop()
	_, err = e.Seek(time.Second)
	assert.ErrorIs(t, err, ErrNoTrack)
	_, ok := e.Duration()
	assert.False(t, ok)
}

func TestPauseBlocksReadUntilResume(t *testing.T) {
	e := testEngine(map[string]*memStream{
		"a.wav": {Reader: bytes.NewReader(pcm(1000, 1))},
	})
	_, err := e.Open("a.wav")
	require.NoError(t, err)
	e.Start()
	e.Pause()

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		_, _ = e.Read(buf)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("read returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	e.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read did not resume")
	}
}

func TestSampleTapDropsOldest(t *testing.T) {
	tap := newSampleTap(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		tap.push(v)
	}
	assert.Equal(t, []float64{3, 4, 5}, tap.drain())
	assert.Nil(t, tap.drain())
}
