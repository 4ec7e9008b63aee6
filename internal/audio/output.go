package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// About two analyzer windows of history at 44.1kHz.
const tapCapacity = 8192

// player is the subset of oto.Player the engine drives.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// Engine is a Source backed by an oto output. The oto player pulls PCM from
// Read, which serves the currently open stream.
type Engine struct {
	mu      sync.Mutex
	cond    *sync.Cond // signalled on resume, start and close
	context *oto.Context
	player  player
	decoder Decoder
	format  Format
	log     zerolog.Logger

	stream   Stream
	handle   Handle
	started  bool
	paused   bool
	ended    bool
	closed   bool
	volume   float64
	base     time.Duration // stream position at the last open/seek
	frames   int64         // frames delivered since base
	tap      *sampleTap
	onEnd    TrackEndFunc
	leftover []byte // partial frame held back between reads
}

// NewEngine opens the system audio output in format.
func NewEngine(format Format, bufferSize time.Duration, decoder Decoder) (*Engine, error) {
	ctx, ready, err := oto.NewContext(format.SampleRate, format.Channels, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	e := newEngine(format, decoder)
	e.context = ctx
	p := ctx.NewPlayer(e)
	if bufferSize > 0 {
		p.(oto.BufferSizeSetter).SetBufferSize(int(bufferSize.Seconds()*float64(format.SampleRate)) * format.BytesPerFrame())
	}
	e.player = p
	return e, nil
}

func newEngine(format Format, decoder Decoder) *Engine {
	e := &Engine{
		decoder: decoder,
		format:  format,
		volume:  1.0,
		tap:     newSampleTap(tapCapacity),
		log:     log.With().Str("component", "audio").Logger(),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Read implements io.Reader for the oto player.
func (e *Engine) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.paused && !e.closed {
		e.cond.Wait()
	}
	if e.closed {
		return 0, io.EOF
	}

	// Silence keeps the output alive between tracks
	if e.stream == nil || !e.started || e.ended {
		clear(p)
		return len(p), nil
	}

	n := copy(p, e.leftover)
	e.leftover = e.leftover[n:]
	var err error
	if n < len(p) {
		var m int
		m, err = e.stream.Read(p[n:])
		n += m
	}

	frameSize := e.format.BytesPerFrame()
	whole := n - n%frameSize
	if whole < n {
		e.leftover = append(e.leftover[:0], p[whole:n]...)
	}

	if whole > 0 {
		e.tap.writePCM(p[:whole], e.format.Channels)
		applyVolume(p[:whole], e.volume)
		e.frames += int64(whole / frameSize)
	}

	if err == nil {
		return whole, nil
	}

	if !errors.Is(err, io.EOF) {
		e.log.Warn().Err(err).Msg("decode error, ending track")
	}
	e.finishLocked()
	e.leftover = e.leftover[:0]
	clear(p[whole:])
	return len(p), nil
}

// finishLocked marks the open stream exhausted and notifies once.
func (e *Engine) finishLocked() {
	if e.ended {
		return
	}
	e.ended = true
	h, fn := e.handle, e.onEnd
	e.log.Debug().Uint64("handle", uint64(h)).Msg("track ended")
	if fn != nil {
		go fn(h)
	}
}

// applyVolume scales 16-bit PCM samples by vol
func applyVolume(data []byte, vol float64) {
	if vol >= 1.0 {
		return
	}
	for i := 0; i < len(data)-1; i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * vol)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// Open releases the current track and opens path. Output stays silent
// until Start.
func (e *Engine) Open(path string) (Handle, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrClosed
	}
	old := e.detachLocked()
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}

	stream, err := e.decoder.Open(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		stream.Close()
		return 0, ErrClosed
	}
	e.handle++
	e.stream = stream
	e.log.Debug().Str("path", path).Uint64("handle", uint64(e.handle)).Msg("opened")
	return e.handle, nil
}

// detachLocked clears all per-track state and returns the old stream for
// closing outside the lock.
func (e *Engine) detachLocked() Stream {
	old := e.stream
	e.stream = nil
	e.started = false
	e.ended = false
	e.base = 0
	e.frames = 0
	e.leftover = e.leftover[:0]
	e.tap.reset()
	if e.paused {
		e.paused = false
		e.cond.Broadcast()
	}
	return old
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.started = true
	e.paused = false
	e.cond.Broadcast()
	if e.player != nil && !e.player.IsPlaying() {
		e.player.Play()
	}
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.paused = true
	if e.player != nil && e.player.IsPlaying() {
		e.player.Pause()
	}
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.paused = false
	e.cond.Broadcast()
	if e.player != nil && !e.player.IsPlaying() {
		e.player.Play()
	}
}

// Stop releases the open track.
func (e *Engine) Stop() {
	e.mu.Lock()
	old := e.detachLocked()
	if e.player != nil && e.player.IsPlaying() {
		e.player.Pause()
	}
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Seek repositions the open track and returns its new handle.
func (e *Engine) Seek(pos time.Duration) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return 0, ErrNoTrack
	}
	if err := e.stream.Seek(pos); err != nil {
		return 0, fmt.Errorf("seek to %s: %w", pos, err)
	}
	e.handle++
	e.base = pos
	e.frames = 0
	e.ended = false
	e.leftover = e.leftover[:0]
	return e.handle, nil
}

// Elapsed returns the position of the last delivered frame.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base + time.Duration(e.frames)*time.Second/time.Duration(e.format.SampleRate)
}

func (e *Engine) Duration() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0, false
	}
	return e.stream.Duration()
}

// SetVolume sets the playback volume (0.0 - 1.0)
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = ClampVolume(v)
}

// Volume returns the current volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) ReadRecentOutput() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tap.drain()
}

func (e *Engine) SampleRate() int {
	return e.format.SampleRate
}

func (e *Engine) SetOnTrackEnd(fn TrackEndFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnd = fn
}

// Close releases the audio output resources
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	old := e.detachLocked()
	e.cond.Broadcast()
	p := e.player
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if p != nil {
		return p.Close()
	}
	return nil
}

var (
	_ io.Reader = (*Engine)(nil)
	_ Source    = (*Engine)(nil)
)
