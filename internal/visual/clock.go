// Package visual runs the fixed-rate visualization loop and publishes
// immutable frame snapshots.
package visual

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFPS       = 30
	MinFPS           = 1
	MaxFPS           = 120
	DefaultSmoothing = 0.3
)

// Sampler yields the latest intensity vector. Each call consumes new audio.
type Sampler interface {
	Sample() []float64
	Bands() int
}

// Frame is one published snapshot. Frames are never mutated after publish.
type Frame struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Heights   []float64 `json:"heights"`
	Colors    []Color   `json:"colors"`
}

// Options configures a Clock.
type Options struct {
	FPS       int
	Smoothing float64 // 0 < α <= 1, fraction of the gap closed per tick
	Gradient  *Gradient
}

// Clock samples the analyzer at a fixed rate, smooths the result and
// publishes a Frame. It runs independently of the transport; the two meet
// only through the atomically published frame.
type Clock struct {
	sampler   Sampler
	interval  time.Duration
	smoothing float64
	gradient  Gradient
	log       zerolog.Logger

	tickMu  sync.Mutex
	heights []float64
	seq     uint64
	last    time.Time

	current atomic.Pointer[Frame]

	subMu  sync.Mutex
	subs   map[uint64]chan *Frame
	nextID uint64
}

// NewClock creates a clock with an all-zero initial frame.
func NewClock(sampler Sampler, opts Options) *Clock {
	fps := opts.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	fps = max(MinFPS, min(MaxFPS, fps))

	smoothing := opts.Smoothing
	if smoothing <= 0 || smoothing > 1 {
		smoothing = DefaultSmoothing
	}

	gradient := DefaultGradient(false)
	if opts.Gradient != nil {
		gradient = *opts.Gradient
	}

	c := &Clock{
		sampler:   sampler,
		interval:  time.Second / time.Duration(fps),
		smoothing: smoothing,
		gradient:  gradient,
		heights:   make([]float64, sampler.Bands()),
		subs:      make(map[uint64]chan *Frame),
		log:       log.With().Str("component", "visual").Logger(),
	}
	c.current.Store(c.frame(time.Time{}))
	return c
}

// Interval returns the tick period.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Run ticks until ctx is done. time.Ticker drops ticks for a slow
// receiver, so a late tick never causes a burst of catch-up frames.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Debug().Dur("interval", c.interval).Msg("visualization clock started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick takes one analyzer sample, smooths it and publishes a frame
// stamped now (or just after the previous frame if the wall clock did not
// advance).
func (c *Clock) Tick(now time.Time) *Frame {
	target := c.sampler.Sample()

	c.tickMu.Lock()
	for i := range c.heights {
		var v float64
		if i < len(target) {
			v = target[i]
		}
		c.heights[i] += (v - c.heights[i]) * c.smoothing
	}
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	c.seq++
	f := c.frame(now)
	c.tickMu.Unlock()

	c.current.Store(f)
	c.broadcast(f)
	return f
}

// frame builds an immutable snapshot of the current heights. Must be
// called with tickMu held or before the clock is shared.
func (c *Clock) frame(ts time.Time) *Frame {
	f := &Frame{
		Seq:       c.seq,
		Timestamp: ts,
		Heights:   make([]float64, len(c.heights)),
		Colors:    make([]Color, len(c.heights)),
	}
	for i, h := range c.heights {
		f.Heights[i] = h
		f.Colors[i] = c.gradient.At(h)
	}
	return f
}

// Current returns the latest frame. It never blocks and never returns nil.
func (c *Clock) Current() *Frame {
	return c.current.Load()
}

// Subscribe returns a channel receiving published frames. A slow reader
// only ever sees the latest frame; older undelivered frames are replaced.
func (c *Clock) Subscribe() (<-chan *Frame, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan *Frame, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Clock) broadcast(f *Frame) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- f:
			continue
		default:
		}
		// Replace the stale frame
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}
