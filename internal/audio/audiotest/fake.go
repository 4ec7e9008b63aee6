// Package audiotest provides an in-memory audio.Source for tests.
package audiotest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/austinkregel/local-media/vizplayer/internal/audio"
)

// ErrCorrupt is returned by Open for paths registered with Fail.
var ErrCorrupt = errors.New("corrupt file")

// Source records the calls made to it and lets tests end tracks on demand.
type Source struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	failing   map[string]bool
	handle    audio.Handle
	path      string
	open      bool
	playing   bool
	elapsed   time.Duration
	volume    float64
	samples   []float64
	onEnd     audio.TrackEndFunc
	opened    []string
	closes    int
	maxOpen   int
	openCount int
}

// NewSource returns a fake with no registered files. Unknown paths open
// with an unknown duration.
func NewSource() *Source {
	return &Source{
		durations: make(map[string]time.Duration),
		failing:   make(map[string]bool),
		volume:    1,
	}
}

// SetDuration registers the duration reported for path.
func (s *Source) SetDuration(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[path] = d
}

// Fail makes Open fail for path.
func (s *Source) Fail(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = true
}

func (s *Source) Open(path string) (audio.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.opened = append(s.opened, path)
	if s.failing[path] {
		return 0, fmt.Errorf("open %s: %w", path, ErrCorrupt)
	}
	s.handle++
	s.path = path
	s.open = true
	s.openCount++
	s.maxOpen = max(s.maxOpen, s.openCount)
	s.elapsed = 0
	return s.handle, nil
}

func (s *Source) releaseLocked() {
	if s.open {
		s.open = false
		s.openCount--
		s.closes++
	}
	s.playing = false
	s.path = ""
	s.elapsed = 0
}

func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = s.open
}

func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *Source) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = s.open
}

func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Source) Seek(pos time.Duration) (audio.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, audio.ErrNoTrack
	}
	s.handle++
	s.elapsed = pos
	return s.handle, nil
}

func (s *Source) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *Source) Duration() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.durations[s.path]
	return d, ok && s.open
}

func (s *Source) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Volume returns the last volume set.
func (s *Source) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Produce queues samples for the next ReadRecentOutput call.
func (s *Source) Produce(samples ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
}

func (s *Source) ReadRecentOutput() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.samples
	s.samples = nil
	return out
}

func (s *Source) SampleRate() int {
	return 44100
}

func (s *Source) SetOnTrackEnd(fn audio.TrackEndFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = fn
}

// Handle returns the handle of the open track.
func (s *Source) Handle() audio.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// EndHandle delivers a track-end notification carrying h, which may be
// stale.
func (s *Source) EndHandle(h audio.Handle) {
	s.mu.Lock()
	fn := s.onEnd
	s.mu.Unlock()
	if fn != nil {
		fn(h)
	}
}

// End delivers a track-end notification for the open track, as the real
// engine does when its stream is exhausted. It calls the callback
// synchronously and returns the handle it reported.
func (s *Source) End() audio.Handle {
	s.mu.Lock()
	h, fn := s.handle, s.onEnd
	s.mu.Unlock()
	if fn != nil {
		fn(h)
	}
	return h
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	return nil
}

// Path returns the open path, or "" when nothing is open.
func (s *Source) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Playing reports whether output is running.
func (s *Source) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// IsOpen reports whether a handle is open.
func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opened returns every path passed to Open, in order.
func (s *Source) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

// MaxOpen returns the largest number of handles open at once.
func (s *Source) MaxOpen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOpen
}

var _ audio.Source = (*Source)(nil)
