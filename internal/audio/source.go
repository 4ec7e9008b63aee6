// Package audio decodes and plays local audio files and analyzes the
// produced PCM for visualization.
package audio

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedFormat is returned when no decoder handles a file.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrOpen wraps decoder failures for files that exist in a supported
	// format but cannot be read.
	ErrOpen = errors.New("failed to open track")
	// ErrNoTrack is returned by operations that need an open track.
	ErrNoTrack = errors.New("no track open")
	// ErrClosed is returned after the source has been closed.
	ErrClosed = errors.New("audio source closed")
)

// Handle identifies one opened track. Handles are never reused, so a
// track-end notification can be matched against the track that is open now.
type Handle uint64

// TrackEndFunc is called asynchronously when the stream of h is exhausted.
type TrackEndFunc func(h Handle)

// Source is the decode/output service the transport drives.
// Only one track is open at a time; Open releases the previous one first.
type Source interface {
	Open(path string) (Handle, error)
	Start()
	Pause()
	Resume()
	Stop()
	// Seek restarts the open track at pos under a new handle, so an end
	// notification for the stream before the seek is stale.
	Seek(pos time.Duration) (Handle, error)
	Elapsed() time.Duration
	Duration() (time.Duration, bool)
	SetVolume(v float64)
	// ReadRecentOutput returns the mono samples produced since the previous
	// call, oldest first. It never blocks.
	ReadRecentOutput() []float64
	SampleRate() int
	SetOnTrackEnd(fn TrackEndFunc)
	Close() error
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
