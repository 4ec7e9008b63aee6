// Package transport implements the Stopped/Playing/Paused state machine
// that drives an audio.Source from user intents and track-end signals.
package transport

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/audio"
	"github.com/austinkregel/local-media/vizplayer/internal/playlist"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// EventKind identifies a transport notification.
type EventKind int

const (
	TrackStarted EventKind = iota
	TrackLoadFailed
	PlaylistEnded
)

func (k EventKind) String() string {
	switch k {
	case TrackStarted:
		return "trackStarted"
	case TrackLoadFailed:
		return "trackLoadFailed"
	case PlaylistEnded:
		return "playlistEnded"
	}
	return "unknown"
}

// Event is emitted to the Notifier as transitions happen.
type Event struct {
	Kind  EventKind
	Track types.Track
	Err   error
}

// Notifier receives transport events. It is called synchronously.
type Notifier func(Event)

// Machine owns transport state. It is not safe for concurrent use; the
// session serializes every call.
//
// Invariant: a source handle is open iff state != Stopped.
type Machine struct {
	source   audio.Source
	playlist *playlist.Manager
	clock    Clock
	notify   Notifier
	log      zerolog.Logger

	state     types.TransportState
	current   types.Track
	handle    audio.Handle
	duration  time.Duration
	known     bool
	offset    time.Duration
	startedAt time.Time
}

// NewMachine creates a stopped machine.
func NewMachine(source audio.Source, pl *playlist.Manager, clock Clock, notify Notifier) *Machine {
	if clock == nil {
		clock = SystemClock{}
	}
	if notify == nil {
		notify = func(Event) {}
	}
	return &Machine{
		source:   source,
		playlist: pl,
		clock:    clock,
		notify:   notify,
		state:    types.StateStopped,
		log:      log.With().Str("component", "transport").Logger(),
	}
}

// State returns the transport state
func (m *Machine) State() types.TransportState {
	return m.state
}

// Current returns the track that is open, if any.
func (m *Machine) Current() (types.Track, bool) {
	if m.state == types.StateStopped {
		return types.Track{}, false
	}
	return m.current, true
}

// Handle returns the open source handle, 0 when Stopped.
func (m *Machine) Handle() audio.Handle {
	return m.handle
}

// Timing returns the current clock/offset pairing.
func (m *Machine) Timing() Timing {
	return Timing{
		State:     m.state,
		Offset:    m.offset,
		StartedAt: m.startedAt,
		Duration:  m.duration,
		Known:     m.known,
	}
}

// Position returns the elapsed position of the open track.
func (m *Machine) Position() time.Duration {
	return m.Timing().Position(m.clock.Now())
}

// Duration returns the duration of the open track, if known.
func (m *Machine) Duration() (time.Duration, bool) {
	return m.duration, m.known
}

// Play stops whatever is open and plays track. If the track cannot be
// opened the machine auto-advances and the load error is returned.
func (m *Machine) Play(track types.Track) error {
	return m.playWithRecovery(track)
}

// Start resumes when Paused. When Stopped it plays the playlist's current
// track, or its first one when nothing was selected. An empty playlist
// leaves the machine Stopped.
func (m *Machine) Start() error {
	switch m.state {
	case types.StatePaused:
		m.Resume()
		return nil
	case types.StatePlaying:
		return nil
	}

	track, ok := m.playlist.Current()
	if !ok {
		track, ok = m.playlist.Next()
	}
	if !ok {
		m.log.Debug().Msg("play requested with an empty playlist")
		return nil
	}
	return m.playWithRecovery(track)
}

// Pause suspends output, freezing the elapsed offset exactly.
func (m *Machine) Pause() {
	if m.state != types.StatePlaying {
		return
	}
	m.offset = m.Position()
	m.startedAt = time.Time{}
	m.state = types.StatePaused
	m.source.Pause()
}

// Resume continues from the paused offset.
func (m *Machine) Resume() {
	if m.state != types.StatePaused {
		return
	}
	m.startedAt = m.clock.Now()
	m.state = types.StatePlaying
	m.source.Resume()
}

// Stop releases the open track and resets elapsed time.
func (m *Machine) Stop() {
	if m.state == types.StateStopped {
		return
	}
	m.release()
}

// Seek moves to pos clamped to [0, duration]. It is a no-op when Stopped
// and never changes state. A track end queued before the seek is stale
// afterwards.
func (m *Machine) Seek(pos time.Duration) {
	if m.state == types.StateStopped {
		return
	}
	pos = max(pos, 0)
	if m.known && pos > m.duration {
		pos = m.duration
	}
	h, err := m.source.Seek(pos)
	if err != nil {
		m.log.Warn().Err(err).Dur("position", pos).Msg("seek failed")
		return
	}
	m.handle = h
	m.offset = pos
	if m.state == types.StatePlaying {
		m.startedAt = m.clock.Now()
	}
}

// Next plays the following track on user request. RepeatOne does not pin
// the track here. With nothing after the current track it is a no-op.
func (m *Machine) Next() error {
	track, ok := m.playlist.Skip()
	if !ok {
		return nil
	}
	return m.playWithRecovery(track)
}

// Previous plays the preceding track on user request.
func (m *Machine) Previous() error {
	track, ok := m.playlist.SkipBack()
	if !ok {
		return nil
	}
	return m.playWithRecovery(track)
}

// TrackEnded handles the source's end-of-stream signal for h. Signals for
// a handle that is no longer open, or arriving when not Playing, are stale
// and ignored; handled reports whether the signal was acted on.
func (m *Machine) TrackEnded(h audio.Handle) (handled bool, err error) {
	if m.state != types.StatePlaying || h != m.handle {
		m.log.Debug().Uint64("handle", uint64(h)).Msg("ignoring stale track end")
		return false, nil
	}
	return true, m.Advance()
}

// Advance moves to the next track per the repeat policy, or stops and
// reports the end of the playlist.
func (m *Machine) Advance() error {
	track, ok := m.playlist.Next()
	if !ok {
		m.endOfPlaylist()
		return nil
	}
	return m.playWithRecovery(track)
}

// playWithRecovery opens track and, on failure, skips forward until a
// track opens. At most one pass over the playlist is attempted so a
// playlist of unplayable files ends Stopped. The first load error is
// returned.
func (m *Machine) playWithRecovery(track types.Track) error {
	err := m.open(track)
	if err == nil {
		return nil
	}
	firstErr := err
	m.reportFailure(err)

	for attempt := 1; attempt < m.playlist.Len(); attempt++ {
		next, ok := m.playlist.Skip()
		if !ok {
			m.endOfPlaylist()
			return firstErr
		}
		if err := m.open(next); err != nil {
			m.reportFailure(err)
			continue
		}
		return firstErr
	}

	m.log.Warn().Msg("no playable track found")
	m.endOfPlaylist()
	return firstErr
}

// open releases the current track and starts track. The previous handle
// is always fully released first.
func (m *Machine) open(track types.Track) error {
	if m.state != types.StateStopped {
		m.release()
	}

	h, err := m.source.Open(track.Path)
	if err != nil {
		return &TrackLoadError{Track: track, Err: err}
	}

	m.handle = h
	m.current = track
	m.duration, m.known = m.source.Duration()
	if !m.known && track.Duration > 0 {
		m.duration, m.known = track.Duration, true
	}
	if m.known && track.Duration != m.duration {
		m.current.Duration = m.duration
		m.playlist.UpdateTrack(m.current)
	}

	m.source.Start()
	m.state = types.StatePlaying
	m.offset = 0
	m.startedAt = m.clock.Now()

	m.log.Info().Str("path", track.Path).Uint64("handle", uint64(h)).Msg("playing")
	m.notify(Event{Kind: TrackStarted, Track: m.current})
	return nil
}

func (m *Machine) release() {
	m.source.Stop()
	m.state = types.StateStopped
	m.handle = 0
	m.current = types.Track{}
	m.duration, m.known = 0, false
	m.offset = 0
	m.startedAt = time.Time{}
}

func (m *Machine) reportFailure(err error) {
	m.log.Warn().Err(err).Msg("track load failed")
	ev := Event{Kind: TrackLoadFailed, Err: err}
	var le *TrackLoadError
	if errors.As(err, &le) {
		ev.Track = le.Track
	}
	m.notify(ev)
}

func (m *Machine) endOfPlaylist() {
	if m.state != types.StateStopped {
		m.release()
	}
	m.log.Info().Msg("end of playlist")
	m.notify(Event{Kind: PlaylistEnded})
}
