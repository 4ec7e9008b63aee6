// Package session coordinates playlist, transport, audio and visualization
// behind a single serialized command path.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/audio"
	"github.com/austinkregel/local-media/vizplayer/internal/media"
	"github.com/austinkregel/local-media/vizplayer/internal/playlist"
	"github.com/austinkregel/local-media/vizplayer/internal/transport"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

var (
	// ErrNotRunning is returned for commands issued after Run returned.
	ErrNotRunning = errors.New("session is not running")
	// ErrInvalidIndex is returned for a playlist index out of range.
	ErrInvalidIndex = errors.New("invalid playlist index")
)

const (
	defaultQueueSize = 64
	eventBuffer      = 32
	mediaTimeout     = 5 * time.Second
)

// SettingsSink persists user preferences. config.Manager implements it.
type SettingsSink interface {
	SetVolume(v float64) error
	SetShuffle(enabled bool) error
	SetRepeat(mode types.RepeatMode) error
}

// FrameSource exposes the latest visualization frame.
type FrameSource interface {
	Current() *visual.Frame
}

// StopGate is told when transport enters or leaves Stopped.
type StopGate interface {
	SetStopped(stopped bool)
}

// Options wires a Session. Source is required.
type Options struct {
	Source   audio.Source
	Playlist *playlist.Manager
	Frames   FrameSource
	Analyzer StopGate
	Clock    transport.Clock
	Settings SettingsSink
	Media    media.Session
	Volume   float64
}

type command struct {
	name  string
	fn    func() error
	reply chan error // nil for fire-and-forget
}

// Session is the playback coordinator. All transport and playlist
// mutation happens on the goroutine running Run; public methods enqueue a
// command and wait for it. Reads never touch that goroutine.
type Session struct {
	cmds chan command
	done chan struct{}

	// owned by the Run goroutine
	machine   *transport.Machine
	volume    float64
	lastState types.TransportState

	playlist *playlist.Manager
	source   audio.Source
	frames   FrameSource
	analyzer StopGate
	clock    transport.Clock
	settings SettingsSink
	media    media.Session
	log      zerolog.Logger

	status  atomic.Pointer[Status]
	started atomic.Bool

	subMu  sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

// New creates a session. Call Run to start processing commands.
func New(opts Options) *Session {
	s := &Session{
		cmds:      make(chan command, defaultQueueSize),
		done:      make(chan struct{}),
		playlist:  opts.Playlist,
		source:    opts.Source,
		frames:    opts.Frames,
		analyzer:  opts.Analyzer,
		clock:     opts.Clock,
		settings:  opts.Settings,
		media:     opts.Media,
		volume:    audio.ClampVolume(opts.Volume),
		lastState: types.StateStopped,
		subs:      make(map[uint64]chan Event),
		log:       log.With().Str("component", "session").Logger(),
	}
	if s.playlist == nil {
		s.playlist = playlist.NewManager()
	}
	if s.clock == nil {
		s.clock = transport.SystemClock{}
	}
	if s.media == nil {
		s.media = media.NewNoOpSession()
	}

	s.machine = transport.NewMachine(s.source, s.playlist, s.clock, s.onTransportEvent)
	s.source.SetVolume(s.volume)
	s.source.SetOnTrackEnd(s.trackEnded)
	s.media.SetCommandHandler(s)
	s.publish()
	return s
}

// Run processes commands until ctx is done, then stops playback.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer close(s.done)

	s.log.Debug().Msg("command loop started")
	for {
		select {
		case <-ctx.Done():
			s.machine.Stop()
			s.publish()
			s.log.Debug().Msg("command loop stopped")
			return nil
		case c := <-s.cmds:
			err := c.fn()
			if err != nil {
				s.log.Debug().Err(err).Str("cmd", c.name).Msg("command returned error")
			}
			s.publish()
			if c.reply != nil {
				c.reply <- err
			}
		}
	}
}

// do enqueues fn and waits for its result.
func (s *Session) do(ctx context.Context, name string, fn func() error) error {
	c := command{name: name, fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- c:
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-c.reply:
		return err
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackEnded is the source callback. The notification is queued like any
// other command and checked against the current handle when it runs, so
// it loses cleanly to a stop or skip processed first.
func (s *Session) trackEnded(h audio.Handle) {
	c := command{name: "trackEnded", fn: func() error {
		_, err := s.machine.TrackEnded(h)
		return err
	}}
	select {
	case s.cmds <- c:
	case <-s.done:
	}
}

// LoadPlaylist stops playback and replaces the playlist.
func (s *Session) LoadPlaylist(ctx context.Context, tracks []types.Track) error {
	return s.do(ctx, "load", func() error {
		s.machine.Stop()
		s.playlist.Load(tracks)
		return nil
	})
}

// Add appends a track to the playlist.
func (s *Session) Add(ctx context.Context, track types.Track) error {
	return s.do(ctx, "add", func() error {
		s.playlist.Add(track)
		return nil
	})
}

// Remove removes the track at ordered index. Removing the current track
// moves to the new current track, keeping Paused if it was paused, or stops
// when none remains.
func (s *Session) Remove(ctx context.Context, index int) error {
	return s.do(ctx, "remove", func() error {
		removedCurrent, ok := s.playlist.Remove(index)
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		was := s.machine.State()
		if !removedCurrent || was == types.StateStopped {
			return nil
		}
		if next, ok := s.playlist.Current(); ok {
			err := s.machine.Play(next)
			if was == types.StatePaused && s.machine.State() == types.StatePlaying {
				s.machine.Pause()
			}
			return err
		}
		s.machine.Stop()
		return nil
	})
}

// Clear stops playback and empties the playlist.
func (s *Session) Clear(ctx context.Context) error {
	return s.do(ctx, "clear", func() error {
		s.machine.Stop()
		s.playlist.Clear()
		return nil
	})
}

// Play resumes, or starts the current (or first) track. A no-op on an
// empty playlist.
func (s *Session) Play(ctx context.Context) error {
	return s.do(ctx, "play", s.machine.Start)
}

// PlayIndex plays the track at ordered index from any state.
func (s *Session) PlayIndex(ctx context.Context, index int) error {
	return s.do(ctx, "playIndex", func() error {
		track, ok := s.playlist.Select(index)
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		return s.machine.Play(track)
	})
}

// Pause pauses playback. A no-op unless Playing.
func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, "pause", func() error {
		s.machine.Pause()
		return nil
	})
}

// Resume continues a paused track. A no-op unless Paused.
func (s *Session) Resume(ctx context.Context) error {
	return s.do(ctx, "resume", func() error {
		s.machine.Resume()
		return nil
	})
}

// TogglePause pauses when playing and plays otherwise.
func (s *Session) TogglePause(ctx context.Context) error {
	return s.do(ctx, "togglePause", func() error {
		if s.machine.State() == types.StatePlaying {
			s.machine.Pause()
			return nil
		}
		return s.machine.Start()
	})
}

// Stop releases the open track and resets the position.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, "stop", func() error {
		s.machine.Stop()
		return nil
	})
}

// Next skips to the following track. RepeatOne moves like RepeatAll here;
// at the end with RepeatOff it does nothing.
func (s *Session) Next(ctx context.Context) error {
	return s.do(ctx, "next", s.machine.Next)
}

// Previous goes back to the preceding track.
func (s *Session) Previous(ctx context.Context) error {
	return s.do(ctx, "previous", s.machine.Previous)
}

// Seek moves to pos, clamped to the track. A no-op when Stopped.
func (s *Session) Seek(ctx context.Context, pos time.Duration) error {
	return s.do(ctx, "seek", func() error {
		s.machine.Seek(pos)
		if st := s.machine.State(); st != types.StateStopped {
			s.media.UpdatePlaybackState(media.StateFor(st), s.machine.Position())
		}
		return nil
	})
}

// SeekBy seeks relative to the current position.
func (s *Session) SeekBy(ctx context.Context, delta time.Duration) error {
	return s.do(ctx, "seekBy", func() error {
		s.machine.Seek(s.machine.Position() + delta)
		return nil
	})
}

// SetVolume sets and persists the volume, clamped to [0, 1].
func (s *Session) SetVolume(ctx context.Context, v float64) error {
	return s.do(ctx, "volume", func() error {
		s.applyVolume(v)
		return nil
	})
}

// AdjustVolume changes the volume by delta.
func (s *Session) AdjustVolume(ctx context.Context, delta float64) error {
	return s.do(ctx, "adjustVolume", func() error {
		s.applyVolume(s.volume + delta)
		return nil
	})
}

func (s *Session) applyVolume(v float64) {
	s.volume = audio.ClampVolume(v)
	s.source.SetVolume(s.volume)
	s.media.UpdateVolume(s.volume)
	if s.settings != nil {
		if err := s.settings.SetVolume(s.volume); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist volume")
		}
	}
}

// SetShuffle turns shuffle on or off.
func (s *Session) SetShuffle(ctx context.Context, enabled bool) error {
	return s.do(ctx, "shuffle", func() error {
		s.applyShuffle(enabled)
		return nil
	})
}

// ToggleShuffle flips shuffle.
func (s *Session) ToggleShuffle(ctx context.Context) error {
	return s.do(ctx, "toggleShuffle", func() error {
		s.applyShuffle(!s.playlist.Shuffle())
		return nil
	})
}

func (s *Session) applyShuffle(enabled bool) {
	s.playlist.SetShuffle(enabled)
	s.media.UpdateShuffle(enabled)
	if s.settings != nil {
		if err := s.settings.SetShuffle(enabled); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist shuffle")
		}
	}
}

// SetRepeat sets the repeat mode.
func (s *Session) SetRepeat(ctx context.Context, mode types.RepeatMode) error {
	return s.do(ctx, "repeat", func() error {
		s.applyRepeat(mode)
		return nil
	})
}

// CycleRepeat moves off -> all -> one -> off.
func (s *Session) CycleRepeat(ctx context.Context) error {
	return s.do(ctx, "cycleRepeat", func() error {
		s.applyRepeat(s.playlist.Repeat().Next())
		return nil
	})
}

func (s *Session) applyRepeat(mode types.RepeatMode) {
	s.playlist.SetRepeat(mode)
	s.media.UpdateLoopStatus(media.LoopStatusFor(mode))
	if s.settings != nil {
		if err := s.settings.SetRepeat(mode); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist repeat mode")
		}
	}
}

// Sort reorders the playlist, keeping the current track.
func (s *Session) Sort(ctx context.Context, key types.SortKey) error {
	return s.do(ctx, "sort", func() error {
		s.playlist.Sort(key)
		return nil
	})
}

// Playlist returns the ordered tracks. It does not block on commands.
func (s *Session) Playlist() []types.Track {
	return s.playlist.Tracks()
}

// CurrentFrame returns the latest visualization frame, or nil when the
// session has no frame source.
func (s *Session) CurrentFrame() *visual.Frame {
	if s.frames == nil {
		return nil
	}
	return s.frames.Current()
}

// CurrentTrackInfo returns the open track, or false when Stopped.
func (s *Session) CurrentTrackInfo() (types.Track, bool) {
	st := s.status.Load()
	if st.Track == nil {
		return types.Track{}, false
	}
	return *st.Track, true
}

// Status returns the latest snapshot with the position computed now.
func (s *Session) Status() Status {
	st := *s.status.Load()
	st.Position = st.timing.Position(s.clock.Now()).Milliseconds()
	return st
}

// publish builds and stores a new Status. Runs on the command goroutine.
func (s *Session) publish() {
	timing := s.machine.Timing()
	st := &Status{
		State:   timing.State,
		Index:   -1,
		Length:  s.playlist.Len(),
		Volume:  s.volume,
		Shuffle: s.playlist.Shuffle(),
		Repeat:  s.playlist.Repeat().String(),
		timing:  timing,
	}
	if track, ok := s.machine.Current(); ok {
		st.Track = &track
		st.Index = s.playlist.Index()
		if next, ok := s.playlist.Peek(); ok {
			st.UpNext = &next
		}
	}
	if timing.Known {
		st.Duration = timing.Duration.Milliseconds()
	}
	s.status.Store(st)

	if s.analyzer != nil {
		s.analyzer.SetStopped(timing.State == types.StateStopped)
	}
	if timing.State != s.lastState {
		s.lastState = timing.State
		s.media.UpdatePlaybackState(media.StateFor(timing.State), timing.Position(s.clock.Now()))
		s.emit(Event{Kind: EventStateChanged, State: timing.State, Track: st.Track})
	}
}

func (s *Session) onTransportEvent(e transport.Event) {
	track := e.Track
	switch e.Kind {
	case transport.TrackStarted:
		s.media.UpdateMetadata(media.MetadataFor(track))
		s.emit(Event{Kind: EventTrackChanged, State: types.StatePlaying, Track: &track})
	case transport.TrackLoadFailed:
		ev := Event{Kind: EventTrackError, State: s.machine.State(), Track: &track}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		s.emit(ev)
	case transport.PlaylistEnded:
		s.emit(Event{Kind: EventPlaylistEnded, State: types.StateStopped})
	}
}

// Events subscribes to session events. Call cancel to unsubscribe.
func (s *Session) Events() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, eventBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) emit(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.log.Debug().Str("kind", string(e.Kind)).Msg("event subscriber full, dropping")
		}
	}
}

// OnCommand implements media.CommandHandler for OS media keys.
func (s *Session) OnCommand(cmd media.Command, data any) error {
	ctx, cancel := context.WithTimeout(context.Background(), mediaTimeout)
	defer cancel()

	switch cmd {
	case media.CmdPlay:
		return s.Play(ctx)
	case media.CmdPause:
		return s.Pause(ctx)
	case media.CmdPlayPause:
		return s.TogglePause(ctx)
	case media.CmdStop:
		return s.Stop(ctx)
	case media.CmdNext:
		return s.Next(ctx)
	case media.CmdPrevious:
		return s.Previous(ctx)
	case media.CmdSeek:
		if pos, ok := data.(time.Duration); ok {
			return s.Seek(ctx, pos)
		}
	case media.CmdSetShuffle:
		if enabled, ok := data.(bool); ok {
			return s.SetShuffle(ctx, enabled)
		}
	case media.CmdSetLoopStatus:
		if status, ok := data.(media.LoopStatus); ok {
			return s.SetRepeat(ctx, status.RepeatMode())
		}
	case media.CmdSetVolume:
		if v, ok := data.(float64); ok {
			return s.SetVolume(ctx, v)
		}
	}
	return fmt.Errorf("unsupported media command %s", cmd)
}

var _ media.CommandHandler = (*Session)(nil)
