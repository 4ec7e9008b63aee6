// Package media provides OS-level media session integration.
package media

import (
	"time"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// PlaybackState represents the playback state for media sessions
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// StateFor maps a transport state to a media session state.
func StateFor(s types.TransportState) PlaybackState {
	switch s {
	case types.StatePlaying:
		return StatePlaying
	case types.StatePaused:
		return StatePaused
	default:
		return StateStopped
	}
}

// Metadata contains track metadata for media session display
type Metadata struct {
	TrackID  string // stable per track, used to build the MPRIS object path
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	ArtPath  string
}

// MetadataFor builds session metadata from a playlist track.
func MetadataFor(t types.Track) Metadata {
	return Metadata{
		TrackID:  t.Path,
		Title:    t.Name(),
		Artist:   t.Metadata.Artist,
		Album:    t.Metadata.Album,
		Duration: t.Duration,
		ArtPath:  t.Metadata.ArtPath,
	}
}

// LoopStatus represents the loop/repeat mode for MPRIS
type LoopStatus string

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)

// LoopStatusFor maps a repeat mode to its MPRIS loop status.
func LoopStatusFor(r types.RepeatMode) LoopStatus {
	switch r {
	case types.RepeatOne:
		return LoopTrack
	case types.RepeatAll:
		return LoopPlaylist
	default:
		return LoopNone
	}
}

// RepeatMode maps the loop status back to a repeat mode.
func (l LoopStatus) RepeatMode() types.RepeatMode {
	switch l {
	case LoopTrack:
		return types.RepeatOne
	case LoopPlaylist:
		return types.RepeatAll
	default:
		return types.RepeatOff
	}
}

// Session is the interface for OS media session integration
type Session interface {
	UpdateMetadata(metadata Metadata) error
	UpdatePlaybackState(state PlaybackState, position time.Duration) error
	UpdateShuffle(enabled bool) error
	UpdateLoopStatus(status LoopStatus) error
	UpdateVolume(volume float64) error

	// SetCommandHandler sets the handler for media commands (play, pause, etc.)
	SetCommandHandler(handler CommandHandler)

	Close() error
}

// Command represents a media command from the OS
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek          // data: absolute position, time.Duration
	CmdSetShuffle    // data: bool
	CmdSetLoopStatus // data: LoopStatus
	CmdSetVolume     // data: float64
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	case CmdSeek:
		return "Seek"
	case CmdSetShuffle:
		return "SetShuffle"
	case CmdSetLoopStatus:
		return "SetLoopStatus"
	case CmdSetVolume:
		return "SetVolume"
	default:
		return "Unknown"
	}
}

// CommandHandler handles media commands from the OS
type CommandHandler interface {
	OnCommand(cmd Command, data any) error
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command, data any) error

func (f CommandHandlerFunc) OnCommand(cmd Command, data any) error {
	return f(cmd, data)
}

// NoOpSession is used when media session integration is not available
type NoOpSession struct{}

// NewNoOpSession creates a new no-op session
func NewNoOpSession() *NoOpSession {
	return &NoOpSession{}
}

func (s *NoOpSession) UpdateMetadata(Metadata) error                          { return nil }
func (s *NoOpSession) UpdatePlaybackState(PlaybackState, time.Duration) error { return nil }
func (s *NoOpSession) UpdateShuffle(bool) error                               { return nil }
func (s *NoOpSession) UpdateLoopStatus(LoopStatus) error                      { return nil }
func (s *NoOpSession) UpdateVolume(float64) error                             { return nil }
func (s *NoOpSession) SetCommandHandler(CommandHandler)                       {}
func (s *NoOpSession) Close() error                                           { return nil }
