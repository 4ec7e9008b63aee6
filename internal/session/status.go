package session

import (
	"time"

	"github.com/austinkregel/local-media/vizplayer/internal/transport"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// Status is an immutable snapshot of the session, republished after every
// command. Position is filled in at read time.
type Status struct {
	State    types.TransportState `json:"state"`
	Track    *types.Track         `json:"track,omitempty"`
	UpNext   *types.Track         `json:"upNext,omitempty"` // what the end of Track advances to
	Index    int                  `json:"index"`            // ordered index of the current track, -1 for none
	Length   int                  `json:"length"`
	Position int64                `json:"position"` // milliseconds
	Duration int64                `json:"duration"` // milliseconds, 0 when unknown
	Volume   float64              `json:"volume"`
	Shuffle  bool                 `json:"shuffle"`
	Repeat   string               `json:"repeat"`

	timing transport.Timing
}

// PositionDuration returns Position as a time.Duration.
func (s Status) PositionDuration() time.Duration {
	return time.Duration(s.Position) * time.Millisecond
}

// DurationDuration returns Duration as a time.Duration.
func (s Status) DurationDuration() time.Duration {
	return time.Duration(s.Duration) * time.Millisecond
}

// EventKind identifies a session event.
type EventKind string

const (
	EventTrackChanged  EventKind = "trackChanged"
	EventTrackError    EventKind = "trackError"
	EventPlaylistEnded EventKind = "playlistEnded"
	EventStateChanged  EventKind = "stateChanged"
)

// Event is delivered to subscribers. Delivery is best effort: a
// subscriber that falls behind misses events.
type Event struct {
	Kind  EventKind            `json:"kind"`
	State types.TransportState `json:"state"`
	Track *types.Track         `json:"track,omitempty"`
	Error string               `json:"error,omitempty"`
}
