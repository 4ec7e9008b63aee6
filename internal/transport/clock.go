package transport

import (
	"time"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// Clock is the wall clock used for elapsed-time bookkeeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timing is the clock/offset pairing recorded on every transport
// transition. Position can be computed from it at any later time without
// touching the machine.
type Timing struct {
	State     types.TransportState
	Offset    time.Duration // position when StartedAt was recorded
	StartedAt time.Time     // zero unless Playing
	Duration  time.Duration
	Known     bool // Duration is known
}

// Position returns the playback position at now, clamped to the duration.
func (t Timing) Position(now time.Time) time.Duration {
	pos := t.Offset
	if t.State == types.StatePlaying && !t.StartedAt.IsZero() {
		pos += now.Sub(t.StartedAt)
	}
	if t.Known && pos > t.Duration {
		pos = t.Duration
	}
	return max(pos, 0)
}
