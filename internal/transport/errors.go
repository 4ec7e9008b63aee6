package transport

import (
	"fmt"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// TrackLoadError reports a track that could not be opened. Playback moves
// on to the next track; the error is for display only.
type TrackLoadError struct {
	Track types.Track
	Err   error
}

func (e *TrackLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Track.Path, e.Err)
}

func (e *TrackLoadError) Unwrap() error {
	return e.Err
}
