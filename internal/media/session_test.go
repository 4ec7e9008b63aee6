package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func TestLoopStatusRoundTrip(t *testing.T) {
	for _, mode := range []types.RepeatMode{types.RepeatOff, types.RepeatOne, types.RepeatAll} {
		assert.Equal(t, mode, LoopStatusFor(mode).RepeatMode())
	}
	assert.Equal(t, types.RepeatOff, LoopStatus("Bogus").RepeatMode())
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StatePlaying, StateFor(types.StatePlaying))
	assert.Equal(t, StatePaused, StateFor(types.StatePaused))
	assert.Equal(t, StateStopped, StateFor(types.StateStopped))
}

func TestMetadataFor(t *testing.T) {
	track := types.NewTrack("/music/01 - Intro.mp3")
	track.Duration = 3 * time.Minute

	m := MetadataFor(track)

	assert.Equal(t, "/music/01 - Intro.mp3", m.TrackID)
	assert.Equal(t, "Intro", m.Title)
	assert.Equal(t, types.UnknownArtist, m.Artist)
	assert.Equal(t, 3*time.Minute, m.Duration)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "SetVolume", CmdSetVolume.String())
	assert.Equal(t, "Unknown", Command(99).String())
}
