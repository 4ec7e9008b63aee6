package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/music/07 - Song Title.mp3", "Song Title"},
		{"/music/1. Intro.flac", "Intro"},
		{"/music/Plain.wav", "Plain"},
		{"/music/2049.ogg", "2049"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.path))
		})
	}
}

func TestWithDefaults(t *testing.T) {
	m := TrackMetadata{Artist: "Someone"}.WithDefaults("/music/03 - Blue.mp3")

	assert.Equal(t, "Blue", m.Title)
	assert.Equal(t, "Someone", m.Artist)
	assert.Equal(t, UnknownAlbum, m.Album)
}

func TestRepeatModeRoundTrip(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatOff, RepeatOne, RepeatAll} {
		assert.Equal(t, mode, ParseRepeatMode(mode.String()))
	}
	assert.Equal(t, RepeatOff, ParseRepeatMode("bogus"))
}

func TestRepeatModeNextCycles(t *testing.T) {
	assert.Equal(t, RepeatAll, RepeatOff.Next())
	assert.Equal(t, RepeatOne, RepeatAll.Next())
	assert.Equal(t, RepeatOff, RepeatOne.Next())
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "0:00", FormatTime(0))
	assert.Equal(t, "3:00", FormatTime(180*time.Second))
	assert.Equal(t, "1:05", FormatTime(65*time.Second+900*time.Millisecond))
	assert.Equal(t, "0:00", FormatTime(-time.Second))
}
