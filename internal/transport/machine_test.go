package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/vizplayer/internal/audio/audiotest"
	"github.com/austinkregel/local-media/vizplayer/internal/playlist"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	source   *audiotest.Source
	playlist *playlist.Manager
	clock    *manualClock
	machine  *Machine
	events   []Event
}

func newFixture(t *testing.T, paths ...string) *fixture {
	t.Helper()
	f := &fixture{
		source:   audiotest.NewSource(),
		playlist: playlist.NewManager(),
		clock:    &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	tracks := make([]types.Track, len(paths))
	for i, p := range paths {
		tracks[i] = types.NewTrack(p)
	}
	f.playlist.Load(tracks)
	f.machine = NewMachine(f.source, f.playlist, f.clock, func(e Event) {
		f.events = append(f.events, e)
	})
	return f
}

func (f *fixture) count(kind EventKind) int {
	n := 0
	for _, e := range f.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestPlayOnEmptyPlaylistStaysStopped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.Start())

	assert.Equal(t, types.StateStopped, f.machine.State())
	_, ok := f.machine.Current()
	assert.False(t, ok)
	assert.Empty(t, f.source.Opened())
}

func TestRepeatAllWrapScenario(t *testing.T) {
	f := newFixture(t, "A", "B")
	f.source.SetDuration("A", 180*time.Second)
	f.source.SetDuration("B", 200*time.Second)
	f.playlist.SetRepeat(types.RepeatAll)

	require.NoError(t, f.machine.Start())
	cur, _ := f.machine.Current()
	assert.Equal(t, "A", cur.Path)

	f.clock.Advance(180 * time.Second)
	handled, err := f.machine.TrackEnded(f.machine.Handle())
	require.NoError(t, err)
	assert.True(t, handled)
	cur, _ = f.machine.Current()
	assert.Equal(t, "B", cur.Path)
	assert.Equal(t, time.Duration(0), f.machine.Position())

	f.clock.Advance(200 * time.Second)
	_, err = f.machine.TrackEnded(f.machine.Handle())
	require.NoError(t, err)
	cur, _ = f.machine.Current()
	assert.Equal(t, "A", cur.Path)

	assert.Equal(t, []string{"A", "B", "A"}, f.source.Opened())
	assert.Equal(t, 1, f.source.MaxOpen())
	assert.Equal(t, 0, f.count(PlaylistEnded))
}

func TestCorruptTrackIsSkipped(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	f.source.Fail("B")

	require.NoError(t, f.machine.Start())
	_, err := f.machine.TrackEnded(f.machine.Handle())

	var loadErr *TrackLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "B", loadErr.Track.Path)
	assert.ErrorIs(t, err, audiotest.ErrCorrupt)

	cur, ok := f.machine.Current()
	require.True(t, ok)
	assert.Equal(t, "C", cur.Path)
	assert.Equal(t, types.StatePlaying, f.machine.State())
	assert.Equal(t, 1, f.count(TrackLoadFailed))
	assert.Equal(t, 2, f.playlist.Index(), "cursor moved past B")
}

func TestAllCorruptPlaylistStops(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	f.playlist.SetRepeat(types.RepeatAll)
	for _, p := range []string{"A", "B", "C"} {
		f.source.Fail(p)
	}

	err := f.machine.Start()
	require.Error(t, err)

	assert.Equal(t, types.StateStopped, f.machine.State())
	assert.Equal(t, 3, f.count(TrackLoadFailed))
	assert.Equal(t, 1, f.count(PlaylistEnded))
	assert.False(t, f.source.IsOpen())
}

func TestPauseResumePreservesPosition(t *testing.T) {
	offsets := []time.Duration{0, 1500 * time.Millisecond, 90 * time.Second, 180 * time.Second}
	for _, offset := range offsets {
		t.Run(offset.String(), func(t *testing.T) {
			f := newFixture(t, "A")
			f.source.SetDuration("A", 180*time.Second)
			require.NoError(t, f.machine.Start())

			f.clock.Advance(offset)
			f.machine.Pause()
			assert.Equal(t, types.StatePaused, f.machine.State())
			assert.Equal(t, offset, f.machine.Position())

			f.clock.Advance(time.Hour)
			assert.Equal(t, offset, f.machine.Position())

			f.machine.Resume()
			assert.Equal(t, offset, f.machine.Position())
			assert.True(t, f.source.Playing())
		})
	}
}

func TestSeekClamps(t *testing.T) {
	f := newFixture(t, "A")
	f.source.SetDuration("A", 180*time.Second)
	require.NoError(t, f.machine.Start())

	f.machine.Seek(200 * time.Second)
	assert.Equal(t, 180*time.Second, f.machine.Position())
	assert.Equal(t, 180*time.Second, f.source.Elapsed())
	assert.Equal(t, types.StatePlaying, f.machine.State())

	f.machine.Seek(-5 * time.Second)
	assert.Equal(t, time.Duration(0), f.machine.Position())

	f.machine.Pause()
	f.machine.Seek(30 * time.Second)
	assert.Equal(t, types.StatePaused, f.machine.State())
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 30*time.Second, f.machine.Position())
}

func TestTrackEndQueuedBeforeSeekIsIgnored(t *testing.T) {
	f := newFixture(t, "A", "B")
	f.source.SetDuration("A", 180*time.Second)
	require.NoError(t, f.machine.Start())
	before := f.machine.Handle()

	f.machine.Seek(30 * time.Second)
	handled, err := f.machine.TrackEnded(before)

	require.NoError(t, err)
	assert.False(t, handled)
	track, ok := f.machine.Current()
	require.True(t, ok)
	assert.Equal(t, "A", track.Path)
	assert.Equal(t, 30*time.Second, f.machine.Position())
	assert.Equal(t, []string{"A"}, f.source.Opened())

	// the end of the stream after the seek still advances
	handled, err = f.machine.TrackEnded(f.machine.Handle())
	require.NoError(t, err)
	assert.True(t, handled)
	track, _ = f.machine.Current()
	assert.Equal(t, "B", track.Path)
}

func TestSeekWhileStoppedIsNoOp(t *testing.T) {
	f := newFixture(t, "A")

	f.machine.Seek(10 * time.Second)

	assert.Equal(t, types.StateStopped, f.machine.State())
	assert.Equal(t, time.Duration(0), f.machine.Position())
	assert.Empty(t, f.source.Opened())
}

func TestStopReleasesHandle(t *testing.T) {
	f := newFixture(t, "A")
	require.NoError(t, f.machine.Start())
	f.clock.Advance(5 * time.Second)

	f.machine.Stop()

	assert.Equal(t, types.StateStopped, f.machine.State())
	assert.False(t, f.source.IsOpen())
	assert.Equal(t, time.Duration(0), f.machine.Position())
}

func TestEndOfPlaylistNotifiesOnce(t *testing.T) {
	f := newFixture(t, "A", "B")
	require.NoError(t, f.machine.Start())
	_, _ = f.machine.TrackEnded(f.machine.Handle())

	last := f.machine.Handle()
	_, err := f.machine.TrackEnded(last)
	require.NoError(t, err)
	assert.Equal(t, types.StateStopped, f.machine.State())

	handled, _ := f.machine.TrackEnded(last)
	assert.False(t, handled)
	assert.Equal(t, 1, f.count(PlaylistEnded))
}

func TestStaleTrackEndIsIgnored(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	require.NoError(t, f.machine.Start())
	stale := f.machine.Handle()

	require.NoError(t, f.machine.Next())
	handled, err := f.machine.TrackEnded(stale)
	require.NoError(t, err)
	assert.False(t, handled)

	cur, _ := f.machine.Current()
	assert.Equal(t, "B", cur.Path)
}

func TestTrackEndAfterStopIsIgnored(t *testing.T) {
	f := newFixture(t, "A", "B")
	require.NoError(t, f.machine.Start())
	h := f.machine.Handle()
	f.machine.Stop()

	handled, _ := f.machine.TrackEnded(h)

	assert.False(t, handled)
	assert.Equal(t, types.StateStopped, f.machine.State())
	assert.Equal(t, []string{"A"}, f.source.Opened())
}

func TestExplicitPlayFromAnyState(t *testing.T) {
	f := newFixture(t, "A", "B")
	require.NoError(t, f.machine.Start())
	f.machine.Pause()

	require.NoError(t, f.machine.Play(types.NewTrack("B")))

	cur, _ := f.machine.Current()
	assert.Equal(t, "B", cur.Path)
	assert.Equal(t, types.StatePlaying, f.machine.State())
	assert.Equal(t, 1, f.source.MaxOpen())
}

func TestUserNextAtEndIsNoOp(t *testing.T) {
	f := newFixture(t, "A")
	require.NoError(t, f.machine.Start())

	require.NoError(t, f.machine.Next())

	cur, _ := f.machine.Current()
	assert.Equal(t, "A", cur.Path)
	assert.Equal(t, types.StatePlaying, f.machine.State())
}

func TestRepeatOneReplaysOnTrackEnd(t *testing.T) {
	f := newFixture(t, "A", "B")
	f.playlist.SetRepeat(types.RepeatOne)
	require.NoError(t, f.machine.Start())

	_, err := f.machine.TrackEnded(f.machine.Handle())
	require.NoError(t, err)
	cur, _ := f.machine.Current()
	assert.Equal(t, "A", cur.Path)

	require.NoError(t, f.machine.Next())
	cur, _ = f.machine.Current()
	assert.Equal(t, "B", cur.Path)
}

func TestDurationFallsBackToTrack(t *testing.T) {
	f := newFixture(t)
	track := types.NewTrack("A")
	track.Duration = 42 * time.Second

	require.NoError(t, f.machine.Play(track))

	d, ok := f.machine.Duration()
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, d)
}

func TestTimingPositionIsClamped(t *testing.T) {
	start := time.Unix(100, 0)
	tm := Timing{
		State:     types.StatePlaying,
		Offset:    10 * time.Second,
		StartedAt: start,
		Duration:  15 * time.Second,
		Known:     true,
	}
	assert.Equal(t, 12*time.Second, tm.Position(start.Add(2*time.Second)))
	assert.Equal(t, 15*time.Second, tm.Position(start.Add(time.Minute)))
}
