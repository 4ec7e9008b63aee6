package playlist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func tracks(paths ...string) []types.Track {
	out := make([]types.Track, len(paths))
	for i, p := range paths {
		out[i] = types.NewTrack(p)
	}
	return out
}

func seeded(seed int64) *Manager {
	return NewManagerWithRand(rand.New(rand.NewSource(seed)))
}

func TestNewManager(t *testing.T) {
	m := NewManager()
	require.NotNil(t, m)

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, -1, m.Index())
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestEmptyPlaylistOperationsAreNoOps(t *testing.T) {
	m := NewManager()

	_, ok := m.Next()
	assert.False(t, ok)
	_, ok = m.Previous()
	assert.False(t, ok)
	_, ok = m.Select(0)
	assert.False(t, ok)
	removed, ok := m.Remove(0)
	assert.False(t, removed)
	assert.False(t, ok)

	m.SetShuffle(true)
	m.Sort(types.SortArtist)
	_, ok = m.Next()
	assert.False(t, ok)
}

func TestNextInOrder(t *testing.T) {
	m := NewManager()
	m.Load(tracks("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"))

	for _, expected := range []string{"/path/1.mp3", "/path/2.mp3", "/path/3.mp3"} {
		track, ok := m.Next()
		require.True(t, ok)
		assert.Equal(t, expected, track.Path)
	}

	// Exhausted with RepeatOff; the cursor stays on the last track
	_, ok := m.Next()
	assert.False(t, ok)
	current, _ := m.Current()
	assert.Equal(t, "/path/3.mp3", current.Path)
}

func TestRepeatAllVisitsEveryTrackBeforeRepeating(t *testing.T) {
	for n := 1; n <= 6; n++ {
		paths := make([]string, n)
		for i := range paths {
			paths[i] = string(rune('a'+i)) + ".mp3"
		}
		m := NewManager()
		m.Load(tracks(paths...))
		m.SetRepeat(types.RepeatAll)

		var first, second []int
		for i := 0; i < n; i++ {
			m.Next()
			first = append(first, m.Index())
		}
		for i := 0; i < n; i++ {
			m.Next()
			second = append(second, m.Index())
		}

		seen := map[int]bool{}
		for _, idx := range first {
			seen[idx] = true
		}
		assert.Len(t, seen, n, "n=%d", n)
		assert.Equal(t, first, second, "fixed order when shuffle is off")
		for i, idx := range first {
			assert.Equal(t, i, idx)
		}
	}
}

func TestRepeatAllWithShuffleVisitsEveryTrack(t *testing.T) {
	m := seeded(7)
	m.Load(tracks("a", "b", "c", "d", "e"))
	m.SetRepeat(types.RepeatAll)
	m.SetShuffle(true)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		track, ok := m.Next()
		require.True(t, ok)
		seen[track.Path] = true
	}
	assert.Len(t, seen, 5)
}

func TestPrevious(t *testing.T) {
	m := NewManager()
	m.Load(tracks("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"))

	m.Next()
	m.Next()
	m.Next()

	track, ok := m.Previous()
	require.True(t, ok)
	assert.Equal(t, "/path/2.mp3", track.Path)

	track, _ = m.Previous()
	assert.Equal(t, "/path/1.mp3", track.Path)

	_, ok = m.Previous()
	assert.False(t, ok, "no previous track at the beginning with RepeatOff")

	m.SetRepeat(types.RepeatAll)
	track, ok = m.Previous()
	require.True(t, ok)
	assert.Equal(t, "/path/3.mp3", track.Path)
}

func TestRepeatOneReturnsCurrent(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b"))
	m.Next()
	m.SetRepeat(types.RepeatOne)

	track, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "a", track.Path)

	track, _ = m.Previous()
	assert.Equal(t, "a", track.Path)
}

func TestEnablingShuffleNeverRepicksCurrent(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		m := seeded(seed)
		m.Load(tracks("a", "b", "c", "d"))
		m.Select(int(seed % 4))
		current, _ := m.Current()

		m.SetShuffle(true)
		still, _ := m.Current()
		require.Equal(t, current.Path, still.Path, "seed %d", seed)

		next, ok := m.Next()
		require.True(t, ok)
		assert.NotEqual(t, current.Path, next.Path, "seed %d", seed)
	}
}

func TestEnablingShuffleWithTwoTracks(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		m := seeded(seed)
		m.Load(tracks("a", "b"))
		m.Next()
		m.SetShuffle(true)

		next, ok := m.Next()
		require.True(t, ok)
		assert.Equal(t, "b", next.Path)
	}
}

func TestShuffleWrapDoesNotRepeatLastTrack(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		m := seeded(seed)
		m.Load(tracks("a", "b", "c"))
		m.SetRepeat(types.RepeatAll)
		m.SetShuffle(true)

		var last types.Track
		for i := 0; i < 3; i++ {
			last, _ = m.Next()
		}
		wrapped, ok := m.Next()
		require.True(t, ok)
		assert.NotEqual(t, last.Path, wrapped.Path, "seed %d", seed)
	}
}

func TestDisablingShuffleRestoresOrderedPosition(t *testing.T) {
	m := seeded(3)
	m.Load(tracks("a", "b", "c", "d", "e"))
	m.SetShuffle(true)
	m.Next()
	m.Next()
	current, _ := m.Current()

	m.SetShuffle(false)

	after, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, current.Path, after.Path)
	assert.Equal(t, int(current.Path[0]-'a'), m.Index())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, m.Order())
}

func TestAddWithShuffleInsertsAfterCursor(t *testing.T) {
	positions := map[int]bool{}
	for seed := int64(0); seed < 50; seed++ {
		m := seeded(seed)
		m.Load(tracks("a", "b", "c", "d"))
		m.SetShuffle(true)
		m.Next()
		m.Next()

		m.Add(types.NewTrack("new"))

		order := m.Order()
		require.Len(t, order, 5)
		pos := -1
		for p, idx := range order {
			if idx == 4 {
				pos = p
			}
		}
		assert.Greater(t, pos, 1, "new track must land after the cursor")
		positions[pos] = true
	}
	assert.Greater(t, len(positions), 1, "new tracks should not always land last")
}

func TestRemoveBeforeCurrent(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b", "c"))
	m.Select(2)

	removed, ok := m.Remove(0)
	require.True(t, ok)
	assert.False(t, removed)

	current, _ := m.Current()
	assert.Equal(t, "c", current.Path)
	assert.Equal(t, 1, m.Index())
}

func TestRemoveCurrentAdvances(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b", "c"))
	m.Select(1)

	removed, ok := m.Remove(1)
	require.True(t, ok)
	assert.True(t, removed)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c", current.Path)
}

func TestRemoveLastCurrent(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b"))
	m.Select(1)

	m.Remove(1)
	_, ok := m.Current()
	assert.False(t, ok, "no next track with RepeatOff")

	m.Load(tracks("a", "b"))
	m.SetRepeat(types.RepeatAll)
	m.Select(1)
	m.Remove(1)
	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "a", current.Path)
}

func TestRemoveOnlyTrackEmpties(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a"))
	m.Next()

	removed, _ := m.Remove(0)
	assert.True(t, removed)
	assert.Equal(t, 0, m.Len())
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestRemoveWithShuffleKeepsPermutationValid(t *testing.T) {
	m := seeded(11)
	m.Load(tracks("a", "b", "c", "d", "e"))
	m.SetShuffle(true)
	m.Next()
	current, _ := m.Current()

	// Remove something that is not current
	victim := 0
	if m.Index() == 0 {
		victim = 1
	}
	m.Remove(victim)

	order := m.Order()
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, order)
	after, _ := m.Current()
	assert.Equal(t, current.Path, after.Path)
}

func TestSortKeepsCurrentSelected(t *testing.T) {
	m := NewManager()
	in := []types.Track{
		{Path: "/m/c.mp3", Metadata: types.TrackMetadata{Title: "Charlie", Artist: "Zed", Album: "One"}},
		{Path: "/m/a.mp3", Metadata: types.TrackMetadata{Title: "alpha", Artist: "Yan", Album: "Two"}},
		{Path: "/m/b.mp3", Metadata: types.TrackMetadata{Title: "Bravo", Artist: "Xu", Album: "One"}},
	}
	m.Load(in)
	m.Select(0) // Charlie

	m.Sort(types.SortName)
	names := []string{}
	for _, tr := range m.Tracks() {
		names = append(names, tr.Metadata.Title)
	}
	assert.Equal(t, []string{"alpha", "Bravo", "Charlie"}, names)
	current, _ := m.Current()
	assert.Equal(t, "/m/c.mp3", current.Path)
	assert.Equal(t, 2, m.Index())

	m.Sort(types.SortArtist)
	assert.Equal(t, "/m/b.mp3", m.Tracks()[0].Path)

	m.Sort(types.SortAlbum)
	assert.Equal(t, []string{"/m/b.mp3", "/m/c.mp3", "/m/a.mp3"}, []string{
		m.Tracks()[0].Path, m.Tracks()[1].Path, m.Tracks()[2].Path,
	})
}

func TestOnChangeCalled(t *testing.T) {
	m := NewManager()
	calls := 0
	m.SetOnChange(func() { calls++ })

	m.Load(tracks("a", "b"))
	m.Next()
	m.SetRepeat(types.RepeatAll)

	assert.Equal(t, 3, calls)
}

func TestSkipIgnoresRepeatOne(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b"))
	m.Next()
	m.SetRepeat(types.RepeatOne)

	track, ok := m.Skip()
	require.True(t, ok)
	assert.Equal(t, "b", track.Path)

	track, ok = m.Skip()
	require.True(t, ok)
	assert.Equal(t, "a", track.Path, "wraps like RepeatAll")

	track, ok = m.SkipBack()
	require.True(t, ok)
	assert.Equal(t, "b", track.Path)
}

func TestPeekDoesNotMove(t *testing.T) {
	m := NewManager()
	m.Load(tracks("a", "b"))

	track, ok := m.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", track.Path)
	assert.Equal(t, -1, m.Index())

	m.Next()
	m.Next()
	_, ok = m.Peek()
	assert.False(t, ok)

	m.SetRepeat(types.RepeatAll)
	track, _ = m.Peek()
	assert.Equal(t, "a", track.Path)
}
