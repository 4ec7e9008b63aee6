package playlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func TestStoreLoadSaveRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()

	m := NewManager()
	m.Load(tracks("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"))
	m.Next()
	m.Next()
	m.SetRepeat(types.RepeatAll)

	store := NewStore(tmpDir, m)
	require.NoError(t, store.Save())

	_, err := os.Stat(filepath.Join(tmpDir, "playlist.json"))
	require.NoError(t, err)

	m2 := NewManager()
	require.NoError(t, NewStore(tmpDir, m2).Load())

	assert.Equal(t, 3, m2.Len())
	assert.Equal(t, 1, m2.Index())
	assert.Equal(t, types.RepeatAll, m2.Repeat())
}

func TestStoreLoadSaveWithShuffle(t *testing.T) {
	tmpDir := t.TempDir()

	m := seeded(5)
	m.Load(tracks("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"))
	m.Next()
	m.Next()
	m.SetShuffle(true)
	current, _ := m.Current()
	order := m.Order()

	require.NoError(t, NewStore(tmpDir, m).Save())

	m2 := NewManager()
	require.NoError(t, NewStore(tmpDir, m2).Load())

	assert.True(t, m2.Shuffle())
	assert.Equal(t, order, m2.Order())
	loaded, ok := m2.Current()
	require.True(t, ok)
	assert.Equal(t, current.Path, loaded.Path)
}

func TestStoreLoadMissingFile(t *testing.T) {
	m := NewManager()
	store := NewStore(t.TempDir(), m)

	assert.NoError(t, store.Load())
	assert.Equal(t, 0, m.Len())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "playlist.json"), []byte("not valid json"), 0600))

	store := NewStore(tmpDir, NewManager())
	assert.Error(t, store.Load())
}

func TestStoreLoadRepairsInvalidState(t *testing.T) {
	tmpDir := t.TempDir()
	data := `{"tracks":[{"path":"/a.mp3"},{"path":"/b.mp3"}],"index":9,"shuffle":true,"shuffleOrder":[0,0],"repeat":"one"}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "playlist.json"), []byte(data), 0600))

	m := NewManager()
	require.NoError(t, NewStore(tmpDir, m).Load())

	assert.ElementsMatch(t, []int{0, 1}, m.Order())
	assert.Equal(t, -1, m.Index())
	assert.Equal(t, types.RepeatOne, m.Repeat())
}

func TestStoreSaveWithMetadata(t *testing.T) {
	tmpDir := t.TempDir()

	m := NewManager()
	m.Load([]types.Track{
		{Path: "/path/1.mp3", Metadata: types.TrackMetadata{Title: "Track 1", Artist: "Artist 1"}},
		{Path: "/path/2.mp3", Metadata: types.TrackMetadata{Title: "Track 2", Artist: "Artist 2"}},
	})
	m.Next()

	require.NoError(t, NewStore(tmpDir, m).Save())

	m2 := NewManager()
	require.NoError(t, NewStore(tmpDir, m2).Load())

	items := m2.Tracks()
	require.Len(t, items, 2)
	assert.Equal(t, "Track 1", items[0].Metadata.Title)
	assert.Equal(t, "Artist 2", items[1].Metadata.Artist)
}
