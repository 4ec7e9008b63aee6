package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func TestReadTagsFallsBackForUntaggedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "04 - Night Drive.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really an mp3"), 0600))

	meta := NewTagReader().ReadTags(path)

	assert.Equal(t, "Night Drive", meta.Title)
	assert.Equal(t, types.UnknownArtist, meta.Artist)
	assert.Equal(t, types.UnknownAlbum, meta.Album)
}

func TestReadTagsMissingFile(t *testing.T) {
	meta := NewTagReader().ReadTags("/does/not/exist/Song.flac")

	assert.Equal(t, "Song", meta.Title)
	assert.Equal(t, types.UnknownArtist, meta.Artist)
}

func TestFindAlbumArt(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "Artist", "Album")
	require.NoError(t, os.MkdirAll(album, 0700))
	track := filepath.Join(album, "01 - Song.mp3")

	assert.Empty(t, FindAlbumArt(track))

	parentArt := filepath.Join(root, "Artist", "folder.jpg")
	require.NoError(t, os.WriteFile(parentArt, []byte{0xff}, 0600))
	assert.Equal(t, parentArt, FindAlbumArt(track))

	cover := filepath.Join(album, "Cover.png")
	require.NoError(t, os.WriteFile(cover, []byte{0xff}, 0600))
	assert.Equal(t, cover, FindAlbumArt(track))
}

type countingReader struct{ calls int }

func (c *countingReader) ReadTags(path string) types.TrackMetadata {
	c.calls++
	return types.DefaultMetadata(path)
}

func TestCacheReadsOnce(t *testing.T) {
	inner := &countingReader{}
	cache := NewCache(inner)

	cache.ReadTags("/a.mp3")
	cache.ReadTags("/a.mp3")
	cache.ReadTags("/b.mp3")
	assert.Equal(t, 2, inner.calls)

	cache.Forget()
	cache.ReadTags("/a.mp3")
	assert.Equal(t, 3, inner.calls)
}
