// Package metadata reads display tags and artwork for audio files.
package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// Reader reads the display metadata of a file. Implementations never fail:
// missing or unreadable tags come back as defaults.
type Reader interface {
	ReadTags(path string) types.TrackMetadata
}

// TagReader reads ID3/Vorbis/MP4/FLAC tags using dhowden/tag.
type TagReader struct {
	log zerolog.Logger
}

// NewTagReader creates a tag reader
func NewTagReader() *TagReader {
	return &TagReader{log: log.With().Str("component", "metadata").Logger()}
}

// ReadTags extracts metadata from an audio file with filename fallback.
func (r *TagReader) ReadTags(path string) types.TrackMetadata {
	meta := types.TrackMetadata{}

	file, err := os.Open(path)
	if err != nil {
		r.log.Debug().Err(err).Str("path", path).Msg("could not open audio file")
		return r.withArt(meta.WithDefaults(path), path)
	}
	defer file.Close()

	parsed, err := tag.ReadFrom(file)
	if err != nil {
		r.log.Debug().Err(err).Str("path", path).Msg("could not parse tags")
		return r.withArt(meta.WithDefaults(path), path)
	}

	meta.Title = parsed.Title()
	meta.Artist = parsed.Artist()
	if meta.Artist == "" {
		meta.Artist = parsed.AlbumArtist()
	}
	meta.Album = parsed.Album()
	meta.TrackNumber, _ = parsed.Track()

	if pic := parsed.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.Art = pic.Data
		meta.ArtMIME = pic.MIMEType
	}

	return r.withArt(meta.WithDefaults(path), path)
}

func (r *TagReader) withArt(meta types.TrackMetadata, path string) types.TrackMetadata {
	if len(meta.Art) == 0 && meta.ArtPath == "" {
		meta.ArtPath = FindAlbumArt(path)
	}
	return meta
}

// FindAlbumArt looks for album art in the track's directory or parent directory.
// It checks for common art filenames: folder.jpg, cover.jpg, album.jpg, etc.
// Returns the path to the art file if found, or empty string if not found.
func FindAlbumArt(trackPath string) string {
	if trackPath == "" {
		return ""
	}

	dir := filepath.Dir(trackPath)

	for _, name := range []string{"folder", "cover", "album", "front"} {
		for _, candidate := range artCandidates(name) {
			artPath := filepath.Join(dir, candidate)
			if _, err := os.Stat(artPath); err == nil {
				return artPath
			}
		}
	}

	// Artist folder art one level up
	parentDir := filepath.Dir(dir)
	for _, candidate := range artCandidates("folder") {
		artPath := filepath.Join(parentDir, candidate)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	return ""
}

func artCandidates(stem string) []string {
	title := strings.ToUpper(stem[:1]) + stem[1:]
	return []string{stem + ".jpg", stem + ".png", title + ".jpg", title + ".png"}
}

// Cache memoizes a Reader by path.
type Cache struct {
	mu     sync.RWMutex
	reader Reader
	byPath map[string]types.TrackMetadata
}

// NewCache wraps reader with a path-keyed cache
func NewCache(reader Reader) *Cache {
	return &Cache{reader: reader, byPath: make(map[string]types.TrackMetadata)}
}

// ReadTags returns cached metadata, reading it on first use.
func (c *Cache) ReadTags(path string) types.TrackMetadata {
	c.mu.RLock()
	meta, ok := c.byPath[path]
	c.mu.RUnlock()
	if ok {
		return meta
	}

	meta = c.reader.ReadTags(path)

	c.mu.Lock()
	c.byPath[path] = meta
	c.mu.Unlock()
	return meta
}

// Forget drops all cached entries.
func (c *Cache) Forget() {
	c.mu.Lock()
	c.byPath = make(map[string]types.TrackMetadata)
	c.mu.Unlock()
}

// Track builds a Track for path with metadata from reader.
func Track(reader Reader, path string) types.Track {
	return types.Track{Path: path, Metadata: reader.ReadTags(path)}
}
