// Package scanner provides folder scanning functionality.
// It walks folders and builds playlist tracks from the audio files found.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/austinkregel/local-media/vizplayer/internal/metadata"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// SupportedExtensions are the audio file extensions we recognize
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".wma":  true,
}

// numWorkers bounds concurrent tag reads.
const numWorkers = 4

// IsSupported reports whether path has a recognized audio extension.
func IsSupported(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// FileInfo represents basic info about an audio file
type FileInfo struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modifiedAt"` // Unix timestamp
}

// Result is the result of a scan
type Result struct {
	Roots   []string      `json:"roots"`
	Files   []FileInfo    `json:"files"`
	Tracks  []types.Track `json:"tracks"`
	Elapsed time.Duration `json:"elapsed"`
}

// Scanner walks folders for audio files. It is safe for concurrent use.
type Scanner struct {
	reader metadata.Reader
	nfo    *nfoCache
	log    zerolog.Logger
}

// NewScanner creates a scanner that reads tags with reader. A nil reader
// yields tracks with filename-derived metadata only.
func NewScanner(reader metadata.Reader) *Scanner {
	return &Scanner{
		reader: reader,
		nfo:    newNFOCache(),
		log:    log.With().Str("component", "scanner").Logger(),
	}
}

// Scan walks roots recursively and returns every supported file once,
// sorted by path. Hidden directories are skipped. A root that is a file is
// included if supported.
func (s *Scanner) Scan(ctx context.Context, roots ...string) (Result, error) {
	start := time.Now()
	result := Result{Roots: roots}

	var files []FileInfo
	for _, root := range roots {
		found, err := s.walk(ctx, root)
		if err != nil {
			return result, err
		}
		files = append(files, found...)
	}

	files = lo.UniqBy(files, func(f FileInfo) string { return f.Path })
	slices.SortFunc(files, func(a, b FileInfo) int { return strings.Compare(a.Path, b.Path) })
	result.Files = files

	s.log.Debug().Int("files", len(files)).Msg("discovered audio files, reading tags")

	tracks, err := s.tracks(ctx, lo.Map(files, func(f FileInfo, _ int) string { return f.Path }))
	if err != nil {
		return result, err
	}
	result.Tracks = tracks
	result.Elapsed = time.Since(start)

	s.log.Info().
		Int("tracks", len(tracks)).
		Dur("elapsed", result.Elapsed).
		Strs("roots", roots).
		Msg("scan complete")
	return result, nil
}

// walk scans a single root
func (s *Scanner) walk(ctx context.Context, root string) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		if !IsSupported(root) {
			return nil, nil
		}
		return []FileInfo{fileInfo(root, info)}, nil
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSupported(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileInfo(path, fi))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func fileInfo(path string, info fs.FileInfo) FileInfo {
	return FileInfo{Path: path, Size: info.Size(), ModifiedAt: info.ModTime().Unix()}
}

// tracks reads metadata for paths in parallel, preserving order.
func (s *Scanner) tracks(ctx context.Context, paths []string) ([]types.Track, error) {
	tracks := make([]types.Track, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tracks[i] = s.Track(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Track builds a playlist track for a single file.
func (s *Scanner) Track(path string) types.Track {
	track := types.NewTrack(path)
	if s.reader != nil {
		track = metadata.Track(s.reader, path)
	}
	track.Metadata = s.nfo.apply(filepath.Dir(path), track.Metadata)
	return track
}

// ErrNoFiles is returned by Folder when nothing playable was found.
var ErrNoFiles = errors.New("no supported audio files found")

// Folder scans a single folder and returns its tracks, failing with
// ErrNoFiles when the folder holds no supported audio.
func (s *Scanner) Folder(ctx context.Context, dir string) ([]types.Track, error) {
	res, err := s.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(res.Tracks) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFiles)
	}
	return res.Tracks, nil
}

// nfoCache memoizes album.nfo lookups per directory.
type nfoCache struct {
	mu    sync.Mutex
	byDir map[string]*AlbumInfo
}

func newNFOCache() *nfoCache {
	return &nfoCache{byDir: make(map[string]*AlbumInfo)}
}

func (c *nfoCache) lookup(dir string) *AlbumInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.byDir[dir]; ok {
		return info
	}
	info, err := ParseAlbumNFO(filepath.Join(dir, AlbumNFO))
	if err != nil {
		info = nil
	}
	c.byDir[dir] = info
	return info
}

// apply fills placeholder artist and album fields from the folder's
// album.nfo, if there is one.
func (c *nfoCache) apply(dir string, meta types.TrackMetadata) types.TrackMetadata {
	info := c.lookup(dir)
	if info == nil {
		return meta
	}
	if meta.Album == types.UnknownAlbum && info.Title != "" {
		meta.Album = info.Title
	}
	if meta.Artist == types.UnknownArtist && info.Artist != "" {
		meta.Artist = info.Artist
	}
	return meta
}
