package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// DefaultSettleDelay is how long a new file must stay quiet before it is
// reported.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher reports audio files added under a folder.
type Watcher struct {
	scanner *Scanner
	delay   time.Duration
	log     zerolog.Logger
}

// NewWatcher creates a watcher building tracks with s.
func NewWatcher(s *Scanner, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Watcher{
		scanner: s,
		delay:   delay,
		log:     log.With().Str("component", "watcher").Logger(),
	}
}

// Watch blocks until ctx is done. Files created under root, including in
// new subdirectories, are batched until writes settle and then passed to
// onAdd in path order.
func (w *Watcher) Watch(ctx context.Context, root string, onAdd func([]types.Track)) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	pending := make(map[string]bool)
	if err := w.addRecursive(fw, root, nil); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	w.log.Info().Str("root", root).Msg("watching folder")

	settle := time.NewTimer(w.delay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handle(fw, ev, pending) {
				continue
			}
			settle.Reset(w.delay)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-settle.C:
			if len(pending) == 0 {
				continue
			}
			paths := lo.Keys(pending)
			slices.Sort(paths)
			clear(pending)

			tracks := lo.Map(paths, func(p string, _ int) types.Track { return w.scanner.Track(p) })
			w.log.Debug().Int("tracks", len(tracks)).Msg("new files settled")
			onAdd(tracks)
		}
	}
}

// handle records ev and reports whether it touched a pending file.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]bool) bool {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return false
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				return false
			}
			// files may land before the directory watch is in place
			before := len(pending)
			if err := w.addRecursive(fw, ev.Name, pending); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new directory")
			}
			return len(pending) > before
		}
		if !IsSupported(ev.Name) {
			return false
		}
		pending[ev.Name] = true
		return true

	case ev.Has(fsnotify.Write):
		return pending[ev.Name]

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if pending[ev.Name] {
			delete(pending, ev.Name)
			return true
		}
	}
	return false
}

// addRecursive watches dir and its non-hidden subdirectories. When pending
// is non-nil, supported files already present are added to it.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string, pending map[string]bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				w.log.Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
			}
			return nil
		}
		if pending != nil && IsSupported(path) {
			pending[path] = true
		}
		return nil
	})
}
