package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/austinkregel/local-media/vizplayer/internal/audio"
	"github.com/austinkregel/local-media/vizplayer/internal/config"
	"github.com/austinkregel/local-media/vizplayer/internal/media"
	"github.com/austinkregel/local-media/vizplayer/internal/metadata"
	"github.com/austinkregel/local-media/vizplayer/internal/playlist"
	"github.com/austinkregel/local-media/vizplayer/internal/scanner"
	"github.com/austinkregel/local-media/vizplayer/internal/session"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

// player is every long-lived component of a running vizplayer.
type player struct {
	config   *config.Manager
	engine   *audio.Engine
	analyzer *audio.Analyzer
	clock    *visual.Clock
	media    media.Session
	playlist *playlist.Manager
	store    *playlist.Store
	scanner  *scanner.Scanner
	session  *session.Session
}

// newPlayer opens the audio device and wires the components together.
// folder, when set, replaces any remembered playlist.
func newPlayer(ctx context.Context, opts *Options, folder string) (*player, error) {
	p := &player{config: config.NewManager(opts.ConfigDir)}
	if err := p.config.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := p.config.Get()

	format := audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: audio.DefaultFormat.Channels}
	bufferSize := time.Duration(cfg.Audio.BufferSizeMs) * time.Millisecond
	engine, err := audio.NewEngine(format, bufferSize, audio.NewAutoDecoder(format))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio output: %w", err)
	}
	p.engine = engine

	p.analyzer = audio.NewAnalyzer(engine, cfg.Visualizer.Bars)
	gradient := visual.DefaultGradient(cfg.Visualizer.Stepped)
	p.clock = visual.NewClock(p.analyzer, visual.Options{FPS: cfg.Visualizer.FPS, Gradient: &gradient})

	p.media, err = media.NewSession()
	if err != nil {
		log.Warn().Err(err).Msg("continuing without OS media integration")
		p.media = media.NewNoOpSession()
	}

	p.scanner = scanner.NewScanner(metadata.NewCache(metadata.NewTagReader()))
	p.playlist = playlist.NewManager()
	if err := p.restorePlaylist(ctx, cfg, folder); err != nil {
		p.Close()
		return nil, err
	}
	p.playlist.SetShuffle(cfg.Playback.Shuffle)
	p.playlist.SetRepeat(types.ParseRepeatMode(cfg.Playback.Repeat))

	p.session = session.New(session.Options{
		Source:   engine,
		Playlist: p.playlist,
		Frames:   p.clock,
		Analyzer: p.analyzer,
		Settings: p.config,
		Media:    p.media,
		Volume:   cfg.Audio.Volume,
	})
	return p, nil
}

func (p *player) restorePlaylist(ctx context.Context, cfg config.Config, folder string) error {
	if cfg.Playback.RememberPlaylist {
		p.store = playlist.NewStore(p.config.Dir(), p.playlist)
		if folder == "" {
			if err := p.store.Load(); err != nil {
				log.Warn().Err(err).Msg("failed to load saved playlist")
			} else if n := p.playlist.Len(); n > 0 {
				log.Info().Int("tracks", n).Msg("restored playlist")
				return nil
			}
		}
	}

	if folder == "" {
		folder = cfg.LastFolder
	}
	if folder == "" {
		return nil
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("invalid folder %q: %w", folder, err)
	}
	tracks, err := p.scanner.Folder(ctx, abs)
	if errors.Is(err, scanner.ErrNoFiles) {
		log.Warn().Str("folder", abs).Msg("no audio files found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", abs, err)
	}
	p.playlist.Load(tracks)
	if err := p.config.SetLastFolder(abs); err != nil {
		log.Warn().Err(err).Msg("failed to remember folder")
	}
	log.Info().Str("folder", abs).Int("tracks", len(tracks)).Msg("loaded folder")
	return nil
}

// persist saves the playlist whenever it changes.
func (p *player) persist() {
	if p.store == nil {
		return
	}
	p.playlist.SetOnChange(func() {
		if err := p.store.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save playlist")
		}
	})
}

// Close saves the playlist and releases the audio device and media session.
func (p *player) Close() {
	if p.store != nil {
		if err := p.store.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save playlist")
		}
	}
	if p.media != nil {
		if err := p.media.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close media session")
		}
	}
	if err := p.engine.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close audio output")
	}
}
