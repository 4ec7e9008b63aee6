package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/austinkregel/local-media/vizplayer/internal/ipc"
	"github.com/austinkregel/local-media/vizplayer/internal/notify"
	"github.com/austinkregel/local-media/vizplayer/internal/scanner"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func newDaemonCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon [folder]",
		Short: "Run headless, controlled over the IPC socket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupConsoleLogging(opts.Verbose)
			log.Info().Str("version", Version).Msg("vizplayer daemon starting")

			var folder string
			if len(args) == 1 {
				folder = args[0]
			}
			return runDaemon(cmd.Context(), opts, folder)
		},
	}
}

func runDaemon(ctx context.Context, opts *Options, folder string) error {
	p, err := newPlayer(ctx, opts, folder)
	if err != nil {
		return err
	}
	defer p.Close()
	p.persist()

	g, gctx := errgroup.WithContext(ctx)
	p.serve(gctx, g, opts, true)
	err = g.Wait()
	log.Info().Msg("daemon stopped")
	return err
}

// serve starts the session loop and every background service enabled by
// flags or config on g. Headless players also announce each new track.
func (p *player) serve(ctx context.Context, g *errgroup.Group, opts *Options, headless bool) {
	cfg := p.config.Get()

	g.Go(func() error { return p.session.Run(ctx) })
	g.Go(func() error { return p.clock.Run(ctx) })

	server := ipc.NewServer(opts.SocketPath, p.session, p.clock, p.scanner)
	g.Go(func() error { return server.Start(ctx) })

	if opts.WSAddr != "" {
		web := ipc.NewWebServer(opts.WSAddr, p.clock, p.session)
		g.Go(func() error { return web.Start(ctx) })
	}

	if cfg.Behavior.Notifications {
		events, unsubscribe := p.session.Events()
		n := notify.New(notify.Desktop{}, headless)
		g.Go(func() error {
			defer unsubscribe()
			return n.Run(ctx, events)
		})
	}

	if cfg.Behavior.WatchFolder && cfg.LastFolder != "" {
		w := scanner.NewWatcher(p.scanner, scanner.DefaultSettleDelay)
		g.Go(func() error {
			return w.Watch(ctx, cfg.LastFolder, func(tracks []types.Track) {
				for _, t := range tracks {
					if err := p.session.Add(ctx, t); err != nil {
						log.Warn().Err(err).Str("path", t.Path).Msg("failed to add new file")
						return
					}
				}
				log.Info().Int("tracks", len(tracks)).Msg("added new files")
			})
		})
	}
}
