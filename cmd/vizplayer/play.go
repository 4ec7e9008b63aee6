package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/austinkregel/local-media/vizplayer/internal/tui"
)

func newPlayCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "play [folder]",
		Short: "Play a folder in the terminal UI",
		Long: `Play a folder in the terminal UI.

Without a folder the remembered playlist is restored, or the last opened
folder is scanned again. The IPC socket is served while the UI runs, so
"vizplayer ctl" works against it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := setupFileLogging(opts.ConfigDir, opts.Verbose)
			if err != nil {
				return err
			}
			defer logFile.Close()

			var folder string
			if len(args) == 1 {
				folder = args[0]
			}
			return runPlay(cmd.Context(), opts, folder)
		},
	}
}

func runPlay(ctx context.Context, opts *Options, folder string) error {
	p, err := newPlayer(ctx, opts, folder)
	if err != nil {
		return err
	}
	defer p.Close()
	p.persist()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	p.serve(gctx, g, opts, false)

	events, unsubscribe := p.session.Events()
	defer unsubscribe()

	g.Go(func() error {
		defer cancel()
		if len(p.session.Playlist()) > 0 {
			if err := p.session.Play(gctx); err != nil {
				log.Warn().Err(err).Msg("failed to start playback")
			}
		}
		return tui.Run(gctx, tui.New(p.session, events, p.clock.Interval()))
	})
	return g.Wait()
}
