// Package main is the entry point for vizplayer, a music player with a
// real-time frequency bar visualization. It runs either as a terminal UI
// (play) or headless behind a unix socket (daemon).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/vizplayer/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

// Options holds the global command line flags.
type Options struct {
	SocketPath string
	ConfigDir  string
	WSAddr     string
	Verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "vizplayer",
		Short:         "Local music player with a live frequency visualizer",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.SocketPath, "socket", "", "IPC socket path (default: /tmp/vizplayer-<uid>.sock)")
	flags.StringVar(&opts.ConfigDir, "config", "", "Configuration directory (default: ~/.config/vizplayer)")
	flags.StringVar(&opts.WSAddr, "ws-addr", "", "Serve frames over websocket on this address, e.g. 127.0.0.1:7331")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newPlayCmd(opts),
		newDaemonCmd(opts),
		newScanCmd(opts),
		newCtlCmd(opts),
	)
	return root
}

func (o *Options) resolve() error {
	if o.ConfigDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return err
		}
		o.ConfigDir = dir
	}
	if o.SocketPath == "" {
		o.SocketPath = fmt.Sprintf("/tmp/vizplayer-%d.sock", os.Getuid())
	}
	return nil
}

// setupConsoleLogging writes human readable logs to stderr.
func setupConsoleLogging(verbose bool) {
	setupLogging(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, verbose)
}

// setupFileLogging sends logs to vizplayer.log in the config dir so they
// do not corrupt the terminal UI. The returned closer flushes the file.
func setupFileLogging(dir string, verbose bool) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "vizplayer.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	setupLogging(f, verbose)
	return f, nil
}

func setupLogging(w io.Writer, verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
