package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/vizplayer/internal/ipc"
)

func newCtlCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ctl <command> [args...]",
		Short: "Send one command to a running player",
		Long: `Send one command to a running player and print the reply.

Commands:
  load <path>...      replace the playlist with folders or files
  add <file>          append a file
  remove <n>          remove entry n (1-based)
  clear               stop and empty the playlist
  play [n]            start, or jump to entry n (1-based)
  pause | resume | toggle | stop | next | prev
  seek <M:SS|secs>    seek within the current track
  volume <0-100>      set the volume in percent
  shuffle <on|off>
  repeat <off|one|all>
  sort <name|artist|album>
  status | playlist | frame`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, data, err := ctlRequest(args[0], args[1:])
			if err != nil {
				return err
			}

			client, err := ipc.Dial(cmd.Context(), opts.SocketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			reply, err := client.Call(name, data)
			if err != nil {
				return err
			}
			if len(reply) == 0 {
				return nil
			}
			var out bytes.Buffer
			if err := json.Indent(&out, reply, "", "  "); err != nil {
				return fmt.Errorf("failed to format reply: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}

// ctlRequest maps a command line onto an IPC command and its data.
// Indexes are 1-based on the command line and 0-based on the wire.
func ctlRequest(name string, args []string) (ipc.CommandType, any, error) {
	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes exactly one argument", name)
		}
		return args[0], nil
	}
	index := func() (ipc.IndexRequest, error) {
		a, err := arg()
		if err != nil {
			return ipc.IndexRequest{}, err
		}
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 {
			return ipc.IndexRequest{}, fmt.Errorf("invalid position %q", a)
		}
		return ipc.IndexRequest{Index: n - 1}, nil
	}

	switch name {
	case "load":
		if len(args) == 0 {
			return "", nil, fmt.Errorf("load takes at least one path")
		}
		paths := make([]string, len(args))
		for i, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return "", nil, err
			}
			paths[i] = abs
		}
		return ipc.CmdLoad, ipc.LoadRequest{Paths: paths}, nil

	case "add":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		abs, err := filepath.Abs(a)
		if err != nil {
			return "", nil, err
		}
		return ipc.CmdAdd, ipc.AddRequest{Path: abs}, nil

	case "remove":
		req, err := index()
		return ipc.CmdRemove, req, err

	case "play":
		if len(args) == 0 {
			return ipc.CmdPlay, nil, nil
		}
		req, err := index()
		return ipc.CmdPlayIndex, req, err

	case "pause":
		return ipc.CmdPause, nil, nil
	case "resume":
		return ipc.CmdResume, nil, nil
	case "toggle":
		return ipc.CmdToggle, nil, nil
	case "stop":
		return ipc.CmdStop, nil, nil
	case "clear":
		return ipc.CmdClear, nil, nil
	case "next":
		return ipc.CmdNext, nil, nil
	case "prev", "previous":
		return ipc.CmdPrev, nil, nil

	case "seek":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		pos, err := parsePosition(a)
		if err != nil {
			return "", nil, err
		}
		return ipc.CmdSeek, ipc.SeekRequest{Position: pos.Milliseconds()}, nil

	case "volume":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(a, "%"), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid volume %q", a)
		}
		return ipc.CmdVolume, ipc.VolumeRequest{Level: pct / 100}, nil

	case "shuffle":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		switch a {
		case "on", "true":
			return ipc.CmdShuffle, ipc.ShuffleRequest{Enabled: true}, nil
		case "off", "false":
			return ipc.CmdShuffle, ipc.ShuffleRequest{Enabled: false}, nil
		}
		return "", nil, fmt.Errorf("shuffle takes on or off, got %q", a)

	case "repeat":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		return ipc.CmdRepeat, ipc.RepeatRequest{Mode: a}, nil

	case "sort":
		a, err := arg()
		if err != nil {
			return "", nil, err
		}
		return ipc.CmdSort, ipc.SortRequest{By: a}, nil

	case "status":
		return ipc.CmdStatus, nil, nil
	case "playlist":
		return ipc.CmdGetPlaylist, nil, nil
	case "frame":
		return ipc.CmdFrame, nil, nil
	}
	return "", nil, fmt.Errorf("unknown command %q", name)
}

// parsePosition accepts M:SS or a number of seconds.
func parsePosition(s string) (time.Duration, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 || secs > 59 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
