package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/vizplayer/internal/ipc"
)

func TestCtlRequest(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCmd  ipc.CommandType
		wantData any
	}{
		{"play", nil, ipc.CmdPlay, nil},
		{"play", []string{"3"}, ipc.CmdPlayIndex, ipc.IndexRequest{Index: 2}},
		{"remove", []string{"1"}, ipc.CmdRemove, ipc.IndexRequest{Index: 0}},
		{"prev", nil, ipc.CmdPrev, nil},
		{"previous", nil, ipc.CmdPrev, nil},
		{"toggle", nil, ipc.CmdToggle, nil},
		{"clear", nil, ipc.CmdClear, nil},
		{"seek", []string{"1:05"}, ipc.CmdSeek, ipc.SeekRequest{Position: 65_000}},
		{"seek", []string{"2.5"}, ipc.CmdSeek, ipc.SeekRequest{Position: 2_500}},
		{"volume", []string{"70%"}, ipc.CmdVolume, ipc.VolumeRequest{Level: 0.7}},
		{"shuffle", []string{"on"}, ipc.CmdShuffle, ipc.ShuffleRequest{Enabled: true}},
		{"shuffle", []string{"off"}, ipc.CmdShuffle, ipc.ShuffleRequest{Enabled: false}},
		{"repeat", []string{"all"}, ipc.CmdRepeat, ipc.RepeatRequest{Mode: "all"}},
		{"sort", []string{"artist"}, ipc.CmdSort, ipc.SortRequest{By: "artist"}},
		{"playlist", nil, ipc.CmdGetPlaylist, nil},
		{"status", nil, ipc.CmdStatus, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, data, err := ctlRequest(tt.name, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
			if req, ok := data.(ipc.VolumeRequest); ok {
				assert.InDelta(t, tt.wantData.(ipc.VolumeRequest).Level, req.Level, 1e-9)
				return
			}
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestCtlRequestMakesPathsAbsolute(t *testing.T) {
	_, data, err := ctlRequest("load", []string{"music", "/abs/album"})
	require.NoError(t, err)
	paths := data.(ipc.LoadRequest).Paths
	require.Len(t, paths, 2)
	assert.True(t, len(paths[0]) > len("music") && paths[0][0] == '/')
	assert.Equal(t, "/abs/album", paths[1])

	_, data, err = ctlRequest("add", []string{"/x/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, ipc.AddRequest{Path: "/x/a.mp3"}, data)
}

func TestCtlRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bogus", nil},
		{"load", nil},
		{"add", nil},
		{"remove", []string{"0"}},
		{"remove", []string{"x"}},
		{"play", []string{"1", "2"}},
		{"seek", []string{"1:75"}},
		{"seek", []string{"-3"}},
		{"volume", []string{"loud"}},
		{"shuffle", []string{"maybe"}},
		{"repeat", nil},
	}
	for _, tt := range tests {
		_, _, err := ctlRequest(tt.name, tt.args)
		assert.Error(t, err, "%s %v", tt.name, tt.args)
	}
}

func TestParsePosition(t *testing.T) {
	d, err := parsePosition("0:00")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	d, err = parsePosition("12:34")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Minute+34*time.Second, d)

	_, err = parsePosition("a:10")
	assert.Error(t, err)
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "short.mp3", shortenPath("short.mp3", 40))
	assert.Equal(t, "…7890", shortenPath("1234567890", 5))
}

func TestOptionsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	opts := &Options{}
	require.NoError(t, opts.resolve())
	assert.Contains(t, opts.SocketPath, "/tmp/vizplayer-")
	assert.Contains(t, opts.ConfigDir, "vizplayer")

	opts = &Options{SocketPath: "/run/x.sock", ConfigDir: "/etc/viz"}
	require.NoError(t, opts.resolve())
	assert.Equal(t, "/run/x.sock", opts.SocketPath)
	assert.Equal(t, "/etc/viz", opts.ConfigDir)
}

func TestRootCommandListsSubcommands(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())

	for _, sub := range []string{"play", "daemon", "scan", "ctl"} {
		assert.Contains(t, out.String(), sub)
	}
}
