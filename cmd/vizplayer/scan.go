package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/vizplayer/internal/metadata"
	"github.com/austinkregel/local-media/vizplayer/internal/scanner"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

func newScanCmd(opts *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <folder>...",
		Short: "List the playable tracks under one or more folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupConsoleLogging(opts.Verbose)

			sc := scanner.NewScanner(metadata.NewTagReader())
			res, err := sc.Scan(cmd.Context(), args...)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			renderTracks(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the scan result as JSON")
	return cmd
}

func renderTracks(res scanner.Result) {
	if len(res.Tracks) == 0 {
		fmt.Println("No audio files found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Artist", "Album", "File"})

	for i, track := range res.Tracks {
		color := text.Colors{}
		if track.Metadata.Artist == types.UnknownArtist {
			color = text.Colors{text.FgHiBlack}
		}
		t.AppendRow(table.Row{
			i + 1,
			track.Name(),
			color.Sprint(track.Metadata.Artist),
			color.Sprint(track.Metadata.Album),
			shortenPath(filepath.Base(track.Path), 40),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d tracks", len(res.Tracks)), "", "", res.Elapsed.Round(time.Millisecond)})
	t.Render()
}

func shortenPath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	return "…" + string(r[len(r)-maxLen+1:])
}
