package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/metadata"
	"github.com/streambinder/youterm/util"
)

func init() {
	cmdRoot.AddCommand(cmdDiscover())
}

func cmdDiscover() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover QUERY",
		Short: "Discover tracks matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				query    = query(args)
				strategy = getStrategy(cmd)
				limit    = util.ErrWrap(20)(cmd.Flags().GetInt("limit"))
				scores   = util.ErrWrap(false)(cmd.Flags().GetBool("scores"))
			)

			if util.ErrWrap(false)(cmd.Flags().GetBool("metadata")) {
				info := metadata.Extract(query, "")
				if info.Artist == "" {
					info.Artist = "-"
				}
				tui.Printf("title: %s", info.Title)
				tui.Printf("artist: %s", info.Artist)
				tui.Printf("type: %s", info.Type)
				return nil
			}

			tui.Lot("discover").Printf("%s (%s)", query, strategy)
			tracks, err := engine.Discover(cmd.Context(), query, strategy, limit)
			tui.Lot("discover").Close()
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				tui.Printf("no tracks found")
				return nil
			}
			for i, track := range tracks {
				printTrack(i+1, track, scores)
			}
			return nil
		},
	}
	strategyFlag(cmd, entity.Mixed)
	cmd.Flags().IntP("limit", "l", 20, "Number of tracks")
	cmd.Flags().Bool("scores", false, "Show quality scores")
	cmd.Flags().Bool("metadata", false, "Only show the metadata extracted from the query as a title")
	return cmd
}

func printTrack(position int, track *entity.Track, scores bool) {
	line := fmt.Sprintf("%2d. %s [%s]", position, track.Title, duration(track.Duration))
	if track.Channel != "" {
		line += " by " + track.Channel
	}
	if scores {
		line += fmt.Sprintf(" %.2f %s", track.Quality, strings.Repeat("*", int(track.Quality*5)))
	}
	tui.Printf("%s", line)
	tui.Printf("    %s", track.ID)
}

func duration(seconds int) string {
	if seconds <= 0 {
		return "??:??"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
