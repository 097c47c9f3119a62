package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/util"
)

func init() {
	cmdRoot.AddCommand(cmdHistory())
}

func cmdHistory() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show listening history",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			var (
				artist  = util.ErrWrap("")(cmd.Flags().GetString("artist"))
				artists = util.ErrWrap(false)(cmd.Flags().GetBool("artists"))
				number  = util.ErrWrap(20)(cmd.Flags().GetInt("number"))
			)

			if artists {
				for i, stats := range store.Artists() {
					if i == number {
						break
					}
					stars := strings.Repeat("*", int(util.Clamp(stats.Affinity, 0, 1)*5))
					tui.Printf("%-30s %5.2f %-5s %d plays, %d skips, %d likes",
						util.Excerpt(stats.Artist, 30), stats.Affinity, stars, stats.Plays, stats.Skips, stats.Likes)
				}
				return
			}

			events := store.Events(artist)
			if len(events) == 0 {
				tui.Printf("no listening events")
				return
			}
			if len(events) > number {
				events = events[len(events)-number:]
			}
			for _, event := range events {
				title := event.Title
				if event.Artist != "" {
					title = event.Artist + " - " + title
				}
				tui.Printf("%s %-7s %s", event.Timestamp.Format("2006-01-02 15:04"), event.Kind, title)
			}
			if artist != "" {
				tui.Printf("affinity: %.2f", store.ArtistAffinity(artist))
			}
		},
	}
	cmd.Flags().StringP("artist", "a", "", "Only show events of an artist")
	cmd.Flags().Bool("artists", false, "Show artist preferences")
	cmd.Flags().IntP("number", "n", 20, "Number of entries to show")
	return cmd
}
