package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/entity"
)

func init() {
	cmdRoot.AddCommand(cmdLike())
}

func cmdLike() *cobra.Command {
	return &cobra.Command{
		Use:   "like [ID]",
		Short: "Like a queued or recently played track (the last played one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var track *entity.Track
			if len(args) > 0 {
				track = playlist.Find(args[0])
			} else if played := playlist.Played(); len(played) > 0 {
				track = played[len(played)-1]
			}
			if track == nil {
				return fmt.Errorf("no such track in queue or recently played")
			}
			if err := store.Record(entity.NewEvent(track, entity.Liked)); err != nil {
				return err
			}
			tui.Printf("liked %s", track.Title)
			return nil
		},
	}
}
