package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/queue"
	"github.com/streambinder/youterm/util"
)

func init() {
	cmdRoot.AddCommand(cmdQueue())
}

func cmdQueue() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the playback queue",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		cmdQueueStatus(),
		cmdQueueAdd(),
		cmdQueuePriority(),
		cmdQueueShuffle(),
		cmdQueueClear(),
		cmdQueueNext(),
		cmdQueueRefill(),
		cmdQueueRecommendations(),
		cmdQueueAdvice(),
		cmdQueueRemove(),
		cmdQueueMove(),
	)
	return cmd
}

func cmdQueueStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status and content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				status         = playlist.Status()
				limit          = util.ErrWrap(20)(cmd.Flags().GetInt("number"))
				priority, main = playlist.Tracks()
			)
			tui.Printf("state: %s", status.State)
			tui.Printf("shuffle: %s", status.Mode)
			if status.Seed != "" {
				tui.Printf("seed: %s", status.Seed)
			}
			tui.Printf("tracks: %d priority, %d main, %d played", status.Priority, status.Main, status.Played)
			if status.Starved {
				tui.AnchorPrintf("last refill found nothing new")
			}
			for i, track := range append(priority, main...) {
				if i == limit {
					tui.Printf("    ...")
					break
				}
				marker := ' '
				if i < len(priority) {
					marker = '!'
				}
				tui.Printf("%c%2d. %s [%s] %s", marker, i+1, track.Title, duration(track.Duration), track.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntP("number", "n", 20, "Number of queued tracks to list")
	return cmd
}

func cmdQueueAdd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add QUERY",
		Short: "Discover tracks and queue them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				query    = query(args)
				strategy = getStrategy(cmd)
				limit    = util.ErrWrap(10)(cmd.Flags().GetInt("limit"))
				priority = util.ErrWrap(false)(cmd.Flags().GetBool("priority"))
			)

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

			playlist.Seed(query)
			if priority {
				for _, track := range tracks {
					playlist.EnqueuePriority(track)
				}
				tui.Printf("%d tracks added to priority queue", len(tracks))
				return nil
			}
			tui.Printf("%d tracks added to queue", playlist.Enqueue(tracks...))
			return nil
		},
	}
	strategyFlag(cmd, entity.Mixed)
	cmd.Flags().IntP("limit", "l", 10, "Number of tracks to add")
	cmd.Flags().BoolP("priority", "p", false, "Add to priority queue")
	return cmd
}

func cmdQueuePriority() *cobra.Command {
	return &cobra.Command{
		Use:   "priority QUERY",
		Short: "Queue the best match of a query to be played next",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := query(args)
			if track := playlist.Find(query); track != nil {
				playlist.Remove(track.ID)
				playlist.EnqueuePriority(track)
				tui.Printf("%s moved to priority queue", track.Title)
				return nil
			}

			tracks, err := engine.Discover(cmd.Context(), query, entity.Direct, 1)
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				tui.Printf("no tracks found")
				return nil
			}
			playlist.EnqueuePriority(tracks[0])
			tui.Printf("%s added to priority queue", tracks[0].Title)
			return nil
		},
	}
}

func cmdQueueShuffle() *cobra.Command {
	return &cobra.Command{
		Use:       "shuffle MODE",
		Short:     "Set the shuffle mode and reorder the queue",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(entity.Sequential), string(entity.Smart), string(entity.Random)},
		RunE: func(_ *cobra.Command, args []string) error {
			var mode modeValue
			if err := mode.Set(args[0]); err != nil {
				return err
			}

			var variety *queue.VarietyError
			if err := playlist.Shuffle(entity.ShuffleMode(mode)); errors.As(err, &variety) {
				tui.AnchorPrintf("%d tracks could not be kept apart from the same artist", variety.Violations)
			} else if err != nil {
				return err
			}

			prefs := store.Preferences()
			prefs.ShuffleMode = entity.ShuffleMode(mode)
			if err := store.SetPreferences(prefs); err != nil {
				log.Warn().Err(err).Msg("shuffle mode not saved in preferences")
			}
			tui.Printf("shuffle mode set to %s", mode.String())
			return nil
		},
	}
}

func cmdQueueClear() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if util.ErrWrap(false)(cmd.Flags().GetBool("played")) {
				playlist.ClearPlayed()
				tui.Printf("played tracks cleared")
				return nil
			}
			playlist.Clear()
			playlist.ClearPlayed()
			tui.Printf("queue cleared")
			return nil
		},
	}
	cmd.Flags().Bool("played", false, "Only clear the played tracks")
	return cmd
}

func cmdQueueNext() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Pop the next track out of the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			track, err := playlist.Next(cmd.Context())
			if errors.Is(err, queue.ErrExhausted) {
				tui.Printf("queue exhausted")
				return nil
			} else if errors.Is(err, queue.ErrRefillStarved) {
				tui.AnchorPrintf("queue is draining: %s", err)
			} else if err != nil {
				return err
			}
			printTrack(1, track, false)
			return nil
		},
	}
}

func cmdQueueRefill() *cobra.Command {
	return &cobra.Command{
		Use:   "refill",
		Short: "Append discovered tracks related to what played last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tui.Lot("refill").Printf("discovering")
			added, err := playlist.AutoRefill(cmd.Context())
			tui.Lot("refill").Close()
			if errors.Is(err, queue.ErrRefillStarved) {
				tui.AnchorPrintf("%s", err)
				return nil
			} else if err != nil {
				return err
			}
			tui.Printf("%d tracks added to queue", added)
			return nil
		},
	}
}

func cmdQueueRecommendations() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommendations",
		Short: "Preview what the next refill would add",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tui.Lot("discover").Printf("recommendations")
			tracks, err := playlist.Recommendations(cmd.Context())
			tui.Lot("discover").Close()
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				tui.Printf("nothing new to recommend")
				return nil
			}
			scores := util.ErrWrap(false)(cmd.Flags().GetBool("scores"))
			for i, track := range tracks {
				printTrack(i+1, track, scores)
			}
			return nil
		},
	}
	cmd.Flags().Bool("scores", false, "Show quality scores")
	return cmd
}

func cmdQueueAdvice() *cobra.Command {
	return &cobra.Command{
		Use:   "advice",
		Short: "Show hints about the queue health",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			for i, advice := range playlist.Advice() {
				tui.Printf("%d. %s", i+1, advice)
			}
		},
	}
}

func cmdQueueRemove() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a track from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if !playlist.Remove(args[0]) {
				return fmt.Errorf("track %s not queued", args[0])
			}
			tui.Printf("%s removed", args[0])
			return nil
		},
	}
}

func cmdQueueMove() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID POSITION",
		Short: "Move a queued track to another position (starting at 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			if err := playlist.Move(args[0], position-1); err != nil {
				return err
			}
			tui.Printf("%s moved to position %d", args[0], position)
			return nil
		},
	}
}
