package cmd

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arunsworld/nursery"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/queue"
	"github.com/streambinder/youterm/util"
	cmdutil "github.com/streambinder/youterm/util/cmd"
)

const (
	routineTypeFeed int = iota
	routineTypeResolve
	routineTypePlay
)

var (
	routineSemaphores map[int](chan bool)
	routineQueues     map[int](chan interface{})
	unplayed          *leftovers
	errQuit           = errors.New("quit")
)

type stream struct {
	track *entity.Track
	url   string
}

func init() {
	cmdRoot.AddCommand(cmdPlay())
}

func cmdPlay() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [QUERY]",
		Short: "Play the queue, refilling it from discovery as it drains",
		Long:  "Play the queue, refilling it from discovery as it drains.\nWhile playing, type p to pause or resume, s to skip, l to like and q to quit.",
		PreRun: func(*cobra.Command, []string) {
			routineSemaphores = map[int](chan bool){
				routineTypeFeed: make(chan bool, 1),
				routineTypePlay: make(chan bool),
			}
			routineQueues = map[int](chan interface{}){
				routineTypeResolve: make(chan interface{}),
				routineTypePlay:    make(chan interface{}),
			}
			routineSemaphores[routineTypeFeed] <- true
			unplayed = new(leftovers)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdutil.Available(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if query := query(args); query != "" {
				var (
					strategy = getStrategy(cmd)
					limit    = util.ErrWrap(10)(cmd.Flags().GetInt("limit"))
				)
				tui.Lot("discover").Printf("%s (%s)", query, strategy)
				tracks, err := engine.Discover(ctx, query, strategy, limit)
				tui.Lot("discover").Close()
				if err != nil {
					return err
				}
				playlist.Seed(query)
				tui.Printf("%d tracks added to queue", playlist.Enqueue(tracks...))
			}
			if flag := cmd.Flags().Lookup("shuffle"); flag.Changed {
				var variety *queue.VarietyError
				if err := playlist.Shuffle(entity.ShuffleMode(flag.Value.String())); errors.As(err, &variety) {
					tui.AnchorPrintf("%d tracks could not be kept apart from the same artist", variety.Violations)
				}
			}

			var (
				player  = new(cmdutil.FFPlay)
				current = newSession()
			)
			err := nursery.RunConcurrentlyWithContext(ctx,
				routineFeed,
				routineResolve,
				routinePlay(player, current),
				routineControl(player, current, commands()),
			)
			if count := unplayed.requeue(); count > 0 {
				tui.Printf("%d tracks back in queue", count)
			}
			if err != nil && !errors.Is(err, errQuit) && ctx.Err() == nil {
				return err
			}
			tui.Printf("playback stopped")
			return nil
		},
	}
	strategyFlag(cmd, entity.Mixed)
	mode := modeValue("")
	cmd.Flags().IntP("limit", "l", 10, "Number of tracks to queue for the query")
	cmd.Flags().Var(&mode, "shuffle", "Shuffle mode to play with (sequential, smart, random)")
	return cmd
}

// routineFeed pulls tracks out of the queue, one ahead of the player
func routineFeed(ctx context.Context, ch chan error) {
	defer close(routineQueues[routineTypeResolve])
	for {
		select {
		case <-ctx.Done():
			return
		case <-routineSemaphores[routineTypeFeed]:
		}

		track, err := playlist.Next(ctx)
		if errors.Is(err, queue.ErrExhausted) {
			if ctx.Err() == nil {
				tui.Printf("queue exhausted")
			}
			return
		} else if err != nil {
			log.Debug().Err(err).Msg("queue draining")
		}

		select {
		case routineQueues[routineTypeResolve] <- track:
		case <-ctx.Done():
			unplayed.add(track)
			return
		}
	}
}

func routineResolve(ctx context.Context, ch chan error) {
	defer close(routineQueues[routineTypePlay])
	for event := range routineQueues[routineTypeResolve] {
		track := event.(*entity.Track)
		if ctx.Err() != nil {
			unplayed.add(track)
			continue
		}

		tui.Lot("resolve").Printf("%s", track.Title)
		url, err := ytdlp.Resolve(ctx, track.ID)
		tui.Lot("resolve").Wipe()
		if err != nil {
			if ctx.Err() != nil {
				unplayed.add(track)
				continue
			}
			tui.AnchorPrintf("cannot stream %s: %s", track.Title, err)
			ready()
			continue
		}

		select {
		case routineQueues[routineTypePlay] <- stream{track, url}:
		case <-ctx.Done():
			unplayed.add(track)
		}
	}
	tui.Lot("resolve").Close()
}

func routinePlay(player *cmdutil.FFPlay, current *session) nursery.ConcurrentJob {
	return func(ctx context.Context, ch chan error) {
		defer close(routineSemaphores[routineTypePlay])
		for event := range routineQueues[routineTypePlay] {
			item := event.(stream)
			if ctx.Err() != nil {
				unplayed.add(item.track)
				continue
			}
			ready()

			tui.Lot("play").Printf("%s [%s]", item.track.Title, duration(item.track.Duration))
			current.begin(item.track)
			if err := player.Play(ctx, item.url); err != nil {
				current.end()
				unplayed.add(item.track)
				ch <- err
				return
			}
			err := player.Wait()
			elapsed := current.end()
			tui.Lot("play").Wipe()

			switch {
			case ctx.Err() != nil:
				// interrupted: served again on next play
				unplayed.add(item.track)
			case err != nil:
				tui.AnchorPrintf("playback of %s failed: %s", item.track.Title, err)
			default:
				kind := entity.Played
				if store.Preferences().IsSkip(int(elapsed.Seconds()), item.track.Duration) {
					kind = entity.Skipped
				}
				playlist.Feedback(item.track, kind)
				tui.Printf("%s %s", kind, item.track.Title)
			}
		}
		tui.Lot("play").Close()
	}
}

// routineControl applies the commands typed while playing
func routineControl(player *cmdutil.FFPlay, current *session, commands <-chan string) nursery.ConcurrentJob {
	return func(ctx context.Context, ch chan error) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-routineSemaphores[routineTypePlay]:
				return
			case command, ok := <-commands:
				if !ok {
					commands = nil
					continue
				}
				switch strings.ToLower(strings.TrimSpace(command)) {
				case "":
				case "p", "pause":
					track, paused := current.toggle()
					if track == nil {
						continue
					}
					if paused {
						util.ErrSuppress(player.Pause())
						tui.Lot("play").Printf("%s (paused)", track.Title)
					} else {
						util.ErrSuppress(player.Resume())
						tui.Lot("play").Printf("%s [%s]", track.Title, duration(track.Duration))
					}
				case "s", "skip", "n", "next":
					util.ErrSuppress(player.Stop())
				case "l", "like":
					if track := current.track(); track != nil {
						playlist.Feedback(track, entity.Liked)
						tui.Printf("liked %s", track.Title)
					}
				case "q", "quit":
					ch <- errQuit
					return
				default:
					tui.Printf("p: pause/resume, s: skip, l: like, q: quit")
				}
			}
		}
	}
}

// ready lets the feed pull one more track
func ready() {
	select {
	case routineSemaphores[routineTypeFeed] <- true:
	default:
	}
}

// commands streams the lines typed on stdin, until it gets closed
func commands() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// leftovers collects the tracks pulled out of the queue but never played
type leftovers struct {
	lock   sync.Mutex
	tracks []*entity.Track
}

func (l *leftovers) add(track *entity.Track) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.tracks = append(l.tracks, track)
}

// requeue gives the tracks back to the queue, returning how many
func (l *leftovers) requeue() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	playlist.Requeue(l.tracks...)
	count := len(l.tracks)
	l.tracks = nil
	return count
}

// session tracks what is playing and for how long, pauses excluded
type session struct {
	lock     sync.Mutex
	now      func() time.Time
	current  *entity.Track
	started  time.Time
	pausedAt time.Time
	paused   time.Duration
}

func newSession() *session {
	return &session{now: time.Now}
}

func (s *session) begin(track *entity.Track) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.current, s.started, s.pausedAt, s.paused = track, s.now(), time.Time{}, 0
}

// end returns how long the track played
func (s *session) end() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	elapsed := s.elapsed()
	s.current = nil
	return elapsed
}

func (s *session) track() *entity.Track {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

// toggle pauses or resumes, returning the new paused state
func (s *session) toggle() (*entity.Track, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == nil {
		return nil, false
	}
	if s.pausedAt.IsZero() {
		s.pausedAt = s.now()
		return s.current, true
	}
	s.paused += s.now().Sub(s.pausedAt)
	s.pausedAt = time.Time{}
	return s.current, false
}

func (s *session) elapsed() time.Duration {
	end := s.now()
	if !s.pausedAt.IsZero() {
		end = s.pausedAt
	}
	return end.Sub(s.started) - s.paused
}
