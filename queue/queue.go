// Package queue orders discovered tracks for playback, keeps artists
// apart and refills itself from discovery as it drains.
package queue

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streambinder/youterm/entity"
)

type State string

const (
	Empty     State = "empty"
	Populated State = "populated"
	Draining  State = "draining"
)

type Discoverer interface {
	Discover(ctx context.Context, query string, strategy entity.Strategy, limit int) ([]*entity.Track, error)
}

// History is what the queue needs from the listening history
type History interface {
	ArtistAffinity(artist string) float64
	RecentFingerprints(window int) map[string]struct{}
	Record(event entity.Event) error
}

// preferences is implemented by histories that also hold the user preferences
type preferences interface {
	Preferences() entity.Preferences
}

type Config struct {
	RefillThreshold int    `json:"refill_threshold"` // main tracks below which the queue drains
	RefillLimit     int    `json:"refill_limit"`     // tracks added at most per refill
	MinSeparation   int    `json:"min_separation"`   // tracks between two of the same artist
	PlayedWindow    int    `json:"played_window"`    // served tracks never re-added by refill
	FallbackQuery   string `json:"fallback_query"`   // refill seed when nothing else is known
}

func DefaultConfig() Config {
	return Config{
		RefillThreshold: 3,
		RefillLimit:     10,
		MinSeparation:   2,
		PlayedWindow:    50,
		FallbackQuery:   "top hits",
	}
}

func (c Config) Validate() error {
	switch {
	case c.RefillThreshold < 0:
		return errors.New("refill threshold must not be negative")
	case c.RefillLimit <= 0:
		return errors.New("refill limit must be positive")
	case c.MinSeparation < 0:
		return errors.New("artist separation must not be negative")
	case c.PlayedWindow < 0:
		return errors.New("played window must not be negative")
	}
	return nil
}

const (
	lowVariety = 0.3 // distinct artists per main track
	shortQueue = 10
	longQueue  = 100
)

// entry remembers the discovery order of a main sequence track
type entry struct {
	track *entity.Track
	seq   uint64
}

type Queue struct {
	lock       sync.Mutex
	discoverer Discoverer
	history    History
	config     Config
	priority   []*entity.Track
	main       []entry
	played     []*entity.Track // most recent last
	mode       entity.ShuffleMode
	seed       string
	state      State
	starved    bool
	refilling  chan struct{} // closed once the running refill ends
	refills    int
	seq        uint64
	random     *rand.Rand
	pending    sync.WaitGroup
}

type Status struct {
	State    State              `json:"state"`
	Mode     entity.ShuffleMode `json:"mode"`
	Priority int                `json:"priority"`
	Main     int                `json:"main"`
	Played   int                `json:"played"`
	Starved  bool               `json:"starved"`
	Seed     string             `json:"seed,omitempty"`
	Refills  int                `json:"refills"`
}

// New builds an empty queue; discoverer and history may be nil,
// the queue then never refills or weighs artists
func New(discoverer Discoverer, history History, config Config) *Queue {
	return &Queue{
		discoverer: discoverer,
		history:    history,
		config:     config,
		mode:       entity.Sequential,
		state:      Empty,
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (q *Queue) Status() Status {
	q.lock.Lock()
	defer q.lock.Unlock()
	return Status{
		State:    q.state,
		Mode:     q.mode,
		Priority: len(q.priority),
		Main:     len(q.main),
		Played:   len(q.played),
		Starved:  q.starved,
		Seed:     q.seed,
		Refills:  q.refills,
	}
}

func (q *Queue) Mode() entity.ShuffleMode {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.mode
}

// Seed sets the query refills fall back to when
// no recently played artist is known
func (q *Queue) Seed(query string) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.seed = query
}

// Tracks returns a copy of the priority and main sequences
func (q *Queue) Tracks() (priority, main []*entity.Track) {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]*entity.Track(nil), q.priority...), q.tracks()
}

// Played returns the played window, most recent last
func (q *Queue) Played() []*entity.Track {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]*entity.Track(nil), q.played...)
}

// Find looks for a track by id among queued and recently played ones
func (q *Queue) Find(id string) *entity.Track {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, track := range q.sequence() {
		if track.ID == id {
			return track
		}
	}
	return nil
}

// Enqueue appends tracks to the main sequence, skipping the ones already
// queued. In smart mode tracks are placed keeping artists apart where possible.
func (q *Queue) Enqueue(tracks ...*entity.Track) int {
	q.lock.Lock()
	defer q.lock.Unlock()

	fresh := q.fresh(tracks, nil)
	if q.mode == entity.Smart {
		placed, rest := arrange(q.sequence(), fresh, q.config.MinSeparation)
		if len(rest) > 0 {
			log.Warn().Int("tracks", len(rest)).Int("separation", q.config.MinSeparation).
				Msg("tracks queued without keeping artists apart")
		}
		fresh = append(placed, rest...)
	}
	q.push(fresh...)
	q.updateState()
	return len(fresh)
}

// EnqueuePriority queues a track to be served before the
// main sequence, after previous priority tracks
func (q *Queue) EnqueuePriority(track *entity.Track) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.priority = append(q.priority, track)
	q.updateState()
}

// Requeue puts back tracks that were served but never played: they go
// ahead of every priority track, in the order they were served, and
// leave the played window
func (q *Queue) Requeue(tracks ...*entity.Track) {
	q.lock.Lock()
	defer q.lock.Unlock()
	position := map[*entity.Track]int{}
	for i, track := range q.played {
		position[track] = i
	}
	requeued := make([]*entity.Track, 0, len(tracks))
	for _, track := range tracks {
		if track != nil {
			requeued = append(requeued, track)
		}
	}
	sort.SliceStable(requeued, func(i, j int) bool {
		return rank(position, requeued[i], len(q.played)) < rank(position, requeued[j], len(q.played))
	})

	played := q.played[:0:0]
	for _, track := range q.played {
		if !slices.Contains(requeued, track) {
			played = append(played, track)
		}
	}
	q.played = played
	q.priority = append(requeued, q.priority...)
	q.updateState()
}

func rank(position map[*entity.Track]int, track *entity.Track, fallback int) int {
	if i, ok := position[track]; ok {
		return i
	}
	return fallback
}

// Next serves the next track, priority ones first. When the main sequence
// drops below the refill threshold a refill runs before returning: if it
// cannot add anything the track comes along ErrRefillStarved.
func (q *Queue) Next(ctx context.Context) (*entity.Track, error) {
	q.lock.Lock()
	track := q.pop()
	refilled := false
	if track == nil {
		q.lock.Unlock()
		if _, err := q.refill(ctx, true); err != nil {
			log.Debug().Err(err).Msg("refill of exhausted queue failed")
		}
		refilled = true
		q.lock.Lock()
		if track = q.pop(); track == nil {
			q.state = Empty
			q.lock.Unlock()
			return nil, ErrExhausted
		}
	}

	q.played = append(q.played, track)
	if excess := len(q.played) - q.config.PlayedWindow; excess > 0 {
		q.played = append([]*entity.Track(nil), q.played[excess:]...)
	}
	q.updateState()
	draining := q.state != Populated
	q.lock.Unlock()

	if draining && !refilled {
		if _, err := q.refill(ctx, false); err != nil {
			return track, err
		}
	}
	return track, nil
}

// AutoRefill appends discovered tracks, related to the last served artist or
// else to the seed query, leaving out anything recently served or queued
func (q *Queue) AutoRefill(ctx context.Context) (int, error) {
	return q.refill(ctx, false)
}

// Recommendations previews what a refill would add, without touching the queue
func (q *Queue) Recommendations(ctx context.Context) ([]*entity.Track, error) {
	q.lock.Lock()
	query, strategy := q.plan()
	q.lock.Unlock()

	candidates, err := q.discover(ctx, query, strategy)
	if err != nil {
		return nil, err
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	placed, _ := arrange(q.sequence(), q.fresh(candidates, q.recent()), q.config.MinSeparation)
	return truncate(placed, q.config.RefillLimit), nil
}

// refill runs one refill at a time: a concurrent call returns right away,
// or once the running refill ends if wait is set
func (q *Queue) refill(ctx context.Context, wait bool) (int, error) {
	q.lock.Lock()
	if running := q.refilling; running != nil {
		q.lock.Unlock()
		if !wait {
			return 0, nil
		}
		select {
		case <-running:
			return 0, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	done := make(chan struct{})
	q.refilling = done
	q.refills++
	query, strategy := q.plan()
	q.lock.Unlock()

	log.Debug().Str("query", query).Str("strategy", string(strategy)).Msg("refilling")
	candidates, err := q.discover(ctx, query, strategy)

	q.lock.Lock()
	defer q.lock.Unlock()
	defer close(done)
	q.refilling = nil
	if err != nil {
		q.starve()
		return 0, starved(err)
	}

	placed, _ := arrange(q.sequence(), q.fresh(candidates, q.recent()), q.config.MinSeparation)
	placed = truncate(placed, q.config.RefillLimit)
	if len(placed) == 0 {
		q.starve()
		return 0, starved(nil)
	}
	q.push(placed...)
	q.starved = false
	q.state = Populated
	return len(placed), nil
}

func (q *Queue) discover(ctx context.Context, query string, strategy entity.Strategy) ([]*entity.Track, error) {
	if q.discoverer == nil {
		return nil, errors.New("no discovery available")
	}
	// ask for more than needed, part gets filtered out
	return q.discoverer.Discover(ctx, query, strategy, q.config.RefillLimit*2)
}

// plan picks what to refill with: related material of the last served
// artist, otherwise a mixed discovery of the seed
func (q *Queue) plan() (string, entity.Strategy) {
	for i := len(q.played) - 1; i >= 0; i-- {
		if q.played[i].HasArtist() {
			return q.played[i].Artist, entity.Related
		}
	}
	if q.seed != "" {
		return q.seed, entity.Mixed
	}
	return q.config.FallbackQuery, entity.Mixed
}

func (q *Queue) starve() {
	q.starved = true
	if len(q.priority)+len(q.main) == 0 {
		q.state = Empty
	} else {
		q.state = Draining
	}
}

// recent collects the fingerprints refills must not bring back
func (q *Queue) recent() map[string]struct{} {
	recent := map[string]struct{}{}
	if q.history != nil {
		for fingerprint := range q.history.RecentFingerprints(q.config.PlayedWindow) {
			recent[fingerprint] = struct{}{}
		}
	}
	for _, track := range q.played {
		recent[track.Fingerprint] = struct{}{}
	}
	return recent
}

// fresh filters out tracks already queued, excluded or repeated
func (q *Queue) fresh(tracks []*entity.Track, exclude map[string]struct{}) []*entity.Track {
	seen := map[string]bool{}
	for _, track := range q.priority {
		seen[track.Fingerprint] = true
	}
	for _, entry := range q.main {
		seen[entry.track.Fingerprint] = true
	}
	fresh := make([]*entity.Track, 0, len(tracks))
	for _, track := range tracks {
		if _, excluded := exclude[track.Fingerprint]; excluded || seen[track.Fingerprint] {
			continue
		}
		seen[track.Fingerprint] = true
		fresh = append(fresh, track)
	}
	return fresh
}

func (q *Queue) pop() *entity.Track {
	if len(q.priority) > 0 {
		track := q.priority[0]
		q.priority = q.priority[1:]
		return track
	}
	if len(q.main) > 0 {
		track := q.main[0].track
		q.main = q.main[1:]
		return track
	}
	return nil
}

func (q *Queue) push(tracks ...*entity.Track) {
	for _, track := range tracks {
		q.main = append(q.main, entry{track, q.seq})
		q.seq++
	}
}

func (q *Queue) updateState() {
	switch {
	case len(q.priority)+len(q.main) == 0:
		q.state = Empty
	case len(q.main) < q.config.RefillThreshold:
		q.state = Draining
	default:
		q.state = Populated
	}
}

func (q *Queue) tracks() []*entity.Track {
	tracks := make([]*entity.Track, len(q.main))
	for i, entry := range q.main {
		tracks[i] = entry.track
	}
	return tracks
}

// sequence is everything in serving order, played ones included
func (q *Queue) sequence() []*entity.Track {
	sequence := make([]*entity.Track, 0, len(q.played)+len(q.priority)+len(q.main))
	sequence = append(sequence, q.played...)
	sequence = append(sequence, q.priority...)
	return append(sequence, q.tracks()...)
}

// Remove drops a queued track, reporting whether it was found
func (q *Queue) Remove(id string) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	defer q.updateState()
	for i, track := range q.priority {
		if track.ID == id {
			q.priority = append(q.priority[:i:i], q.priority[i+1:]...)
			return true
		}
	}
	for i, entry := range q.main {
		if entry.track.ID == id {
			q.main = append(q.main[:i:i], q.main[i+1:]...)
			return true
		}
	}
	return false
}

// Move places a main sequence track at the given position
func (q *Queue) Move(id string, position int) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	from := -1
	for i, entry := range q.main {
		if entry.track.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return errors.New("track " + id + " not queued")
	}
	if position < 0 || position >= len(q.main) {
		return errors.New("position out of range")
	}
	moved := q.main[from]
	main := append(q.main[:from:from], q.main[from+1:]...)
	q.main = append(main[:position:position], append([]entry{moved}, main[position:]...)...)
	return nil
}

// Clear empties both sequences, the played window is kept
func (q *Queue) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.priority, q.main = nil, nil
	q.starved = false
	q.state = Empty
}

func (q *Queue) ClearPlayed() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.played = nil
}

// Feedback records a listening event without waiting for it
// to be persisted: failures are only logged
func (q *Queue) Feedback(track *entity.Track, kind entity.EventKind) {
	if q.history == nil || track == nil {
		return
	}
	event := entity.NewEvent(track, kind)
	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		if err := q.history.Record(event); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("cannot record listening event")
		}
	}()
}

// Close waits for pending feedback to be recorded
func (q *Queue) Close() {
	q.pending.Wait()
}

func truncate(tracks []*entity.Track, limit int) []*entity.Track {
	if len(tracks) > limit {
		return tracks[:limit]
	}
	return tracks
}

// Advice lists hints about the queue health
func (q *Queue) Advice() []string {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.main) == 0 && len(q.priority) == 0 {
		if q.starved {
			return []string{"Discovery found nothing new, try seeding the queue with another query"}
		}
		return []string{"Add some tracks to get started"}
	}

	var (
		advice  []string
		artists = map[string]bool{}
		quality float64
	)
	for _, entry := range q.main {
		if entry.track.HasArtist() {
			artists[entry.track.ArtistKey()] = true
		}
		quality += entry.track.Quality
	}
	if len(q.main) > 0 && float64(len(artists))/float64(len(q.main)) < lowVariety {
		advice = append(advice, "Consider adding more variety, many tracks come from the same artists")
	}
	if len(q.main) < shortQueue {
		advice = append(advice, "Queue is running low, consider adding more tracks")
	} else if len(q.main) > longQueue {
		advice = append(advice, "Queue is very long, consider trimming some tracks")
	}
	if len(q.main) > 0 && quality/float64(len(q.main)) < q.preferredQuality() {
		advice = append(advice, "Queue holds many low quality tracks, consider filtering")
	}
	if q.starved {
		advice = append(advice, "Last refill found nothing new, try seeding the queue with another query")
	}
	if len(advice) == 0 {
		return []string{"Queue looks good"}
	}
	return advice
}

// preferredQuality is the average quality below which the queue is advised
// to be filtered, from the user preferences when the history holds them
func (q *Queue) preferredQuality() float64 {
	if source, ok := q.history.(preferences); ok {
		return source.Preferences().PreferredQuality
	}
	return entity.DefaultPreferences().PreferredQuality
}
