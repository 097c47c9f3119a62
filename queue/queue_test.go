package queue

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/streambinder/youterm/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanhpk/randstr"
)

type call struct {
	query    string
	strategy entity.Strategy
}

type fakeDiscoverer struct {
	lock   sync.Mutex
	calls  []call
	tracks []*entity.Track
	err    error
	during func()
}

func (fake *fakeDiscoverer) Discover(_ context.Context, query string, strategy entity.Strategy, limit int) ([]*entity.Track, error) {
	fake.lock.Lock()
	fake.calls = append(fake.calls, call{query, strategy})
	fake.lock.Unlock()
	if fake.during != nil {
		fake.during()
	}
	if fake.err != nil {
		return nil, fake.err
	}
	if len(fake.tracks) > limit {
		return fake.tracks[:limit], nil
	}
	return fake.tracks, nil
}

func (fake *fakeDiscoverer) called() []call {
	fake.lock.Lock()
	defer fake.lock.Unlock()
	return append([]call(nil), fake.calls...)
}

type fakeHistory struct {
	lock     sync.Mutex
	affinity map[string]float64
	recent   map[string]struct{}
	events   []entity.Event
}

func (fake *fakeHistory) ArtistAffinity(artist string) float64 {
	return fake.affinity[artist]
}

func (fake *fakeHistory) RecentFingerprints(int) map[string]struct{} {
	return fake.recent
}

func (fake *fakeHistory) Record(event entity.Event) error {
	fake.lock.Lock()
	defer fake.lock.Unlock()
	fake.events = append(fake.events, event)
	return nil
}

type preferringHistory struct {
	fakeHistory
	prefs entity.Preferences
}

func (fake *preferringHistory) Preferences() entity.Preferences {
	return fake.prefs
}

func song(artist string) *entity.Track {
	title := randstr.String(10)
	return entity.NewTrack(randstr.String(11), artist+" - "+title, artist, 200, artist, title, entity.Studio)
}

func songs(artists ...string) []*entity.Track {
	tracks := make([]*entity.Track, len(artists))
	for i, artist := range artists {
		tracks[i] = song(artist)
	}
	return tracks
}

func ids(tracks []*entity.Track) []string {
	result := make([]string, len(tracks))
	for i, track := range tracks {
		result[i] = track.ID
	}
	return result
}

func queued(q *Queue) []*entity.Track {
	_, tracks := q.Tracks()
	return tracks
}

func TestPriorityFirst(t *testing.T) {
	var (
		q        = New(nil, nil, Config{RefillThreshold: 0, RefillLimit: 10, MinSeparation: 2, PlayedWindow: 10})
		urgent   = song("Urgent")
		urgenter = song("Urgenter")
	)
	q.Enqueue(songs("A", "B", "C", "D")...)
	q.EnqueuePriority(urgent)
	q.EnqueuePriority(urgenter)

	track, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, urgent, track)
	track, err = q.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, urgenter, track)
	track, err = q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", track.Artist)
}

func TestNextDrainingRefillsOnce(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	discoverer := &fakeDiscoverer{err: errors.New("offline")}
	var during State
	discoverer.during = func() { during = q.Status().State }
	q.discoverer = discoverer
	q.Enqueue(songs("A", "B")...)

	track, err := q.Next(context.Background())
	require.NotNil(t, track)
	assert.Equal(t, "A", track.Artist)
	assert.ErrorIs(t, err, ErrRefillStarved)
	assert.Len(t, discoverer.called(), 1)
	assert.Equal(t, Draining, during)

	status := q.Status()
	assert.Equal(t, Draining, status.State)
	assert.True(t, status.Starved)
	assert.Equal(t, 1, status.Main)
}

func TestNextDrainingRefills(t *testing.T) {
	discoverer := &fakeDiscoverer{tracks: songs("D1", "D2", "D3", "D4", "D5")}
	q := New(discoverer, nil, DefaultConfig())
	q.Enqueue(songs("A", "B")...)

	track, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", track.Artist)
	require.Len(t, discoverer.called(), 1)
	assert.Equal(t, call{"A", entity.Related}, discoverer.called()[0])

	status := q.Status()
	assert.Equal(t, Populated, status.State)
	assert.False(t, status.Starved)
	assert.Equal(t, 6, status.Main)
}

func TestNextExhausted(t *testing.T) {
	q := New(&fakeDiscoverer{err: errors.New("offline")}, nil, DefaultConfig())
	track, err := q.Next(context.Background())
	assert.Nil(t, track)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, Empty, q.Status().State)

	q = New(nil, nil, DefaultConfig())
	_, err = q.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNextExhaustedRefills(t *testing.T) {
	discoverer := &fakeDiscoverer{tracks: songs("A", "B", "C", "D")}
	q := New(discoverer, nil, DefaultConfig())
	q.Seed("queen")

	track, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", track.Artist)
	assert.Equal(t, []call{{"queen", entity.Mixed}}, discoverer.called())
}

func TestRefillPlan(t *testing.T) {
	discoverer := &fakeDiscoverer{err: errors.New("offline")}
	q := New(discoverer, nil, DefaultConfig())

	_, err := q.AutoRefill(context.Background())
	assert.ErrorIs(t, err, ErrRefillStarved)
	q.Seed("bohemian rhapsody")
	_, _ = q.AutoRefill(context.Background())
	q.EnqueuePriority(entity.NewTrack("x", "untitled", "", 0, "", "untitled", entity.Unknown))
	_, _ = q.Next(context.Background())
	_, _ = q.AutoRefill(context.Background())
	q.EnqueuePriority(song("Queen"))
	_, _ = q.Next(context.Background())

	assert.Equal(t, []call{
		{DefaultConfig().FallbackQuery, entity.Mixed},
		{"bohemian rhapsody", entity.Mixed},
		{"bohemian rhapsody", entity.Mixed}, // served track has no artist
		{"bohemian rhapsody", entity.Mixed},
		{"Queen", entity.Related},
	}, discoverer.called())
	assert.Equal(t, 5, q.Status().Refills)
}

func TestRefillFiltersRecent(t *testing.T) {
	var (
		candidates = songs("Recent", "Played", "Queued", "Fresh")
		history    = &fakeHistory{recent: map[string]struct{}{candidates[0].Fingerprint: {}}}
		discoverer = &fakeDiscoverer{tracks: candidates}
		q          = New(discoverer, history, DefaultConfig())
	)
	q.EnqueuePriority(candidates[1])
	q.Enqueue(candidates[2])

	track, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, candidates[1], track)
	assert.Equal(t, []string{"Queued", "Fresh"}, artists(queued(q)))

	added, err := q.AutoRefill(context.Background())
	assert.ErrorIs(t, err, ErrRefillStarved)
	assert.Zero(t, added)
	assert.True(t, q.Status().Starved)
}

func artists(tracks []*entity.Track) []string {
	result := make([]string, len(tracks))
	for i, track := range tracks {
		result[i] = track.Artist
	}
	return result
}

func TestRefillSeparation(t *testing.T) {
	a1, b1 := song("A"), song("B")
	discoverer := &fakeDiscoverer{tracks: []*entity.Track{song("A"), song("C"), song("A"), song("D"), song("B")}}
	q := New(discoverer, nil, DefaultConfig())
	q.Enqueue(a1, b1)

	added, err := q.AutoRefill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, added)
	assert.Equal(t, []string{"A", "B", "C", "A", "D", "B", "A"}, artists(queued(q)))
	assert.Zero(t, violations(queued(q), 2))
}

func TestRefillDropsUnplaceable(t *testing.T) {
	discoverer := &fakeDiscoverer{tracks: songs("A", "A", "A")}
	q := New(discoverer, nil, DefaultConfig())
	q.Enqueue(songs("B", "C")...)

	added, err := q.AutoRefill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Zero(t, violations(queued(q), 2))
}

func TestRecommendations(t *testing.T) {
	discoverer := &fakeDiscoverer{tracks: songs("D1", "D2", "D3")}
	q := New(discoverer, nil, DefaultConfig())
	q.Enqueue(songs("A", "B", "C", "E")...)
	before, beforeStatus := q.Snapshot(), q.Status()

	recommended, err := q.Recommendations(context.Background())
	require.NoError(t, err)
	assert.Len(t, recommended, 3)
	assert.Equal(t, before, q.Snapshot())
	assert.Equal(t, beforeStatus, q.Status())

	discoverer.err = errors.New("offline")
	_, err = q.Recommendations(context.Background())
	assert.Error(t, err)
	assert.Equal(t, beforeStatus, q.Status())
}

func TestSmartShuffleSeparation(t *testing.T) {
	var tracks []*entity.Track
	for _, artist := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		tracks = append(tracks, song(artist), song(artist))
	}
	for seed := int64(0); seed < 50; seed++ {
		q := New(nil, &fakeHistory{affinity: map[string]float64{"A": 1, "B": -1}}, DefaultConfig())
		q.random = rand.New(rand.NewSource(seed))
		q.Enqueue(tracks...)
		require.NoError(t, q.Shuffle(entity.Smart))
		assert.Zero(t, violations(queued(q), 2), "seed %d", seed)
		assert.ElementsMatch(t, ids(tracks), ids(queued(q)))
	}
}

func TestSmartShuffleAfterPlayed(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		q := New(nil, nil, DefaultConfig())
		q.random = rand.New(rand.NewSource(seed))
		q.Enqueue(song("A"))
		_, _ = q.Next(context.Background())
		q.Enqueue(songs("A", "B", "C", "D")...)

		require.NoError(t, q.Shuffle(entity.Smart), "seed %d", seed)
		assert.Zero(t, violations(append(q.Played(), queued(q)...), 2), "seed %d", seed)
	}

	q := New(nil, nil, DefaultConfig())
	q.EnqueuePriority(song("A"))
	q.Enqueue(songs("A", "A")...)
	var variety *VarietyError
	assert.ErrorAs(t, q.Shuffle(entity.Smart), &variety)
	assert.Equal(t, 2, variety.Violations)
}

func TestSmartShuffleAffinity(t *testing.T) {
	var (
		history = &fakeHistory{affinity: map[string]float64{"Liked": 1, "Hated": -1}}
		config  = DefaultConfig()
		first   int
	)
	config.MinSeparation = 0
	for seed := int64(0); seed < 200; seed++ {
		q := New(nil, history, config)
		q.random = rand.New(rand.NewSource(seed))
		q.Enqueue(songs("Hated", "Liked")...)
		require.NoError(t, q.Shuffle(entity.Smart))
		if queued(q)[0].Artist == "Liked" {
			first++
		}
	}
	assert.Greater(t, first, 140)
}

func TestSmartShuffleVariety(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	q.Enqueue(songs("A", "A", "A", "B")...)

	err := q.Shuffle(entity.Smart)
	assert.ErrorIs(t, err, ErrInsufficientVariety)
	var varietyErr *VarietyError
	require.ErrorAs(t, err, &varietyErr)
	assert.Equal(t, 2, varietyErr.Artists)
	assert.Equal(t, entity.Smart, q.Mode())
	assert.Len(t, queued(q), 4)
}

func TestShuffleSequential(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	tracks := songs("A", "B", "C", "D", "E", "F")
	q.Enqueue(tracks...)

	require.NoError(t, q.Shuffle(entity.Random))
	require.NoError(t, q.Shuffle(entity.Sequential))
	assert.Equal(t, ids(tracks), ids(queued(q)))
	assert.Error(t, q.Shuffle(entity.ShuffleMode("loud")))
}

func TestEnqueueSmart(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	require.NoError(t, q.Shuffle(entity.Smart))
	assert.Equal(t, 5, q.Enqueue(songs("A", "A", "B", "C", "D")...))
	assert.Equal(t, []string{"A", "B", "C", "A", "D"}, artists(queued(q)))

	duplicate := queued(q)[0]
	assert.Zero(t, q.Enqueue(duplicate))
}

func TestEditing(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	tracks := songs("A", "B", "C", "D")
	q.Enqueue(tracks...)
	urgent := song("U")
	q.EnqueuePriority(urgent)

	require.NoError(t, q.Move(tracks[3].ID, 0))
	assert.Equal(t, []string{"D", "A", "B", "C"}, artists(queued(q)))
	assert.Error(t, q.Move(tracks[3].ID, 10))
	assert.Error(t, q.Move("missing", 0))

	assert.True(t, q.Remove(urgent.ID))
	assert.True(t, q.Remove(tracks[0].ID))
	assert.False(t, q.Remove(tracks[0].ID))
	assert.Equal(t, []string{"D", "B", "C"}, artists(queued(q)))
	assert.Same(t, tracks[1], q.Find(tracks[1].ID))

	track, err := q.Next(context.Background())
	assert.Same(t, tracks[3], track)
	assert.ErrorIs(t, err, ErrRefillStarved)
	assert.NotNil(t, q.Find(tracks[3].ID))
	q.ClearPlayed()
	assert.Nil(t, q.Find(tracks[3].ID))
	q.Clear()
	assert.Equal(t, Empty, q.Status().State)
}

func TestRequeue(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	tracks := songs("A", "B", "C", "D")
	q.Enqueue(tracks...)
	urgent := song("U")
	q.EnqueuePriority(urgent)

	playing, _ := q.Next(context.Background())
	ahead, _ := q.Next(context.Background())
	require.Same(t, urgent, playing)
	require.Same(t, tracks[0], ahead)
	assert.Len(t, q.Played(), 2)

	q.Requeue(ahead, playing, nil)
	assert.Empty(t, q.Played())
	priority, main := q.Tracks()
	assert.Equal(t, []string{"U", "A"}, artists(priority))
	assert.Equal(t, []string{"B", "C", "D"}, artists(main))

	track, _ := q.Next(context.Background())
	assert.Same(t, urgent, track)
	assert.Equal(t, []string{"U"}, artists(q.Played()))
}

func TestFeedback(t *testing.T) {
	var (
		history = &fakeHistory{}
		q       = New(nil, history, DefaultConfig())
		track   = song("A")
	)
	q.Feedback(track, entity.Liked)
	q.Feedback(track, entity.Played)
	q.Feedback(nil, entity.Played)
	q.Close()

	require.Len(t, history.events, 2)
	assert.Equal(t, track.Fingerprint, history.events[0].Fingerprint)
}

func TestSnapshotPersistence(t *testing.T) {
	var (
		path = filepath.Join(t.TempDir(), "queue", "queue.json")
		q    = New(nil, nil, DefaultConfig())
	)
	tracks := songs("A", "B", "C")
	q.Enqueue(tracks...)
	q.EnqueuePriority(song("U"))
	q.Seed("queen")
	require.NoError(t, q.Shuffle(entity.Random))
	_, err := q.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, Save(path, q.Snapshot()))

	snapshot, err := Load(path)
	require.NoError(t, err)
	restored := New(nil, nil, DefaultConfig())
	require.NoError(t, restored.Restore(snapshot))

	assert.Equal(t, q.Status(), restored.Status())
	assert.Equal(t, ids(queued(q)), ids(queued(restored)))
	require.NoError(t, restored.Shuffle(entity.Sequential))
	assert.Equal(t, ids(tracks), ids(queued(restored)))

	empty, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, empty.Main)
}

func TestConcurrentUse(t *testing.T) {
	discoverer := &fakeDiscoverer{tracks: songs("D1", "D2", "D3", "D4")}
	q := New(discoverer, &fakeHistory{}, DefaultConfig())
	q.Enqueue(songs("A", "B", "C", "E", "F", "G")...)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if track, _ := q.Next(context.Background()); track != nil {
					q.Feedback(track, entity.Played)
				}
				q.EnqueuePriority(song("P"))
				_ = q.Status()
			}
		}()
	}
	wg.Wait()
	q.Close()
	assert.NotEqual(t, Empty, q.Status().State)
}

func TestAdvice(t *testing.T) {
	q := New(nil, nil, DefaultConfig())
	assert.Equal(t, []string{"Add some tracks to get started"}, q.Advice())

	q.Enqueue(songs("A", "B", "C")...)
	advice := q.Advice()
	assert.Len(t, advice, 2)
	assert.Contains(t, advice[0], "running low")
	assert.Contains(t, advice[1], "low quality")

	q.Clear()
	tracks := make([]*entity.Track, 12)
	for i := range tracks {
		tracks[i] = song("A")
		tracks[i].Quality = 0.9
	}
	q.Enqueue(tracks...)
	advice = q.Advice()
	assert.Len(t, advice, 1)
	assert.Contains(t, advice[0], "variety")

	q.Clear()
	for i := range tracks {
		tracks[i] = song(randstr.String(8))
		tracks[i].Quality = 0.9
	}
	q.Enqueue(tracks...)
	assert.Equal(t, []string{"Queue looks good"}, q.Advice())
}

func TestAdvicePreferredQuality(t *testing.T) {
	history := &preferringHistory{prefs: entity.DefaultPreferences()}
	history.prefs.PreferredQuality = 0.95
	q := New(nil, history, DefaultConfig())
	for _, track := range songs("A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L") {
		track.Quality = 0.9
		q.Enqueue(track)
	}
	advice := q.Advice()
	assert.Len(t, advice, 1)
	assert.Contains(t, advice[0], "low quality")

	history.prefs.PreferredQuality = 0.5
	assert.Equal(t, []string{"Queue looks good"}, q.Advice())
}

func TestEnqueueSmartCrowded(t *testing.T) {
	var buffer bytes.Buffer
	logger := log.Logger
	log.Logger = zerolog.New(&buffer)
	defer func() { log.Logger = logger }()

	q := New(nil, nil, DefaultConfig())
	require.NoError(t, q.Shuffle(entity.Smart))
	assert.Equal(t, 3, q.Enqueue(songs("A", "A", "A")...))
	assert.Contains(t, buffer.String(), `"tracks":2`)
	assert.Contains(t, buffer.String(), "without keeping artists apart")
}

func TestNextWaitsRunningRefill(t *testing.T) {
	var (
		started = make(chan struct{})
		release = make(chan struct{})
		once    sync.Once
	)
	discoverer := &fakeDiscoverer{
		tracks: songs("A", "B", "C", "D", "E"),
		during: func() {
			once.Do(func() { close(started) })
			<-release
		},
	}
	q := New(discoverer, nil, DefaultConfig())
	go func() {
		_, _ = q.AutoRefill(context.Background())
	}()
	<-started

	type served struct {
		track *entity.Track
		err   error
	}
	result := make(chan served, 1)
	go func() {
		track, err := q.Next(context.Background())
		result <- served{track, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	next := <-result
	require.NoError(t, next.err)
	assert.NotNil(t, next.track)
	assert.Len(t, discoverer.called(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	empty := New(&fakeDiscoverer{}, nil, DefaultConfig())
	empty.refilling = make(chan struct{})
	_, err := empty.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}
