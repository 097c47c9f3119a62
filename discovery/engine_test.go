package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/provider"
	"github.com/streambinder/youterm/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanhpk/randstr"
)

type fakeProvider struct {
	lock      sync.Mutex
	responses map[string][]provider.Result
	queries   []string
	block     bool
}

func (fake *fakeProvider) Search(ctx context.Context, query string, limit int) ([]provider.Result, error) {
	fake.lock.Lock()
	fake.queries = append(fake.queries, query)
	fake.lock.Unlock()

	if fake.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	results, ok := fake.responses[query]
	if !ok {
		return nil, &provider.Error{Query: query, Err: errors.New("unreachable")}
	}
	if len(results) == 0 {
		return nil, &provider.Error{Query: query, Err: provider.ErrNoResults}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (fake *fakeProvider) searched() []string {
	fake.lock.Lock()
	defer fake.lock.Unlock()
	return append([]string(nil), fake.queries...)
}

func result(title, channel string, duration int) provider.Result {
	return provider.Result{ID: randstr.String(11), Title: title, Channel: channel, Duration: duration}
}

func engine(responses map[string][]provider.Result) (*Engine, *fakeProvider) {
	fake := &fakeProvider{responses: responses}
	return New(fake, quality.New(quality.DefaultConfig()), nil, DefaultConfig()), fake
}

var bohemian = []provider.Result{
	result("Queen - Bohemian Rhapsody (Official Video Remastered)", "Queen Official", 355),
	result("Queen – Bohemian Rhapsody", "QueenVEVO", 358),
	result("Bohemian Rhapsody (Acoustic Cover)", "Acoustic Covers", 200),
	result("Queen - Bohemian Rhapsody (Live Aid 1985)", "Queen Official", 370),
	result("Panic! At The Disco - Bohemian Rhapsody", "Fueled By Ramen", 367),
	result("Bohemian Rhapsody #shorts", "randomguy", 45),
	result("Queen - Don't Stop Me Now", "Queen Official", 210),
	result("Queen - Killer Queen", "Queen Official", 180),
	result("Queen - Somebody to Love", "Queen Official", 300),
	result("Queen - Under Pressure", "Queen Official", 248),
	result("Queen - Radio Ga Ga", "Queen Official", 349),
}

func TestDiscoverDirect(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{"Bohemian Rhapsody": bohemian})

	tracks, err := discoverer.Discover(context.Background(), "Bohemian Rhapsody", entity.Direct, 5)
	require.NoError(t, err)
	require.NotEmpty(t, tracks)
	assert.LessOrEqual(t, len(tracks), 5)

	fingerprints := map[string]bool{}
	for i, track := range tracks {
		assert.GreaterOrEqual(t, track.Quality, DefaultConfig().Floor)
		assert.Equal(t, entity.Direct, track.Strategy)
		assert.False(t, fingerprints[track.Fingerprint], track.Fingerprint)
		fingerprints[track.Fingerprint] = true
		if i > 0 {
			assert.GreaterOrEqual(t, tracks[i-1].Quality, track.Quality)
			if tracks[i-1].Quality == track.Quality {
				assert.Less(t, tracks[i-1].Rank, track.Rank)
			}
		}
	}
	assert.Equal(t, bohemian[0].ID, tracks[0].ID)
	assert.Equal(t, "Queen", tracks[0].Artist)
}

func TestDiscoverDirectThin(t *testing.T) {
	discoverer, fake := engine(map[string][]provider.Result{
		"hurt":          {result("Johnny Cash - Hurt", "Johnny Cash", 218)},
		"hurt official": {result("Nine Inch Nails - Hurt (Official Video)", "NineInchNailsVEVO", 373)},
	})

	tracks, err := discoverer.Discover(context.Background(), "hurt", entity.Direct, 5)
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, []string{"hurt", "hurt official"}, fake.searched())
}

func TestDiscoverMixedUnavailable(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{})

	tracks, err := discoverer.Discover(context.Background(), "Bohemian Rhapsody", entity.Mixed, 5)
	assert.Nil(t, tracks)
	assert.ErrorIs(t, err, ErrUnavailable)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Len(t, unavailable.Causes, 3)
	assert.Equal(t, entity.Mixed, unavailable.Strategy)

	var providerErr *provider.Error
	assert.ErrorAs(t, err, &providerErr)
}

func TestDiscoverEmptyIsUnavailable(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{"nothing": {}})

	_, err := discoverer.Discover(context.Background(), "nothing", entity.Direct, 5)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, provider.ErrNoResults)
}

func TestDiscoverMixedPartialFailure(t *testing.T) {
	// only the artist strategy gets an answer
	discoverer, fake := engine(map[string][]provider.Result{
		"Bohemian Rhapsody official": bohemian[:2],
	})

	tracks, err := discoverer.Discover(context.Background(), "Bohemian Rhapsody", entity.Mixed, 5)
	require.NoError(t, err)
	require.NotEmpty(t, tracks)
	assert.Equal(t, entity.Artist, tracks[0].Strategy)
	assert.Contains(t, fake.searched(), "Bohemian Rhapsody songs")
}

func TestDiscoverMixedInterleaves(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{
		"queen":          {result("Queen - Killer Queen", "Queen Official", 180)},
		"queen official": {result("Queen - Under Pressure", "Queen Official", 248)},
	})

	tracks, err := discoverer.Discover(context.Background(), "queen", entity.Mixed, 10)
	require.NoError(t, err)
	strategies := map[entity.Strategy]bool{}
	for _, track := range tracks {
		strategies[track.Strategy] = true
	}
	assert.True(t, strategies[entity.Direct])
	assert.True(t, strategies[entity.Artist])
}

func TestDiscoverCancellation(t *testing.T) {
	var (
		fake        = &fakeProvider{block: true}
		discoverer  = New(fake, quality.New(quality.DefaultConfig()), nil, DefaultConfig())
		ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
		done        = make(chan error, 1)
	)
	defer cancel()

	go func() {
		_, err := discoverer.Discover(ctx, "Bohemian Rhapsody", entity.Mixed, 5)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not honor cancellation")
	}
}

func TestDiscoverArtistPenalty(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{
		"queen official": {
			result("Muse - Uprising", "Muse", 300),
			result("Queen - Killer Queen", "Queen Official", 180),
		},
	})

	tracks, err := discoverer.Discover(context.Background(), "queen", entity.Artist, 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Queen", tracks[0].Artist)
	assert.Equal(t, "Muse", tracks[1].Artist)
	assert.InDelta(t, tracks[0].Quality-DefaultConfig().ArtistMismatchPenalty, tracks[1].Quality, 1e-9)
}

func TestDiscoverRelatedArtist(t *testing.T) {
	discoverer, fake := engine(map[string][]provider.Result{
		"bohemian rhapsody":  bohemian[:1],
		"Queen":              {result("Queen - Killer Queen", "Queen Official", 180)},
		"artists like Queen": {result("David Bowie - Starman", "David Bowie", 250)},
	})

	tracks, err := discoverer.Discover(context.Background(), "bohemian rhapsody", entity.Related, 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	for _, track := range tracks {
		assert.Equal(t, entity.Related, track.Strategy)
	}
	assert.Equal(t, []string{"bohemian rhapsody", "Queen", "artists like Queen", "songs similar to bohemian rhapsody"}, fake.searched())
}

func TestDiscoverRelatedGenre(t *testing.T) {
	discoverer, fake := engine(map[string][]provider.Result{
		"chill evening": {result("chill jazz for studying", "Cafe Music", 3600)},
		"jazz music":    {result("Miles Davis - So What", "Miles Davis", 545)},
	})

	tracks, err := discoverer.Discover(context.Background(), "chill evening", entity.Related, 5)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Miles Davis", tracks[0].Artist)
	assert.Contains(t, fake.searched(), "jazz music")
}

func TestDiscoverGenre(t *testing.T) {
	discoverer, fake := engine(map[string][]provider.Result{
		"lofi mix": {result("Chillhop - Sunday Morning", "Chillhop Music", 200)},
	})

	tracks, err := discoverer.Discover(context.Background(), "lofi", entity.Genre, 5)
	require.NoError(t, err)
	assert.Len(t, tracks, 1)
	assert.Equal(t, []string{"lofi playlist", "lofi mix", "best lofi songs"}, fake.searched())
}

func TestDiscoverInvalid(t *testing.T) {
	discoverer, fake := engine(nil)

	_, err := discoverer.Discover(context.Background(), "queen", entity.Strategy("popular"), 5)
	assert.Error(t, err)

	tracks, err := discoverer.Discover(context.Background(), "queen", entity.Direct, 0)
	assert.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Empty(t, fake.searched())
}

func TestRecommend(t *testing.T) {
	discoverer, _ := engine(map[string][]provider.Result{
		"Queen official": {bohemian[0], bohemian[6]},
	})
	seed := entity.NewTrack("seed", "Queen - Bohemian Rhapsody", "Queen Official", 355,
		"Queen", "bohemian rhapsody", entity.Studio)

	tracks, err := discoverer.Recommend(context.Background(), []*entity.Track{seed}, 5)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, bohemian[6].ID, tracks[0].ID)

	tracks, err = discoverer.Recommend(context.Background(), nil, 5)
	assert.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	config := DefaultConfig()
	config.Floor = 1.2
	assert.Error(t, config.Validate())
}
