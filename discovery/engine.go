// Package discovery turns a free-text query into a ranked,
// deduplicated list of tracks, searching with one or more strategies.
package discovery

import (
	"context"
	"errors"
	"sort"

	"github.com/arunsworld/nursery"
	"github.com/rs/zerolog/log"
	"github.com/streambinder/youterm/dedupe"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/metadata"
	"github.com/streambinder/youterm/provider"
	"github.com/streambinder/youterm/quality"
	"github.com/streambinder/youterm/util"
)

type Config struct {
	Floor                 float64 `json:"floor"`                   // tracks scoring less are dropped
	SearchLimit           int     `json:"search_limit"`            // minimum results asked per search
	SeedLimit             int     `json:"seed_limit"`              // results of the related seed search
	ThinResults           int     `json:"thin_results"`            // direct results below which "official" is searched too
	ArtistSimilarity      float64 `json:"artist_similarity"`       // above which an artist matches the query
	ArtistMismatchPenalty float64 `json:"artist_mismatch_penalty"` // applied by the artist strategy
	RecommendSeeds        int     `json:"recommend_seeds"`         // seeds considered by Recommend
}

func DefaultConfig() Config {
	return Config{
		Floor:                 0.3,
		SearchLimit:           15,
		SeedLimit:             5,
		ThinResults:           5,
		ArtistSimilarity:      0.6,
		ArtistMismatchPenalty: 0.2,
		RecommendSeeds:        3,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Floor < 0 || c.Floor > 1:
		return errors.New("discovery floor must be within [0,1]")
	case c.SearchLimit <= 0 || c.SeedLimit <= 0:
		return errors.New("discovery search limits must be positive")
	case c.ArtistSimilarity < 0 || c.ArtistSimilarity > 1:
		return errors.New("artist similarity must be within [0,1]")
	case c.ArtistMismatchPenalty < 0 || c.ArtistMismatchPenalty > 1:
		return errors.New("artist mismatch penalty must be within [0,1]")
	case c.RecommendSeeds <= 0:
		return errors.New("recommendation seeds must be positive")
	}
	return nil
}

// PreferencesSource yields the current user preferences,
// the history store being the canonical one
type PreferencesSource interface {
	Preferences() entity.Preferences
}

type Engine struct {
	provider provider.SearchProvider
	scorer   *quality.Scorer
	prefs    PreferencesSource
	config   Config
}

func New(searchProvider provider.SearchProvider, scorer *quality.Scorer, prefs PreferencesSource, config Config) *Engine {
	return &Engine{searchProvider, scorer, prefs, config}
}

func (engine *Engine) preferences() entity.Preferences {
	if engine.prefs == nil {
		return entity.DefaultPreferences()
	}
	return engine.prefs.Preferences()
}

// Discover searches for query with the given strategy and returns at most
// limit tracks, best scored first. It fails with UnavailableError only when
// none of the sub-strategies could get results.
func (engine *Engine) Discover(ctx context.Context, query string, strategy entity.Strategy, limit int) ([]*entity.Track, error) {
	if _, err := entity.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*entity.Track{}, nil
	}

	log.Debug().Str("query", query).Str("strategy", string(strategy)).Int("limit", limit).Msg("discovering")
	prefs := engine.preferences()
	tracks, err := engine.collect(ctx, query, strategy, route(query, strategy), prefs, limit)
	if err != nil {
		return nil, err
	}
	return engine.rank(tracks, prefs, limit, nil), nil
}

// Recommend looks for tracks adjacent to the given seeds, usually the
// last played ones: the catalog of their artists and related material
// of the most recent one. Seeds themselves are never recommended.
func (engine *Engine) Recommend(ctx context.Context, seeds []*entity.Track, limit int) ([]*entity.Track, error) {
	if len(seeds) == 0 || limit <= 0 {
		return []*entity.Track{}, nil
	}

	var (
		prefs    = engine.preferences()
		searches []search
		artists  = map[string]bool{}
		exclude  = map[string]bool{}
		last     = seeds[len(seeds)-1]
	)
	for _, seed := range seeds {
		exclude[seed.Fingerprint] = true
	}
	for i := len(seeds) - 1; i >= 0 && len(artists) < engine.config.RecommendSeeds; i-- {
		if seed := seeds[i]; seed.HasArtist() && !artists[seed.ArtistKey()] {
			artists[seed.ArtistKey()] = true
			searches = append(searches, search{seed.Artist, entity.Artist})
		}
	}
	seedQuery := last.CanonicalTitle
	if last.HasArtist() {
		seedQuery = last.Artist + " " + last.CanonicalTitle
	}
	searches = append(searches, search{seedQuery, entity.Related})

	tracks, err := engine.collect(ctx, seedQuery, entity.Mixed, searches, prefs, limit)
	if err != nil {
		return nil, err
	}
	return engine.rank(tracks, prefs, limit, exclude), nil
}

// collect runs the searches, concurrently when more than one,
// and merges their candidates round-robin
func (engine *Engine) collect(ctx context.Context, query string, strategy entity.Strategy, searches []search, prefs entity.Preferences, limit int) ([]*entity.Track, error) {
	var (
		candidates = make([][]*entity.Track, len(searches))
		failures   = make([]error, len(searches))
		jobs       = make([]nursery.ConcurrentJob, len(searches))
	)
	for i, s := range searches {
		jobs[i] = func(ctx context.Context, _ chan error) {
			candidates[i], failures[i] = engine.run(ctx, s, prefs, limit)
			if failures[i] == nil && len(candidates[i]) == 0 {
				failures[i] = &provider.Error{Query: s.query, Err: provider.ErrNoResults}
			}
		}
	}

	if len(jobs) == 1 {
		jobs[0](ctx, nil)
	} else if err := nursery.RunConcurrentlyWithContext(ctx, jobs...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var causes []error
	for i, err := range failures {
		if err != nil {
			log.Debug().Err(err).Str("strategy", string(searches[i].strategy)).Msg("sub-strategy contributed nothing")
			causes = append(causes, err)
		}
	}
	if len(causes) == len(searches) {
		return nil, &UnavailableError{query, strategy, causes}
	}
	return interleave(candidates), nil
}

// rank runs the shared pipeline: floor filter, deduplication,
// sort by quality (ties by search rank) and truncation
func (engine *Engine) rank(tracks []*entity.Track, prefs entity.Preferences, limit int, exclude map[string]bool) []*entity.Track {
	passing := make([]*entity.Track, 0, len(tracks))
	for rank, track := range tracks {
		track.Rank = rank
		if track.Quality < engine.config.Floor || exclude[track.Fingerprint] {
			continue
		}
		passing = append(passing, track)
	}

	ranked := dedupe.Tracks(passing, prefs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Quality != ranked[j].Quality {
			return ranked[i].Quality > ranked[j].Quality
		}
		return ranked[i].Rank < ranked[j].Rank
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// build turns raw results into scored tracks
func (engine *Engine) build(results []provider.Result, strategy entity.Strategy, prefs entity.Preferences, query string) []*entity.Track {
	tracks := make([]*entity.Track, 0, len(results))
	for _, result := range results {
		meta := metadata.Extract(result.Title, result.Channel)
		track := entity.NewTrack(result.ID, result.Title, result.Channel, result.Duration, meta.Artist, meta.Title, meta.Type)
		track.Strategy = strategy
		track.Quality = engine.scorer.Score(track, prefs, query)
		tracks = append(tracks, track)
	}
	return tracks
}

func (engine *Engine) penalize(tracks []*entity.Track, artist string) {
	for _, track := range tracks {
		if !matchesArtist(track.Artist, artist, engine.config.ArtistSimilarity) {
			track.Quality = util.Clamp(track.Quality-engine.config.ArtistMismatchPenalty, 0, 1)
		}
	}
}

func (engine *Engine) searchLimit(limit int) int {
	return max(limit, engine.config.SearchLimit)
}

func interleave(lists [][]*entity.Track) []*entity.Track {
	var (
		merged  []*entity.Track
		longest int
	)
	for _, list := range lists {
		longest = max(longest, len(list))
	}
	for i := 0; i < longest; i++ {
		for _, list := range lists {
			if i < len(list) {
				merged = append(merged, list[i])
			}
		}
	}
	return merged
}
