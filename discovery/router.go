package discovery

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/metadata"
	"github.com/streambinder/youterm/provider"
)

// search is a sub-strategy bound to the query it runs for
type search struct {
	query    string
	strategy entity.Strategy
}

var genres = regexp.MustCompile(`(?i)\b(hip hop|hip-hop|rap|trap|r&b|soul|funk|jazz|blues|classical|piano|orchestra|metal|punk|rock|indie|folk|country|reggae|ska|electronic|edm|house|techno|trance|dubstep|drum and bass|lo-?fi|ambient|synthwave|disco|pop|k-pop|latin|reggaeton)\b`)

// route expands a strategy into the sub-strategies to run
func route(query string, strategy entity.Strategy) []search {
	if strategy == entity.Mixed {
		return []search{
			{query, entity.Direct},
			{query, entity.Artist},
			{query, entity.Related},
		}
	}
	return []search{{query, strategy}}
}

// run executes a single sub-strategy and returns its scored candidates
func (engine *Engine) run(ctx context.Context, s search, prefs entity.Preferences, limit int) ([]*entity.Track, error) {
	var (
		n       = engine.searchLimit(limit)
		results []provider.Result
		err     error
	)
	switch s.strategy {
	case entity.Direct:
		results, err = engine.provider.Search(ctx, s.query, n)
		if err == nil && len(results) < engine.config.ThinResults {
			if official, err := engine.provider.Search(ctx, s.query+" official", n); err == nil {
				results = append(results, official...)
			}
		}
	case entity.Artist:
		results, err = engine.searchAll(ctx, n, s.query+" official", s.query+" songs")
		if err == nil {
			tracks := engine.build(results, s.strategy, prefs, s.query)
			engine.penalize(tracks, s.query)
			return tracks, nil
		}
	case entity.Related:
		return engine.related(ctx, s.query, prefs, n)
	case entity.Genre:
		results, err = engine.searchAll(ctx, n, s.query+" playlist", s.query+" mix", "best "+s.query+" songs")
	default:
		return nil, errors.New("unroutable strategy " + string(s.strategy))
	}
	if err != nil {
		return nil, err
	}
	return engine.build(results, s.strategy, prefs, s.query), nil
}

// related searches material adjacent to the best result for query:
// its artist catalog if the artist is known, else the genre the results
// hint at, else the seed results themselves
func (engine *Engine) related(ctx context.Context, query string, prefs entity.Preferences, n int) ([]*entity.Track, error) {
	results, err := engine.provider.Search(ctx, query, engine.config.SeedLimit)
	if err != nil {
		return nil, err
	}
	seeds := engine.build(results, entity.Related, prefs, query)

	var queries []string
	if seed := bestSeed(seeds); seed != nil {
		queries = []string{seed.Artist, "artists like " + seed.Artist, "songs similar to " + query}
	} else if genre := inferGenre(query, results); genre != "" {
		queries = []string{genre + " music"}
	} else {
		return seeds, nil
	}

	log.Debug().Str("query", query).Strs("related", queries).Msg("related searches")
	adjacent, err := engine.searchAll(ctx, n, queries...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return seeds, nil
	}
	return engine.build(adjacent, entity.Related, prefs, query), nil
}

// searchAll runs the queries in order and concatenates what they found,
// failing only if every one of them failed
func (engine *Engine) searchAll(ctx context.Context, n int, queries ...string) ([]provider.Result, error) {
	var (
		results []provider.Result
		causes  []error
	)
	for _, query := range queries {
		found, err := engine.provider.Search(ctx, query, n)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			causes = append(causes, err)
			continue
		}
		results = append(results, found...)
	}
	if len(causes) == len(queries) {
		return nil, errors.Join(causes...)
	}
	return results, nil
}

func bestSeed(seeds []*entity.Track) (best *entity.Track) {
	for _, seed := range seeds {
		if seed.HasArtist() && (best == nil || seed.Quality > best.Quality) {
			best = seed
		}
	}
	return
}

func inferGenre(query string, results []provider.Result) string {
	if genre := genres.FindString(query); genre != "" {
		return strings.ToLower(genre)
	}
	for _, result := range results {
		if genre := genres.FindString(result.Title); genre != "" {
			return strings.ToLower(genre)
		}
	}
	return ""
}

func matchesArtist(artist, query string, threshold float64) bool {
	if artist == "" {
		return false
	}
	normalizedArtist, normalizedQuery := metadata.Normalize(artist), metadata.Normalize(query)
	if normalizedArtist != "" && strings.Contains(" "+normalizedQuery+" ", " "+normalizedArtist+" ") {
		return true
	}
	return metadata.Similarity(artist, query) >= threshold
}
