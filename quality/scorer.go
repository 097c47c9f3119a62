package quality

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/metadata"
	"github.com/streambinder/youterm/util"
)

type Weights struct {
	Duration float64 `json:"duration"`
	Channel  float64 `json:"channel"`
	Title    float64 `json:"title"`
}

type Penalties struct {
	Cover float64 `json:"cover"`
	Live  float64 `json:"live"`
	Remix float64 `json:"remix"`
}

type Config struct {
	Weights   Weights   `json:"weights"`
	Penalties Penalties `json:"penalties"`
	// similarity between cleaned channel and artist
	// above which the channel is considered official
	OfficialSimilarity float64 `json:"official_similarity"`
}

func DefaultConfig() Config {
	return Config{
		Weights:            Weights{Duration: 0.4, Channel: 0.3, Title: 0.3},
		Penalties:          Penalties{Cover: 0.3, Live: 0.2, Remix: 0.15},
		OfficialSimilarity: 0.8,
	}
}

func (c Config) Validate() error {
	w := c.Weights
	if w.Duration < 0 || w.Channel < 0 || w.Title < 0 {
		return errors.New("quality weights must not be negative")
	}
	if sum := w.Duration + w.Channel + w.Title; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("quality weights must sum to 1, got %.3f", sum)
	}
	for _, penalty := range []float64{c.Penalties.Cover, c.Penalties.Live, c.Penalties.Remix} {
		if penalty < 0 || penalty > 1 {
			return errors.New("quality penalties must be within [0,1]")
		}
	}
	return nil
}

const (
	neutral          = 0.5
	officialChannel  = 1.0
	decoratedChannel = 0.8
	farmChannel      = 0.1
	titleStep        = 0.15
)

var (
	decorations = regexp.MustCompile(`(?i)(vevo|- topic$|\bofficial\b)`)
	uploadFarms = regexp.MustCompile(`(?i)(lyrics?|nightcore|\b8d\b|bass ?boost|slowed|sped up|compilation|covers|karaoke|music ?box|\bhits\b|\bmix(es)?\b|\bvibes\b|\bcloud\b)`)
	lowQuality  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)#shorts?\b`),
		regexp.MustCompile(`(?i)\breaction\b`),
		regexp.MustCompile(`(?i)\breview\b`),
		regexp.MustCompile(`(?i)\bkaraoke\b`),
		regexp.MustCompile(`(?i)\btutorial\b|\bhow to\b`),
		regexp.MustCompile(`(?i)\bfan ?made\b`),
		regexp.MustCompile(`(?i)\b(1|10) hours?\b`),
		regexp.MustCompile(`(?i)\b(sped up|slowed|reverb|nightcore|8d)\b`),
		regexp.MustCompile(`(?i)\bmeme\b`),
	}
	highQuality = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bofficial\b`),
		regexp.MustCompile(`(?i)\boriginal\b`),
		regexp.MustCompile(`(?i)\balbum\b`),
		regexp.MustCompile(`(?i)\bremaster(ed)?\b`),
		regexp.MustCompile(`(?i)\bfull song\b`),
	}
)

type Scorer struct {
	config Config
}

func New(config Config) *Scorer {
	return &Scorer{config}
}

func (scorer *Scorer) Config() Config {
	return scorer.config
}

// Score rates a candidate within [0,1]; query is the search that found it,
// naming a variant in it (e.g. "live") lifts the penalty for that variant
func (scorer *Scorer) Score(track *entity.Track, prefs entity.Preferences, query string) float64 {
	w := scorer.config.Weights
	score := w.Duration*DurationFit(track.Duration, prefs.DurationRange) +
		w.Channel*scorer.channelSignal(track) +
		w.Title*titleSignal(track.Title)
	score -= scorer.typePenalty(track.Type, query)
	return util.Clamp(score, 0, 1)
}

// Rescore refreshes the quality of already built tracks,
// e.g. after preferences changed
func (scorer *Scorer) Rescore(tracks []*entity.Track, prefs entity.Preferences, query string) {
	for _, track := range tracks {
		track.Quality = scorer.Score(track, prefs, query)
	}
}

// DurationFit is 1 within the range, decays linearly to 0 at half
// the minimum or twice the maximum, and is neutral when unknown
func DurationFit(duration int, r entity.DurationRange) float64 {
	if duration <= 0 {
		return neutral
	}
	seconds := float64(duration)
	switch {
	case r.Contains(duration):
		return 1
	case duration < r.Min:
		low := float64(r.Min) / 2
		return util.Clamp((seconds-low)/(float64(r.Min)-low), 0, 1)
	default:
		high := float64(r.Max) * 2
		return util.Clamp((high-seconds)/(high-float64(r.Max)), 0, 1)
	}
}

func (scorer *Scorer) channelSignal(track *entity.Track) float64 {
	channel := strings.TrimSpace(track.Channel)
	if channel == "" {
		return neutral
	}
	if track.HasArtist() && metadata.Similarity(metadata.CleanChannel(channel), track.Artist) >= scorer.config.OfficialSimilarity {
		return officialChannel
	}
	if decorations.MatchString(channel) {
		return decoratedChannel
	}
	if uploadFarms.MatchString(channel) {
		return farmChannel
	}
	return neutral
}

func titleSignal(title string) float64 {
	score := neutral
	for _, pattern := range lowQuality {
		if pattern.MatchString(title) {
			score -= titleStep
		}
	}
	for _, pattern := range highQuality {
		if pattern.MatchString(title) {
			score += titleStep
		}
	}
	return util.Clamp(score, 0, 1)
}

func (scorer *Scorer) typePenalty(kind entity.TrackType, query string) float64 {
	var penalty float64
	switch kind {
	case entity.Cover:
		penalty = scorer.config.Penalties.Cover
	case entity.Live:
		penalty = scorer.config.Penalties.Live
	case entity.Remix:
		penalty = scorer.config.Penalties.Remix
	default:
		return 0
	}
	if Requests(query, kind) {
		return 0
	}
	return penalty
}

// Requests tells whether the query explicitly asks for the variant
func Requests(query string, kind entity.TrackType) bool {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, "()[].,!?")
		switch {
		case kind == entity.Cover && (word == "cover" || word == "covers"),
			kind == entity.Live && (word == "live" || word == "concert"),
			kind == entity.Remix && (word == "remix" || word == "remixes" || word == "rmx"):
			return true
		}
	}
	return false
}
