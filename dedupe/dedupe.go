// Package dedupe collapses uploads of the same song into a single track.
package dedupe

import (
	"math"

	"github.com/streambinder/youterm/entity"
)

// Tracks keeps one track per fingerprint: the best scored one or, on equal
// score, the one closer to the preferred duration midpoint, or else the first
// seen. The survivor takes the slot of the first occurrence of its
// fingerprint, so non-colliding entries keep their relative order.
func Tracks(tracks []*entity.Track, prefs entity.Preferences) []*entity.Track {
	var (
		midpoint = prefs.DurationRange.Midpoint()
		slots    = make(map[string]int, len(tracks))
		deduped  = make([]*entity.Track, 0, len(tracks))
	)
	for _, track := range tracks {
		slot, ok := slots[track.Fingerprint]
		if !ok {
			slots[track.Fingerprint] = len(deduped)
			deduped = append(deduped, track)
			continue
		}
		if better(track, deduped[slot], midpoint) {
			deduped[slot] = track
		}
	}
	return deduped
}

func better(challenger, holder *entity.Track, midpoint float64) bool {
	if challenger.Quality != holder.Quality {
		return challenger.Quality > holder.Quality
	}
	return distance(challenger.Duration, midpoint) < distance(holder.Duration, midpoint)
}

// unknown durations are the farthest possible
func distance(duration int, midpoint float64) float64 {
	if duration <= 0 {
		return math.Inf(1)
	}
	return math.Abs(float64(duration) - midpoint)
}
