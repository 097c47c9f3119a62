package queue

import (
	"math"
	"sort"

	"github.com/streambinder/youterm/entity"
)

// Shuffle reorders the main sequence and sets the mode later enqueues follow.
// In smart mode the order leans towards liked artists and keeps the same
// artist apart: when that is not possible for every track a VarietyError is
// returned, the best effort order being applied anyway.
func (q *Queue) Shuffle(mode entity.ShuffleMode) error {
	if _, err := entity.ParseShuffleMode(string(mode)); err != nil {
		return err
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	q.mode = mode
	switch mode {
	case entity.Sequential:
		sort.SliceStable(q.main, func(i, j int) bool {
			return q.main[i].seq < q.main[j].seq
		})
	case entity.Random:
		q.random.Shuffle(len(q.main), func(i, j int) {
			q.main[i], q.main[j] = q.main[j], q.main[i]
		})
	case entity.Smart:
		prefix := q.served()
		q.main = q.smart(prefix, q.main)
		return variety(prefix, q.tracks(), q.config.MinSeparation)
	}
	return nil
}

// served is the tail of what plays before the main sequence,
// played and priority tracks, that the main head must keep apart from
func (q *Queue) served() []*entity.Track {
	ahead := append(append([]*entity.Track(nil), q.played...), q.priority...)
	return ahead[max(0, len(ahead)-q.config.MinSeparation):]
}

// smart draws a weighted random order, higher affinity artists being more
// likely to come first, then repairs separation violations by local moves
func (q *Queue) smart(prefix []*entity.Track, entries []entry) []entry {
	var (
		keys      = make(map[*entity.Track]float64, len(entries))
		affinity  = map[string]float64{}
		reordered = append([]entry(nil), entries...)
	)
	for _, entry := range entries {
		track := entry.track
		key := track.ArtistKey()
		if _, ok := affinity[key]; !ok {
			affinity[key] = 0
			if q.history != nil && track.HasArtist() {
				affinity[key] = q.history.ArtistAffinity(track.Artist)
			}
		}
		// weighted sampling without replacement: u^(1/w), largest first
		keys[track] = math.Pow(q.random.Float64(), 1/math.Exp(affinity[key]))
	}
	sort.SliceStable(reordered, func(i, j int) bool {
		return keys[reordered[i].track] > keys[reordered[j].track]
	})

	separation := q.config.MinSeparation
	repaired := repair(prefix, reordered, separation)
	if count := violationsAfter(prefix, unwrap(repaired), separation); count > 0 {
		if spread := spreadOut(prefix, reordered, separation); violationsAfter(prefix, unwrap(spread), separation) < count {
			return spread
		}
	}
	return repaired
}

// repair walks the sequence and, at each violation, pulls forward
// the nearest following track that fits the position
func repair(prefix []*entity.Track, entries []entry, separation int) []entry {
	repaired := append([]entry(nil), entries...)
	for i := range repaired {
		tail := concat(prefix, unwrap(repaired[max(0, i-separation):i]))
		if !conflicts(tail, repaired[i].track, separation) {
			continue
		}
		for j := i + 1; j < len(repaired); j++ {
			if !conflicts(tail, repaired[j].track, separation) {
				candidate := repaired[j]
				copy(repaired[i+1:j+1], repaired[i:j])
				repaired[i] = candidate
				break
			}
		}
	}
	return repaired
}

// spreadOut rebuilds the sequence picking at each position, among the tracks
// that fit, the one whose artist has most tracks left: slower to lean on
// affinity, but it finds a valid order when the greedy repair cannot
func spreadOut(prefix []*entity.Track, entries []entry, separation int) []entry {
	var (
		pending = append([]entry(nil), entries...)
		left    = map[string]int{}
		spread  = make([]entry, 0, len(entries))
	)
	for _, entry := range entries {
		if entry.track.HasArtist() {
			left[entry.track.ArtistKey()]++
		}
	}
	for len(pending) > 0 {
		tail := concat(prefix, unwrap(spread[max(0, len(spread)-separation):]))
		pick := -1
		for i, entry := range pending {
			if conflicts(tail, entry.track, separation) {
				continue
			}
			if pick < 0 || left[entry.track.ArtistKey()] > left[pending[pick].track.ArtistKey()] {
				pick = i
			}
		}
		if pick < 0 {
			pick = 0
		}
		picked := pending[pick]
		pending = append(pending[:pick:pick], pending[pick+1:]...)
		spread = append(spread, picked)
		if picked.track.HasArtist() {
			left[picked.track.ArtistKey()]--
		}
	}
	return spread
}

// arrange places candidates after the given sequence, each time taking the
// first one keeping artists apart; candidates that never fit are returned apart
func arrange(sequence, candidates []*entity.Track, separation int) (placed, rejected []*entity.Track) {
	tail := append([]*entity.Track(nil), sequence[max(0, len(sequence)-separation):]...)
	pending := candidates
	for len(pending) > 0 {
		pick := -1
		for i, track := range pending {
			if !conflicts(tail[max(0, len(tail)-separation):], track, separation) {
				pick = i
				break
			}
		}
		if pick < 0 {
			break
		}
		placed = append(placed, pending[pick])
		tail = append(tail, pending[pick])
		pending = append(pending[:pick:pick], pending[pick+1:]...)
	}
	return placed, pending
}

// conflicts tells whether the track artist appears among the last
// separation tracks of tail; tracks without artist never conflict
func conflicts(tail []*entity.Track, track *entity.Track, separation int) bool {
	if separation <= 0 || !track.HasArtist() {
		return false
	}
	key := track.ArtistKey()
	for i := len(tail) - 1; i >= 0 && i >= len(tail)-separation; i-- {
		if tail[i].HasArtist() && tail[i].ArtistKey() == key {
			return true
		}
	}
	return false
}

func violations(tracks []*entity.Track, separation int) (count int) {
	for i, track := range tracks {
		if conflicts(tracks[max(0, i-separation):i], track, separation) {
			count++
		}
	}
	return
}

// violationsAfter counts the violations of tracks following prefix,
// the ones within prefix left out
func violationsAfter(prefix, tracks []*entity.Track, separation int) int {
	return violations(concat(prefix, tracks), separation) - violations(prefix, separation)
}

// variety returns a VarietyError if the sequence does not keep
// artists apart, from what is served before it too
func variety(prefix, tracks []*entity.Track, separation int) error {
	count := violationsAfter(prefix, tracks, separation)
	if count == 0 {
		return nil
	}
	artists := map[string]bool{}
	for _, track := range tracks {
		if track.HasArtist() {
			artists[track.ArtistKey()] = true
		}
	}
	return &VarietyError{Artists: len(artists), Separation: separation, Violations: count}
}

func concat(head, tail []*entity.Track) []*entity.Track {
	return append(append(make([]*entity.Track, 0, len(head)+len(tail)), head...), tail...)
}

func unwrap(entries []entry) []*entity.Track {
	tracks := make([]*entity.Track, len(entries))
	for i, entry := range entries {
		tracks[i] = entry.track
	}
	return tracks
}
