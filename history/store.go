// Package history keeps the listening events and the user preferences,
// the two documents persisted across sessions.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Paths struct {
	History     string
	Preferences string
}

func DefaultPaths() (Paths, error) {
	history, err := xdg.StateFile("youterm/history.json")
	if err != nil {
		return Paths{}, err
	}
	preferences, err := xdg.ConfigFile("youterm/preferences.json")
	if err != nil {
		return Paths{}, err
	}
	return Paths{history, preferences}, nil
}

type Config struct {
	MaxEvents     int     `json:"max_events"`
	RetentionDays int     `json:"retention_days"`
	LikeWeight    float64 `json:"like_weight"`
	PlayWeight    float64 `json:"play_weight"`
	SkipWeight    float64 `json:"skip_weight"`
}

func DefaultConfig() Config {
	return Config{
		MaxEvents:     5000,
		RetentionDays: 180,
		LikeWeight:    2,
		PlayWeight:    1,
		SkipWeight:    1,
	}
}

func (c Config) Validate() error {
	if c.MaxEvents <= 0 || c.RetentionDays <= 0 {
		return errors.New("history retention must be positive")
	}
	if c.LikeWeight < 0 || c.PlayWeight < 0 || c.SkipWeight < 0 {
		return errors.New("affinity weights must not be negative")
	}
	return nil
}

// StorageError is a failure reading or writing one of the documents,
// never fatal to playback
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (err *StorageError) Error() string {
	return fmt.Sprintf("history %s %s: %s", err.Op, err.Path, err.Err)
}

func (err *StorageError) Unwrap() error {
	return err.Err
}

// ArtistStats aggregates the events of a single artist
type ArtistStats struct {
	Artist   string
	Plays    int
	Skips    int
	Likes    int
	Affinity float64
}

type Store struct {
	lock   sync.RWMutex
	paths  Paths
	config Config
	events []entity.Event
	prefs  entity.Preferences
	now    func() time.Time
}

func Open(paths Paths, config Config) *Store {
	return &Store{
		paths:  paths,
		config: config,
		prefs:  entity.DefaultPreferences(),
		now:    time.Now,
	}
}

// Load reads both documents, missing ones are not an error.
// On failure the store keeps whatever it could read.
func (store *Store) Load() error {
	store.lock.Lock()
	defer store.lock.Unlock()

	var (
		events []entity.Event
		prefs  = entity.DefaultPreferences()
		errs   []error
	)
	if err := read(store.paths.History, &events); err != nil {
		errs = append(errs, err)
	} else {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
		store.events = events
		store.prune()
	}
	if err := read(store.paths.Preferences, &prefs); err != nil {
		errs = append(errs, err)
	} else if err := prefs.Validate(); err != nil {
		errs = append(errs, &StorageError{"validate", store.paths.Preferences, err})
	} else {
		store.prefs = prefs
	}
	log.Debug().Int("events", len(store.events)).Msg("history loaded")
	return errors.Join(errs...)
}

// Flush writes both documents
func (store *Store) Flush() error {
	store.lock.RLock()
	defer store.lock.RUnlock()
	return errors.Join(
		write(store.paths.History, store.events),
		write(store.paths.Preferences, store.prefs),
	)
}

// Record appends the event and writes the history through; the event
// is kept in memory even when the write fails
func (store *Store) Record(event entity.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = store.now()
	}

	store.lock.Lock()
	defer store.lock.Unlock()
	store.events = append(store.events, event)
	store.prune()
	log.Debug().Str("kind", string(event.Kind)).Str("fingerprint", event.Fingerprint).Msg("event recorded")
	return write(store.paths.History, store.events)
}

// prune drops events past the retention horizon, oldest first
func (store *Store) prune() {
	horizon := store.now().AddDate(0, 0, -store.config.RetentionDays)
	drop := 0
	for drop < len(store.events) && store.events[drop].Timestamp.Before(horizon) {
		drop++
	}
	if excess := len(store.events) - drop - store.config.MaxEvents; excess > 0 {
		drop += excess
	}
	if drop > 0 {
		store.events = append([]entity.Event(nil), store.events[drop:]...)
	}
}

// ArtistAffinity is the weighted balance of likes and plays against
// skips of the artist, within [-1,1] and 0 for unseen artists
func (store *Store) ArtistAffinity(artist string) float64 {
	key := entity.ArtistKey(artist)
	if key == "" {
		return 0
	}

	store.lock.RLock()
	defer store.lock.RUnlock()
	var stats ArtistStats
	for _, event := range store.events {
		if entity.ArtistKey(event.Artist) == key {
			stats.count(event.Kind)
		}
	}
	return store.affinity(stats)
}

func (store *Store) affinity(stats ArtistStats) float64 {
	total := stats.Plays + stats.Skips + stats.Likes
	if total == 0 {
		return 0
	}
	score := float64(stats.Likes)*store.config.LikeWeight +
		float64(stats.Plays)*store.config.PlayWeight -
		float64(stats.Skips)*store.config.SkipWeight
	return util.Clamp(score/float64(total), -1, 1)
}

func (stats *ArtistStats) count(kind entity.EventKind) {
	switch kind {
	case entity.Played:
		stats.Plays++
	case entity.Skipped:
		stats.Skips++
	case entity.Liked:
		stats.Likes++
	}
}

// RecentFingerprints returns the fingerprints of the
// last window tracks served, either played or skipped
func (store *Store) RecentFingerprints(window int) map[string]struct{} {
	store.lock.RLock()
	defer store.lock.RUnlock()
	recent := make(map[string]struct{}, window)
	for i := len(store.events) - 1; i >= 0 && window > 0; i-- {
		if event := store.events[i]; event.Served() {
			recent[event.Fingerprint] = struct{}{}
			window--
		}
	}
	return recent
}

// Events returns the events in chronological order,
// only those of the given artist if not empty
func (store *Store) Events(artist string) []entity.Event {
	store.lock.RLock()
	defer store.lock.RUnlock()
	key := entity.ArtistKey(artist)
	events := make([]entity.Event, 0, len(store.events))
	for _, event := range store.events {
		if key == "" || entity.ArtistKey(event.Artist) == key {
			events = append(events, event)
		}
	}
	return events
}

// Artists aggregates the events per artist, most liked first
func (store *Store) Artists() []ArtistStats {
	store.lock.RLock()
	defer store.lock.RUnlock()
	var (
		index = map[string]int{}
		stats []ArtistStats
	)
	for _, event := range store.events {
		key := entity.ArtistKey(event.Artist)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, ArtistStats{Artist: event.Artist})
		}
		stats[i].count(event.Kind)
	}
	for i := range stats {
		stats[i].Affinity = store.affinity(stats[i])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Affinity != stats[j].Affinity {
			return stats[i].Affinity > stats[j].Affinity
		}
		return strings.ToLower(stats[i].Artist) < strings.ToLower(stats[j].Artist)
	})
	return stats
}

func (store *Store) Preferences() entity.Preferences {
	store.lock.RLock()
	defer store.lock.RUnlock()
	return store.prefs
}

// SetPreferences validates and persists the preferences document
func (store *Store) SetPreferences(prefs entity.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	store.lock.Lock()
	defer store.lock.Unlock()
	store.prefs = prefs
	return write(store.paths.Preferences, prefs)
}

func (store *Store) Len() int {
	store.lock.RLock()
	defer store.lock.RUnlock()
	return len(store.events)
}

func read(path string, value interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return &StorageError{"read", path, err}
	}
	if err := json.Unmarshal(data, value); err != nil {
		return &StorageError{"decode", path, err}
	}
	return nil
}

// write replaces the document atomically, an empty path disables persistence
func write(path string, value interface{}) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &StorageError{"encode", path, err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{"write", path, err}
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return &StorageError{"write", path, err}
	}
	if err := os.Rename(temp, path); err != nil {
		return &StorageError{"write", path, err}
	}
	return nil
}
