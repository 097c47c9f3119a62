package queue

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	jsoniter "github.com/json-iterator/go"
	"github.com/streambinder/youterm/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the persisted form of a queue, main
// tracks carrying their discovery order
type Snapshot struct {
	Priority []*entity.Track    `json:"priority"`
	Main     []SnapshotEntry    `json:"main"`
	Played   []*entity.Track    `json:"played"`
	Mode     entity.ShuffleMode `json:"mode"`
	Seed     string             `json:"seed,omitempty"`
	Starved  bool               `json:"starved,omitempty"`
}

type SnapshotEntry struct {
	Track *entity.Track `json:"track"`
	Seq   uint64        `json:"seq"`
}

func DefaultPath() (string, error) {
	return xdg.StateFile("youterm/queue.json")
}

func (q *Queue) Snapshot() Snapshot {
	q.lock.Lock()
	defer q.lock.Unlock()
	snapshot := Snapshot{
		Priority: append([]*entity.Track(nil), q.priority...),
		Main:     make([]SnapshotEntry, len(q.main)),
		Played:   append([]*entity.Track(nil), q.played...),
		Mode:     q.mode,
		Seed:     q.seed,
		Starved:  q.starved,
	}
	for i, entry := range q.main {
		snapshot.Main[i] = SnapshotEntry{entry.track, entry.seq}
	}
	return snapshot
}

// Restore replaces the queue content with the snapshot one
func (q *Queue) Restore(snapshot Snapshot) error {
	mode := snapshot.Mode
	if mode == "" {
		mode = entity.Sequential
	} else if _, err := entity.ParseShuffleMode(string(mode)); err != nil {
		return err
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	q.priority = nil
	for _, track := range snapshot.Priority {
		if track != nil {
			q.priority = append(q.priority, track)
		}
	}
	q.main, q.seq = nil, 0
	for _, saved := range snapshot.Main {
		if saved.Track == nil {
			continue
		}
		q.main = append(q.main, entry{saved.Track, saved.Seq})
		q.seq = max(q.seq, saved.Seq+1)
	}
	q.played = nil
	for _, track := range snapshot.Played {
		if track != nil {
			q.played = append(q.played, track)
		}
	}
	if excess := len(q.played) - q.config.PlayedWindow; excess > 0 {
		q.played = q.played[excess:]
	}
	q.mode, q.seed, q.starved = mode, snapshot.Seed, snapshot.Starved
	q.updateState()
	return nil
}

// Save writes the snapshot to path, atomically
func Save(path string, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
		return err
	}
	return os.Rename(path+".tmp", path)
}

// Load reads a snapshot from path, an empty one if there is none yet
func Load(path string) (Snapshot, error) {
	var snapshot Snapshot
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snapshot, nil
	} else if err != nil {
		return snapshot, err
	}
	return snapshot, json.Unmarshal(data, &snapshot)
}
