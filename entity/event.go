package entity

import "time"

type EventKind string

const (
	Played  EventKind = "played"
	Skipped EventKind = "skipped"
	Liked   EventKind = "liked"
)

// Event is one listening signal. Events are only ever appended.
type Event struct {
	Fingerprint string    `json:"fingerprint"`
	TrackID     string    `json:"track_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Artist      string    `json:"artist,omitempty"`
	Kind        EventKind `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewEvent(track *Track, kind EventKind) Event {
	return Event{
		Fingerprint: track.Fingerprint,
		TrackID:     track.ID,
		Title:       track.CanonicalTitle,
		Artist:      track.Artist,
		Kind:        kind,
		Timestamp:   time.Now(),
	}
}

// Served reports whether the event marks the track as handed to the player
func (event Event) Served() bool {
	return event.Kind == Played || event.Kind == Skipped
}
