package entity

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

type TrackType string

const (
	Studio  TrackType = "studio"
	Live    TrackType = "live"
	Cover   TrackType = "cover"
	Remix   TrackType = "remix"
	Unknown TrackType = "unknown"
)

// Track is a single search candidate, as handed over by the discovery engine.
// Artist is empty when it could not be extracted.
type Track struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"` // raw, as returned by the provider
	Artist         string    `json:"artist,omitempty"`
	CanonicalTitle string    `json:"canonical_title"`
	Type           TrackType `json:"type"`
	Duration       int       `json:"duration"` // in seconds, 0 if unknown
	Channel        string    `json:"channel"`
	Quality        float64   `json:"quality"`
	Strategy       Strategy  `json:"strategy"`
	Rank           int       `json:"rank"` // position in the search results it came from
	Fingerprint    string    `json:"fingerprint"`
}

const watchURL = "https://www.youtube.com/watch?v=%s"

func NewTrack(id, title, channel string, duration int, artist, canonicalTitle string, kind TrackType) *Track {
	return &Track{
		ID:             id,
		Title:          title,
		Artist:         artist,
		CanonicalTitle: canonicalTitle,
		Type:           kind,
		Duration:       duration,
		Channel:        channel,
		Fingerprint:    Fingerprint(canonicalTitle, artist),
	}
}

// Fingerprint builds the key two uploads of the same song share:
// slugs are lower-cased, transliterated and punctuation free
func Fingerprint(canonicalTitle, artist string) string {
	return slug.Make(artist) + "/" + slug.Make(canonicalTitle)
}

// certain track titles include the variant description,
// this functions aims to strip out that part:
// > Title: Name - Acoustic
// > Song:  Name
func (track *Track) Song() (song string) {
	song = track.CanonicalTitle
	if song == "" {
		song = track.Title
	}
	song = strings.Split(song+" - ", " - ")[0]
	song = strings.Split(song+" (", " (")[0]
	song = strings.Split(song+" [", " [")[0]
	return
}

func (track *Track) URL() string {
	return fmt.Sprintf(watchURL, track.ID)
}

func (track *Track) String() string {
	if track.Artist == "" {
		return track.Title
	}
	return fmt.Sprintf("%s by %s", track.CanonicalTitle, track.Artist)
}

// HasArtist reports whether the artist could be extracted;
// tracks without artist never collide on variety checks
func (track *Track) HasArtist() bool {
	return track.Artist != ""
}

// ArtistKey is the artist in the form used for comparisons
func (track *Track) ArtistKey() string {
	return ArtistKey(track.Artist)
}

func ArtistKey(artist string) string {
	return slug.Make(artist)
}
