package entity

import (
	"errors"
	"fmt"
)

type DurationRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r DurationRange) Contains(seconds int) bool {
	return seconds >= r.Min && seconds <= r.Max
}

func (r DurationRange) Midpoint() float64 {
	return float64(r.Min+r.Max) / 2
}

type Preferences struct {
	DurationRange    DurationRange `json:"preferred_duration_range"`
	SkipThreshold    float64       `json:"skip_threshold"` // fraction of the track after which stopping is not a skip
	ShuffleMode      ShuffleMode   `json:"shuffle_strategy"`
	PreferredQuality float64       `json:"preferred_quality"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DurationRange:    DurationRange{Min: 120, Max: 360},
		SkipThreshold:    0.3,
		ShuffleMode:      Smart,
		PreferredQuality: 0.6,
	}
}

func (p Preferences) Validate() error {
	if p.DurationRange.Min <= 0 || p.DurationRange.Max < p.DurationRange.Min {
		return fmt.Errorf("invalid duration range %d-%d", p.DurationRange.Min, p.DurationRange.Max)
	}
	if p.SkipThreshold < 0 || p.SkipThreshold > 1 {
		return errors.New("skip threshold must be within [0,1]")
	}
	if p.PreferredQuality < 0 || p.PreferredQuality > 1 {
		return errors.New("preferred quality must be within [0,1]")
	}
	if _, err := ParseShuffleMode(string(p.ShuffleMode)); err != nil {
		return err
	}
	return nil
}

// IsSkip tells whether stopping after played seconds counts as a skip
func (p Preferences) IsSkip(played, duration int) bool {
	if duration <= 0 {
		return false
	}
	return float64(played)/float64(duration) < p.SkipThreshold
}
