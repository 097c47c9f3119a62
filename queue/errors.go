package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned by Next when there is nothing left to serve
	// and refilling did not help; it is a state rather than a failure
	ErrExhausted = errors.New("queue exhausted")
	// ErrRefillStarved comes along a valid track when the refill
	// could not add anything: playback may go on with what is left
	ErrRefillStarved = errors.New("refill starved")
	// ErrInsufficientVariety is matched by VarietyError
	ErrInsufficientVariety = errors.New("insufficient artist variety")
)

// VarietyError reports that the artist separation could not
// be honored for every track, given the artists at hand
type VarietyError struct {
	Artists    int // distinct artists in the sequence
	Separation int
	Violations int // tracks following a same-artist one within Separation positions
}

func (err *VarietyError) Error() string {
	return fmt.Sprintf("%s: %d distinct artists, %d tracks within %d positions of the same artist",
		ErrInsufficientVariety, err.Artists, err.Violations, err.Separation)
}

func (err *VarietyError) Is(target error) bool {
	return target == ErrInsufficientVariety
}

func starved(cause error) error {
	if cause == nil {
		return ErrRefillStarved
	}
	return fmt.Errorf("%w: %w", ErrRefillStarved, cause)
}
