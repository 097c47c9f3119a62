// Package provider abstracts the search backend tracks are discovered on.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoResults is wrapped by Error when the backend answered with nothing
var ErrNoResults = errors.New("no results")

// Result is a raw search hit, Duration is 0 when unknown
type Result struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Channel  string `json:"channel"`
	Duration int    `json:"duration"`
}

type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Error is a failure of the backend while serving a query
type Error struct {
	Query string
	Err   error
}

func (err *Error) Error() string {
	return fmt.Sprintf("search %q: %s", err.Query, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

func wrap(query string, err error) error {
	if err == nil {
		return nil
	}
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return err
	}
	return &Error{query, err}
}
