package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks malformed input. Nothing was written.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstream marks a geocoding or directions oracle failure.
	ErrUpstream = errors.New("upstream oracle failure")
	// ErrDatastore marks an unavailable or failing datastore.
	ErrDatastore = errors.New("datastore unavailable")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

func datastore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDatastore, err)
}
