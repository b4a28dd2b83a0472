package model

import (
	"errors"
	"fmt"
	"io/fs"
)

// Failure kinds. Failures are isolated to one input and never abort a run.
var (
	ErrInputNotFound          = errors.New("input not found")
	ErrIOFailure              = errors.New("io failure")
	ErrMalformedPersistedData = errors.New("malformed persisted data")
)

// Failure records a non-fatal error tied to one file, procedure, or
// persisted entry.
type Failure struct {
	Key string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Key, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Kind returns the failure kind sentinel, or nil if err is unclassified.
func (f Failure) Kind() error {
	for _, kind := range []error{ErrInputNotFound, ErrMalformedPersistedData, ErrIOFailure} {
		if errors.Is(f.Err, kind) {
			return kind
		}
	}
	return nil
}

// Classify wraps err with the matching failure kind. Missing files become
// ErrInputNotFound; anything else not already classified becomes ErrIOFailure.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInputNotFound),
		errors.Is(err, ErrIOFailure),
		errors.Is(err, ErrMalformedPersistedData):
		return err
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrInputNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
}
