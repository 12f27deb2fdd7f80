package crawler

import "errors"

var (
	// ErrFetchFailure marks a remote error that left a channel's existence undetermined.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrMalformed marks a response section that was missing or could not be parsed.
	ErrMalformed = errors.New("malformed response")
	// ErrRecordNotFound is returned by store lookups for unknown keys.
	ErrRecordNotFound = errors.New("record not found")
)
