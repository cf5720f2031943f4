package indexer

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("indexing is already running")
	// ErrNotRunning is returned by Stop when no run is active.
	ErrNotRunning = errors.New("indexing is not running")
	// ErrOutOfScope is returned by IndexPage for URLs outside every
	// configured site.
	ErrOutOfScope = errors.New("page is outside the configured sites")
)
