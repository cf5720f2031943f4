package search

import "errors"

// ErrEmptyQuery is returned when Search is called with a blank or
// whitespace-only query. It marks an empty result envelope, not a crash.
var ErrEmptyQuery = errors.New("empty search query")
