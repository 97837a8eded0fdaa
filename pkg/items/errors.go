package items

import "errors"

var (
	// ErrNotFound is returned when an optimistic update targets an id that is
	// not in the cache. No request is sent.
	ErrNotFound = errors.New("items: item not in cache")
)
