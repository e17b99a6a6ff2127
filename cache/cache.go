// Package cache provides a small TTL cache for HTTP responses with
// optional ETag revalidation. The weather client uses it so repeated
// aggregations for nearby requests do not hammer the provider.
package cache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached response with metadata
type Entry struct {
	ETag      string          `json:"etag,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	Body      json.RawMessage `json:"body"`
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Read retrieves an entry by key. Returns the entry and true when
	// found and younger than maxAge; an expired entry is returned with
	// false so callers can still revalidate with its ETag.
	Read(key string, maxAge time.Duration) (*Entry, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	Write(key string, entry *Entry) error
}

// ReadWriter combines both cache operations
type ReadWriter interface {
	Reader
	Writer
}

// KeyGenerator generates stable cache keys from request parameters
type KeyGenerator interface {
	KeyFor(path string, params map[string]string) string
}

// Cache is the full surface the weather client consumes
type Cache interface {
	ReadWriter
	KeyGenerator
}
