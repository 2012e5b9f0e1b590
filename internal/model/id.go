package model

import (
	"github.com/oklog/ulid/v2"
)

// ID is the externally visible 128-bit lexicographically sortable
// identifier of a node (spec's "Ulid").
type ID = ulid.ULID

// ParseID parses the canonical string encoding of an ID.
func ParseID(s string) (ID, error) {
	return ulid.Parse(s)
}

// NewID generates an ID from the millisecond timestamp ms and the
// caller-supplied monotonic entropy reader.
func NewID(ms uint64, entropy ulid.MonotonicReader) (ID, error) {
	return ulid.New(ms, entropy)
}
