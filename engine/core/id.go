package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is the opaque, sortable identifier spec.md §3 assigns a message at
// construction ("id: an opaque unique identifier"). Its lexical order
// follows creation time at one-second resolution (ids minted within the
// same second are in random order), which is convenient for log
// correlation but not something the kernel itself relies on.
type ID string

// String renders id as plain text, e.g. for wire encoding or logging.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether id is the unset zero value.
func (id ID) IsZero() bool {
	return id == ""
}

// NewID mints a fresh ID. Message.New calls this once per message.
func NewID() (ID, error) {
	generated, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}
	return ID(generated.String()), nil
}

// MustNewID is NewID for call sites (tests, fixtures) that would rather
// panic than thread an error through for a generator that only fails on
// exhausted entropy.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID wraps an externally supplied string as an ID once it has been
// confirmed to actually be a KSUID, rejecting empty or malformed input.
// message.FromJSON does not call it: a deserialized message keeps its id
// string as is.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("parse message id: empty")
	}
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("parse message id %q: %w", s, err)
	}
	return ID(s), nil
}
