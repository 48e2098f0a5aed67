package xid

import (
	"github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. Falls back to a random v4 id if
// the v7 generator fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
