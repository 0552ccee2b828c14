package ids

import "github.com/segmentio/ksuid"

// New returns a new time-ordered identifier.
func New() string {
	return ksuid.New().String()
}

// Valid reports whether id is a well-formed identifier produced by New.
func Valid(id string) bool {
	_, err := ksuid.Parse(id)
	return err == nil
}
