package roster

import "fmt"

// notFoundError marks lookups that resolved to nothing. The NotFound method
// lets callers outside this package classify it without importing it.
type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string  { return e.msg }
func (e *notFoundError) NotFound() bool { return true }

var (
	ErrNotFound           error = &notFoundError{msg: "tournament not found"}
	ErrPlayerNotFound     error = &notFoundError{msg: "player not found"}
	ErrNoActiveTournament error = &notFoundError{msg: "no active tournament"}
)

// ValidationError is returned for malformed roster input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}
