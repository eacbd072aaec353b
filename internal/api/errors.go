package api

import "fmt"

// CollaboratorCallError is returned when a call to the chat service fails,
// either in transport or with a non-2xx status. The sync core never retries
// these itself; the next poll tick is the retry.
type CollaboratorCallError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *CollaboratorCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorCallError) Unwrap() error {
	return e.Err
}
