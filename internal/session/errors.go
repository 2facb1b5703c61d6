package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a query or persist is attempted before an
	// index has been built.
	ErrNotReady = errors.New("session not ready: no index built")

	// ErrBuilding is returned when an ingestion is already in progress.
	ErrBuilding = errors.New("session is building")

	// ErrNotPersistable is returned when persist is called on a session whose
	// index backend is server-backed and has no file artifact form.
	ErrNotPersistable = errors.New("index backend does not support file persistence")
)

// TooManyDocumentsError rejects an ingestion batch larger than the session's
// document limit. It is raised before any loading starts.
type TooManyDocumentsError struct {
	Count int
	Limit int
}

func (e *TooManyDocumentsError) Error() string {
	return fmt.Sprintf("too many documents: %d exceeds limit of %d", e.Count, e.Limit)
}
