package editor

import (
	"errors"
	"fmt"

	"github.com/dyluth/blueprints/pkg/blueprint"
)

var (
	// ErrSessionActive is returned by Open while another session is open.
	ErrSessionActive = errors.New("an editing session is already open")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("editing session is closed")
)

// SaveError is returned when a snapshot could not be persisted. The session
// keeps its unsaved additions.
type SaveError struct {
	Key blueprint.Key
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save blueprint %s: %v", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
