package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a switch while another one is in flight for the same
	// widget. The request is dropped, not queued.
	ErrBusy = errors.New("engine: switch already in progress")

	// ErrUnknownBlock means no initialized widget carries the block ID.
	ErrUnknownBlock = errors.New("engine: unknown block")

	// ErrIndexRange rejects a target index outside the swatch list.
	ErrIndexRange = errors.New("engine: swatch index out of range")

	// ErrNoImages means the target swatch has neither an image set nor a
	// single-image fallback, so there is nothing to show.
	ErrNoImages = errors.New("engine: swatch has no images")
)

// SwitchError wraps an unexpected failure during the switch pipeline. The
// selection marker has been rolled back; whatever partial DOM rebuild
// happened is left in place (soft failure).
type SwitchError struct {
	BlockID string
	Err     error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("engine: switch %s: %v", e.BlockID, e.Err)
}

func (e *SwitchError) Unwrap() error { return e.Err }
