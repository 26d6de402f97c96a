package pipeline

import (
	"fmt"

	"github.com/mvailland/subwave/internal/streams"
)

// GraphConstructionError means a required stage could not be created,
// typically because a plugin is not installed. Fatal to graph
// construction.
type GraphConstructionError struct {
	Stage string
	Err   error
}

func (e *GraphConstructionError) Error() string {
	return fmt.Sprintf("pipeline: construct %s: %v", e.Stage, e.Err)
}

func (e *GraphConstructionError) Unwrap() error { return e.Err }

// LinkError means a discovered pad could not be linked into its
// downstream stage. Non-fatal: the stream kind is marked unavailable
// and playback continues without it.
type LinkError struct {
	Kind streams.Kind
	Caps string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("pipeline: link %s pad (%s): %v", e.Kind, e.Caps, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
