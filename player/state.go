package player

import "fmt"

// LifecycleState tracks a player through its life. Transitions are
// validated; an illegal request fails fast with a
// StateTransitionError instead of racing the pipeline.
type LifecycleState int

const (
	StateUninitialized LifecycleState = iota
	StateGraphBuilding
	StatePlaying
	StatePaused
	StateStopping
	StateDestroyed
	StateError
)

func (s LifecycleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateGraphBuilding:
		return "graph-building"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("LifecycleState(%d)", int(s))
}

// StateTransitionError reports a request that is illegal in the
// current state, e.g. Seek before a graph exists.
type StateTransitionError struct {
	From LifecycleState
	To   LifecycleState
	Op   string
}

func (e *StateTransitionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("player: %s not allowed in state %s", e.Op, e.From)
	}
	return fmt.Sprintf("player: illegal transition %s -> %s", e.From, e.To)
}

// transitions holds the legal edges. Error is reachable from every
// live state; only Stopping leads out of it, so cleanup always runs.
var transitions = map[LifecycleState][]LifecycleState{
	StateUninitialized: {StateGraphBuilding},
	StateGraphBuilding: {StatePlaying, StatePaused, StateStopping, StateError},
	StatePlaying:       {StatePlaying, StatePaused, StateStopping, StateError},
	StatePaused:        {StatePlaying, StatePaused, StateStopping, StateError},
	StateStopping:      {StateDestroyed},
	StateError:         {StateStopping},
}

func canTransition(from, to LifecycleState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
