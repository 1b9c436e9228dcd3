package engine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a lifecycle transition is not allowed
// from the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is a server lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateStarting
	StateRunning
	StateShuttingDown
	StateStopped
	StateFailed
)

var stateNames = map[State]string{
	StateInitializing: "initializing",
	StateStarting:     "starting",
	StateRunning:      "running",
	StateShuttingDown: "shutting_down",
	StateStopped:      "stopped",
	StateFailed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

var transitions = map[State][]State{
	StateInitializing: {StateStarting, StateFailed},
	StateStarting:     {StateRunning, StateFailed},
	StateRunning:      {StateShuttingDown},
	StateShuttingDown: {StateStopped, StateFailed},
}

// TransitionFunc observes a completed transition.
type TransitionFunc func(from, to State)

// Lifecycle is a concurrency-safe finite state machine for the server
// lifecycle. The zero value is not usable; use NewLifecycle.
type Lifecycle struct {
	mu        sync.Mutex
	state     State
	observers []TransitionFunc
}

// NewLifecycle returns a Lifecycle in StateInitializing.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateInitializing}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnTransition registers fn to be called after every successful transition.
// Observers run synchronously in registration order.
func (l *Lifecycle) OnTransition(fn TransitionFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Transition moves the machine to the given state. It returns an error
// wrapping ErrInvalidTransition if the move is not allowed.
func (l *Lifecycle) Transition(to State) error {
	l.mu.Lock()
	from := l.state
	if !canTransition(from, to) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	l.state = to
	observers := make([]TransitionFunc, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(from, to)
	}
	return nil
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
