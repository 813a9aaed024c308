package technique

import (
	"fmt"
	"sync"
)

// selector is the implementation of the Selector interface.
type selector struct {
	mu       *sync.Mutex
	registry Registry

	active  Type
	pending Type
	hasNext bool
}

// Selector tracks the active technique. A selection takes effect at the next frame boundary,
// when the frame loop calls Commit, so a frame never mixes two techniques.
type Selector interface {
	// Active returns the technique the current frame uses.
	Active() Type

	// Pending returns the selection waiting for the next frame boundary.
	//
	// Returns:
	//   - Type: the pending technique
	//   - bool: false if nothing is pending
	Pending() (Type, bool)

	// Select requests a technique for the next frame. Selecting the active technique cancels a
	// pending switch.
	//
	// Parameters:
	//   - t: the technique to switch to
	//
	// Returns:
	//   - error: ErrUnsupported if the technique is not registered; the selection is unchanged
	Select(t Type) error

	// Commit applies the pending selection.
	//
	// Returns:
	//   - Type: the technique active before the call
	//   - bool: true if the active technique changed
	Commit() (Type, bool)
}

var _ Selector = &selector{}

// NewSelector creates a Selector starting on initial.
//
// Parameters:
//   - registry: the registered techniques
//   - initial: the technique active on the first frame
//
// Returns:
//   - Selector: the selector
//   - error: ErrUnsupported if initial is not registered
func NewSelector(registry Registry, initial Type) (Selector, error) {
	if !registry.Has(initial) {
		return nil, fmt.Errorf("initial technique %s: %w", initial, ErrUnsupported)
	}
	return &selector{mu: &sync.Mutex{}, registry: registry, active: initial}, nil
}

func (s *selector) Active() Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *selector) Pending() (Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasNext
}

func (s *selector) Select(t Type) error {
	if !s.registry.Has(t) {
		return fmt.Errorf("select %s: %w", t, ErrUnsupported)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == s.active {
		s.hasNext = false
		return nil
	}
	s.pending, s.hasNext = t, true
	return nil
}

func (s *selector) Commit() (Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	if !s.hasNext {
		return prev, false
	}
	s.active, s.hasNext = s.pending, false
	return prev, true
}
