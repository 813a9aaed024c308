package pass

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// tracker is the implementation of the Tracker interface.
type tracker struct {
	mu     *sync.Mutex
	logger *slog.Logger

	states map[resource.ID]resource.State
	labels map[resource.ID]string
}

// Tracker knows the current state of every resource taking part in a frame and records exactly
// the transitions each stage needs before it runs.
//
// Usage pattern:
//  1. Owner calls Track for every render target right after creating it, with its initial state
//  2. Every frame, Execute runs the frame's stage list against a command recorder
//  3. Owner calls Forget when releasing a resource, and Reset after a device rebuild
type Tracker interface {
	// Track starts tracking a resource, or overrides its known state.
	//
	// Parameters:
	//   - res: the resource
	//   - state: the state the resource is in now
	Track(res resource.Resource, state resource.State)

	// Forget stops tracking the resources with the given IDs.
	Forget(ids ...resource.ID)

	// State returns the known state of a resource.
	//
	// Returns:
	//   - resource.State: the state
	//   - bool: false if the resource is not tracked
	State(id resource.ID) (resource.State, bool)

	// Tracked returns the number of tracked resources.
	Tracked() int

	// Reset forgets every resource.
	Reset()

	// Plan computes the transitions a stage needs without committing them.
	//
	// Parameters:
	//   - stage: the stage to plan
	//
	// Returns:
	//   - []resource.Transition: the required transitions in declaration order
	//   - error: ErrHazard or ErrUntracked
	Plan(stage Stage) ([]resource.Transition, error)

	// Execute runs the stages in order. For each stage it opens a debug group, records the
	// stage's transitions, calls Record and closes the group. The tracker's states advance as
	// transitions are recorded.
	//
	// Parameters:
	//   - rec: the frame's command recorder
	//   - stages: the stages of the frame
	//
	// Returns:
	//   - error: the first planning, recording or recorder error
	Execute(rec renderer.CommandRecorder, stages []Stage) error
}

var _ Tracker = &tracker{}

// NewTracker creates an empty Tracker.
//
// Parameters:
//   - options: functional options to configure the tracker
//
// Returns:
//   - Tracker: the new tracker
func NewTracker(options ...TrackerBuilderOption) Tracker {
	t := &tracker{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
		states: make(map[resource.ID]resource.State),
		labels: make(map[resource.ID]string),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *tracker) Track(res resource.Resource, state resource.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[res.ResourceID()] = state
	t.labels[res.ResourceID()] = res.ResourceLabel()
}

func (t *tracker) Forget(ids ...resource.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.states, id)
		delete(t.labels, id)
	}
}

func (t *tracker) State(id resource.ID) (resource.State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

func (t *tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

func (t *tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.states)
	clear(t.labels)
}

func (t *tracker) Plan(stage Stage) ([]resource.Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.planLocked(stage)
}

func (t *tracker) planLocked(stage Stage) ([]resource.Transition, error) {
	if err := stage.Validate(); err != nil {
		return nil, err
	}

	var transitions []resource.Transition
	planned := make(map[resource.ID]bool, len(stage.Uses))
	for _, u := range stage.Uses {
		id := u.Resource.ResourceID()
		if planned[id] {
			continue
		}
		planned[id] = true

		current, ok := t.states[id]
		if !ok {
			return nil, fmt.Errorf("stage %s: %q: %w", stage.Name, u.Resource.ResourceLabel(), ErrUntracked)
		}
		if current == u.State {
			continue
		}
		transitions = append(transitions, resource.Transition{Resource: u.Resource, From: current, To: u.State})
	}
	return transitions, nil
}

func (t *tracker) Execute(rec renderer.CommandRecorder, stages []Stage) error {
	if err := ValidateOrder(stages); err != nil {
		return err
	}

	for _, stage := range stages {
		t.mu.Lock()
		transitions, err := t.planLocked(stage)
		if err == nil {
			for _, tr := range transitions {
				t.states[tr.Resource.ResourceID()] = tr.To
			}
		}
		t.mu.Unlock()
		if err != nil {
			return err
		}

		rec.PushDebugGroup(stage.debugLabel())
		if len(transitions) > 0 {
			rec.Barrier(transitions...)
		}
		if stage.Record != nil {
			if err := stage.Record(rec); err != nil {
				rec.PopDebugGroup()
				return fmt.Errorf("stage %s: %w", stage.debugLabel(), err)
			}
		}
		rec.PopDebugGroup()

		if err := rec.Err(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.debugLabel(), err)
		}
		t.logger.Debug("stage recorded", "stage", stage.debugLabel(), "barriers", len(transitions))
	}
	return nil
}
