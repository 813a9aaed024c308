// Package pass sequences the stages of a frame and inserts the resource state transitions each
// stage needs. Stages are plain data: a frame is a []Stage built from the feature configuration
// and the active technique, so disabled stages simply are not in the list.
package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// Stage names of the frame state machine, in execution order.
const (
	StageShadow           = "Shadow"
	StageStochasticShadow = "StochasticShadow"
	StageOpaque           = "Opaque"
	StageBackgroundMipGen = "BackgroundMipGen"
	StageAccumulate       = "Accumulate"
	StageComposite        = "Composite"
	StageUI               = "UI"
	StagePresent          = "Present"
)

// Order lists every stage name in the order a frame runs them.
var Order = []string{
	StageShadow,
	StageStochasticShadow,
	StageOpaque,
	StageBackgroundMipGen,
	StageAccumulate,
	StageComposite,
	StageUI,
	StagePresent,
}

var (
	// ErrHazard is returned when a stage declares a resource both writable and readable.
	ErrHazard = errors.New("pass: resource is both written and read in one stage")

	// ErrUntracked is returned when a stage uses a resource the tracker does not know.
	ErrUntracked = errors.New("pass: resource is not tracked")

	// ErrOutOfOrder is returned when stages are not in frame order.
	ErrOutOfOrder = errors.New("pass: stage out of order")
)

// Use declares that a stage accesses a resource in a given state.
type Use struct {
	Resource resource.Resource
	State    resource.State
}

// Stage is one step of a frame. Record is called after the stage's transitions were recorded.
type Stage struct {
	Name string
	// Label overrides Name for the debug group, e.g. "Accumulate/WBOIT".
	Label string
	Uses  []Use
	// Record records the stage's commands. May be nil for stages that only transition resources.
	Record func(rec renderer.CommandRecorder) error
}

// debugLabel returns the label of the stage's debug group.
func (s Stage) debugLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// Reads returns every resource the stage samples.
func (s Stage) Reads() []resource.Resource {
	var out []resource.Resource
	for _, u := range s.Uses {
		if !u.State.Writable() {
			out = append(out, u.Resource)
		}
	}
	return out
}

// Writes returns every resource the stage writes.
func (s Stage) Writes() []resource.Resource {
	var out []resource.Resource
	for _, u := range s.Uses {
		if u.State.Writable() {
			out = append(out, u.Resource)
		}
	}
	return out
}

// Validate checks that no resource is declared twice with conflicting states.
//
// Returns:
//   - error: ErrHazard wrapped with the offending resource, or nil
func (s Stage) Validate() error {
	seen := make(map[resource.ID]resource.State, len(s.Uses))
	for _, u := range s.Uses {
		if u.Resource == nil {
			return fmt.Errorf("stage %s: nil resource", s.Name)
		}
		prev, ok := seen[u.Resource.ResourceID()]
		if ok && prev != u.State {
			if prev.Writable() != u.State.Writable() {
				return fmt.Errorf("stage %s: %q as %s and %s: %w", s.Name, u.Resource.ResourceLabel(), prev, u.State, ErrHazard)
			}
			return fmt.Errorf("stage %s: %q declared as %s and %s", s.Name, u.Resource.ResourceLabel(), prev, u.State)
		}
		seen[u.Resource.ResourceID()] = u.State
	}
	return nil
}

// ValidateOrder checks that stage names follow Order. Consecutive stages may share a name, which
// is how a state with several sub-passes is expressed. Names outside Order are rejected.
func ValidateOrder(stages []Stage) error {
	rank := make(map[string]int, len(Order))
	for i, name := range Order {
		rank[name] = i
	}
	last := -1
	for _, s := range stages {
		r, ok := rank[s.Name]
		if !ok {
			return fmt.Errorf("%w: unknown stage %q", ErrOutOfOrder, s.Name)
		}
		if r < last {
			return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, s.Name, Order[last])
		}
		last = r
	}
	return nil
}
