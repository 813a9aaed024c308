package technique

import (
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
)

// registry is the implementation of the Registry interface.
type registry struct {
	techniques  map[Type]Technique
	unsupported []Type
}

// Registry holds the techniques the device can run. It is filled once at startup from the device
// capabilities and never changes afterwards, so a technique missing from it never gets a
// pipeline, a target or a barrier.
type Registry interface {
	// Get returns the registered technique of the given type.
	//
	// Parameters:
	//   - t: the technique type
	//
	// Returns:
	//   - Technique: the technique, or nil
	//   - bool: false if the technique is not registered
	Get(t Type) (Technique, bool)

	// Has reports whether the technique is registered.
	Has(t Type) bool

	// Types returns the registered types in declaration order.
	Types() []Type

	// All returns the registered techniques in declaration order.
	All() []Technique

	// Unsupported returns the types that were offered but rejected by the device.
	Unsupported() []Type
}

var _ Registry = &registry{}

// NewRegistry registers every technique the capabilities support. Offering two techniques of the
// same type keeps the first.
//
// Parameters:
//   - caps: the device capabilities
//   - logger: receives one line per rejected technique, nil for slog.Default()
//   - techniques: the candidate techniques
//
// Returns:
//   - Registry: the registry
func NewRegistry(caps renderer.Capabilities, logger *slog.Logger, techniques ...Technique) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &registry{techniques: make(map[Type]Technique, len(techniques))}
	for _, t := range techniques {
		if _, dup := r.techniques[t.Type()]; dup {
			continue
		}
		if !t.Supported(caps) {
			r.unsupported = append(r.unsupported, t.Type())
			logger.Info("technique unavailable on this device", "technique", t.Type())
			continue
		}
		r.techniques[t.Type()] = t
	}
	slices.Sort(r.unsupported)
	return r
}

func (r *registry) Get(t Type) (Technique, bool) {
	tech, ok := r.techniques[t]
	return tech, ok
}

func (r *registry) Has(t Type) bool {
	_, ok := r.techniques[t]
	return ok
}

func (r *registry) Types() []Type {
	out := make([]Type, 0, len(r.techniques))
	for t := range r.techniques {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (r *registry) All() []Technique {
	types := r.Types()
	out := make([]Technique, len(types))
	for i, t := range types {
		out[i] = r.techniques[t]
	}
	return out
}

func (r *registry) Unsupported() []Type {
	return slices.Clone(r.unsupported)
}
