package transparency

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

// SystemBuilderOption is a functional option applied by NewSystem.
type SystemBuilderOption func(*system)

// WithLogger sets the logger of the system and of the techniques it drives.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - SystemBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) SystemBuilderOption {
	return func(s *system) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFeatures sets the features the caller asks for. They are resolved once against the device
// capabilities; unsupported features are turned off and logged.
//
// Parameters:
//   - intent: the requested features
//
// Returns:
//   - SystemBuilderOption: option function to apply
func WithFeatures(intent features.Features) SystemBuilderOption {
	return func(s *system) {
		s.intent = intent
	}
}

// WithTechnique sets the technique active on the first frame. NewSystem fails if the device
// cannot run it.
func WithTechnique(t technique.Type) SystemBuilderOption {
	return func(s *system) {
		s.initial = t
	}
}

// WithParams sets the initial parameter blocks. They are validated by NewSystem.
func WithParams(p technique.Params) SystemBuilderOption {
	return func(s *system) {
		s.params = p
	}
}

// WithTechniques replaces the set of techniques offered to the registry. Techniques the device
// cannot run are dropped.
//
// Parameters:
//   - techniques: the candidate techniques, one per type
//
// Returns:
//   - SystemBuilderOption: option function to apply
func WithTechniques(techniques ...technique.Technique) SystemBuilderOption {
	return func(s *system) {
		s.techniques = techniques
	}
}

// WithMaxObjects sets the capacity of the per-frame instance and material buffers.
func WithMaxObjects(n int) SystemBuilderOption {
	return func(s *system) {
		if n > 0 {
			s.maxObjects = n
		}
	}
}

// WithFrames sets the number of frames kept in flight.
func WithFrames(n int) SystemBuilderOption {
	return func(s *system) {
		if n > 0 {
			s.frames = n
		}
	}
}

// WithUI sets the function recording the UI stage.
func WithUI(fn UIFunc) SystemBuilderOption {
	return func(s *system) {
		s.ui = fn
	}
}

// WithMeshes registers imported meshes. The i-th mesh is drawn by objects whose mesh id is
// model.MeshImported + i. The meshes are uploaded with the built-in ones and re-uploaded after a
// device rebuild.
//
// Parameters:
//   - meshes: the imported geometry, e.g. from loader.Loader
//
// Returns:
//   - SystemBuilderOption: option function to apply
func WithMeshes(meshes ...model.MeshData) SystemBuilderOption {
	return func(s *system) {
		s.imported = append(s.imported, meshes...)
	}
}
