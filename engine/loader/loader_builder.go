package loader

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-oit/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader.
type LoaderBuilderOption func(*loader)

// WithLogger sets the logger import summaries are written to.
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBoundingRadius rescales every imported mesh about its origin so its bounding radius equals
// radius. Zero keeps the file's units.
//
// Parameters:
//   - radius: the target bounding radius
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithBoundingRadius(radius float32) LoaderBuilderOption {
	return func(l *loader) {
		l.radius = radius
	}
}

// WithMesh pre-populates the cache with an already imported mesh.
//
// Parameters:
//   - name: the cache key, usually the file path
//   - data: the mesh
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithMesh(name string, data model.MeshData) LoaderBuilderOption {
	return func(l *loader) {
		l.meshes[name] = data
	}
}
