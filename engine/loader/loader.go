// Package loader imports static meshes from glTF 2.0 files (.gltf with external or embedded
// buffers, and .glb) for the transparency system's imported mesh slots.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/model"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu     *sync.Mutex
	logger *slog.Logger
	// radius, when positive, rescales every loaded mesh to this bounding radius.
	radius float32
	meshes map[string]model.MeshData
}

// Loader imports glTF geometry and caches it by name. Every mesh of the default scene is merged
// into one indexed triangle list with node transforms applied; materials, skins and animations
// are ignored.
type Loader interface {
	// Load imports the glTF or GLB file at path, or returns the cached mesh for that path.
	//
	// Parameters:
	//   - path: path to a .gltf or .glb file
	//
	// Returns:
	//   - model.MeshData: the merged geometry
	//   - error: a read or format error
	Load(path string) (model.MeshData, error)

	// LoadReader imports a glTF document from r and caches it under name. External buffer files
	// cannot be resolved; buffers must be embedded as data URIs or in the GLB binary chunk.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the document
	//   - isGLB: true if r holds a GLB container
	//
	// Returns:
	//   - model.MeshData: the merged geometry
	//   - error: a read or format error
	LoadReader(name string, r io.Reader, isGLB bool) (model.MeshData, error)

	// Get returns a cached mesh.
	Get(name string) (model.MeshData, bool)

	// Meshes returns a copy of the cache.
	Meshes() map[string]model.MeshData
}

var _ Loader = &loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: functional options to configure the loader
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
		meshes: make(map[string]model.MeshData),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *loader) Load(path string) (model.MeshData, error) {
	if data, ok := l.Get(path); ok {
		return data, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
	default:
		return model.MeshData{}, fmt.Errorf("loader: unsupported file extension %q", ext)
	}

	p := &gltfParser{}
	if err := p.parseFile(path); err != nil {
		return model.MeshData{}, fmt.Errorf("loader: %s: %w", path, err)
	}
	return l.finish(path, p)
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.MeshData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.MeshData{}, fmt.Errorf("loader: %s: failed to read data: %w", name, err)
	}
	p := &gltfParser{}
	if err := p.parse(raw, isGLB); err != nil {
		return model.MeshData{}, fmt.Errorf("loader: %s: %w", name, err)
	}
	return l.finish(name, p)
}

func (l *loader) finish(name string, p *gltfParser) (model.MeshData, error) {
	data, err := newGLTFMeshExtractor(p).extract()
	if err != nil {
		return model.MeshData{}, fmt.Errorf("loader: %s: %w", name, err)
	}
	if l.radius > 0 {
		normalize(data, l.radius)
	}

	l.mu.Lock()
	l.meshes[name] = data
	l.mu.Unlock()
	l.logger.Info("mesh imported", "name", name, "vertices", len(data.Vertices), "triangles", len(data.Indices)/3)
	return data, nil
}

func (l *loader) Get(name string) (model.MeshData, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, ok := l.meshes[name]
	return data, ok
}

func (l *loader) Meshes() map[string]model.MeshData {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.MeshData, len(l.meshes))
	for k, v := range l.meshes {
		out[k] = v
	}
	return out
}
