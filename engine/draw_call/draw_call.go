// Package draw_call turns the object list of a frame into instanced draw calls for the opaque and
// transparent passes.
package draw_call

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxObjects is the number of objects the per-frame instance and material buffers hold.
const DefaultMaxObjects = 128

// Entry is one object of the frame as seen by the compiler.
type Entry struct {
	Mesh     model.MeshID
	Position mgl32.Vec3
	// Rotation holds Euler angles in radians, applied Z then Y then X.
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
	Material material.Material
	// Particles is set for particle system objects, which always get a draw call of their own.
	Particles particle.ParticleSystem
}

// IsParticleSystem reports whether the entry is drawn from its particle system's billboards.
func (e Entry) IsParticleSystem() bool {
	return e.Particles != nil
}

// DrawCall is one instanced draw.
type DrawCall struct {
	Mesh           model.MeshID
	InstanceCount  uint32
	InstanceOffset uint32
	// Object is the entry index of the first instance.
	Object int
	// Particles marks a particle system draw; Object then names the system's entry.
	Particles bool
}

// Options tunes compilation for the active technique.
type Options struct {
	// SortObjects orders transparent objects back to front. Only honored by alpha blending.
	SortObjects bool
	// SortParticles orders the particles of each system back to front. Only honored by alpha
	// blending.
	SortParticles bool
	// MaxObjects caps the entry count. Zero means DefaultMaxObjects.
	MaxObjects int
}

// OptionsFor derives the compile options from the technique parameters.
func OptionsFor(params technique.Params) Options {
	return Options{
		SortObjects:   params.AlphaBlend.SortObjects,
		SortParticles: params.AlphaBlend.SortParticles,
	}
}

// Result holds the compiled draw calls of a frame.
type Result struct {
	Opaque      []DrawCall
	Transparent []DrawCall

	OpaqueInstances      []model.GPUInstanceData
	TransparentInstances []model.GPUInstanceData

	// Materials is indexed by GPUInstanceData.MaterialIndex.
	Materials []material.GPUMaterial

	// ParticleOrders holds the back-to-front particle order of each particle system entry, keyed
	// by entry index. Empty unless particles are sorted.
	ParticleOrders map[int][]int
}

// TransparentBase returns the offset of the transparent instances when both lists are uploaded
// into one buffer, opaque first.
func (r Result) TransparentBase() uint32 {
	return uint32(len(r.OpaqueInstances))
}

// Instances returns the opaque instances followed by the transparent ones.
func (r Result) Instances() []model.GPUInstanceData {
	out := make([]model.GPUInstanceData, 0, len(r.OpaqueInstances)+len(r.TransparentInstances))
	out = append(out, r.OpaqueInstances...)
	return append(out, r.TransparentInstances...)
}

// sortRecord tags an entry with its sort keys.
type sortRecord struct {
	mesh     model.MeshID
	particle bool
	index    int
	key      float32
}

// Compile sorts and groups the entries of a frame into draw calls.
//
// Opaque entries are grouped by mesh. Transparent entries are ordered back to front when alpha
// blending with SortObjects, by mesh otherwise. Particle systems never share a draw call.
//
// Compile panics when the entry count reaches the object capacity.
//
// Parameters:
//   - entries: the objects of the frame
//   - camera: the world-space camera position
//   - active: the technique the frame is rendered with
//   - opts: compile options
//
// Returns:
//   - Result: the draw calls and their instance data
//   - error: an error if an entry is malformed
func Compile(entries []Entry, camera mgl32.Vec3, active technique.Type, opts Options) (Result, error) {
	limit := common.Coalesce(opts.MaxObjects, DefaultMaxObjects)
	if len(entries) >= limit {
		panic(fmt.Sprintf("draw_call: %d objects reach the capacity of %d", len(entries), limit))
	}

	var opaque, transparent []sortRecord
	for i, e := range entries {
		if err := e.Material.Validate(); err != nil {
			return Result{}, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.IsParticleSystem() != (e.Mesh == model.MeshParticles) {
			return Result{}, fmt.Errorf("entry %d: mesh %s does not match particle system presence", i, e.Mesh)
		}
		rec := sortRecord{mesh: e.Mesh, particle: e.IsParticleSystem(), index: i}
		if e.Material.IsTransparent() {
			transparent = append(transparent, rec)
		} else {
			opaque = append(opaque, rec)
		}
	}

	alphaBlend := active == technique.TypeAlphaBlend
	sortByMesh(opaque)
	if alphaBlend && opts.SortObjects {
		for i := range transparent {
			transparent[i].key = distanceKey(entries[transparent[i].index], camera)
		}
		sortBackToFront(transparent)
	} else {
		sortByMesh(transparent)
	}

	var res Result
	res.Opaque, res.OpaqueInstances = group(entries, opaque, &res.Materials)
	res.Transparent, res.TransparentInstances = group(entries, transparent, &res.Materials)

	if alphaBlend && opts.SortParticles {
		for _, rec := range transparent {
			if !rec.particle {
				continue
			}
			e := entries[rec.index]
			if res.ParticleOrders == nil {
				res.ParticleOrders = make(map[int][]int)
			}
			res.ParticleOrders[rec.index] = particle.BackToFront(particle.WorldPositions(e.Particles, e.Position), camera)
		}
	}
	return res, nil
}

// distanceKey is the squared camera distance minus the squared largest scale, so large objects
// sort as if their near side were closer. Particle systems use their centroid.
func distanceKey(e Entry, camera mgl32.Vec3) float32 {
	pos := e.Position
	if e.IsParticleSystem() {
		pos = pos.Add(e.Particles.Centroid())
	}
	d := pos.Sub(camera)
	s := max(e.Scale[0], e.Scale[1], e.Scale[2])
	return d.Dot(d) - s*s
}

func sortByMesh(records []sortRecord) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].mesh < records[b].mesh
	})
}

func sortBackToFront(records []sortRecord) {
	sort.SliceStable(records, func(a, b int) bool {
		if records[a].key != records[b].key {
			return records[a].key > records[b].key
		}
		return records[a].mesh < records[b].mesh
	})
}

// group walks sorted records once and cuts a new draw call on every mesh change and around every
// particle system. Materials are appended to mats and indexed sequentially.
func group(entries []Entry, records []sortRecord, mats *[]material.GPUMaterial) ([]DrawCall, []model.GPUInstanceData) {
	calls := make([]DrawCall, 0, len(records))
	instances := make([]model.GPUInstanceData, 0, len(records))

	for i, rec := range records {
		e := entries[rec.index]
		instances = append(instances, instanceData(e, uint32(len(*mats))))
		*mats = append(*mats, e.Material.GPU())

		offset := uint32(i)
		extend := len(calls) > 0 && !rec.particle
		if extend {
			last := &calls[len(calls)-1]
			extend = !last.Particles && last.Mesh == rec.mesh
			if extend {
				last.InstanceCount++
				continue
			}
		}
		calls = append(calls, DrawCall{
			Mesh:           rec.mesh,
			InstanceCount:  1,
			InstanceOffset: offset,
			Object:         rec.index,
			Particles:      rec.particle,
		})
	}
	return calls, instances
}

// instanceData builds the per-instance transform record. Particle billboards are emitted in world
// space, so particle systems get a translation-free identity transform.
func instanceData(e Entry, materialIndex uint32) model.GPUInstanceData {
	if e.IsParticleSystem() {
		return model.GPUInstanceData{
			World:         mgl32.Ident4(),
			Normal:        mgl32.Ident4(),
			MaterialIndex: materialIndex,
		}
	}
	return model.GPUInstanceData{
		World:         common.ModelMatrix(e.Position, e.Rotation, e.Scale),
		Normal:        common.RotationZYX(e.Rotation),
		MaterialIndex: materialIndex,
	}
}
