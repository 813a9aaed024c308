// Package particle simulates the CPU particle systems drawn through the transparent path and
// builds their camera-facing billboard vertices.
package particle

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultCapacity is the maximum number of live particles per system.
	DefaultCapacity = 2048
	// VerticesPerParticle is the number of billboard vertices (two triangles) per particle.
	VerticesPerParticle = 6
	// BillboardSize is the half-extent of a billboard in world units.
	BillboardSize float32 = 0.2
	// SpawnRate is the number of particles spawned per second of simulated time.
	SpawnRate float32 = 25
	// Damping is the fraction of velocity lost per second.
	Damping float32 = 0.2
)

// particleSystem is the implementation of the ParticleSystem interface.
type particleSystem struct {
	capacity   int
	positions  []mgl32.Vec3
	velocities []mgl32.Vec3
	lifetimes  []float32
	live       int
	// clock is the simulated time driving the emission pattern
	clock float32
}

// ParticleSystem holds the parallel position, velocity and lifetime arrays of one emitter. Only
// the first Live entries are meaningful. Positions are relative to the owning object.
//
// A ParticleSystem is not safe for concurrent use; the scene updates each system from a single
// worker per frame.
type ParticleSystem interface {
	// Update advances the simulation by dt seconds: expired particles are removed by swapping
	// with the last live particle, new ones are spawned up to capacity, then every live particle
	// is integrated and damped.
	//
	// Parameters:
	//   - dt: the frame delta time in seconds
	Update(dt float32)

	// Live returns the number of live particles.
	Live() int

	// Capacity returns the maximum number of live particles.
	Capacity() int

	// Positions returns the positions of the live particles. The slice aliases internal storage
	// and is valid until the next Update.
	Positions() []mgl32.Vec3

	// Lifetimes returns the remaining lifetimes of the live particles.
	Lifetimes() []float32

	// Centroid returns the mean position of the live particles, or the origin when none are live.
	Centroid() mgl32.Vec3

	// Billboards appends 6 vertices per live particle to dst, facing the camera.
	//
	// Parameters:
	//   - dst: the slice to append to, reused between frames
	//   - origin: the world position of the owning object
	//   - view: the camera view matrix, whose rows give the camera right and up axes
	//   - order: the particle order, nil for storage order. See BackToFront.
	//
	// Returns:
	//   - []model.GPUVertex: dst with the billboards appended
	Billboards(dst []model.GPUVertex, origin mgl32.Vec3, view mgl32.Mat4, order []int) []model.GPUVertex
}

var _ ParticleSystem = &particleSystem{}

// NewParticleSystem creates an empty particle system.
//
// Parameters:
//   - options: functional options to configure the system
//
// Returns:
//   - ParticleSystem: the new system
func NewParticleSystem(options ...ParticleSystemBuilderOption) ParticleSystem {
	p := &particleSystem{capacity: DefaultCapacity}
	for _, opt := range options {
		opt(p)
	}
	if p.capacity <= 0 {
		panic(fmt.Sprintf("particle: capacity must be positive, got %d", p.capacity))
	}
	p.positions = make([]mgl32.Vec3, p.capacity)
	p.velocities = make([]mgl32.Vec3, p.capacity)
	p.lifetimes = make([]float32, p.capacity)
	return p
}

func (p *particleSystem) swap(a, b int) {
	p.positions[a], p.positions[b] = p.positions[b], p.positions[a]
	p.velocities[a], p.velocities[b] = p.velocities[b], p.velocities[a]
	p.lifetimes[a], p.lifetimes[b] = p.lifetimes[b], p.lifetimes[a]
}

func (p *particleSystem) Update(dt float32) {
	// remove expired particles; the swapped-in particle is revisited
	for i := 0; i < p.live; i++ {
		p.lifetimes[i] -= dt
		if p.lifetimes[i] < 0 {
			p.live--
			if i != p.live {
				p.swap(i, p.live)
			}
			i--
		}
	}

	spawn := int(max(dt*SpawnRate, 1))
	t := p.clock
	for j := 0; j < spawn && p.live < p.capacity; j++ {
		i := p.live
		fi := float32(i)
		v := mgl32.Vec3{
			math32.Sin(t+fi) * 0.97,
			math32.Cos(t*t + fi),
			math32.Sin(t * fi),
		}.Mul(math32.Cos(t + dt*fi))
		if v.Len() > 0 {
			v = v.Normalize()
		}
		p.velocities[i] = v
		p.positions[i] = v
		p.lifetimes[i] = (math32.Sin(t+fi)+1)*3 + 10
		p.live++
	}

	damping := 1 - Damping*dt
	for i := range p.live {
		p.positions[i] = p.positions[i].Add(p.velocities[i].Mul(dt))
		p.velocities[i] = p.velocities[i].Mul(damping)
	}
	p.clock += dt
}

func (p *particleSystem) Live() int {
	return p.live
}

func (p *particleSystem) Capacity() int {
	return p.capacity
}

func (p *particleSystem) Positions() []mgl32.Vec3 {
	return p.positions[:p.live]
}

func (p *particleSystem) Lifetimes() []float32 {
	return p.lifetimes[:p.live]
}

func (p *particleSystem) Centroid() mgl32.Vec3 {
	var c mgl32.Vec3
	if p.live == 0 {
		return c
	}
	for _, pos := range p.positions[:p.live] {
		c = c.Add(pos)
	}
	return c.Mul(1 / float32(p.live))
}

func (p *particleSystem) Billboards(dst []model.GPUVertex, origin mgl32.Vec3, view mgl32.Mat4, order []int) []model.GPUVertex {
	right := mgl32.Vec3{view.At(0, 0), view.At(0, 1), view.At(0, 2)}.Mul(BillboardSize)
	up := mgl32.Vec3{view.At(1, 0), view.At(1, 1), view.At(1, 2)}.Mul(BillboardSize)

	emit := func(pos mgl32.Vec3) {
		corner := func(c mgl32.Vec3, u, v float32) model.GPUVertex {
			return model.GPUVertex{
				Position: [3]float32(c),
				Normal:   [3]float32{0, 1, 0},
				TexCoord: [2]float32{u, v},
			}
		}
		dst = append(dst,
			corner(pos.Sub(up).Sub(right), 0, 0),
			corner(pos.Add(up).Sub(right), 0, 1),
			corner(pos.Sub(up).Add(right), 1, 0),
			corner(pos.Add(up).Add(right), 1, 1),
			corner(pos.Sub(up).Add(right), 1, 0),
			corner(pos.Add(up).Sub(right), 0, 1),
		)
	}

	if order == nil {
		for _, pos := range p.positions[:p.live] {
			emit(origin.Add(pos))
		}
		return dst
	}
	for _, i := range order {
		emit(origin.Add(p.positions[i]))
	}
	return dst
}

// sortRecord tags a sort key with the index it belongs to. Keeping the index as an integer
// keeps it exact at any particle count.
type sortRecord struct {
	key   float32
	index int
}

// BackToFront returns the indices of positions ordered from farthest to nearest to the camera.
// Equal distances keep their storage order.
//
// Parameters:
//   - positions: world-space positions
//   - camera: the camera position
//
// Returns:
//   - []int: a permutation of [0, len(positions))
func BackToFront(positions []mgl32.Vec3, camera mgl32.Vec3) []int {
	records := make([]sortRecord, len(positions))
	for i, pos := range positions {
		d := pos.Sub(camera)
		records[i] = sortRecord{key: d.Dot(d), index: i}
	}
	return sortRecords(records)
}

func sortRecords(records []sortRecord) []int {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].key > records[b].key
	})
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.index
	}
	return out
}

// WorldPositions offsets the live positions of a system by origin.
func WorldPositions(p ParticleSystem, origin mgl32.Vec3) []mgl32.Vec3 {
	local := p.Positions()
	out := make([]mgl32.Vec3, len(local))
	for i, pos := range local {
		out[i] = origin.Add(pos)
	}
	return out
}
