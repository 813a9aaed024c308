package particle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityNeverExceeded(t *testing.T) {
	p := NewParticleSystem(WithCapacity(64))
	for i := range 1000 {
		p.Update(1.0 / 60)
		require.LessOrEqual(t, p.Live(), p.Capacity())
		if i == 63 {
			// lifetimes start at 10s, nothing has expired yet
			assert.Equal(t, 64, p.Live())
		}
	}

	// a large step spawns many at once but is still capped
	big := NewParticleSystem(WithCapacity(32))
	big.Update(10)
	assert.Equal(t, 32, big.Live())
}

func TestSpawnAtLeastOnePerUpdate(t *testing.T) {
	p := NewParticleSystem()
	p.Update(0.001)
	assert.Equal(t, 1, p.Live())
	p.Update(0.2)
	assert.Equal(t, 1+5, p.Live())
}

func TestExpiredParticlesAreRemoved(t *testing.T) {
	p := NewParticleSystem(WithCapacity(8)).(*particleSystem)
	p.Update(0.01)
	p.Update(0.01)
	require.Equal(t, 2, p.Live())

	// expire the first particle; its slot is filled by the last one
	survivor := p.positions[1]
	p.lifetimes[0] = 0.001
	p.Update(0.01)

	// one removed, one spawned; the spawned particle is appended after the survivor
	require.Equal(t, 2, p.Live())
	assert.True(t, p.Positions()[0].ApproxEqualThreshold(survivor.Add(p.velocities[0].Mul(0.01/(1-Damping*0.01))), 1e-4))
	for _, life := range p.Lifetimes() {
		assert.Greater(t, life, float32(0))
	}

	verts := p.Billboards(nil, mgl32.Vec3{}, mgl32.Ident4(), nil)
	assert.Len(t, verts, p.Live()*VerticesPerParticle)
}

func TestAllExpireTogether(t *testing.T) {
	p := NewParticleSystem(WithCapacity(4)).(*particleSystem)
	for range 4 {
		p.Update(0.01)
	}
	for i := range p.live {
		p.lifetimes[i] = 0
	}
	p.Update(0.5)
	// every old particle removed, then new ones spawned into the empty system
	assert.Equal(t, 4, p.Live())
	for _, life := range p.Lifetimes() {
		assert.GreaterOrEqual(t, life, float32(10))
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	a := NewParticleSystem(WithCapacity(128))
	b := NewParticleSystem(WithCapacity(128))
	for range 120 {
		a.Update(1.0 / 30)
		b.Update(1.0 / 30)
	}
	assert.Equal(t, a.Positions(), b.Positions())
}

func TestBillboardCorners(t *testing.T) {
	p := NewParticleSystem(WithCapacity(1)).(*particleSystem)
	p.live = 1
	p.positions[0] = mgl32.Vec3{1, 2, 3}

	origin := mgl32.Vec3{10, 0, 0}
	verts := p.Billboards(nil, origin, mgl32.Ident4(), nil)
	require.Len(t, verts, VerticesPerParticle)

	s := BillboardSize
	assert.Equal(t, [3]float32{11 - s, 2 - s, 3}, verts[0].Position)
	assert.Equal(t, [2]float32{0, 0}, verts[0].TexCoord)
	assert.Equal(t, [3]float32{11 + s, 2 + s, 3}, verts[3].Position)
	assert.Equal(t, [2]float32{1, 1}, verts[3].TexCoord)
	for _, v := range verts {
		assert.Equal(t, [3]float32{0, 1, 0}, v.Normal)
	}
}

func TestBackToFront(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 1}, {0, 0, 5}, {0, 0, 3}, {0, 0, 5}}
	order := BackToFront(positions, mgl32.Vec3{})
	assert.Equal(t, []int{1, 3, 2, 0}, order)

	p := NewParticleSystem(WithCapacity(4)).(*particleSystem)
	p.live = 4
	copy(p.positions, positions)
	verts := p.Billboards(nil, mgl32.Vec3{}, mgl32.Ident4(), order)
	assert.InDelta(t, 5, verts[0].Position[2], 1e-6)
	assert.InDelta(t, 1, verts[len(verts)-1].Position[2], 1e-6)
}

func TestSortRecordsBeyondFloatPrecision(t *testing.T) {
	if testing.Short() {
		t.Skip("large sort")
	}
	// indices past 2^24 are not representable in a float32
	n := 1<<24 + 3
	records := make([]sortRecord, n)
	for i := range records {
		records[i] = sortRecord{key: 1, index: i}
	}
	records[n-1].key = 2
	records[n-2].key = 2

	order := sortRecords(records)
	require.Len(t, order, n)
	assert.Equal(t, n-2, order[0])
	assert.Equal(t, n-1, order[1])
	assert.Equal(t, 0, order[2])
	assert.Equal(t, n-3, order[n-1])
}

func TestInvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { NewParticleSystem(WithCapacity(0)) })
}
