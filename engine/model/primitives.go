package model

import "github.com/chewxy/math32"

func sqrt32(v float32) float32 {
	return math32.Sqrt(v)
}

// Cube returns a unit cube centered on the origin with per-face normals.
//
// Returns:
//   - MeshData: 24 vertices and 36 indices
func Cube() MeshData {
	faces := []struct {
		normal, u, v [3]float32
	}{
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var m MeshData
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			var p [3]float32
			for k := range 3 {
				p[k] = 0.5 * (f.normal[k] + c[0]*f.u[k] + c[1]*f.v[k])
			}
			m.Vertices = append(m.Vertices, GPUVertex{
				Position: p,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Sphere returns a UV sphere of radius 1.
//
// Parameters:
//   - rings: number of latitude bands, at least 2
//   - segments: number of longitude bands, at least 3
//
// Returns:
//   - MeshData: the sphere geometry
func Sphere(rings, segments int) MeshData {
	rings = max(rings, 2)
	segments = max(segments, 3)

	var m MeshData
	for r := 0; r <= rings; r++ {
		theta := float32(r) / float32(rings) * math32.Pi
		st, ct := math32.Sin(theta), math32.Cos(theta)
		for s := 0; s <= segments; s++ {
			phi := float32(s) / float32(segments) * 2 * math32.Pi
			sp, cp := math32.Sin(phi), math32.Cos(phi)
			n := [3]float32{st * cp, ct, st * sp}
			m.Vertices = append(m.Vertices, GPUVertex{
				Position: n,
				Normal:   n,
				TexCoord: [2]float32{float32(s) / float32(segments), float32(r) / float32(rings)},
			})
		}
	}
	stride := uint32(segments + 1)
	for r := range uint32(rings) {
		for s := range uint32(segments) {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, a+1, b, b, a+1, b+1)
		}
	}
	return m
}

// Plane returns a unit quad on the XZ plane facing +Y.
//
// Returns:
//   - MeshData: 4 vertices and 6 indices
func Plane() MeshData {
	up := [3]float32{0, 1, 0}
	return MeshData{
		Vertices: []GPUVertex{
			{Position: [3]float32{-0.5, 0, -0.5}, Normal: up, TexCoord: [2]float32{0, 0}},
			{Position: [3]float32{0.5, 0, -0.5}, Normal: up, TexCoord: [2]float32{1, 0}},
			{Position: [3]float32{0.5, 0, 0.5}, Normal: up, TexCoord: [2]float32{1, 1}},
			{Position: [3]float32{-0.5, 0, 0.5}, Normal: up, TexCoord: [2]float32{0, 1}},
		},
		Indices: []uint32{0, 2, 1, 0, 3, 2},
	}
}

// Builtin returns the geometry of a built-in mesh. MeshParticles has no static geometry.
//
// Parameters:
//   - id: the mesh to build
//
// Returns:
//   - MeshData: the geometry
//   - bool: false if id has no static geometry
func Builtin(id MeshID) (MeshData, bool) {
	switch id {
	case MeshCube:
		return Cube(), true
	case MeshSphere:
		return Sphere(16, 32), true
	case MeshPlane:
		return Plane(), true
	}
	return MeshData{}, false
}
