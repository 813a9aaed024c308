package loader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// maxNodeDepth bounds the node hierarchy walk, which also stops cycles in malformed files.
const maxNodeDepth = 64

// gltfMeshExtractor flattens the meshes of a parsed document into one static mesh, with node
// transforms baked into the vertices.
type gltfMeshExtractor struct {
	parser *gltfParser
	out    model.MeshData
}

func newGLTFMeshExtractor(parser *gltfParser) *gltfMeshExtractor {
	return &gltfMeshExtractor{parser: parser}
}

// extract walks the default scene, or every mesh untransformed when the document has no
// scenes.
func (e *gltfMeshExtractor) extract() (model.MeshData, error) {
	doc := e.parser.document
	if doc == nil {
		return model.MeshData{}, errors.New("no document loaded")
	}

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := e.appendMesh(i, mgl32.Ident4()); err != nil {
				return model.MeshData{}, err
			}
		}
	} else {
		scene := 0
		if doc.Scene != nil {
			scene = *doc.Scene
		}
		if scene < 0 || scene >= len(doc.Scenes) {
			return model.MeshData{}, fmt.Errorf("scene index %d out of range", scene)
		}
		for _, root := range doc.Scenes[scene].Nodes {
			if err := e.walk(root, mgl32.Ident4(), 0); err != nil {
				return model.MeshData{}, err
			}
		}
	}

	if len(e.out.Indices) == 0 {
		return model.MeshData{}, errors.New("document contains no triangles")
	}
	return e.out, nil
}

func (e *gltfMeshExtractor) walk(index int, parent mgl32.Mat4, depth int) error {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Nodes) {
		return fmt.Errorf("node index %d out of range", index)
	}
	if depth > maxNodeDepth {
		return fmt.Errorf("node %d: hierarchy deeper than %d", index, maxNodeDepth)
	}
	node := &doc.Nodes[index]
	world := parent.Mul4(nodeMatrix(node))
	if node.Mesh != nil {
		if err := e.appendMesh(*node.Mesh, world); err != nil {
			return fmt.Errorf("node %d: %w", index, err)
		}
	}
	for _, child := range node.Children {
		if err := e.walk(child, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix returns the local transform of a node, T * R * S unless a matrix is given.
func nodeMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if n.Translation != nil {
		t := n.Translation
		m = m.Mul4(mgl32.Translate3D(t[0], t[1], t[2]))
	}
	if n.Rotation != nil {
		r := n.Rotation
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if n.Scale != nil {
		s := n.Scale
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

func (e *gltfMeshExtractor) appendMesh(index int, world mgl32.Mat4) error {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Meshes) {
		return fmt.Errorf("mesh index %d out of range", index)
	}
	for i := range doc.Meshes[index].Primitives {
		if err := e.appendPrimitive(&doc.Meshes[index].Primitives[i], world); err != nil {
			return fmt.Errorf("mesh %d primitive %d: %w", index, i, err)
		}
	}
	return nil
}

// appendPrimitive transforms one triangle primitive to world space and appends it to the output.
func (e *gltfMeshExtractor) appendPrimitive(prim *gltfPrimitive, world mgl32.Mat4) error {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("primitive has no POSITION attribute")
	}
	positions, err := e.parser.readVec3(posAccessor)
	if err != nil {
		return fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]model.GPUVertex, len(positions))
	for i, pos := range positions {
		vertices[i].Position = pos
	}

	hasNormals := false
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.readVec3(normalAccessor)
		if err != nil {
			return fmt.Errorf("failed to read normals: %w", err)
		}
		for i := range min(len(normals), len(vertices)) {
			vertices[i].Normal = normals[i]
		}
		hasNormals = true
	}
	if uvAccessor, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.readVec2(uvAccessor)
		if err != nil {
			return fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := range min(len(uvs), len(vertices)) {
			vertices[i].TexCoord = uvs[i]
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.readIndices(*prim.Indices); err != nil {
			return fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)-len(indices)%3]
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return fmt.Errorf("index %d out of range of %d vertices", idx, len(vertices))
		}
	}

	normalMatrix := world.Mat3().Inv().Transpose()
	for i := range vertices {
		v := &vertices[i]
		p := world.Mul4x1(mgl32.Vec4{v.Position[0], v.Position[1], v.Position[2], 1})
		v.Position = [3]float32{p[0], p[1], p[2]}
		if hasNormals {
			v.Normal = normalMatrix.Mul3x1(mgl32.Vec3(v.Normal)).Normalize()
		}
	}

	// a mirroring transform turns the triangles inside out
	mirrored := world.Mat3().Det() < 0
	base := uint32(len(e.out.Vertices))
	for i := 0; i < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if mirrored {
			b, c = c, b
		}
		e.out.Indices = append(e.out.Indices, base+a, base+b, base+c)
	}
	if !hasNormals {
		generateNormals(vertices, e.out.Indices[len(e.out.Indices)-len(indices):], base)
	}
	e.out.Vertices = append(e.out.Vertices, vertices...)
	return nil
}

// generateNormals computes area weighted smooth vertex normals from the triangles. Indices are
// offset by base into vertices.
func generateNormals(vertices []model.GPUVertex, indices []uint32, base uint32) {
	accum := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i]-base, indices[i+1]-base, indices[i+2]-base
		p0 := mgl32.Vec3(vertices[i0].Position)
		p1 := mgl32.Vec3(vertices[i1].Position)
		p2 := mgl32.Vec3(vertices[i2].Position)
		// the cross product length is proportional to the triangle area
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}
	for i, n := range accum {
		if n.Len() < 1e-6 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = n.Normalize()
	}
}

// normalize scales the mesh about the origin so its bounding radius equals radius.
func normalize(data model.MeshData, radius float32) {
	current := data.BoundingRadius()
	if current < 1e-6 || math32.IsInf(current, 0) {
		return
	}
	s := radius / current
	for i := range data.Vertices {
		p := &data.Vertices[i].Position
		p[0], p[1], p[2] = p[0]*s, p[1]*s, p[2]*s
	}
}
