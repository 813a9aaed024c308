package main

import (
	"math"

	"github.com/Carmen-Shannon/oxy-oit/engine/game_object"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	cubesPerRow    = 5
	cubesPerColumn = 5
	cubeSpacing    = 3.0
)

// object is one entry of the demo scene table.
type object struct {
	mesh     model.MeshID
	position mgl32.Vec3
	scale    mgl32.Vec3
	rotation mgl32.Vec3
	material material.Material
}

// surface builds the material of a demo object.
func surface(color [4]float32, transmission [3]float32, ratio, collimation float32) material.Material {
	return material.New(
		material.WithColor(color),
		material.WithTransmission(transmission),
		material.WithRefraction(ratio, collimation),
	)
}

// demoObjects returns the static objects of the demo scene: a ground slab, a grid of cubes whose
// alpha grows along each row, colored panes at two opacities, thin emissive panes, refractive
// spheres of varied collimation and a grid-textured backdrop.
func demoObjects() []object {
	one := mgl32.Vec3{1, 1, 1}
	pane := mgl32.Vec3{4, 4, 0.1}
	objects := []object{
		{mesh: model.MeshCube, scale: mgl32.Vec3{100, 0.5, 100}, material: surface([4]float32{1, 1, 1, 1}, [3]float32{}, 1, 1)},
	}

	start := mgl32.Vec3{-cubeSpacing * (cubesPerRow - 1) / 2, 2.3, -cubeSpacing * (cubesPerColumn - 1) / 2}
	for i := 0; i < cubesPerRow; i++ {
		for j := 0; j < cubesPerColumn; j++ {
			r := float32(i+1) / cubesPerRow
			objects = append(objects, object{
				mesh:     model.MeshCube,
				position: start.Add(mgl32.Vec3{float32(j) * cubeSpacing, 0, float32(i) * cubeSpacing}),
				scale:    one,
				material: surface([4]float32{r, 1 - r, 0, float32(j+1) / cubesPerColumn}, [3]float32{}, 1, 1),
			})
		}
	}

	for i, z := range []float32{5, 0, -5} {
		var c [3]float32
		c[i] = 1
		objects = append(objects,
			object{mesh: model.MeshCube, position: mgl32.Vec3{15, 4, z}, scale: pane, material: surface([4]float32{c[0], c[1], c[2], 0.9}, [3]float32{}, 1, 1)},
			object{mesh: model.MeshCube, position: mgl32.Vec3{-15, 4, z}, scale: pane, material: surface([4]float32{c[0], c[1], c[2], 0.5}, [3]float32{}, 1, 1)},
		)
	}

	// the color exceeds 1 so the Volition weights treat the panes as emissive
	for i := 0; i < 25; i++ {
		objects = append(objects, object{
			mesh:     model.MeshCube,
			position: mgl32.Vec3{float32(i)*2 - 25, 4, 25},
			scale:    mgl32.Vec3{0.1, 4, 4},
			material: surface([4]float32{3, 3, 10, 0.1}, [3]float32{}, 1, 1),
		})
	}

	objects = append(objects,
		object{mesh: model.MeshCube, position: mgl32.Vec3{1, 5, -22}, scale: mgl32.Vec3{0.5, 0.5, 0.01}, material: surface([4]float32{1, 0, 0, 1}, [3]float32{}, 1, 0)},
		object{mesh: model.MeshCube, position: mgl32.Vec3{-1, 5, -35}, scale: mgl32.Vec3{1, 1, 0.005}, material: surface([4]float32{0, 1, 0, 1}, [3]float32{}, 1, 0)},
		object{mesh: model.MeshSphere, position: mgl32.Vec3{0, 5, -25}, scale: mgl32.Vec3{4, 4, 4}, material: surface([4]float32{0.3, 0.3, 1, 0.9}, [3]float32{0.3, 0.3, 1}, 1.5, 0)},
		object{mesh: model.MeshCube, position: mgl32.Vec3{7, 5, -22}, scale: mgl32.Vec3{1.5, 4, 0.005}, material: surface([4]float32{1, 0.3, 0.3, 0.9}, [3]float32{1, 0.3, 0.3}, 1, 0)},
		object{mesh: model.MeshCube, position: mgl32.Vec3{10, 5, -22}, scale: mgl32.Vec3{1.5, 4, 0.005}, material: surface([4]float32{0.3, 1, 0.3, 0.9}, [3]float32{0.3, 1, 0.3}, 1, 0.5)},
		object{mesh: model.MeshCube, position: mgl32.Vec3{13, 5, -22}, scale: mgl32.Vec3{1.5, 4, 0.005}, material: surface([4]float32{0.3, 0.3, 1, 0.9}, [3]float32{0.3, 0.3, 1}, 1, 0.9)},
		object{
			mesh:     model.MeshPlane,
			position: mgl32.Vec3{-20, 10, -25},
			scale:    mgl32.Vec3{10, 1, 10},
			rotation: mgl32.Vec3{-math.Pi / 2, math.Pi, 0},
			material: material.New(material.WithAlbedoPattern(material.PatternGrid), material.WithRefraction(1, 0)),
		},
	)
	for i, ratio := range []float32{1.001, 1.3, 1.5} {
		objects = append(objects, object{
			mesh:     model.MeshSphere,
			position: mgl32.Vec3{-22.5 + 2.5*float32(i), 5, -20},
			scale:    one,
			material: surface([4]float32{0.3, 0.3, 1, 0.9}, [3]float32{0.3, 0.3, 1}, ratio, 1),
		})
	}
	return objects
}

// demoParticles returns the two particle emitters of the demo scene.
func demoParticles() []object {
	return []object{
		{mesh: model.MeshParticles, position: mgl32.Vec3{30, 5, 20}, scale: mgl32.Vec3{1, 1, 1}, material: surface([4]float32{1, 0, 0, 0.5}, [3]float32{}, 1, 1)},
		{mesh: model.MeshParticles, position: mgl32.Vec3{30, 5, 25}, scale: mgl32.Vec3{1, 1, 1}, material: surface([4]float32{1, 1, 0, 0.5}, [3]float32{}, 1, 1)},
	}
}

// importedObject places the first imported mesh, authored at a quarter of world scale and
// facing away from the camera.
func importedObject() object {
	return object{
		mesh:     model.MeshImported,
		position: mgl32.Vec3{10, 0, -25},
		scale:    mgl32.Vec3{0.25, 0.25, 0.25},
		rotation: mgl32.Vec3{0, math.Pi, 0},
		material: material.New(),
	}
}

// buildScene instantiates the demo scene.
//
// Parameters:
//   - particleCapacity: the capacity of each particle system
//   - imported: adds an object drawing the first imported mesh
//
// Returns:
//   - []game_object.GameObject: the objects, particle systems last
func buildScene(particleCapacity int, imported bool) []game_object.GameObject {
	objects := demoObjects()
	if imported {
		objects = append(objects, importedObject())
	}
	var out []game_object.GameObject
	for _, o := range objects {
		out = append(out, game_object.NewGameObject(
			game_object.WithMesh(o.mesh),
			game_object.WithPosition(o.position),
			game_object.WithScale(o.scale),
			game_object.WithRotation(o.rotation),
			game_object.WithMaterial(o.material),
		))
	}
	for _, o := range demoParticles() {
		out = append(out, game_object.NewGameObject(
			game_object.WithMesh(o.mesh),
			game_object.WithPosition(o.position),
			game_object.WithScale(o.scale),
			game_object.WithMaterial(o.material),
			game_object.WithParticles(particle.NewParticleSystem(particle.WithCapacity(particleCapacity))),
		))
	}
	return out
}
