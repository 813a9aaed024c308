package engine

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/game_object"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/scene"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSystem fails every frame. Methods the engine does not call panic through the nil
// embedded interface.
type failingSystem struct {
	transparency.System
	err error
}

func (s *failingSystem) RenderFrame(transparency.FrameInput) error {
	return s.err
}

func newTestScene(t *testing.T) scene.Scene {
	t.Helper()
	sc := scene.NewScene("test", scene.WithComputeWorkers(2), scene.WithObjects(
		game_object.NewGameObject(
			game_object.WithMesh(model.MeshCube),
			game_object.WithRotationSpeed(mgl32.Vec3{0, 1, 0}),
		),
		game_object.NewGameObject(
			game_object.WithMesh(model.MeshPlane),
			game_object.WithPosition(mgl32.Vec3{0, 0, 1}),
			game_object.WithMaterial(material.New(material.WithColor([4]float32{0, 0, 1, 0.5}))),
		),
		game_object.NewGameObject(
			game_object.WithMesh(model.MeshParticles),
			game_object.WithParticles(particle.NewParticleSystem()),
			game_object.WithMaterial(material.New(material.WithColor([4]float32{1, 1, 1, 0.4}))),
		),
	))
	return sc
}

func newHeadlessEngine(t *testing.T, options ...EngineBuilderOption) (Engine, headless.Backend) {
	t.Helper()
	b := headless.New()
	r := renderer.NewRenderer(b)
	require.NoError(t, r.Resize(64, 48))
	sys, err := transparency.NewSystem(r)
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)

	cam := camera.NewCamera(camera.WithPosition(mgl32.Vec3{0, 2, 6}), camera.WithAspect(64.0/48.0))
	return NewEngine(sys, newTestScene(t), cam, light.NewLight(), options...), b
}

func TestRunStopsAfterMaxFrames(t *testing.T) {
	e, b := newHeadlessEngine(t, WithMaxFrames(5), WithFixedTimeStep(1.0/60))

	var ticks []float32
	e.SetTickCallback(func(dt float32) { ticks = append(ticks, dt) })

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(5), e.Frames())
	assert.Equal(t, uint64(5), b.PresentCount())
	require.Len(t, ticks, 5)
	assert.InDelta(t, 1.0/60, ticks[0], 1e-9)
}

func TestSceneIsSteppedEveryFrame(t *testing.T) {
	e, _ := newHeadlessEngine(t, WithMaxFrames(4), WithFixedTimeStep(0.25))
	require.NoError(t, e.Run())

	cube := e.Scene().Objects()[0]
	assert.InDelta(t, 1.0, cube.Rotation()[1], 1e-5)
	ps := e.Scene().Objects()[2].Particles()
	assert.Positive(t, ps.Live())
}

func TestQuitFromFrameCallback(t *testing.T) {
	e, _ := newHeadlessEngine(t)
	e.SetFrameCallback(func(frame uint64) {
		if frame == 3 {
			e.Quit()
		}
	})
	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Frames())
	e.Quit()
}

func TestRunReturnsFrameError(t *testing.T) {
	boom := errors.New("boom")
	cam := camera.NewCamera()
	e := NewEngine(&failingSystem{err: boom}, newTestScene(t), cam, light.NewLight())

	err := e.Run()
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, e.Frames())
}

func TestRunRecoversFromPanic(t *testing.T) {
	e, _ := newHeadlessEngine(t, WithTickCallback(func(float32) { panic("tick exploded") }))

	err := e.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick exploded")
}
