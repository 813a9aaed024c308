package main

import (
	"log/slog"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadlessSystem(t *testing.T, options ...headless.BackendBuilderOption) (transparency.System, headless.Backend) {
	t.Helper()
	b := headless.New(options...)
	r := renderer.NewRenderer(b)
	require.NoError(t, r.Resize(64, 48))
	sys, err := transparency.NewSystem(r)
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)
	return sys, b
}

func newTestControls(t *testing.T, options ...headless.BackendBuilderOption) (*controls, camera.Camera) {
	t.Helper()
	sys, _ := newHeadlessSystem(t, options...)
	cam := camera.NewCamera(camera.WithPosition(cameraStart), camera.WithTarget(cameraTarget))
	return newControls(slog.Default(), sys, cam), cam
}

func TestNumberKeysSelectTechniques(t *testing.T) {
	c, _ := newTestControls(t)
	for key, want := range techniqueKeys {
		assert.True(t, c.handleKey(key))
		assert.Equal(t, want, c.system.Active())
		assert.Contains(t, c.title(), want.String())
	}
}

func TestUnsupportedTechniqueKeepsSelection(t *testing.T) {
	c, _ := newTestControls(t, headless.WithoutFragmentOrderedAccess())
	before := c.system.Active()
	assert.False(t, c.handleKey(common.Key5))
	assert.Equal(t, before, c.system.Active())
}

func TestSortingToggles(t *testing.T) {
	c, _ := newTestControls(t)
	start := c.system.Params().AlphaBlend

	assert.True(t, c.handleKey(common.KeyO))
	assert.Equal(t, !start.SortObjects, c.system.Params().AlphaBlend.SortObjects)
	assert.Equal(t, start.SortParticles, c.system.Params().AlphaBlend.SortParticles)

	assert.True(t, c.handleKey(common.KeyP))
	assert.Equal(t, !start.SortParticles, c.system.Params().AlphaBlend.SortParticles)
}

func TestCaptureKeyIsConsumedOnce(t *testing.T) {
	c, _ := newTestControls(t)
	assert.False(t, c.takeCapture())
	assert.False(t, c.handleKey(common.KeyC))
	assert.True(t, c.takeCapture())
	assert.False(t, c.takeCapture())
}

func TestResetKeyRebuildsDevice(t *testing.T) {
	sys, b := newHeadlessSystem(t)
	cam := camera.NewCamera(camera.WithPosition(cameraStart), camera.WithTarget(cameraTarget))
	c := newControls(slog.Default(), sys, cam)

	assert.False(t, c.handleKey(common.KeyR))
	require.NoError(t, sys.RenderFrame(transparency.FrameInput{Camera: cam, Light: light.NewLight()}))
	assert.Equal(t, uint64(1), sys.Generation())
	assert.Equal(t, uint64(1), b.Generation())
}

func TestZoomClampsDistance(t *testing.T) {
	c, cam := newTestControls(t)
	start := cam.Position().Sub(cam.Target()).Len()

	c.zoom(1)
	assert.InDelta(t, start*(1-zoomStep), cam.Position().Sub(cam.Target()).Len(), 1e-4)

	for range 100 {
		c.zoom(5)
	}
	assert.InDelta(t, minZoomDistance, cam.Position().Sub(cam.Target()).Len(), 1e-4)

	for range 100 {
		c.zoom(-5)
	}
	assert.InDelta(t, maxZoomDistance, cam.Position().Sub(cam.Target()).Len(), 1e-3)
}

func TestOrbitKeepsDistance(t *testing.T) {
	c, cam := newTestControls(t)
	start := cam.Position().Sub(cam.Target()).Len()
	c.orbit(200, 0)
	assert.InDelta(t, start, cam.Position().Sub(cam.Target()).Len(), 1e-4)
	assert.NotEqual(t, cameraStart, cam.Position())
}
