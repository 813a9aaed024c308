package main

import (
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/capture"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureFrameWritesTargetsAndReference(t *testing.T) {
	sys, b := newHeadlessSystem(t)
	cam := camera.NewCamera(camera.WithPosition(cameraStart), camera.WithTarget(cameraTarget))
	require.NoError(t, sys.RenderFrame(transparency.FrameInput{Camera: cam, Light: light.NewLight()}))

	dir := t.TempDir()
	paths, err := captureFrame(dir, 7, sys, b)
	require.NoError(t, err)
	assert.Contains(t, paths, filepath.Join(dir, "0007_SceneColor.exr"))
	assert.Contains(t, paths, filepath.Join(dir, "0007_reference_wboit.exr"))

	img, err := capture.ReadFile(filepath.Join(dir, "0007_reference_wboit.exr"))
	require.NoError(t, err)
	assert.Equal(t, referenceWidth, img.Bounds().Dx())
	assert.Equal(t, referenceHeight, img.Bounds().Dy())
}

func TestCaptureFrameWithoutProberWritesReferenceOnly(t *testing.T) {
	sys, _ := newHeadlessSystem(t)
	require.NoError(t, sys.SelectTechnique(sys.Available()[0]))

	paths, err := captureFrame(t.TempDir(), 1, sys, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, filepath.Base(paths[0]), "reference_"+sys.Active().String())
}

func TestCaptureTargetsIncludeTechniqueTextures(t *testing.T) {
	sys, _ := newHeadlessSystem(t)
	targets := captureTargets(sys)
	assert.Same(t, sys.Context().SceneColor, targets["SceneColor"])
	assert.Greater(t, len(targets), 3)
}
