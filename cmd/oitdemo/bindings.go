package main

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
)

const (
	orbitSensitivity = 0.005
	zoomStep         = 0.1
	minZoomDistance  = 1
	maxZoomDistance  = 400
)

// techniqueKeys maps the number keys to techniques in menu order.
var techniqueKeys = map[uint32]technique.Type{
	common.Key1: technique.TypeAlphaBlend,
	common.Key2: technique.TypeWeightedBlended,
	common.Key3: technique.TypeWeightedBlendedVolition,
	common.Key4: technique.TypePhenomenological,
	common.Key5: technique.TypeAdaptive,
}

// controls turns window input into system and camera changes. Key and pointer callbacks run on
// the window thread; the capture request is consumed by the render loop.
type controls struct {
	logger *slog.Logger
	system transparency.System
	camera camera.Camera

	captureRequested atomic.Bool
}

func newControls(logger *slog.Logger, sys transparency.System, cam camera.Camera) *controls {
	return &controls{logger: logger, system: sys, camera: cam}
}

// title returns the window title for the technique the next frame renders with.
func (c *controls) title() string {
	return fmt.Sprintf("oxy-oit - %s", c.system.Active())
}

// handleKey applies one key press.
//
// Parameters:
//   - key: the key code
//
// Returns:
//   - bool: true if the key changed what is rendered and the title should be refreshed
func (c *controls) handleKey(key uint32) bool {
	if t, ok := techniqueKeys[key]; ok {
		if err := c.system.SelectTechnique(t); err != nil {
			c.logger.Warn("technique not selected", "technique", t, "error", err)
			return false
		}
		c.logger.Info("technique selected", "technique", t)
		return true
	}

	switch key {
	case common.KeyO, common.KeyP:
		p := c.system.Params()
		if key == common.KeyO {
			p.AlphaBlend.SortObjects = !p.AlphaBlend.SortObjects
		} else {
			p.AlphaBlend.SortParticles = !p.AlphaBlend.SortParticles
		}
		if err := c.system.SetParams(p); err != nil {
			c.logger.Warn("sorting not toggled", "error", err)
			return false
		}
		c.logger.Info("sorting toggled", "objects", p.AlphaBlend.SortObjects, "particles", p.AlphaBlend.SortParticles)
		return true
	case common.KeyR:
		c.logger.Info("device reset requested")
		c.system.RequestDeviceReset()
	case common.KeyC:
		c.captureRequested.Store(true)
	}
	return false
}

// orbit rotates the camera around its target by a horizontal drag.
func (c *controls) orbit(dx, _ float32) {
	c.camera.Orbit(dx * orbitSensitivity)
}

// zoom moves the camera toward its target for a positive delta and away for a negative one.
func (c *controls) zoom(delta float32) {
	target := c.camera.Target()
	offset := c.camera.Position().Sub(target)
	distance := offset.Len()
	if distance == 0 {
		return
	}
	next := common.Clamp(distance*(1-delta*zoomStep), minZoomDistance, maxZoomDistance)
	c.camera.SetPosition(target.Add(offset.Mul(next / distance)))
}

// takeCapture reports and clears a pending capture request.
func (c *controls) takeCapture() bool {
	return c.captureRequested.Swap(false)
}
