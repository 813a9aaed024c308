package main

import (
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-oit/engine/capture"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
)

const (
	referenceWidth  = 256
	referenceHeight = 64
)

// captureTargets collects the shared targets and the textures of the active technique by name.
func captureTargets(sys transparency.System) map[string]*resource.Texture {
	ctx := sys.Context()
	targets := map[string]*resource.Texture{
		"SceneColor":   ctx.SceneColor,
		"Depth":        ctx.Depth,
		"Accumulation": ctx.Accumulation,
	}
	if tech, ok := sys.Technique(sys.Active()); ok {
		for _, use := range tech.Resources() {
			if tex, ok := use.Resource.(*resource.Texture); ok {
				targets[tex.ResourceLabel()] = tex
			}
		}
	}
	return targets
}

// captureFrame writes the render targets of a frame as OpenEXR files, followed by the reference
// chart of the active technique. Targets are only written when a prober can read them back.
//
// Parameters:
//   - dir: the output directory
//   - frame: the frame number used as file prefix
//   - sys: the transparency system
//   - prober: the texel source, nil when the backend cannot read textures back
//
// Returns:
//   - []string: the written paths
//   - error: the first write error
func captureFrame(dir string, frame uint64, sys transparency.System, prober capture.Prober) ([]string, error) {
	prefix := fmt.Sprintf("%04d", frame)
	var paths []string
	if prober != nil {
		written, err := capture.Targets(dir, prefix, prober, captureTargets(sys))
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
	}

	active := sys.Active()
	chart, err := capture.Reference(active, sys.Params(), referenceWidth, referenceHeight)
	if err != nil {
		return paths, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_reference_%s.exr", prefix, active))
	if err := capture.WriteFile(path, chart); err != nil {
		return paths, err
	}
	return append(paths, path), nil
}
