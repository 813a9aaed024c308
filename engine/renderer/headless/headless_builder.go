package headless

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// BackendBuilderOption is a functional option applied to the headless backend during construction.
type BackendBuilderOption func(*backend)

// WithCapabilities overrides the reported device capabilities.
//
// Parameters:
//   - caps: the capabilities to report
//
// Returns:
//   - BackendBuilderOption: a function that applies the capabilities option
func WithCapabilities(caps renderer.Capabilities) BackendBuilderOption {
	return func(b *backend) {
		b.caps = caps
	}
}

// WithoutFragmentOrderedAccess reports the device as lacking rasterizer ordered views.
func WithoutFragmentOrderedAccess() BackendBuilderOption {
	return func(b *backend) {
		b.caps.FragmentOrderedAccess = false
	}
}

// WithSurfaceFormat sets the swapchain format. Defaults to BGRA8Unorm.
func WithSurfaceFormat(format resource.TextureFormat) BackendBuilderOption {
	return func(b *backend) {
		b.surfaceFormat = format
	}
}

// WithShadeFunc installs the probe pixel shader used to simulate draws.
//
// Parameters:
//   - fn: the function producing fragments for each draw
//
// Returns:
//   - BackendBuilderOption: a function that applies the shade option
func WithShadeFunc(fn ShadeFunc) BackendBuilderOption {
	return func(b *backend) {
		b.shade = fn
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) BackendBuilderOption {
	return func(b *backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}
