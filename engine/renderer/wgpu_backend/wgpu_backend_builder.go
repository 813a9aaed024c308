package wgpu_backend

import "log/slog"

// BackendBuilderOption is a functional option applied to the backend by New.
type BackendBuilderOption func(*backend)

// WithForceSoftwareRenderer requests the fallback (software) adapter instead of a hardware GPU.
//
// Parameters:
//   - force: true to force the software adapter
//
// Returns:
//   - BackendBuilderOption: a function that sets the adapter preference
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(b *backend) {
		b.forceFallbackAdapter = force
	}
}

// WithLogger sets the logger used for device lifecycle events.
func WithLogger(logger *slog.Logger) BackendBuilderOption {
	return func(b *backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}
