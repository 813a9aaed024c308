package pass

import "log/slog"

// TrackerBuilderOption is a functional option applied by NewTracker.
type TrackerBuilderOption func(*tracker)

// WithLogger sets the logger used for per-stage debug traces.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - TrackerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) TrackerBuilderOption {
	return func(t *tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}
