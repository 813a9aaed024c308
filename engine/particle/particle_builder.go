package particle

// ParticleSystemBuilderOption is a functional option applied by NewParticleSystem.
type ParticleSystemBuilderOption func(*particleSystem)

// WithCapacity sets the maximum number of live particles.
//
// Parameters:
//   - capacity: the capacity, must be positive
//
// Returns:
//   - ParticleSystemBuilderOption: option function to apply
func WithCapacity(capacity int) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		p.capacity = capacity
	}
}

// WithClock sets the initial simulated time, which seeds the emission pattern.
func WithClock(t float32) ParticleSystemBuilderOption {
	return func(p *particleSystem) {
		p.clock = t
	}
}
