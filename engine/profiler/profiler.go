// Package profiler reports frame rate, frame time, per-state CPU time and memory statistics
// through slog at a fixed interval.
package profiler

import (
	"log/slog"
	"runtime"
	"slices"
	"time"
)

// Stats is one report of the profiler.
type Stats struct {
	FPS       float64
	FrameTime time.Duration
	// States holds the average CPU time per frame spent in each tracked state.
	States map[string]time.Duration
	HeapMB float64
	// AllocRateMB is the heap allocation rate in MB per second.
	AllocRateMB float64
	GCCount     uint32
	LastPause   time.Duration
	MaxPause    time.Duration
	SysMB       float64
}

// Profiler tracks frame rate, per-state timings and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger         *slog.Logger
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	states         map[string]time.Duration
	last           Stats
	now            func() time.Time
}

// ProfilerBuilderOption is a functional option applied by NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger stats are written to.
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets how often stats are reported.
//
// Parameters:
//   - d: the report interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
		p.lastTime = now()
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         slog.Default(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
		states:         make(map[string]time.Duration),
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Track adds d to the CPU time spent in state during the current interval.
func (p *Profiler) Track(state string, d time.Duration) {
	p.states[state] += d
}

// Time starts timing state and returns the function that stops it.
//
//	defer p.Time("render")()
func (p *Profiler) Time(state string) func() {
	start := p.now()
	return func() {
		p.Track(state, p.now().Sub(start))
	}
}

// Last returns the most recent report.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	stats := Stats{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		FrameTime: elapsed / time.Duration(p.frameCount),
		States:    make(map[string]time.Duration, len(p.states)),
		// Alloc is live heap memory, Sys is the process footprint obtained from the OS
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := p.memStats.NumGC; gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		stats.LastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			stats.MaxPause = max(stats.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	attrs := []any{
		"fps", roundTo(stats.FPS, 2),
		"frame", stats.FrameTime,
	}
	names := make([]string, 0, len(p.states))
	for name := range p.states {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		avg := p.states[name] / time.Duration(p.frameCount)
		stats.States[name] = avg
		attrs = append(attrs, name, avg)
	}
	attrs = append(attrs,
		"heap_mb", roundTo(stats.HeapMB, 2),
		"alloc_mb_s", roundTo(stats.AllocRateMB, 2),
		"gc", stats.GCCount,
		"gc_last", stats.LastPause,
		"gc_max", stats.MaxPause,
		"sys_mb", roundTo(stats.SysMB, 2),
	)
	p.logger.Info("profiler", attrs...)

	p.last = stats
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	clear(p.states)
	return true
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for range places {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}
