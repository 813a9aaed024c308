package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSystem records what Apply pushes into it. Methods Apply does not use panic through the nil
// embedded interface.
type stubSystem struct {
	transparency.System

	mu          sync.Mutex
	params      technique.Params
	active      technique.Type
	unsupported map[technique.Type]bool
}

func (s *stubSystem) SetParams(p technique.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return nil
}

func (s *stubSystem) SelectTechnique(t technique.Type) error {
	if s.unsupported[t] {
		return technique.ErrUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = t
	return nil
}

func (s *stubSystem) Active() technique.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *stubSystem) snapshot() (technique.Params, technique.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params, s.active
}

const sampleConfig = `
technique = "aoit"

[features]
caustics = false

[window]
width = 800
height = 600

[light]
position = [1.0, 20.0, 5.0]
intensity = 2.0

[params.aoit]
node_count = 8

[params.wboit]
depth_range = 50.0
`

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, technique.TypeAdaptive, cfg.Technique)
	assert.Equal(t, features.Features{Shadows: true, Diffusion: true, Refraction: true}, cfg.Features)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, "oxy-oit", cfg.Window.Title)
	assert.Equal(t, [3]float32{1, 20, 5}, cfg.Light.Position)
	assert.Equal(t, [3]float32{1, 1, 1}, cfg.Light.Color)
	assert.Equal(t, 8, cfg.Params.AOIT.NodeCount)
	assert.Equal(t, float32(50), cfg.Params.WBOIT.DepthRange)
	assert.Equal(t, technique.DefaultWBOITParams().OrderingStrength, cfg.Params.WBOIT.OrderingStrength)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[params.wboit]\ndepth_rnage = 10.0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth_rnage")
}

func TestParseRejectsUnknownTechnique(t *testing.T) {
	_, err := Parse([]byte(`technique = "depth-peeling"`))
	assert.Error(t, err)
}

func TestParseValidates(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero window", "[window]\nwidth = 0\n"},
		{"light on target", "[light]\nposition = [0.0, 0.0, 0.0]\n"},
		{"node count", "[params.aoit]\nnode_count = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestSaveLoadKeepsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "oit.toml")
	want := Default()
	want.Technique = technique.TypePhenomenological
	want.Features.Refraction = false
	want.Params.Phenomenological.DiffusionScale = 2
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplySetsParamsAndTechnique(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	sys := &stubSystem{active: technique.TypeWeightedBlended}

	require.NoError(t, cfg.Apply(sys))
	params, active := sys.snapshot()
	assert.Equal(t, cfg.Params, params)
	assert.Equal(t, technique.TypeAdaptive, active)
}

func TestApplyUnsupportedTechniqueKeepsParams(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	sys := &stubSystem{
		active:      technique.TypeWeightedBlended,
		unsupported: map[technique.Type]bool{technique.TypeAdaptive: true},
	}

	err = cfg.Apply(sys)
	assert.ErrorIs(t, err, technique.ErrUnsupported)
	params, active := sys.snapshot()
	assert.Equal(t, 8, params.AOIT.NodeCount)
	assert.Equal(t, technique.TypeWeightedBlended, active)
}

// waitForReload drains reloads until one selects want. A write can be observed while the file is
// still truncated, so intermediate reloads are skipped.
func waitForReload(t *testing.T, w *Watcher, want technique.Type) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-w.Reloads():
			if cfg.Technique == want {
				return
			}
		case <-timeout:
			t.Fatalf("no reload selecting %s", want)
		}
	}
}

func TestWatcherAppliesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oit.toml")
	initial := Default()
	require.NoError(t, Save(path, initial))

	sys := &stubSystem{active: initial.Technique}
	w, err := NewWatcher(path, initial, sys, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	waitForReload(t, w, technique.TypeAdaptive)
	params, active := sys.snapshot()
	assert.Equal(t, 8, params.AOIT.NodeCount)
	assert.Equal(t, technique.TypeAdaptive, active)
	assert.Equal(t, technique.TypeAdaptive, w.Current().Technique)
}

func TestWatcherKeepsSettingsOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oit.toml")
	initial := Default()
	require.NoError(t, Save(path, initial))

	sys := &stubSystem{active: initial.Technique}
	w, err := NewWatcher(path, initial, sys, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("technique = \"nope\"\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("technique = \"alpha-blend\"\n"), 0o644))

	waitForReload(t, w, technique.TypeAlphaBlend)
	_, active := sys.snapshot()
	assert.Equal(t, technique.TypeAlphaBlend, active)
}
