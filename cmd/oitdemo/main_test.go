package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/config"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-t", "aoit", "--width", "640", "--height=480", "--headless", "-n", "3", "--capture", "out"})
	require.NoError(t, err)
	assert.Equal(t, "aoit", o.technique)
	assert.Equal(t, 640, o.width)
	assert.Equal(t, 480, o.height)
	assert.True(t, o.headless)
	assert.Equal(t, uint64(3), o.frames)
	assert.Equal(t, "out", o.captureDir)
	assert.Equal(t, "info", o.logLevel)
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"headless without frames", []string{"--headless"}},
		{"negative width", []string{"--width", "-1"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			assert.Error(t, err)
		})
	}

	_, err := parseFlags([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oit.toml")
	cfg := config.Default()
	cfg.Technique = technique.TypePhenomenological
	require.NoError(t, config.Save(path, cfg))

	got, err := loadConfig(options{configPath: path, width: 320})
	require.NoError(t, err)
	assert.Equal(t, technique.TypePhenomenological, got.Technique)
	assert.Equal(t, uint32(320), got.Window.Width)
	assert.Equal(t, cfg.Window.Height, got.Window.Height)

	got, err = loadConfig(options{configPath: path, technique: "wboit-volition"})
	require.NoError(t, err)
	assert.Equal(t, technique.TypeWeightedBlendedVolition, got.Technique)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(options{technique: "painter"})
	assert.Error(t, err)

	_, err = loadConfig(options{configPath: filepath.Join(t.TempDir(), "missing.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestTechniqueNamesListsEveryTechnique(t *testing.T) {
	names := techniqueNames()
	for _, want := range []string{"alpha-blend", "wboit", "wboit-volition", "phenomenological", "aoit"} {
		assert.Contains(t, names, want)
	}
}
