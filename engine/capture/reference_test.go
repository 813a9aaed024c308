package capture

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/aoit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceSingleLayerMatchesOver(t *testing.T) {
	params := technique.DefaultParams()
	layer := []aoit.Fragment{ReferenceLayer(0, 0.5)}
	want := [4]float32{0.75, 0.25, 0.25, 1}

	for _, tt := range []technique.Type{technique.TypeAlphaBlend, technique.TypeWeightedBlended, technique.TypeAdaptive} {
		t.Run(tt.String(), func(t *testing.T) {
			got, err := ReferencePixel(tt, params, layer)
			require.NoError(t, err)
			for c := range 3 {
				assert.InDelta(t, want[c], got[c], 1e-2, "channel %d", c)
			}
		})
	}
}

func TestReferenceAdaptiveExactWithinNodeBudget(t *testing.T) {
	params := technique.DefaultParams()
	var layers []aoit.Fragment
	for i := params.AOIT.NodeCount - 1; i >= 0; i-- {
		layers = append(layers, ReferenceLayer(i, 0.4))
	}

	exact, err := ReferencePixel(technique.TypeAlphaBlend, params, layers)
	require.NoError(t, err)
	got, err := ReferencePixel(technique.TypeAdaptive, params, layers)
	require.NoError(t, err)
	for c := range 3 {
		assert.InDelta(t, exact[c], got[c], 1e-5)
	}
}

func TestReferenceChart(t *testing.T) {
	img, err := Reference(technique.TypeWeightedBlended, technique.DefaultParams(), 32, 8)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	// the last row is fully opaque layers, so the background no longer shows through
	_, _, _, a := img.RGBA(0, 7)
	assert.InDelta(t, 1, a, 1e-6)

	_, err = Reference(technique.Type(42), technique.DefaultParams(), 4, 4)
	assert.Error(t, err)
}
