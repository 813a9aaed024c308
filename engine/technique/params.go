package technique

import (
	"fmt"
	"slices"
)

// AlphaBlendParams tunes sorted alpha blending.
type AlphaBlendParams struct {
	SortObjects   bool `toml:"sort_objects"`
	SortParticles bool `toml:"sort_particles"`
}

// WBOITParams tunes the weight function of weighted blended OIT.
type WBOITParams struct {
	ColorResistance  float32 `toml:"color_resistance"`
	RangeAdjustment  float32 `toml:"range_adjustment"`
	DepthRange       float32 `toml:"depth_range"`
	OrderingStrength float32 `toml:"ordering_strength"`
	UnderflowLimit   float32 `toml:"underflow_limit"`
	OverflowLimit    float32 `toml:"overflow_limit"`
}

// VolitionParams tunes the Volition variant of weighted blended OIT.
type VolitionParams struct {
	OpacitySensitivity  float32 `toml:"opacity_sensitivity"`
	WeightBias          float32 `toml:"weight_bias"`
	PrecisionScalar     float32 `toml:"precision_scalar"`
	MaximumWeight       float32 `toml:"maximum_weight"`
	MaximumColorValue   float32 `toml:"maximum_color_value"`
	AdditiveSensitivity float32 `toml:"additive_sensitivity"`
	EmissiveSensitivity float32 `toml:"emissive_sensitivity"`
}

// PhenomenologicalParams scales the refraction offset and the background blur.
type PhenomenologicalParams struct {
	RefractionScale float32 `toml:"refraction_scale"`
	DiffusionScale  float32 `toml:"diffusion_scale"`
}

// AOITParams sizes the per-pixel node list of adaptive OIT.
type AOITParams struct {
	// NodeCount is the number of nodes kept per pixel, one of 2, 4 or 8. Changing it rebuilds the
	// adaptive OIT pipelines and buffers at the next frame boundary.
	NodeCount int `toml:"node_count"`
}

// AOITNodeCounts lists the supported node counts.
var AOITNodeCounts = []int{2, 4, 8}

// Params bundles the parameter block of every technique.
type Params struct {
	AlphaBlend       AlphaBlendParams       `toml:"alpha_blend"`
	WBOIT            WBOITParams            `toml:"wboit"`
	Volition         VolitionParams         `toml:"wboit_volition"`
	Phenomenological PhenomenologicalParams `toml:"phenomenological"`
	AOIT             AOITParams             `toml:"aoit"`
}

// DefaultAlphaBlendParams returns the compiled-in alpha blending defaults.
func DefaultAlphaBlendParams() AlphaBlendParams {
	return AlphaBlendParams{SortObjects: true, SortParticles: true}
}

// DefaultWBOITParams returns the compiled-in weighted blended OIT defaults.
func DefaultWBOITParams() WBOITParams {
	return WBOITParams{
		ColorResistance:  1,
		RangeAdjustment:  0.3,
		DepthRange:       200,
		OrderingStrength: 4,
		UnderflowLimit:   1e-2,
		OverflowLimit:    3e3,
	}
}

// DefaultVolitionParams returns the compiled-in Volition defaults.
func DefaultVolitionParams() VolitionParams {
	return VolitionParams{
		OpacitySensitivity:  3,
		WeightBias:          5,
		PrecisionScalar:     10000,
		MaximumWeight:       20,
		MaximumColorValue:   1000,
		AdditiveSensitivity: 10,
		EmissiveSensitivity: 0.5,
	}
}

// DefaultPhenomenologicalParams returns the compiled-in Phenomenological defaults.
func DefaultPhenomenologicalParams() PhenomenologicalParams {
	return PhenomenologicalParams{RefractionScale: 1, DiffusionScale: 1}
}

// DefaultAOITParams returns the compiled-in adaptive OIT defaults.
func DefaultAOITParams() AOITParams {
	return AOITParams{NodeCount: 4}
}

// DefaultParams returns every parameter block at its defaults.
func DefaultParams() Params {
	return Params{
		AlphaBlend:       DefaultAlphaBlendParams(),
		WBOIT:            DefaultWBOITParams(),
		Volition:         DefaultVolitionParams(),
		Phenomenological: DefaultPhenomenologicalParams(),
		AOIT:             DefaultAOITParams(),
	}
}

// Reset returns p with the block of technique t restored to its defaults.
func (p Params) Reset(t Type) Params {
	switch t {
	case TypeAlphaBlend:
		p.AlphaBlend = DefaultAlphaBlendParams()
	case TypeWeightedBlended:
		p.WBOIT = DefaultWBOITParams()
	case TypeWeightedBlendedVolition:
		p.Volition = DefaultVolitionParams()
	case TypePhenomenological:
		p.Phenomenological = DefaultPhenomenologicalParams()
	case TypeAdaptive:
		p.AOIT = DefaultAOITParams()
	}
	return p
}

func positive(name string, v float32) error {
	if !(v > 0) {
		return fmt.Errorf("%s must be positive, got %v: %w", name, v, ErrInvalidParams)
	}
	return nil
}

func nonNegative(name string, v float32) error {
	if !(v >= 0) {
		return fmt.Errorf("%s must not be negative, got %v: %w", name, v, ErrInvalidParams)
	}
	return nil
}

// Validate reports the first out-of-range value.
func (p WBOITParams) Validate() error {
	checks := []error{
		nonNegative("wboit color resistance", p.ColorResistance),
		positive("wboit range adjustment", p.RangeAdjustment),
		positive("wboit depth range", p.DepthRange),
		nonNegative("wboit ordering strength", p.OrderingStrength),
		positive("wboit underflow limit", p.UnderflowLimit),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if !(p.OverflowLimit >= p.UnderflowLimit) {
		return fmt.Errorf("wboit overflow limit %v below underflow limit %v: %w", p.OverflowLimit, p.UnderflowLimit, ErrInvalidParams)
	}
	return nil
}

// Validate reports the first out-of-range value.
func (p VolitionParams) Validate() error {
	checks := []error{
		nonNegative("volition opacity sensitivity", p.OpacitySensitivity),
		nonNegative("volition weight bias", p.WeightBias),
		positive("volition precision scalar", p.PrecisionScalar),
		positive("volition maximum weight", p.MaximumWeight),
		positive("volition maximum color value", p.MaximumColorValue),
		nonNegative("volition additive sensitivity", p.AdditiveSensitivity),
		nonNegative("volition emissive sensitivity", p.EmissiveSensitivity),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first out-of-range value.
func (p PhenomenologicalParams) Validate() error {
	if err := nonNegative("phenomenological refraction scale", p.RefractionScale); err != nil {
		return err
	}
	return nonNegative("phenomenological diffusion scale", p.DiffusionScale)
}

// Validate reports an unsupported node count.
func (p AOITParams) Validate() error {
	if !slices.Contains(AOITNodeCounts, p.NodeCount) {
		return fmt.Errorf("aoit node count %d not in %v: %w", p.NodeCount, AOITNodeCounts, ErrInvalidParams)
	}
	return nil
}

// Validate checks every block.
//
// Returns:
//   - error: the first invalid value, wrapping ErrInvalidParams
func (p Params) Validate() error {
	for _, err := range []error{p.WBOIT.Validate(), p.Volition.Validate(), p.Phenomenological.Validate(), p.AOIT.Validate()} {
		if err != nil {
			return err
		}
	}
	return nil
}
