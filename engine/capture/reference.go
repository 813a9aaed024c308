package capture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/aoit"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/phenomenological"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/wboit"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mrjoshuak/go-openexr/exr"
)

// ReferenceLayers is the largest layer count of a reference chart.
const ReferenceLayers = 8

var (
	referenceBackground = [4]float32{0.5, 0.5, 0.5, 1}
	referencePalette    = []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}}
)

// referenceFar is the far plane the Volition weight is evaluated against.
const referenceFar = 100

// ReferenceLayer returns the i-th surface of a reference stack: depth grows by 2 units per layer
// starting at 1 and colors cycle through red, green, blue and yellow.
func ReferenceLayer(i int, alpha float32) aoit.Fragment {
	return aoit.Fragment{
		Depth: 1 + 2*float32(i),
		Color: referencePalette[i%len(referencePalette)],
		Alpha: alpha,
	}
}

// ReferencePixel composites a stack of layers over a mid-grey background with the CPU model of
// technique t. The layers are fed in the order given, so order-dependent errors show up.
//
// Parameters:
//   - t: the technique to model
//   - params: the technique parameters
//   - layers: the transparent surfaces covering the pixel
//
// Returns:
//   - [4]float32: the final color
//   - error: an error for an unknown technique
func ReferencePixel(t technique.Type, params technique.Params, layers []aoit.Fragment) ([4]float32, error) {
	switch t {
	case technique.TypeAlphaBlend:
		src := aoit.Sorted(layers)
		var out [4]float32
		for c := range 3 {
			out[c] = src[c] + referenceBackground[c]*(1-src[3])
		}
		out[3] = 1
		return out, nil

	case technique.TypeWeightedBlended, technique.TypeWeightedBlendedVolition:
		volition := t == technique.TypeWeightedBlendedVolition
		px := wboit.NewPixel()
		for _, l := range layers {
			px.AddFragment(params, volition, referenceFar, wboit.Fragment{Color: l.Color, Alpha: l.Alpha, Depth: l.Depth})
		}
		return px.Over(referenceBackground), nil

	case technique.TypePhenomenological:
		px := phenomenological.NewPixel()
		for _, l := range layers {
			px.Add(params, phenomenological.Surface{Color: l.Color, Alpha: l.Alpha, Depth: l.Depth})
		}
		c := px.Resolve(mgl32.Vec3{referenceBackground[0], referenceBackground[1], referenceBackground[2]})
		return [4]float32{c[0], c[1], c[2], 1}, nil

	case technique.TypeAdaptive:
		list := aoit.NewNodeList(params.AOIT.NodeCount)
		for _, l := range layers {
			list.Insert(l.Depth, l.Color, l.Alpha)
		}
		return list.Over(referenceBackground), nil
	}
	return [4]float32{}, fmt.Errorf("capture: no reference model for %s", t)
}

// Reference renders a chart of technique t: columns stack 1 to ReferenceLayers layers fed back to
// front, rows raise the layer alpha from near 0 at the top to 1 at the bottom.
//
// Parameters:
//   - t: the technique to model
//   - params: the technique parameters
//   - width: the image width in pixels
//   - height: the image height in pixels
//
// Returns:
//   - *exr.RGBAImage: the chart
//   - error: an error for an unknown technique
func Reference(t technique.Type, params technique.Params, width, height int) (*exr.RGBAImage, error) {
	if _, err := ReferencePixel(t, params, nil); err != nil {
		return nil, err
	}
	layers := make([]aoit.Fragment, 0, ReferenceLayers)
	return FromFunc(width, height, func(x, y int) [4]float32 {
		n := 1 + x*ReferenceLayers/width
		alpha := float32(y+1) / float32(height)
		layers = layers[:0]
		for i := n - 1; i >= 0; i-- {
			layers = append(layers, ReferenceLayer(i, alpha))
		}
		v, _ := ReferencePixel(t, params, layers)
		return v
	}), nil
}
