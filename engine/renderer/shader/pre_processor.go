// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for
// @oxy: annotations, injects registered chunks, emits macro constants and strips disabled
// conditional blocks, so one WGSL file serves every feature configuration.
package shader

import (
	"fmt"
	"maps"
	"strings"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
)

// Macros maps macro names to their integer values. Boolean switches use 0 and 1.
type Macros map[string]int

// Flag converts a boolean into a macro value.
func Flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Merge returns a copy of m with every entry of other applied on top.
func (m Macros) Merge(other Macros) Macros {
	out := make(Macros, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// chunks maps include names to WGSL source injected by @oxy:include.
	chunks map[string]string
}

// PreProcessor processes raw WGSL shader source containing @oxy: annotations.
type PreProcessor interface {
	// Process expands every annotation in source using the given macro values.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//   - macros: macro values referenced by const and if annotations
	//
	// Returns:
	//   - string: the processed WGSL source code
	//   - error: an error if an annotation is malformed, references an unknown chunk or macro,
	//     or leaves a conditional block open
	Process(source string, macros Macros) (string, error)

	// RegisterChunk adds or replaces an include chunk.
	//
	// Parameters:
	//   - name: the include name
	//   - source: the WGSL text to inject
	RegisterChunk(name, source string)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's shared GPU struct chunks registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		chunks: map[string]string{
			"camera":   camera.GPUCameraUniformSource,
			"light":    light.GPULightUniformSource,
			"material": material.GPUMaterialSource,
			"instance": model.GPUInstanceDataSource,
			"vertex":   model.GPUVertexSource,
		},
	}
}

func (p *preProcessor) RegisterChunk(name, source string) {
	p.chunks[name] = source
}

// condFrame tracks one open if block.
type condFrame struct {
	parentActive bool
	taken        bool
	inElse       bool
}

func (p *preProcessor) Process(source string, macros Macros) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	var stack []condFrame
	active := true
	included := make(map[string]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			if active {
				out = append(out, line)
			}
			continue
		}

		switch a.Type {
		case AnnotationTypeIf:
			v, ok := macros[a.Arg]
			if !ok {
				return "", fmt.Errorf("line %d: undefined macro %q", a.Line, a.Arg)
			}
			cond := (v != 0) != a.Negate
			stack = append(stack, condFrame{parentActive: active, taken: cond})
			active = active && cond
		case AnnotationTypeElse:
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return "", fmt.Errorf("line %d: @oxy else without matching if", a.Line)
			}
			top := &stack[len(stack)-1]
			top.inElse = true
			active = top.parentActive && !top.taken
		case AnnotationTypeEndIf:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: @oxy endif without matching if", a.Line)
			}
			active = stack[len(stack)-1].parentActive
			stack = stack[:len(stack)-1]
		case AnnotationTypeInclude:
			if !active {
				continue
			}
			chunk, ok := p.chunks[a.Arg]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Arg)
			}
			// a chunk lands once per module even if several files pull it in
			if included[a.Arg] {
				continue
			}
			included[a.Arg] = true
			out = append(out, chunk)
		case AnnotationTypeConst:
			if !active {
				continue
			}
			v, ok := macros[a.Arg]
			if !ok {
				return "", fmt.Errorf("line %d: undefined macro %q", a.Line, a.Arg)
			}
			if v < 0 {
				out = append(out, fmt.Sprintf("const %s: i32 = %d;", a.Arg, v))
			} else {
				out = append(out, fmt.Sprintf("const %s: u32 = %du;", a.Arg, v))
			}
		}
	}
	if len(stack) != 0 {
		return "", fmt.Errorf("unterminated @oxy if block (%d open)", len(stack))
	}
	return strings.Join(out, "\n"), nil
}
