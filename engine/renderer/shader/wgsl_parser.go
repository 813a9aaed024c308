package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// wgslVertexFormatMap maps WGSL type names usable as vertex inputs to their format and byte size.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {VertexFormatFloat32, 4},
	"vec2f":     {VertexFormatFloat32x2, 8},
	"vec2<f32>": {VertexFormatFloat32x2, 8},
	"vec3f":     {VertexFormatFloat32x3, 12},
	"vec3<f32>": {VertexFormatFloat32x3, 12},
	"vec4f":     {VertexFormatFloat32x4, 16},
	"vec4<f32>": {VertexFormatFloat32x4, 16},
	"u32":       {VertexFormatUint32, 4},
}

// unfilterableSuffix marks float textures that are only read with textureLoad, such as r32float
// targets, which WebGPU cannot bind as filterable.
const unfilterableSuffix = "Raw"

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// fieldRegex matches a struct member: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`^\s*((?:@\w+(?:\([^)]*\))?\s*)*)(\w+)\s*:\s*(.+?)\s*$`)

	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)
	computeEntryRegex  = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// vertexParamRegex captures the parameter type of the vertex entry point's first struct argument.
	vertexParamRegex = regexp.MustCompile(`(?s)@vertex\s*fn\s+\w+\s*\(([^)]*)\)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\w+)\s*(?:,\s*(\w+)\s*(?:,\s*(\w+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> camera: CameraUniform;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// constRegex captures "const NAME: u32 = 16u;" style declarations used to resolve named workgroup sizes.
	constRegex = regexp.MustCompile(`const\s+(\w+)\s*(?::\s*\w+)?\s*=\s*(\d+)u?\s*;`)
)

// parseBindings reflects every @group/@binding declaration from WGSL source.
//
// Parameters:
//   - source: the pre-processed WGSL source code
//
// Returns:
//   - []Binding: the bindings ordered by group then binding index
func parseBindings(source string) []Binding {
	cleaned := stripComments(source)
	var out []Binding
	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		b := classifyBinding(strings.TrimSpace(match[3]), strings.TrimSpace(match[5]))
		b.Group = group
		b.Binding = binding
		b.Name = strings.TrimSpace(match[4])
		if b.Kind == BindingKindTexture && strings.HasSuffix(b.Name, unfilterableSuffix) {
			b.Kind = BindingKindTextureUnfilterable
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Binding) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Binding - b.Binding
	})
	return out
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Dimensions may be literals or names of module-scope constants. Omitted dimensions default to 1.
//
// Parameters:
//   - source: the pre-processed WGSL source code
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	cleaned := stripComments(source)
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(cleaned)
	if match == nil {
		return result
	}

	consts := make(map[string]uint32)
	for _, c := range constRegex.FindAllStringSubmatch(cleaned, -1) {
		if v, err := strconv.ParseUint(c[2], 10, 32); err == nil {
			consts[c[1]] = uint32(v)
		}
	}

	for i := range 3 {
		dim := match[i+1]
		if dim == "" {
			continue
		}
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			result[i] = uint32(v)
		} else if v, ok := consts[dim]; ok {
			result[i] = v
		}
	}
	return result
}

// parseEntryPoint extracts the entry point function name for the given shader type.
// Returns an empty string if no matching entry point is found.
func parseEntryPoint(source string, shaderType ShaderType) string {
	cleaned := stripComments(source)

	var re *regexp.Regexp
	switch shaderType {
	case ShaderTypeVertex:
		re = vertexEntryRegex
	case ShaderTypeFragment:
		re = fragmentEntryRegex
	case ShaderTypeCompute:
		re = computeEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks finds all struct blocks in comment-free WGSL source.
func parseStructBlocks(source string) []parsedStruct {
	var out []parsedStruct
	for _, match := range structBlockRegex.FindAllStringSubmatch(source, -1) {
		ps := parsedStruct{name: match[1]}
		for _, member := range strings.Split(match[2], ",") {
			fm := fieldRegex.FindStringSubmatch(member)
			if fm == nil {
				continue
			}
			field := parsedField{name: fm[2], typeName: strings.TrimSpace(fm[3]), location: -1}
			if lm := locationRegex.FindStringSubmatch(fm[1]); lm != nil {
				field.location, _ = strconv.Atoi(lm[1])
			}
			field.builtin = strings.Contains(fm[1], "@builtin")
			ps.fields = append(ps.fields, field)
		}
		out = append(out, ps)
	}
	return out
}

// parseVertexLayout reflects the vertex buffer layout consumed by the vertex entry point.
// The entry point must take a struct made only of @location members. Shaders that generate
// their vertices from @builtin(vertex_index) return ok=false.
//
// Parameters:
//   - source: the pre-processed WGSL source code
//
// Returns:
//   - VertexLayout: the packed vertex layout
//   - bool: true if the entry point consumes a vertex buffer
func parseVertexLayout(source string) (VertexLayout, bool) {
	cleaned := stripComments(source)
	params := vertexParamRegex.FindStringSubmatch(cleaned)
	if params == nil {
		return VertexLayout{}, false
	}

	structs := parseStructBlocks(cleaned)
	for _, param := range strings.Split(params[1], ",") {
		_, typeName, ok := strings.Cut(param, ":")
		if !ok {
			continue
		}
		typeName = strings.TrimSpace(typeName)
		idx := slices.IndexFunc(structs, func(ps parsedStruct) bool { return ps.name == typeName })
		if idx < 0 {
			continue
		}
		return buildVertexLayout(structs[idx])
	}
	return VertexLayout{}, false
}

// buildVertexLayout packs the @location members of a struct in declaration order.
func buildVertexLayout(ps parsedStruct) (VertexLayout, bool) {
	var layout VertexLayout
	for _, f := range ps.fields {
		if f.builtin || f.location < 0 {
			return VertexLayout{}, false
		}
		info, ok := wgslVertexFormatMap[f.typeName]
		if !ok {
			return VertexLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, VertexAttribute{
			Location: f.location,
			Format:   info.format,
			Offset:   layout.Stride,
		})
		layout.Stride += info.size
	}
	return layout, len(layout.Attributes) > 0
}
