package shader

import "strings"

// classifyBinding maps a WGSL address space and type name to a BindingKind.
//
// Parameters:
//   - addressSpace: the contents of var<...>, empty for handle types
//   - typeName: the declared WGSL type
//
// Returns:
//   - Binding: a binding with Kind, TexelFormat and Access populated
func classifyBinding(addressSpace, typeName string) Binding {
	space := strings.ReplaceAll(addressSpace, " ", "")
	switch {
	case space == "uniform":
		return Binding{Kind: BindingKindUniform}
	case space == "storage" || space == "storage,read":
		return Binding{Kind: BindingKindStorageRead}
	case space == "storage,read_write":
		return Binding{Kind: BindingKindStorageReadWrite}
	}

	base, params := splitTypeParams(typeName)
	switch {
	case base == "sampler":
		return Binding{Kind: BindingKindSampler}
	case base == "sampler_comparison":
		return Binding{Kind: BindingKindComparisonSampler}
	case strings.HasPrefix(base, "texture_depth"):
		return Binding{Kind: BindingKindDepthTexture}
	case strings.HasPrefix(base, "texture_storage"):
		b := Binding{Kind: BindingKindStorageTexture, Access: "write"}
		parts := strings.Split(params, ",")
		if len(parts) > 0 {
			b.TexelFormat = strings.TrimSpace(parts[0])
		}
		if len(parts) > 1 {
			b.Access = strings.TrimSpace(parts[1])
		}
		return b
	case strings.HasPrefix(base, "texture_"):
		switch strings.TrimSpace(params) {
		case "u32":
			return Binding{Kind: BindingKindTextureUint}
		}
		return Binding{Kind: BindingKindTexture}
	}
	return Binding{Kind: BindingKindUniform}
}

// splitTypeParams splits "texture_2d<f32>" into "texture_2d" and "f32".
func splitTypeParams(typeName string) (base string, params string) {
	open := strings.IndexByte(typeName, '<')
	if open < 0 {
		return strings.TrimSpace(typeName), ""
	}
	close := strings.LastIndexByte(typeName, '>')
	if close < open {
		close = len(typeName)
	}
	return strings.TrimSpace(typeName[:open]), typeName[open+1 : close]
}

// stripComments removes line and block comments from WGSL source.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes /* */ comments, which nest in WGSL.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i++
				continue
			}
			if source[i] == '*' && source[i+1] == '/' && depth > 0 {
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
