// annotations.go defines the annotation types and parser for the Oxy WGSL shader pre-processor.
// Annotations are single-line WGSL comments prefixed with @oxy: that inject shared struct
// sources, emit compile-time constants from the active feature macros, and select code blocks.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered chunk at the annotation site.
	//
	// Syntax: //@oxy:include <chunk>
	//
	// Example: //@oxy:include camera
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeConst emits a module-scope constant holding the value of a macro.
	//
	// Syntax: //@oxy:const <MACRO>
	//
	// Example: //@oxy:const AOIT_NODE_COUNT  ->  const AOIT_NODE_COUNT: u32 = 4u;
	AnnotationTypeConst AnnotationType = "const"

	// AnnotationTypeIf keeps the following lines only when the macro is non-zero. A leading "!"
	// negates the test. Blocks nest.
	//
	// Syntax: //@oxy:if [!]<MACRO>
	AnnotationTypeIf AnnotationType = "if"

	// AnnotationTypeElse flips the innermost open if block.
	AnnotationTypeElse AnnotationType = "else"

	// AnnotationTypeEndIf closes the innermost open if block.
	AnnotationTypeEndIf AnnotationType = "endif"
)

// macroNameRegex validates macro identifiers.
var macroNameRegex = regexp.MustCompile(`^!?[A-Z][A-Z0-9_]*$`)

// Annotation is a parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType
	// Arg is the chunk name for include, or the macro name for const and if.
	Arg string
	// Negate is set for "//@oxy:if !MACRO".
	Negate bool
	Line   int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	a := &Annotation{Type: AnnotationType(args[0]), Line: lineNum}
	switch a.Type {
	case AnnotationTypeElse, AnnotationTypeEndIf:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s takes no arguments", lineNum, args[0])
		}
		return a, nil
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		a.Arg = args[1]
		return a, nil
	case AnnotationTypeConst, AnnotationTypeIf:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation requires exactly one macro name", lineNum, args[0])
		}
		if !macroNameRegex.MatchString(args[1]) {
			return nil, fmt.Errorf("line %d: invalid macro name %q", lineNum, args[1])
		}
		a.Arg, a.Negate = strings.CutPrefix(args[1], "!")
		if a.Negate && a.Type == AnnotationTypeConst {
			return nil, fmt.Errorf("line %d: @oxy const cannot negate %q", lineNum, a.Arg)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
