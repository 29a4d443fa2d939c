// Package typemap maps host field types to shader-side type names and
// renders shader struct definitions.
package typemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/shaderbind/hosttype"
)

// Dialect selects the shading language whose type names are produced.
type Dialect uint8

const (
	// WGSL is the WebGPU Shading Language.
	WGSL Dialect = iota
	// GLSL is the OpenGL Shading Language (Vulkan flavor).
	GLSL
)

// String returns the lowercase dialect name.
func (d Dialect) String() string {
	switch d {
	case WGSL:
		return "wgsl"
	case GLSL:
		return "glsl"
	default:
		return "Dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDialect accepts "wgsl" or "glsl" in any letter case.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "wgsl":
		return WGSL, nil
	case "glsl":
		return GLSL, nil
	}
	return 0, fmt.Errorf("typemap: unknown dialect %q (want wgsl or glsl)", s)
}

// UnsupportedTypeError reports a host type with no shader equivalent.
type UnsupportedTypeError struct {
	Type    hosttype.Type
	Dialect Dialect
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("typemap: %s has no %s equivalent", e.Type, e.Dialect)
}

// MapFieldType returns the shader type name for t.
func MapFieldType(t hosttype.Type, d Dialect) (string, error) {
	switch d {
	case GLSL:
		return mapGLSL(t)
	case WGSL:
		return mapWGSL(t)
	}
	return "", fmt.Errorf("typemap: unknown dialect %v", d)
}

func unsupported(t hosttype.Type, d Dialect) error {
	return &UnsupportedTypeError{Type: t, Dialect: d}
}

// vectorOf returns the element kind and width when t is [2..4]scalar.
func vectorOf(t hosttype.Type) (hosttype.Kind, int, bool) {
	if t.Kind != hosttype.KindArray || t.Len < 2 || t.Len > 4 || !t.Elem.Kind.IsScalar() {
		return 0, 0, false
	}
	return t.Elem.Kind, t.Len, true
}

// matrixOf returns element kind, columns and rows when t is [C][R]float.
func matrixOf(t hosttype.Type) (hosttype.Kind, int, int, bool) {
	if t.Kind != hosttype.KindArray || t.Len < 2 || t.Len > 4 {
		return 0, 0, 0, false
	}
	k, rows, ok := vectorOf(*t.Elem)
	if !ok || (k != hosttype.KindFloat32 && k != hosttype.KindFloat64) {
		return 0, 0, 0, false
	}
	return k, t.Len, rows, true
}

var glslScalars = map[hosttype.Kind]string{
	hosttype.KindBool:    "bool",
	hosttype.KindInt32:   "int",
	hosttype.KindUint32:  "uint",
	hosttype.KindFloat32: "float",
	hosttype.KindFloat64: "double",
}

var glslVectorPrefix = map[hosttype.Kind]string{
	hosttype.KindBool:    "b",
	hosttype.KindInt32:   "i",
	hosttype.KindUint32:  "u",
	hosttype.KindFloat32: "",
	hosttype.KindFloat64: "d",
}

func mapGLSL(t hosttype.Type) (string, error) {
	if s, ok := glslScalars[t.Kind]; ok {
		return s, nil
	}
	if k, cols, rows, ok := matrixOf(t); ok {
		prefix := "mat"
		if k == hosttype.KindFloat64 {
			prefix = "dmat"
		}
		if cols == rows {
			return prefix + strconv.Itoa(cols), nil
		}
		return prefix + strconv.Itoa(cols) + "x" + strconv.Itoa(rows), nil
	}
	if k, n, ok := vectorOf(t); ok {
		if p, known := glslVectorPrefix[k]; known {
			return p + "vec" + strconv.Itoa(n), nil
		}
		return "", unsupported(t, GLSL)
	}
	switch t.Kind {
	case hosttype.KindArray:
		if t.Len == 0 {
			return "", unsupported(t, GLSL)
		}
		elem, err := mapGLSL(*t.Elem)
		if err != nil {
			return "", unsupported(t, GLSL)
		}
		// Nested arrays read outermost first: [3][5]Light -> Light[3][5].
		if base, dims, found := strings.Cut(elem, "["); found {
			return base + "[" + strconv.Itoa(t.Len) + "][" + dims, nil
		}
		return elem + "[" + strconv.Itoa(t.Len) + "]", nil
	case hosttype.KindStruct:
		return t.Name, nil
	}
	return "", unsupported(t, GLSL)
}

var wgslScalars = map[hosttype.Kind]string{
	hosttype.KindBool:    "bool",
	hosttype.KindInt32:   "i32",
	hosttype.KindUint32:  "u32",
	hosttype.KindFloat32: "f32",
}

func mapWGSL(t hosttype.Type) (string, error) {
	if s, ok := wgslScalars[t.Kind]; ok {
		return s, nil
	}
	if k, cols, rows, ok := matrixOf(t); ok {
		if k != hosttype.KindFloat32 {
			return "", unsupported(t, WGSL)
		}
		return "mat" + strconv.Itoa(cols) + "x" + strconv.Itoa(rows) + "<f32>", nil
	}
	if k, n, ok := vectorOf(t); ok {
		s, known := wgslScalars[k]
		if !known {
			return "", unsupported(t, WGSL)
		}
		return "vec" + strconv.Itoa(n) + "<" + s + ">", nil
	}
	switch t.Kind {
	case hosttype.KindArray:
		if t.Len == 0 {
			return "", unsupported(t, WGSL)
		}
		elem, err := mapWGSL(*t.Elem)
		if err != nil {
			return "", unsupported(t, WGSL)
		}
		return "array<" + elem + ", " + strconv.Itoa(t.Len) + ">", nil
	case hosttype.KindStruct:
		return t.Name, nil
	}
	return "", unsupported(t, WGSL)
}

// StructText renders a struct definition for the dialect.
//
// GLSL output has the form used inside a block declaration:
//
//	Uniforms {
//	    uvec2 pos;
//	}
//
// WGSL output is a complete struct declaration:
//
//	struct Uniforms {
//	    pos: vec2<u32>,
//	}
func StructText(name string, fields []hosttype.Field, d Dialect) (string, error) {
	var sb strings.Builder
	if d == WGSL {
		sb.WriteString("struct ")
	}
	sb.WriteString(name)
	sb.WriteString(" {\n")
	for _, f := range fields {
		ty, err := MapFieldType(f.Type, d)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		sb.WriteString("    ")
		if d == WGSL {
			sb.WriteString(f.Name + ": " + ty + ",\n")
		} else {
			sb.WriteString(ty + " " + f.Name + ";\n")
		}
	}
	sb.WriteString("}")
	return sb.String(), nil
}
