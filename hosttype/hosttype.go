// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package hosttype models the Go-side types of struct fields that are
// mirrored into shader source.
//
// A Type is built either from a Go type expression (Parse), used by the
// manifest and the Go source front end, or from a reflect.Type (FromReflect),
// used when registering compiled Go structs directly.
package hosttype

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the shape of a host type.
type Kind uint8

const (
	// KindOther is any type the model does not distinguish (maps, pointers, ...).
	KindOther Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindInt
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUint
	KindFloat32
	KindFloat64
	KindString
	// KindArray is a fixed-length array; Len and Elem are set.
	KindArray
	// KindSlice is a slice; Elem is set.
	KindSlice
	// KindStruct is a named struct; Name is set.
	KindStruct
)

var kindNames = [...]string{
	KindOther:   "other",
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindInt:     "int",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindUint:    "uint",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindArray:   "array",
	KindSlice:   "slice",
	KindStruct:  "struct",
}

// String returns the Go spelling of scalar kinds and a descriptive word otherwise.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether k is a bool or numeric kind.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindFloat64
}

// scalarKinds maps Go predeclared names (and their aliases) to kinds.
var scalarKinds = map[string]Kind{
	"bool":    KindBool,
	"int8":    KindInt8,
	"int16":   KindInt16,
	"int32":   KindInt32,
	"rune":    KindInt32,
	"int64":   KindInt64,
	"int":     KindInt,
	"uint8":   KindUint8,
	"byte":    KindUint8,
	"uint16":  KindUint16,
	"uint32":  KindUint32,
	"uint64":  KindUint64,
	"uint":    KindUint,
	"float32": KindFloat32,
	"float64": KindFloat64,
	"string":  KindString,
}

// Type is an immutable description of a host field type.
type Type struct {
	Kind Kind
	// Len is the element count of an array.
	Len int
	// Elem is the element type of an array or slice.
	Elem *Type
	// Name is the struct name for KindStruct, or the original spelling for KindOther.
	Name string
}

// Scalar returns the type for a scalar kind.
func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// ArrayOf returns the type [n]elem.
func ArrayOf(n int, elem Type) Type {
	return Type{Kind: KindArray, Len: n, Elem: &elem}
}

// SliceOf returns the type []elem.
func SliceOf(elem Type) Type {
	return Type{Kind: KindSlice, Elem: &elem}
}

// Named returns a struct type reference.
func Named(name string) Type {
	return Type{Kind: KindStruct, Name: name}
}

// String renders the type in Go syntax.
func (t Type) String() string {
	switch t.Kind {
	case KindArray:
		return "[" + strconv.Itoa(t.Len) + "]" + t.Elem.String()
	case KindSlice:
		return "[]" + t.Elem.String()
	case KindStruct:
		return t.Name
	case KindOther:
		if t.Name != "" {
			return t.Name
		}
		return "<other>"
	default:
		return t.Kind.String()
	}
}

// Equal reports whether two types are structurally identical.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind || t.Len != u.Len || t.Name != u.Name {
		return false
	}
	if t.Elem == nil || u.Elem == nil {
		return t.Elem == u.Elem
	}
	return t.Elem.Equal(*u.Elem)
}

// Field is a named struct member in declaration order.
type Field struct {
	Name string
	Type Type
}

// String renders the field as a Go struct line without indentation.
func (f Field) String() string {
	return f.Name + " " + f.Type.String()
}

// FieldList renders fields as "a T, b U" for diagnostics.
func FieldList(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}

// ParseError reports a type expression that could not be understood.
type ParseError struct {
	Expr    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hosttype: cannot parse %q: %s", e.Expr, e.Message)
}
