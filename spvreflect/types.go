// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package spvreflect

import (
	"strconv"

	"github.com/gogpu/naga/spirv"
)

// TypeKind classifies a reflected type.
type TypeKind uint8

const (
	TypeOther TypeKind = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeVector
	TypeMatrix
	TypeArray
	TypeRuntimeArray
	TypeStruct
	TypeImage
	TypeSampler
	TypeSampledImage
)

var typeKindNames = [...]string{
	TypeOther:        "other",
	TypeBool:         "bool",
	TypeInt:          "int",
	TypeFloat:        "float",
	TypeVector:       "vector",
	TypeMatrix:       "matrix",
	TypeArray:        "array",
	TypeRuntimeArray: "runtime_array",
	TypeStruct:       "struct",
	TypeImage:        "image",
	TypeSampler:      "sampler",
	TypeSampledImage: "sampled_image",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "TypeKind(" + strconv.Itoa(int(k)) + ")"
}

// Dim is the dimensionality operand of OpTypeImage.
type Dim uint32

const (
	Dim1D Dim = iota
	Dim2D
	Dim3D
	DimCube
	DimRect
	DimBuffer
	DimSubpassData
)

var dimNames = [...]string{"1D", "2D", "3D", "Cube", "Rect", "Buffer", "SubpassData"}

func (d Dim) String() string {
	if int(d) < len(dimNames) {
		return dimNames[d]
	}
	return "Dim(" + strconv.Itoa(int(d)) + ")"
}

// Image describes an OpTypeImage.
type Image struct {
	// SampledType is the component type returned by sampling.
	SampledType  *Type
	Dim          Dim
	Depth        bool
	Arrayed      bool
	Multisampled bool
	// Sampled is 1 for sampled images and 2 for storage images.
	Sampled uint32
	Format  spirv.ImageFormat
	// Access is the optional access qualifier (0 read, 1 write, 2 read-write), -1 when absent.
	Access int
}

// Member is one struct member.
type Member struct {
	Name         string
	Type         *Type
	Offset       uint32
	MatrixStride uint32
	RowMajor     bool
	NonWritable  bool
	BuiltIn      bool
}

// Type is a reflected SPIR-V type.
type Type struct {
	ID   uint32
	Kind TypeKind
	// Name is the debug name of a struct, if any.
	Name   string
	Width  uint32
	Signed bool
	// Count is the component count of a vector, the column count of a
	// matrix or the length of an array.
	Count       uint32
	Elem        *Type
	ArrayStride uint32
	Members     []Member
	Image       *Image
	// Block and BufferBlock mirror the decorations on struct types.
	Block       bool
	BufferBlock bool
}

// String renders the type in a compact WGSL-like notation.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeBool:
		return "bool"
	case TypeInt:
		if t.Signed {
			return "i" + strconv.Itoa(int(t.Width))
		}
		return "u" + strconv.Itoa(int(t.Width))
	case TypeFloat:
		return "f" + strconv.Itoa(int(t.Width))
	case TypeVector:
		return "vec" + strconv.Itoa(int(t.Count)) + "<" + t.Elem.String() + ">"
	case TypeMatrix:
		return "mat" + strconv.Itoa(int(t.Count)) + "x" + strconv.Itoa(int(t.Elem.Count)) + "<" + t.Elem.Elem.String() + ">"
	case TypeArray:
		return "array<" + t.Elem.String() + ", " + strconv.Itoa(int(t.Count)) + ">"
	case TypeRuntimeArray:
		return "array<" + t.Elem.String() + ">"
	case TypeStruct:
		if t.Name != "" {
			return t.Name
		}
		return "struct%" + strconv.Itoa(int(t.ID))
	case TypeImage:
		return "image" + t.Image.Dim.String()
	case TypeSampler:
		return "sampler"
	case TypeSampledImage:
		return "sampled<" + t.Elem.String() + ">"
	}
	return "other"
}

// Content returns the struct a buffer block wraps. Compilers such as naga
// declare a uniform or storage variable of struct type S as an unnamed Block
// holding one unnamed S at offset 0; Content returns S for such a wrapper
// and t otherwise.
func (t *Type) Content() *Type {
	if t == nil || t.Kind != TypeStruct || t.Name != "" || len(t.Members) != 1 {
		return t
	}
	m := t.Members[0]
	if m.Name != "" || m.Offset != 0 || m.Type.Kind != TypeStruct {
		return t
	}
	return m.Type
}

// Align returns the alignment of t in host-shareable memory.
func (t *Type) Align() uint32 {
	switch t.Kind {
	case TypeBool:
		return 4
	case TypeInt, TypeFloat:
		return t.Width / 8
	case TypeVector:
		n := t.Count
		if n == 3 {
			n = 4
		}
		return n * t.Elem.Align()
	case TypeMatrix:
		return t.Elem.Align()
	case TypeArray, TypeRuntimeArray:
		return t.Elem.Align()
	case TypeStruct:
		var a uint32 = 1
		for _, m := range t.Members {
			a = max(a, m.Type.Align())
		}
		return a
	}
	return 0
}

// Size returns the byte size of t as laid out in a buffer. Explicit
// strides and offsets take precedence; a runtime array counts as a single
// element, which is the minimum binding size of a buffer ending in one.
func (t *Type) Size() uint32 {
	switch t.Kind {
	case TypeBool:
		return 4
	case TypeInt, TypeFloat:
		return t.Width / 8
	case TypeVector:
		return t.Count * t.Elem.Size()
	case TypeMatrix:
		return t.Count * roundUp(t.Elem.Size(), t.Elem.Align())
	case TypeArray:
		return t.Count * t.stride()
	case TypeRuntimeArray:
		return t.stride()
	case TypeStruct:
		if len(t.Members) == 0 {
			return 0
		}
		var end uint32
		for _, m := range t.Members {
			end = max(end, m.Offset+m.size())
		}
		return roundUp(end, t.Align())
	}
	return 0
}

func (t *Type) stride() uint32 {
	if t.ArrayStride != 0 {
		return t.ArrayStride
	}
	return roundUp(t.Elem.Size(), t.Elem.Align())
}

func (m Member) size() uint32 {
	if m.Type.Kind == TypeMatrix && m.MatrixStride != 0 {
		return m.Type.Count * m.MatrixStride
	}
	return m.Type.Size()
}

func roundUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}
