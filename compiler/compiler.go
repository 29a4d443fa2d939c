// Package compiler turns substituted shader source into SPIR-V.
//
// Backends implement Compiler. Two are provided: Naga compiles WGSL in
// process with github.com/gogpu/naga, and Glslc runs the external glslc
// executable for GLSL.
package compiler

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shaderbind/stage"
)

// Compiler compiles one shader stage. Each call makes exactly one attempt.
type Compiler interface {
	Compile(ctx context.Context, source string, k stage.Kind) (*Artifact, error)
	Name() string
}

// Artifact is compiled SPIR-V for one stage.
type Artifact struct {
	// SPIRV is the little-endian module binary.
	SPIRV      []byte
	Stage      stage.Kind
	EntryPoint string
	// Backend names the Compiler that produced the artifact.
	Backend string
}

// Words returns the module as 32-bit words.
func (a *Artifact) Words() ([]uint32, error) {
	return Words(a.SPIRV)
}

// Words converts a little-endian SPIR-V binary to words.
func Words(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("spirv length %d is not a multiple of 4", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

// hasMagic reports whether data starts with the SPIR-V magic number in either byte order.
func hasMagic(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	const magic uint32 = spirv.MagicNumber
	return binary.LittleEndian.Uint32(data) == magic || binary.BigEndian.Uint32(data) == magic
}

// CompilationError carries a compiler diagnostic verbatim.
type CompilationError struct {
	Backend    string
	Stage      stage.Kind
	Diagnostic string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s: compile %s shader: %s", e.Backend, e.Stage, e.Diagnostic)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// Func adapts a function to the Compiler interface.
type Func func(ctx context.Context, source string, k stage.Kind) (*Artifact, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, source string, k stage.Kind) (*Artifact, error) {
	return f(ctx, source, k)
}

// Name returns "func".
func (f Func) Name() string { return "func" }
