// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package bindgen turns compiled SPIR-V into Go binding source.
//
// The generated file declares one type per shader embedding bind.Shader,
// a constructor that fills in the reflected interface, group and binding
// constants for every resource, and optionally Go mirrors of the buffer
// block structs.
package bindgen

import (
	"bytes"
	"fmt"
	"go/format"

	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/spvreflect"
)

// Reflector produces binding source for a compiled shader.
type Reflector interface {
	Reflect(name string, a *compiler.Artifact) (string, error)
}

// ReflectionError reports a failure to produce bindings for a shader.
type ReflectionError struct {
	Name string
	Err  error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflect %s: %v", e.Name, e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// Default values for GoOptions.
const (
	DefaultPackage       = "shaders"
	DefaultRuntimeImport = "github.com/gogpu/shaderbind/bind"
)

// GoOptions configures the Go reflector.
type GoOptions struct {
	// Package is the package clause of generated files.
	Package string
	// RuntimeImport is the import path of the bind runtime.
	RuntimeImport string
	// EmitStructs adds Go mirrors of buffer block structs.
	EmitStructs bool
}

// GoReflector renders Go bindings.
type GoReflector struct {
	opts GoOptions
}

// NewGo returns a Go reflector.
func NewGo(opts GoOptions) *GoReflector {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	if opts.RuntimeImport == "" {
		opts.RuntimeImport = DefaultRuntimeImport
	}
	return &GoReflector{opts: opts}
}

// Reflect implements Reflector. name becomes the generated type name.
func (g *GoReflector) Reflect(name string, a *compiler.Artifact) (string, error) {
	if a == nil || len(a.SPIRV) == 0 {
		return "", &ReflectionError{Name: name, Err: fmt.Errorf("empty artifact")}
	}
	module, err := spvreflect.Parse(a.SPIRV)
	if err != nil {
		return "", &ReflectionError{Name: name, Err: err}
	}
	words, err := compiler.Words(a.SPIRV)
	if err != nil {
		return "", &ReflectionError{Name: name, Err: err}
	}

	b := newBuilder(name, g.opts)
	model, err := b.build(module, a, words)
	if err != nil {
		return "", &ReflectionError{Name: name, Err: err}
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, model); err != nil {
		return "", &ReflectionError{Name: name, Err: err}
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return "", &ReflectionError{Name: name, Err: fmt.Errorf("format generated source: %w", err)}
	}
	return string(src), nil
}
