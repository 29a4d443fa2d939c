package compiler

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/gogpu/shaderbind/stage"
)

// GlslcBackend is the backend name reported by Glslc.
const GlslcBackend = "glslc"

// GlslcOptions configures the glslc backend.
type GlslcOptions struct {
	// Path is the executable; defaults to "glslc" on PATH.
	Path string
	// TargetEnv is passed as --target-env; defaults to vulkan1.0.
	TargetEnv string
	// Args are appended before the input arguments.
	Args []string
}

// Glslc compiles GLSL by running the glslc executable.
type Glslc struct {
	opts GlslcOptions
}

// NewGlslc returns a glslc backend.
func NewGlslc(opts GlslcOptions) *Glslc {
	if opts.Path == "" {
		opts.Path = "glslc"
	}
	if opts.TargetEnv == "" {
		opts.TargetEnv = "vulkan1.0"
	}
	return &Glslc{opts: opts}
}

// Name implements Compiler.
func (g *Glslc) Name() string { return GlslcBackend }

// Command builds the command line for stage k.
func (g *Glslc) Command(ctx context.Context, k stage.Kind) *exec.Cmd {
	args := []string{
		"-fshader-stage=" + k.GlslcName(),
		"--target-env=" + g.opts.TargetEnv,
	}
	args = append(args, g.opts.Args...)
	args = append(args, "-o", "-", "-")
	return exec.CommandContext(ctx, g.opts.Path, args...)
}

// Compile feeds source to glslc on stdin and reads SPIR-V from stdout.
// glslc's stderr becomes the diagnostic.
func (g *Glslc) Compile(ctx context.Context, source string, k stage.Kind) (*Artifact, error) {
	cmd := g.Command(ctx, k)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return nil, &CompilationError{Backend: GlslcBackend, Stage: k, Diagnostic: diag, Err: err}
	}
	out := stdout.Bytes()
	if !hasMagic(out) {
		return nil, &CompilationError{
			Backend:    GlslcBackend,
			Stage:      k,
			Diagnostic: "output is not a SPIR-V module",
			Err:        errors.New("missing SPIR-V magic number"),
		}
	}
	return &Artifact{SPIRV: out, Stage: k, EntryPoint: "main", Backend: GlslcBackend}, nil
}
