package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"

	"github.com/gogpu/shaderbind/stage"
)

// NagaBackend is the backend name reported by Naga.
const NagaBackend = "naga"

// NagaOptions configures the naga backend.
type NagaOptions struct {
	// SPIRVVersion defaults to SPIR-V 1.3.
	SPIRVVersion spirv.Version
	// Debug keeps OpName/OpMemberName so reflected bindings carry names.
	Debug bool
	// Logger receives lowering warnings. Nil discards them.
	Logger *slog.Logger
}

// Naga compiles WGSL with github.com/gogpu/naga.
type Naga struct {
	opts NagaOptions
}

// NewNaga returns a naga backend. Debug info is needed for named bindings,
// so callers normally set Debug.
func NewNaga(opts NagaOptions) *Naga {
	if opts.SPIRVVersion == (spirv.Version{}) {
		opts.SPIRVVersion = spirv.Version1_3
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Naga{opts: opts}
}

// Name implements Compiler.
func (n *Naga) Name() string { return NagaBackend }

// Compile parses, lowers, validates and emits SPIR-V for source. The
// module must declare an entry point for stage k.
func (n *Naga) Compile(ctx context.Context, source string, k stage.Kind) (*Artifact, error) {
	fail := func(diag string, err error) (*Artifact, error) {
		return nil, &CompilationError{Backend: NagaBackend, Stage: k, Diagnostic: diag, Err: err}
	}

	want, ok := k.NagaStage()
	if !ok {
		return fail(fmt.Sprintf("WGSL has no %s stage", k), nil)
	}
	if err := ctx.Err(); err != nil {
		return fail(err.Error(), err)
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return fail(err.Error(), err)
	}
	lowered, err := wgsl.LowerWithWarnings(ast, source)
	if err != nil {
		return fail(err.Error(), err)
	}
	for _, w := range lowered.Warnings {
		n.opts.Logger.Warn("naga: "+w.Message, "line", w.Span.Start.Line, "column", w.Span.Start.Column)
	}
	module := lowered.Module

	entry := findEntryPoint(module, want)
	if entry == "" {
		return fail(fmt.Sprintf("no @%s entry point", k.AttributeName()), nil)
	}

	verrs, err := naga.Validate(module)
	if err != nil {
		return fail(err.Error(), err)
	}
	if len(verrs) > 0 {
		return fail(verrs[0].Error(), errors.Join(validationErrors(verrs)...))
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{
		Version: n.opts.SPIRVVersion,
		Debug:   n.opts.Debug,
	})
	if err != nil {
		return fail(err.Error(), err)
	}
	if n.opts.Debug {
		code = nameResources(code, module)
	}
	n.opts.Logger.Debug("naga: compiled", "stage", k.String(), "entry", entry, "bytes", len(code))
	return &Artifact{SPIRV: code, Stage: k, EntryPoint: entry, Backend: NagaBackend}, nil
}

func findEntryPoint(m *ir.Module, st ir.ShaderStage) string {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == st {
			return m.EntryPoints[i].Name
		}
	}
	return ""
}

func validationErrors(verrs []ir.ValidationError) []error {
	errs := make([]error, len(verrs))
	for i := range verrs {
		errs[i] = &verrs[i]
	}
	return errs
}
