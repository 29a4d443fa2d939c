// Package shaderbind generates SPIR-V and Go bindings from annotated shader
// source.
//
// A Session has two entry points. RegisterStruct (or RegisterType) lifts a
// host structure into a shader-side struct definition. CompileShader runs a
// shader through source resolution, placeholder substitution, stage
// classification, compilation and reflection.
//
// Example usage:
//
//	type Uniforms struct {
//	    _   structs.HostLayout
//	    Pos [2]uint32 `shader:"pos"`
//	}
//
//	s, _ := shaderbind.NewSession(shaderbind.DefaultOptions())
//	shaderbind.RegisterType[Uniforms](s)
//	out, err := s.CompileShader(ctx, shaderbind.ShaderDef{
//	    Name: "Sprite",
//	    Attributes: []source.Attribute{
//	        {Name: "path", Value: "shaders/sprite.wgsl"},
//	        {Name: "ty", Value: "vertex"},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("sprite_shader.go", []byte(out.Binding), 0o644)
package shaderbind

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gogpu/shaderbind/bindgen"
	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/stage"
	"github.com/gogpu/shaderbind/typemap"
)

// AttrStage names the stage attribute of a shader.
const AttrStage = "ty"

// Options configures a Session.
type Options struct {
	// Dialect is the language of registered struct text and shader source.
	Dialect typemap.Dialect

	// Marker starts a placeholder (default: preprocess.DefaultMarker).
	Marker string

	// Compiler produces SPIR-V. Nil selects naga for WGSL and glslc for GLSL.
	Compiler compiler.Compiler

	// Reflector produces binding source. Nil selects the Go reflector.
	Reflector bindgen.Reflector

	// Echo receives the raw and substituted source of every shader before
	// it is compiled. Nil disables echoing.
	Echo io.Writer

	// ProjectRoot anchors relative path attributes. Empty means ".".
	ProjectRoot string
}

// DefaultOptions returns WGSL options with the naga compiler and the Go
// reflector.
func DefaultOptions() Options {
	return Options{
		Dialect:   typemap.WGSL,
		Marker:    preprocess.DefaultMarker,
		Compiler:  compiler.NewNaga(compiler.NagaOptions{Debug: true}),
		Reflector: bindgen.NewGo(bindgen.GoOptions{}),
	}
}

// ShaderDef is one shader as seen by the front end: a name and its
// attributes (src or path, and ty).
type ShaderDef struct {
	Name       string
	Attributes []source.Attribute
}

// Output is everything CompileShader produced for one shader.
type Output struct {
	// Source is the resolved text before substitution.
	Source source.Resolved
	// Substituted is the text handed to the compiler.
	Substituted string
	Stage       stage.Kind
	Artifact    *compiler.Artifact
	// Binding is the generated binding source.
	Binding string
}

// Session is one build. It owns the structure registry for its lifetime.
// CompileShader may be called from several goroutines once registration
// is done.
type Session struct {
	opts   Options
	logger *slog.Logger
	reg    *registry.Registry
	subst  *preprocess.Substituter

	echoMu sync.Mutex
}

// NewSession creates a session with an empty registry.
func NewSession(opts Options) (*Session, error) {
	if opts.Marker == "" {
		opts.Marker = preprocess.DefaultMarker
	}
	if opts.Compiler == nil {
		switch opts.Dialect {
		case typemap.GLSL:
			opts.Compiler = compiler.NewGlslc(compiler.GlslcOptions{})
		default:
			opts.Compiler = compiler.NewNaga(compiler.NagaOptions{Debug: true, Logger: Logger()})
		}
	}
	if opts.Reflector == nil {
		opts.Reflector = bindgen.NewGo(bindgen.GoOptions{})
	}
	subst, err := preprocess.New(opts.Marker)
	if err != nil {
		return nil, err
	}

	logger := Logger()
	reg := registry.New(opts.Dialect)
	reg.SetLogger(logger)
	return &Session{opts: opts, logger: logger, reg: reg, subst: subst}, nil
}

// Registry returns the session's structure registry.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// Options returns the effective options.
func (s *Session) Options() Options {
	return s.opts
}

// RegisterStruct renders a host structure and stores it under name. It
// fails with *registry.LayoutError unless stable is set.
func (s *Session) RegisterStruct(name string, fields []hosttype.Field, stable bool) (string, error) {
	return s.reg.Register(registry.StructDef{Name: name, Fields: fields, StableLayout: stable})
}

// RegisterType registers the Go struct T under its type name. A field of
// type structs.HostLayout marks the layout stable.
func RegisterType[T any](s *Session) (string, error) {
	name, fields, stable, err := hosttype.StructOf[T]()
	if err != nil {
		return "", err
	}
	return s.RegisterStruct(name, fields, stable)
}

// CompileShader runs def through the pipeline. Every failure aborts the
// shader; nothing partial is returned.
func (s *Session) CompileShader(ctx context.Context, def ShaderDef) (*Output, error) {
	stageName, err := checkAttributes(def)
	if err != nil {
		return nil, err
	}

	resolved, err := source.Resolve(def.Attributes, s.opts.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", def.Name, err)
	}
	substituted, err := s.subst.Substitute(resolved.Text, s.reg)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", def.Name, err)
	}
	kind, err := stage.Classify(stageName)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", def.Name, err)
	}

	s.echo(def.Name, resolved.Text, substituted)

	s.logger.Debug("shaderbind: compiling shader", "name", def.Name, "stage", kind, "compiler", s.opts.Compiler.Name())
	art, err := s.opts.Compiler.Compile(ctx, substituted, kind)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", def.Name, err)
	}
	binding, err := s.opts.Reflector.Reflect(def.Name, art)
	if err != nil {
		return nil, err
	}
	return &Output{
		Source:      resolved,
		Substituted: substituted,
		Stage:       kind,
		Artifact:    art,
		Binding:     binding,
	}, nil
}

// checkAttributes rejects unknown attributes and returns the single stage name.
func checkAttributes(def ShaderDef) (string, error) {
	var stageName string
	stages := 0
	for _, a := range def.Attributes {
		switch a.Name {
		case source.AttrSource, source.AttrPath:
		case AttrStage:
			stages++
			stageName = a.Value
		default:
			return "", &AttributeError{Shader: def.Name, Attribute: a.Name, Err: ErrUnknownAttribute}
		}
	}
	switch {
	case stages == 0:
		return "", &AttributeError{Shader: def.Name, Err: ErrMissingStage}
	case stages > 1:
		return "", &AttributeError{Shader: def.Name, Err: ErrDuplicateStage}
	}
	return stageName, nil
}

func (s *Session) echo(name, raw, substituted string) {
	s.logger.Debug("shaderbind: shader source", "name", name, "source", raw)
	s.logger.Debug("shaderbind: substituted source", "name", name, "source", substituted)
	if s.opts.Echo == nil {
		return
	}
	s.echoMu.Lock()
	defer s.echoMu.Unlock()
	fmt.Fprintf(s.opts.Echo, "// shader %s: source\n%s\n// shader %s: substituted\n%s\n", name, raw, name, substituted)
}
