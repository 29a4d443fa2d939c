package shaderbind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"structs"
	"sync"
	"testing"

	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/spvreflect"
	"github.com/gogpu/shaderbind/stage"
	"github.com/gogpu/shaderbind/typemap"
)

// echoCompiler returns the source itself as the artifact.
var echoCompiler = compiler.Func(func(_ context.Context, src string, k stage.Kind) (*compiler.Artifact, error) {
	return &compiler.Artifact{SPIRV: []byte(src), Stage: k, Backend: "echo"}, nil
})

type echoReflector struct{}

func (echoReflector) Reflect(name string, a *compiler.Artifact) (string, error) {
	return fmt.Sprintf("binding %s (%s)\n%s", name, a.Stage.AttributeName(), a.SPIRV), nil
}

func stubSession(t *testing.T, d typemap.Dialect) *Session {
	t.Helper()
	s, err := NewSession(Options{Dialect: d, Compiler: echoCompiler, Reflector: echoReflector{}})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func attrs(kv ...string) []source.Attribute {
	var out []source.Attribute
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, source.Attribute{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestCompileShaderEndToEndStub(t *testing.T) {
	s := stubSession(t, typemap.GLSL)
	pos := []hosttype.Field{{Name: "pos", Type: hosttype.ArrayOf(2, hosttype.Scalar(hosttype.KindUint32))}}
	if _, err := s.RegisterStruct("Uniforms", pos, true); err != nil {
		t.Fatalf("RegisterStruct: %v", err)
	}

	src := "#version 450\nlayout(set = 0, binding = 0) uniform #struct(Uniforms) u;\nvoid main() {}\n"
	out, err := s.CompileShader(context.Background(), ShaderDef{Name: "Shader", Attributes: attrs("src", src, "ty", "vertex")})
	if err != nil {
		t.Fatalf("CompileShader: %v", err)
	}

	want := "#version 450\nlayout(set = 0, binding = 0) uniform Uniforms {\n    uvec2 pos;\n} u;\nvoid main() {}\n"
	if out.Substituted != want {
		t.Errorf("Substituted = %q, want %q", out.Substituted, want)
	}
	if out.Source.Text != src {
		t.Errorf("Source.Text = %q, want the raw source", out.Source.Text)
	}
	if out.Stage != stage.Vertex {
		t.Errorf("Stage = %v, want Vertex", out.Stage)
	}
	if string(out.Artifact.SPIRV) != want {
		t.Errorf("compiler saw %q, want the substituted source", out.Artifact.SPIRV)
	}
	if !strings.HasPrefix(out.Binding, "binding Shader (vertex)\n") || !strings.Contains(out.Binding, "uvec2 pos;") {
		t.Errorf("Binding = %q, want it to reflect the substituted source", out.Binding)
	}
}

func TestCompileShaderFromPath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "shaders", "a.comp"), []byte("void main() {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(Options{Dialect: typemap.GLSL, Compiler: echoCompiler, Reflector: echoReflector{}, ProjectRoot: root})
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.CompileShader(context.Background(), ShaderDef{Name: "A", Attributes: attrs("path", "shaders/a.comp", "ty", "compute")})
	if err != nil {
		t.Fatalf("CompileShader: %v", err)
	}
	if out.Source.Path != filepath.Join(root, "shaders", "a.comp") {
		t.Errorf("Source.Path = %q", out.Source.Path)
	}
	if out.Stage != stage.Compute {
		t.Errorf("Stage = %v, want Compute", out.Stage)
	}
}

func TestCompileShaderErrors(t *testing.T) {
	s := stubSession(t, typemap.WGSL)
	tests := []struct {
		name  string
		attrs []source.Attribute
		kind  ErrorKind
		is    error
	}{
		{"no stage", attrs("src", "x"), KindAttribute, ErrMissingStage},
		{"two stages", attrs("src", "x", "ty", "vertex", "ty", "fragment"), KindAttribute, ErrDuplicateStage},
		{"unknown attribute", attrs("src", "x", "ty", "vertex", "entry", "main"), KindAttribute, ErrUnknownAttribute},
		{"no source", attrs("ty", "vertex"), KindMissingSource, nil},
		{"two sources", attrs("src", "x", "path", "y", "ty", "vertex"), KindAmbiguousSource, nil},
		{"missing file", attrs("path", "does/not/exist.wgsl", "ty", "vertex"), KindFileNotFound, nil},
		{"unknown struct", attrs("src", "#struct(Nope)", "ty", "vertex"), KindUnknownStructure, nil},
		{"unknown stage", attrs("src", "x", "ty", "mesh"), KindUnknownStage, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CompileShader(context.Background(), ShaderDef{Name: "S", Attributes: tt.attrs})
			if err == nil {
				t.Fatal("CompileShader succeeded, want error")
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("KindOf(%v) = %v, want %v", err, got, tt.kind)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want errors.Is %v", err, tt.is)
			}
		})
	}
}

func TestCompileShaderPlaceholderPosition(t *testing.T) {
	s := stubSession(t, typemap.WGSL)
	_, err := s.CompileShader(context.Background(), ShaderDef{Name: "S", Attributes: attrs("src", "// a\n  #struct(Missing)", "ty", "vertex")})
	var pe *preprocess.PlaceholderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *preprocess.PlaceholderError", err)
	}
	if pe.Line != 2 || pe.Column != 3 {
		t.Errorf("position = %d:%d, want 2:3", pe.Line, pe.Column)
	}
	var ue *registry.UnknownStructureError
	if !errors.As(err, &ue) || ue.Name != "Missing" {
		t.Errorf("error = %v, want UnknownStructureError for Missing", err)
	}
}

func TestCompilerAndReflectorFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := compiler.Func(func(context.Context, string, stage.Kind) (*compiler.Artifact, error) {
		return nil, &compiler.CompilationError{Backend: "func", Stage: stage.Vertex, Diagnostic: "line 1: nope", Err: boom}
	})
	s, err := NewSession(Options{Compiler: failing, Reflector: echoReflector{}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.CompileShader(context.Background(), ShaderDef{Name: "S", Attributes: attrs("src", "x", "ty", "vertex")})
	if KindOf(err) != KindCompilation || !errors.Is(err, boom) {
		t.Errorf("error = %v (kind %v), want a Compilation error wrapping boom", err, KindOf(err))
	}
	if !strings.Contains(err.Error(), "line 1: nope") {
		t.Errorf("error = %q, want the diagnostic verbatim", err)
	}
}

func TestRegisterStructLayout(t *testing.T) {
	s := stubSession(t, typemap.WGSL)
	_, err := s.RegisterStruct("Loose", nil, false)
	if KindOf(err) != KindLayout {
		t.Errorf("KindOf(%v) = %v, want Layout", err, KindOf(err))
	}
	if s.Registry().Len() != 0 {
		t.Errorf("Len = %d after failed registration, want 0", s.Registry().Len())
	}

	str := []hosttype.Field{{Name: "s", Type: hosttype.Scalar(hosttype.KindString)}}
	_, err = s.RegisterStruct("Bad", str, true)
	if KindOf(err) != KindUnsupportedType {
		t.Errorf("KindOf(%v) = %v, want UnsupportedType", err, KindOf(err))
	}
}

type spriteUniforms struct {
	_      structs.HostLayout
	Offset [2]float32 `shader:"offset"`
}

type looseUniforms struct {
	Offset [2]float32
}

func TestRegisterType(t *testing.T) {
	s := stubSession(t, typemap.WGSL)
	text, err := RegisterType[spriteUniforms](s)
	if err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	want := "struct spriteUniforms {\n    offset: vec2<f32>,\n}"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if _, err := RegisterType[looseUniforms](s); KindOf(err) != KindLayout {
		t.Errorf("RegisterType[looseUniforms] error = %v, want Layout", err)
	}
}

func TestEchoWritesBothSources(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSession(Options{Dialect: typemap.GLSL, Compiler: echoCompiler, Reflector: echoReflector{}, Echo: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RegisterStruct("U", []hosttype.Field{{Name: "x", Type: hosttype.Scalar(hosttype.KindFloat32)}}, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompileShader(context.Background(), ShaderDef{Name: "S", Attributes: attrs("src", "#struct(U)", "ty", "fragment")}); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"// shader S: source\n#struct(U)\n", "// shader S: substituted\nU {\n    float x;\n}\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("echo = %q, want it to contain %q", got, want)
		}
	}
}

func TestConcurrentCompile(t *testing.T) {
	s := stubSession(t, typemap.WGSL)
	if _, err := RegisterType[spriteUniforms](s); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompileShader(context.Background(), ShaderDef{
				Name:       fmt.Sprintf("S%d", i),
				Attributes: attrs("src", "#struct(spriteUniforms)", "ty", "vertex"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s, err := NewSession(Options{Dialect: typemap.GLSL})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Options().Compiler.Name(); got != compiler.GlslcBackend {
		t.Errorf("GLSL compiler = %s, want %s", got, compiler.GlslcBackend)
	}
	if got := s.Options().Marker; got != preprocess.DefaultMarker {
		t.Errorf("Marker = %q, want %q", got, preprocess.DefaultMarker)
	}
	s, err = NewSession(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Options().Compiler.Name(); got != compiler.NagaBackend {
		t.Errorf("WGSL compiler = %s, want %s", got, compiler.NagaBackend)
	}
}

const spriteShader = `#struct(spriteUniforms)

@group(0) @binding(0) var<uniform> uniforms: spriteUniforms;

@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position + uniforms.offset, 0.0, 1.0);
}
`

func TestCompileShaderNaga(t *testing.T) {
	s, err := NewSession(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RegisterType[spriteUniforms](s); err != nil {
		t.Fatal(err)
	}
	out, err := s.CompileShader(context.Background(), ShaderDef{Name: "Sprite", Attributes: attrs("src", spriteShader, "ty", "vertex")})
	if err != nil {
		t.Fatalf("CompileShader: %v", err)
	}
	if out.Artifact.EntryPoint != "vs_main" {
		t.Errorf("EntryPoint = %q, want vs_main", out.Artifact.EntryPoint)
	}

	m, err := spvreflect.Parse(out.Artifact.SPIRV)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Resources) != 1 {
		t.Fatalf("got %d resources, want 1", len(m.Resources))
	}
	r := m.Resources[0]
	if r.Set != 0 || r.Binding != 0 || r.Kind != spvreflect.UniformBuffer {
		t.Errorf("resource = %d.%d %v, want 0.0 uniform_buffer", r.Set, r.Binding, r.Kind)
	}
	if size := r.Type.Size(); size != 8 {
		t.Errorf("block size = %d, want 8", size)
	}
	for _, want := range []string{"gputypes.BufferBindingTypeUniform", "func NewSprite() *Sprite", "SpriteUniformsBinding"} {
		if !strings.Contains(out.Binding, want) {
			t.Errorf("binding source missing %q", want)
		}
	}
}

func TestCompileShaderNagaRejectsBadSource(t *testing.T) {
	s, err := NewSession(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.CompileShader(context.Background(), ShaderDef{Name: "Bad", Attributes: attrs("src", "fn (", "ty", "vertex")})
	if KindOf(err) != KindCompilation {
		t.Errorf("KindOf(%v) = %v, want Compilation", err, KindOf(err))
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		k    ErrorKind
		want string
	}{
		{KindUnknown, "Unknown"},
		{KindLayout, "Layout"},
		{KindUnknownStructure, "UnknownStructure"},
		{KindReflection, "Reflection"},
		{KindAttribute, "Attribute"},
		{ErrorKind(200), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
	if KindOf(nil) != KindUnknown || KindOf(errors.New("x")) != KindUnknown {
		t.Error("KindOf of a foreign error is not Unknown")
	}
}
