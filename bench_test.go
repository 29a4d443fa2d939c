package shaderbind

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/gogpu/shaderbind/bindgen"
	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/spvreflect"
	"github.com/gogpu/shaderbind/stage"
)

// ---------------------------------------------------------------------------
// Benchmark shaders
// ---------------------------------------------------------------------------

// benchStorageShader is a compute shader with a uniform and two storage
// buffers, so reflection has a few bindings to walk.
const benchStorageShader = `#struct(spriteUniforms)

@group(0) @binding(0) var<uniform> uniforms: spriteUniforms;
@group(0) @binding(1) var<storage, read> src: array<f32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;

@compute @workgroup_size(64, 1, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    dst[i] = src[i] * uniforms.offset.x + uniforms.offset.y;
}
`

var benchShaders = []struct {
	name   string
	source string
	stage  stage.Kind
}{
	{"vertex_uniform", spriteShader, stage.Vertex},
	{"compute_storage", benchStorageShader, stage.Compute},
}

func benchSession(b *testing.B) *Session {
	b.Helper()
	s, err := NewSession(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	if _, err := RegisterType[spriteUniforms](s); err != nil {
		b.Fatal(err)
	}
	return s
}

// ---------------------------------------------------------------------------
// End-to-end: attributes to binding source
// ---------------------------------------------------------------------------

// BenchmarkCompileShader benchmarks the whole pipeline per shader.
func BenchmarkCompileShader(b *testing.B) {
	for _, sc := range benchShaders {
		b.Run(sc.name, func(b *testing.B) {
			s := benchSession(b)
			def := ShaderDef{Name: "Bench", Attributes: attrs("src", sc.source, "ty", sc.stage.AttributeName())}
			b.ReportAllocs()
			b.SetBytes(int64(len(sc.source)))
			b.ResetTimer()

			var out *Output
			for b.Loop() {
				var err error
				out, err = s.CompileShader(context.Background(), def)
				if err != nil {
					b.Fatalf("compile failed: %v", err)
				}
			}
			runtime.KeepAlive(out)
		})
	}
}

// ---------------------------------------------------------------------------
// Individual stages
// ---------------------------------------------------------------------------

// BenchmarkSubstitute benchmarks placeholder substitution on a source with
// many markers.
func BenchmarkSubstitute(b *testing.B) {
	s := benchSession(b)
	src := strings.Repeat("// filler line\n#struct(spriteUniforms)\n", 64)
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))

	var out string
	for b.Loop() {
		var err error
		out, err = s.subst.Substitute(src, s.Registry())
		if err != nil {
			b.Fatal(err)
		}
	}
	runtime.KeepAlive(out)
}

func compiledBench(b *testing.B, src string, k stage.Kind) *compiler.Artifact {
	b.Helper()
	s := benchSession(b)
	substituted, err := s.subst.Substitute(src, s.Registry())
	if err != nil {
		b.Fatal(err)
	}
	art, err := compiler.NewNaga(compiler.NagaOptions{Debug: true}).Compile(context.Background(), substituted, k)
	if err != nil {
		b.Fatal(err)
	}
	return art
}

// BenchmarkReflectParse benchmarks SPIR-V interface parsing alone.
func BenchmarkReflectParse(b *testing.B) {
	for _, sc := range benchShaders {
		b.Run(sc.name, func(b *testing.B) {
			art := compiledBench(b, sc.source, sc.stage)
			b.ReportAllocs()
			b.SetBytes(int64(len(art.SPIRV)))

			var m *spvreflect.Module
			for b.Loop() {
				var err error
				m, err = spvreflect.Parse(art.SPIRV)
				if err != nil {
					b.Fatal(err)
				}
			}
			runtime.KeepAlive(m)
		})
	}
}

// BenchmarkReflectGo benchmarks Go binding generation, including gofmt.
func BenchmarkReflectGo(b *testing.B) {
	for _, sc := range benchShaders {
		b.Run(sc.name, func(b *testing.B) {
			art := compiledBench(b, sc.source, sc.stage)
			r := bindgen.NewGo(bindgen.GoOptions{EmitStructs: true})
			b.ReportAllocs()

			var src string
			for b.Loop() {
				var err error
				src, err = r.Reflect("Bench", art)
				if err != nil {
					b.Fatal(err)
				}
			}
			runtime.KeepAlive(src)
		})
	}
}
