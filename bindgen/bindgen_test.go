// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindgen

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/spvreflect"
	"github.com/gogpu/shaderbind/stage"
)

const spriteWGSL = `
struct Uniforms {
    offset: vec2<f32>,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;

@vertex
fn vs_main(@location(0) position: vec2<f32>, @location(1) tint: vec4<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position + uniforms.offset, 0.0, 1.0) * tint;
}
`

const textureWGSL = `
@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, uv);
}
`

const computeWGSL = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;
@group(1) @binding(0) var img: texture_storage_2d<rgba8unorm, write>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x] = input[id.x] * 2.0;
    textureStore(img, vec2<i32>(i32(id.x), 0), vec4<f32>(1.0));
}
`

const lightWGSL = `
struct Light {
    color: vec3<f32>,
    intensity: f32,
    dir: vec3<f32>,
}

@group(0) @binding(0) var<uniform> light: Light;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position * light.color * light.intensity + light.dir, 1.0);
}
`

func compile(t *testing.T, src string, k stage.Kind) *compiler.Artifact {
	t.Helper()
	art, err := compiler.NewNaga(compiler.NagaOptions{Debug: true}).Compile(context.Background(), src, k)
	if err != nil {
		t.Fatalf("compile %v shader: %v", k, err)
	}
	return art
}

// normalize collapses runs of whitespace so checks survive gofmt alignment.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func reflectGo(t *testing.T, opts GoOptions, name string, a *compiler.Artifact) string {
	t.Helper()
	out, err := NewGo(opts).Reflect(name, a)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	file, err := parser.ParseFile(token.NewFileSet(), name+".go", out, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, out)
	}
	if file.Name.Name != cmpOr(opts.Package, DefaultPackage) {
		t.Errorf("package = %s, want %s", file.Name.Name, cmpOr(opts.Package, DefaultPackage))
	}
	if !ast.IsExported("New" + name) {
		t.Fatalf("bad test name %q", name)
	}
	var found bool
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Name.Name == "New"+name {
			found = true
		}
	}
	if !found {
		t.Errorf("generated source has no New%s", name)
	}
	return out
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func wantContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	norm := normalize(out)
	for _, w := range wants {
		if !strings.Contains(norm, normalize(w)) {
			t.Errorf("generated source missing %q\n%s", w, out)
		}
	}
}

func TestReflectVertex(t *testing.T) {
	out := reflectGo(t, GoOptions{Package: "shaders"}, "Sprite", compile(t, spriteWGSL, stage.Vertex))
	if !strings.HasPrefix(out, GeneratedHeader+"\n") {
		t.Errorf("output does not start with the generated header")
	}
	wantContains(t, out,
		"type Sprite struct { bind.Shader }",
		`EntryPoint: "vs_main"`,
		"Stage: gputypes.ShaderStageVertex",
		"SpriteUniformsGroup = 0",
		"SpriteUniformsBinding = 0",
		"Type: gputypes.BufferBindingTypeUniform, MinBindingSize: 8",
		"Visibility: gputypes.ShaderStageVertex",
		"Location: 0, Format: gputypes.VertexFormatFloat32x2",
		"Location: 1, Format: gputypes.VertexFormatFloat32x4",
		"var spriteSPIRV = []uint32{ 0x07230203,",
		`bind "github.com/gogpu/shaderbind/bind"`,
	)
	if strings.Contains(out, "structs.HostLayout") {
		t.Error("struct mirrors emitted without EmitStructs")
	}
	if strings.Contains(out, "Workgroup:") {
		t.Error("vertex shader has a workgroup size")
	}
}

func TestReflectFragmentTexture(t *testing.T) {
	out := reflectGo(t, GoOptions{}, "Blit", compile(t, textureWGSL, stage.Fragment))
	wantContains(t, out,
		"package shaders",
		"Stage: gputypes.ShaderStageFragment",
		"SampleType: gputypes.TextureSampleTypeFloat, ViewDimension: gputypes.TextureViewDimension2D, Multisampled: false",
		"Type: gputypes.SamplerBindingTypeFiltering",
		"BlitTexGroup = 0",
		"BlitSampBinding = 1",
	)
	if strings.Contains(out, "Inputs:") {
		t.Error("fragment shader has vertex inputs")
	}
}

func TestReflectCompute(t *testing.T) {
	out := reflectGo(t, GoOptions{}, "Double", compile(t, computeWGSL, stage.Compute))
	wantContains(t, out,
		"Stage: gputypes.ShaderStageCompute",
		"Type: gputypes.BufferBindingTypeReadOnlyStorage, MinBindingSize: 4",
		"Type: gputypes.BufferBindingTypeStorage, MinBindingSize: 4",
		"Access: gputypes.StorageTextureAccessWriteOnly, Format: gputypes.TextureFormatRGBA8Unorm, ViewDimension: gputypes.TextureViewDimension2D",
		"Workgroup: [3]uint32{64, 1, 1}",
		"DoubleImgGroup = 1",
	)
}

func TestReflectEmitStructs(t *testing.T) {
	out := reflectGo(t, GoOptions{EmitStructs: true}, "Lit", compile(t, lightWGSL, stage.Vertex))
	wantContains(t, out,
		`"structs"`,
		"// LitLight mirrors the shader struct Light (32 bytes).",
		"type LitLight struct { _ structs.HostLayout Color [3]float32 Intensity float32 Dir [3]float32 _ [4]byte }",
		"MinBindingSize: 32",
	)
}

func TestReflectErrors(t *testing.T) {
	vertex := compile(t, spriteWGSL, stage.Vertex)
	wrongStage := *vertex
	wrongStage.Stage = stage.Fragment
	badStage := *vertex
	badStage.Stage = stage.Kind(42)

	tests := []struct {
		name     string
		shader   string
		artifact *compiler.Artifact
		want     string
	}{
		{"nil artifact", "A", nil, "empty artifact"},
		{"empty artifact", "A", &compiler.Artifact{Stage: stage.Vertex}, "empty artifact"},
		{"garbage", "A", &compiler.Artifact{SPIRV: []byte("definitely not a spir-v!"), Stage: stage.Vertex}, "bad magic"},
		{"no entry point", "A", &wrongStage, "no Fragment entry point"},
		{"unknown stage", "A", &badStage, "unknown stage Kind(42)"},
		{"bad name", "--", vertex, "not usable as a Go identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGo(GoOptions{}).Reflect(tt.shader, tt.artifact)
			var re *ReflectionError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *ReflectionError", err)
			}
			if re.Name != tt.shader {
				t.Errorf("Name = %q, want %q", re.Name, tt.shader)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReflectErrorUnwrapsFormatError(t *testing.T) {
	_, err := NewGo(GoOptions{}).Reflect("A", &compiler.Artifact{SPIRV: make([]byte, 3), Stage: stage.Vertex})
	var fe *spvreflect.FormatError
	if !errors.As(err, &fe) {
		t.Errorf("error = %v, want it to wrap *spvreflect.FormatError", err)
	}
}

func TestExportedNames(t *testing.T) {
	n := newNamer()
	tests := []struct{ in, want string }{
		{"tex_sampler", "TexSampler"},
		{"uniforms", "Uniforms"},
		{"myBuffer", "MyBuffer"},
		{"light.color", "LightColor"},
		{"__", ""},
	}
	for _, tt := range tests {
		if got := n.exported(tt.in); got != tt.want {
			t.Errorf("exported(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := unexported("Sprite"); got != "sprite" {
		t.Errorf("unexported(Sprite) = %q, want sprite", got)
	}
}

func TestUniqueNames(t *testing.T) {
	u := make(uniqueNames)
	got := []string{u.take("A"), u.take("A"), u.take("B"), u.take("A")}
	want := []string{"A", "A2", "B", "A3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("take #%d = %q, want %q", i, got[i], want[i])
		}
	}
}
