package compiler

import (
	"context"
	"testing"

	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shaderbind/stage"
)

const sceneWGSL = `
struct Light {
    color: vec3<f32>,
}

struct Scene {
    light: Light,
    count: u32,
}

struct Particles {
    count: u32,
    data: array<f32>,
}

@group(0) @binding(0) var<uniform> scene: Scene;
@group(0) @binding(1) var<storage, read_write> particles: Particles;

@compute @workgroup_size(1)
fn main() {
    particles.data[0] = scene.light.color.x * f32(scene.count + particles.count);
}
`

// debugNames returns the OpName strings of a module and the word index of
// its first decoration.
func debugNames(t *testing.T, code []byte) (map[string]uint32, int) {
	t.Helper()
	words, err := Words(code)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	names := make(map[string]uint32)
	firstDecorate := -1
	lastName := -1
	for i := 5; i < len(words); {
		count := int(words[i] >> 16)
		if count == 0 {
			t.Fatalf("zero word count at %d", i)
		}
		switch spirv.OpCode(words[i] & 0xFFFF) {
		case spirv.OpName:
			var b []byte
			for _, w := range words[i+2 : i+count] {
				for shift := 0; shift < 32; shift += 8 {
					if c := byte(w >> shift); c != 0 {
						b = append(b, c)
					}
				}
			}
			names[string(b)] = words[i+1]
			lastName = i
		case spirv.OpDecorate, spirv.OpMemberDecorate:
			if firstDecorate < 0 {
				firstDecorate = i
			}
		}
		i += count
	}
	if lastName > firstDecorate {
		t.Errorf("OpName at word %d follows the first decoration at %d", lastName, firstDecorate)
	}
	return names, firstDecorate
}

func TestNagaDebugNamesResources(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stage stage.Kind
		want  []string
	}{
		{"uniform struct", vertexWGSL, stage.Vertex, []string{"uniforms", "Uniforms"}},
		{"nested and runtime sized", sceneWGSL, stage.Compute, []string{"scene", "Scene", "Light", "particles", "Particles"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := NewNaga(NagaOptions{Debug: true}).Compile(context.Background(), tt.src, tt.stage)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			names, _ := debugNames(t, art.SPIRV)
			for _, w := range tt.want {
				if _, ok := names[w]; !ok {
					t.Errorf("no OpName %q in %v", w, names)
				}
			}
		})
	}
}

func TestNagaWithoutDebugHasNoResourceNames(t *testing.T) {
	art, err := NewNaga(NagaOptions{}).Compile(context.Background(), vertexWGSL, stage.Vertex)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	names, _ := debugNames(t, art.SPIRV)
	if _, ok := names["uniforms"]; ok {
		t.Error("OpName uniforms emitted without Debug")
	}
}

func TestOpName(t *testing.T) {
	tests := []struct {
		name string
		want []uint32
	}{
		{"", []uint32{3<<16 | uint32(spirv.OpName), 7, 0}},
		{"abc", []uint32{3<<16 | uint32(spirv.OpName), 7, 0x00636261}},
		{"abcd", []uint32{4<<16 | uint32(spirv.OpName), 7, 0x64636261, 0}},
	}
	for _, tt := range tests {
		got := opName(7, tt.name)
		if len(got) != len(tt.want) {
			t.Fatalf("opName(%q) = %#x, want %#x", tt.name, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("opName(%q)[%d] = %#x, want %#x", tt.name, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNameResourcesLeavesMalformedInput(t *testing.T) {
	in := []byte{1, 2, 3}
	if got := nameResources(in, nil); &got[0] != &in[0] {
		t.Error("nameResources rewrote a malformed binary")
	}
}
