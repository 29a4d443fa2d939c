package stage

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"vertex", Vertex},
		{"fragment", Fragment},
		{"geometry", Geometry},
		{"tess_ctrl", TessellationControl},
		{"tess_eval", TessellationEvaluation},
		{"compute", Compute},
	}
	seen := make(map[Kind]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.name)
			if err != nil {
				t.Fatalf("Classify(%q): %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
			}
			if prev, dup := seen[got]; dup {
				t.Errorf("Classify(%q) and Classify(%q) both map to %v", tt.name, prev, got)
			}
			seen[got] = tt.name
			if got.AttributeName() != tt.name {
				t.Errorf("AttributeName() = %q, want %q", got.AttributeName(), tt.name)
			}
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	for _, name := range []string{"VERTEX", "vertx", "Vertex", "", " vertex", "tesselation", "comp"} {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(name)
			var use *UnknownStageError
			if !errors.As(err, &use) {
				t.Fatalf("Classify(%q) error = %v, want *UnknownStageError", name, err)
			}
			if use.Name != name {
				t.Errorf("Name = %q, want %q", use.Name, name)
			}
			if !slices.Equal(use.Accepted, Names()) {
				t.Errorf("Accepted = %v, want %v", use.Accepted, Names())
			}
		})
	}
}

func TestGlslcName(t *testing.T) {
	want := map[Kind]string{
		Vertex: "vert", Fragment: "frag", Geometry: "geom",
		TessellationControl: "tesc", TessellationEvaluation: "tese", Compute: "comp",
	}
	for k, name := range want {
		if got := k.GlslcName(); got != name {
			t.Errorf("%v.GlslcName() = %q, want %q", k, got, name)
		}
	}
}

func TestExecutionModelRoundTrip(t *testing.T) {
	for _, name := range Names() {
		k, _ := Classify(name)
		m, ok := k.ExecutionModel()
		if !ok {
			t.Fatalf("%v.ExecutionModel() not ok", k)
		}
		back, ok := FromExecutionModel(m)
		if !ok || back != k {
			t.Errorf("FromExecutionModel(%v) = %v, %v, want %v", m, back, ok, k)
		}
	}
	if _, ok := Kind(42).ExecutionModel(); ok {
		t.Error("Kind(42).ExecutionModel() ok = true, want false")
	}
	if _, ok := FromExecutionModel(spirv.ExecutionModelKernel); ok {
		t.Error("Kernel must not map to a stage")
	}
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		kind Kind
		want gputypes.ShaderStage
	}{
		{Vertex, gputypes.ShaderStageVertex},
		{Fragment, gputypes.ShaderStageFragment},
		{Compute, gputypes.ShaderStageCompute},
		{Geometry, gputypes.ShaderStageNone},
		{TessellationControl, gputypes.ShaderStageNone},
	}
	for _, tt := range tests {
		if got := tt.kind.Visibility(); got != tt.want {
			t.Errorf("%v.Visibility() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestNagaStage(t *testing.T) {
	if st, ok := Fragment.NagaStage(); !ok || st != ir.StageFragment {
		t.Errorf("Fragment.NagaStage() = %v, %v", st, ok)
	}
	if _, ok := TessellationEvaluation.NagaStage(); ok {
		t.Error("TessellationEvaluation has no naga stage")
	}
}
