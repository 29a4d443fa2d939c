// Package stage classifies shader pipeline stages.
package stage

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Kind is a pipeline stage.
type Kind uint8

const (
	Vertex Kind = iota
	Fragment
	Geometry
	TessellationControl
	TessellationEvaluation
	Compute
)

// kinds is indexed by Kind.
var kinds = [...]struct {
	name  string // attribute spelling
	title string
	glslc string
	model spirv.ExecutionModel
}{
	Vertex:                 {"vertex", "Vertex", "vert", spirv.ExecutionModelVertex},
	Fragment:               {"fragment", "Fragment", "frag", spirv.ExecutionModelFragment},
	Geometry:               {"geometry", "Geometry", "geom", spirv.ExecutionModelGeometry},
	TessellationControl:    {"tess_ctrl", "TessellationControl", "tesc", spirv.ExecutionModelTessellationControl},
	TessellationEvaluation: {"tess_eval", "TessellationEvaluation", "tese", spirv.ExecutionModelTessellationEvaluation},
	Compute:                {"compute", "Compute", "comp", spirv.ExecutionModelGLCompute},
}

// UnknownStageError reports a stage name outside the accepted set.
type UnknownStageError struct {
	Name     string
	Accepted []string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown shader stage %q (accepted: %s)", e.Name, strings.Join(e.Accepted, ", "))
}

// Names returns the accepted stage names in Kind order.
func Names() []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.name
	}
	return names
}

// Classify maps a stage name to its Kind. Matching is exact and case-sensitive.
func Classify(name string) (Kind, error) {
	for i, k := range kinds {
		if k.name == name {
			return Kind(i), nil
		}
	}
	return 0, &UnknownStageError{Name: name, Accepted: Names()}
}

func (k Kind) valid() bool { return int(k) < len(kinds) }

// String returns the stage's descriptive name, e.g. "TessellationControl".
func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kinds[k].title
}

// AttributeName returns the spelling accepted by Classify.
func (k Kind) AttributeName() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].name
}

// GlslcName returns the -fshader-stage value understood by glslc.
func (k Kind) GlslcName() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].glslc
}

// ExecutionModel returns the SPIR-V execution model of the stage. ok is
// false for a Kind outside the six stages.
func (k Kind) ExecutionModel() (m spirv.ExecutionModel, ok bool) {
	if !k.valid() {
		return 0, false
	}
	return kinds[k].model, true
}

// Visibility returns the WebGPU shader stage flag. Stages WebGPU does not
// expose report gputypes.ShaderStageNone.
func (k Kind) Visibility() gputypes.ShaderStage {
	switch k {
	case Vertex:
		return gputypes.ShaderStageVertex
	case Fragment:
		return gputypes.ShaderStageFragment
	case Compute:
		return gputypes.ShaderStageCompute
	default:
		return gputypes.ShaderStageNone
	}
}

// NagaStage returns the naga IR stage. ok is false for stages naga has no
// entry point kind for.
func (k Kind) NagaStage() (st ir.ShaderStage, ok bool) {
	switch k {
	case Vertex:
		return ir.StageVertex, true
	case Fragment:
		return ir.StageFragment, true
	case Compute:
		return ir.StageCompute, true
	default:
		return 0, false
	}
}

// FromExecutionModel maps a SPIR-V execution model back to a Kind.
func FromExecutionModel(m spirv.ExecutionModel) (Kind, bool) {
	for i, k := range kinds {
		if k.model == m {
			return Kind(i), true
		}
	}
	return 0, false
}
