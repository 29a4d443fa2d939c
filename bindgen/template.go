// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindgen

import "text/template"

// GeneratedHeader is the first line of every generated file.
const GeneratedHeader = "// Code generated by shaderbind. DO NOT EDIT."

var fileTemplate = template.Must(template.New("file").Parse(GeneratedHeader + `

package {{.Package}}

import (
{{- if .NeedStructs}}
	"structs"
{{end}}
	"github.com/gogpu/gputypes"

	bind "{{.RuntimeImport}}"
)

// {{.Type}} is the {{.StageTitle}} shader {{printf "%q" .Name}} with entry point {{printf "%q" .EntryPoint}}.
type {{.Type}} struct {
	bind.Shader
}
{{- if .Bindings}}

const (
{{- range .Bindings}}
	{{.Const}}Group = {{.Group}}
	{{.Const}}Binding = {{.Binding}}
{{- end}}
)
{{- end}}

// New{{.Type}} returns the shader with its reflected interface.
func New{{.Type}}() *{{.Type}} {
	return &{{.Type}}{Shader: bind.Shader{
		Name: {{printf "%q" .Name}},
		EntryPoint: {{printf "%q" .EntryPoint}},
		Stage: {{.Stage}},
		SPIRV: {{.Var}},
{{- if .Bindings}}
		Bindings: []bind.Binding{
{{- range .Bindings}}
			// {{.Kind}}
			{Group: {{.Group}}, Binding: {{.Binding}}, Name: {{printf "%q" .Name}},{{if .Combined}} Combined: true,{{end}} Entry: gputypes.BindGroupLayoutEntry{ {{- .Entry -}} }},
{{- end}}
		},
{{- end}}
{{- if .Inputs}}
		Inputs: []bind.VertexInput{
{{- range .Inputs}}
			{Name: {{printf "%q" .Name}}, Location: {{.Location}}, Format: {{.Format}}},
{{- end}}
		},
{{- end}}
{{- if or (index .Workgroup 0) (index .Workgroup 1) (index .Workgroup 2)}}
		Workgroup: [3]uint32{ {{- index .Workgroup 0}}, {{index .Workgroup 1}}, {{index .Workgroup 2 -}} },
{{- end}}
{{- if .PushConstantSize}}
		PushConstantSize: {{.PushConstantSize}},
{{- end}}
	}}
}

var {{.Var}} = []uint32{
{{- range .WordLines}}
	{{.}}
{{- end}}
}
{{- range .Structs}}

// {{.Type}} mirrors the shader struct {{.Source}} ({{.Size}} bytes).
type {{.Type}} struct {
	_ structs.HostLayout
{{- range .Fields}}
{{- if .Comment}}
	// {{.Comment}}
{{- else}}
	{{.Name}} {{.Type}}
{{- end}}
{{- end}}
}
{{- end}}
`))
