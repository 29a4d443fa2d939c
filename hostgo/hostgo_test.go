package hostgo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/source"
)

const typesFile = `package shaders

import "structs"

//shaderbind:struct
type Uniforms struct {
	_      structs.HostLayout
	Pos    [2]uint32 ` + "`shader:\"pos\"`" + `
	Scale  float32
	Hidden uint32 ` + "`shader:\"-\"`" + `
	_      [4]byte
}

// Loose has no stable layout.
//
//shaderbind:struct
type Loose struct {
	A, B float32
}

// Plain is not annotated.
type Plain struct {
	X int
}
`

const shadersFile = `package shaders

//shaderbind:shader ty=vertex path="shaders/sprite.wgsl"
type Sprite struct{}

type (
	//shaderbind:shader ty=fragment src="@fragment fn main() {}"
	Inline struct{}

	//shaderbinder:shader ty=vertex
	Other struct{}
)
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestParseDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"types.go":      typesFile,
		"shaders.go":    shadersFile,
		"types_test.go": "package shaders\n\n//shaderbind:struct\ntype TestOnly struct{}\n",
		"notes.txt":     "//shaderbind:struct",
	})

	pkg, err := ParseDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "shaders", pkg.Name)
	assert.Equal(t, []string{"Loose", "Uniforms"}, pkg.StructNames())

	uniforms, loose := pkg.Structs[0], pkg.Structs[1]
	require.Equal(t, "Uniforms", uniforms.Name)
	assert.True(t, uniforms.StableLayout)
	require.Len(t, uniforms.Fields, 2)
	assert.Equal(t, "pos", uniforms.Fields[0].Name)
	assert.True(t, uniforms.Fields[0].Type.Equal(hosttype.ArrayOf(2, hosttype.Scalar(hosttype.KindUint32))))
	assert.Equal(t, "Scale", uniforms.Fields[1].Name)

	assert.False(t, loose.StableLayout)
	require.Len(t, loose.Fields, 2)
	assert.Equal(t, "A", loose.Fields[0].Name)
	assert.Equal(t, "B", loose.Fields[1].Name)

	require.Len(t, pkg.Shaders, 2)
	assert.Equal(t, "Sprite", pkg.Shaders[0].Name)
	assert.Equal(t, []source.Attribute{
		{Name: "ty", Value: "vertex"},
		{Name: "path", Value: "shaders/sprite.wgsl"},
	}, pkg.Shaders[0].Attributes)
	assert.Equal(t, "Inline", pkg.Shaders[1].Name)
	assert.Equal(t, []source.Attribute{
		{Name: "ty", Value: "fragment"},
		{Name: "src", Value: "@fragment fn main() {}"},
	}, pkg.Shaders[1].Attributes)
}

func TestParseDirErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not a struct", "package p\n\n//shaderbind:struct\ntype N int\n", "a.go:4: N: //shaderbind:struct applies only to struct types"},
		{"embedded", "package p\n\n//shaderbind:struct\ntype E struct {\n\tOther\n}\n", "a.go:5: E: embedded field Other"},
		{"bad attribute", "package p\n\n//shaderbind:shader vertex\ntype S struct{}\n", `a.go:3: attribute "vertex" is not key=value`},
		{"unterminated quote", "package p\n\n//shaderbind:shader path=\"x\ntype S struct{}\n", "a.go:3: attribute path: bad quoted value"},
		{"syntax", "package p\n\ntype {\n", "a.go:3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"a.go": tt.content})
			_, err := ParseDir(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDirPackageMismatch(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})
	_, err := ParseDir(dir)
	var de *DirectiveError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Msg, "package b conflicts with package a")
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		in   string
		want []source.Attribute
	}{
		{"", nil},
		{" ty=compute", []source.Attribute{{Name: "ty", Value: "compute"}}},
		{"  path=`a b.wgsl`   ty=vertex ", []source.Attribute{{Name: "path", Value: "a b.wgsl"}, {Name: "ty", Value: "vertex"}}},
		{`src="line\nbreak" ty=`, []source.Attribute{{Name: "src", Value: "line\nbreak"}, {Name: "ty", Value: ""}}},
	}
	for _, tt := range tests {
		got, err := parseAttributes(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"=x", "a b=c", `src="x"y`} {
		_, err := parseAttributes(bad)
		assert.Error(t, err, bad)
	}
}
