package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/shaderbind"
	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/typemap"
)

const fullManifest = `
[package]
name = "gen"
output_dir = "internal/gen"

[build]
dialect = "glsl"
glslc = "/opt/bin/glslc"
target_env = "vulkan1.2"
marker = "@inc"
echo = true
jobs = 4
emit_structs = false

[[struct]]
name = "Uniforms"
stable_layout = true
fields = [ { name = "pos", type = "[2]uint32" }, { name = "scale", type = "float32" } ]

[[shader]]
name = "Shader"
ty = "vertex"
path = "shaders/main.vert"

[[shader]]
name = "Inline"
ty = "fragment"
src = "void main() {}"
`

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeManifest(t, dir, fullManifest))
	require.NoError(t, err)

	root, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, root, m.Root())
	assert.Equal(t, filepath.Join(root, "internal", "gen"), m.OutputDir())
	assert.Equal(t, typemap.GLSL, m.Dialect())
	assert.Equal(t, compiler.GlslcBackend, m.Build.Compiler)
	assert.Equal(t, 4, m.Build.Jobs)
	assert.False(t, m.Build.EmitStructs)

	defs, err := m.StructDefs()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Uniforms", defs[0].Name)
	assert.True(t, defs[0].StableLayout)
	require.Len(t, defs[0].Fields, 2)
	assert.Equal(t, "pos", defs[0].Fields[0].Name)
	assert.True(t, defs[0].Fields[0].Type.Equal(hosttype.ArrayOf(2, hosttype.Scalar(hosttype.KindUint32))))

	shaders := m.ShaderDefs()
	require.Len(t, shaders, 2)
	assert.Equal(t, shaderbind.ShaderDef{Name: "Shader", Attributes: []source.Attribute{
		{Name: "path", Value: "shaders/main.vert"},
		{Name: "ty", Value: "vertex"},
	}}, shaders[0])
	assert.Equal(t, []source.Attribute{
		{Name: "src", Value: "void main() {}"},
		{Name: "ty", Value: "fragment"},
	}, shaders[1].Attributes)

	opts := m.Options()
	assert.Equal(t, typemap.GLSL, opts.Dialect)
	assert.Equal(t, "@inc", opts.Marker)
	assert.Equal(t, compiler.GlslcBackend, opts.Compiler.Name())
	assert.Equal(t, root, opts.ProjectRoot)
	assert.Equal(t, os.Stderr, opts.Echo)
}

func TestLoadDefaults(t *testing.T) {
	m, err := Load(writeManifest(t, t.TempDir(), "[package]\n"))
	require.NoError(t, err)

	assert.Equal(t, "shaders", m.Package.Name)
	assert.Equal(t, m.Root(), m.OutputDir())
	assert.Equal(t, typemap.WGSL, m.Dialect())
	assert.Equal(t, compiler.NagaBackend, m.Build.Compiler)
	assert.Equal(t, preprocess.DefaultMarker, m.Build.Marker)
	assert.Equal(t, "vulkan1.0", m.Build.TargetEnv)
	assert.True(t, m.Build.EmitStructs)
	assert.Zero(t, m.Build.Jobs)
	assert.Empty(t, m.ShaderDefs())

	opts := m.Options()
	assert.Equal(t, compiler.NagaBackend, opts.Compiler.Name())
	assert.Nil(t, opts.Echo)
}

func TestShaderDefsKeepEmptyKeys(t *testing.T) {
	m, err := Load(writeManifest(t, t.TempDir(), `
[[shader]]
name = "Both"
ty = "vertex"
src = ""
path = ""
`))
	require.NoError(t, err)

	defs := m.ShaderDefs()
	require.Len(t, defs, 1)
	assert.Len(t, defs[0].Attributes, 3)

	_, err = source.Resolve(defs[0].Attributes, m.Root())
	var amb *source.AmbiguousSourceError
	assert.ErrorAs(t, err, &amb)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[build]\nparallel = true\n", "unknown keys: build.parallel"},
		{"unknown table", "[extras]\nx = 1\n", "unknown keys"},
		{"bad package name", "[package]\nname = \"my-shaders\"\n", "not a Go identifier"},
		{"bad dialect", "[build]\ndialect = \"hlsl\"\n", "[build].dialect"},
		{"naga with glsl", "[build]\ndialect = \"glsl\"\ncompiler = \"naga\"\n", "naga only compiles wgsl"},
		{"bad compiler", "[build]\ncompiler = \"dxc\"\n", "is not naga or glslc"},
		{"negative jobs", "[build]\njobs = -1\n", "jobs must not be negative"},
		{"bad struct name", "[[struct]]\nname = \"1x\"\n", "is not an identifier"},
		{"bad field name", "[[struct]]\nname = \"U\"\nfields = [{ name = \"a b\", type = \"uint32\" }]\n", "field name"},
		{"duplicate shader", "[[shader]]\nname = \"A\"\n[[shader]]\nname = \"A\"\n", "declared twice"},
		{"syntax", "[package\n", FileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, t.TempDir(), tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStructDefsBadType(t *testing.T) {
	m, err := Load(writeManifest(t, t.TempDir(), "[[struct]]\nname = \"U\"\nstable_layout = true\nfields = [{ name = \"f\", type = \"map[\" }]\n"))
	require.NoError(t, err)
	_, err = m.StructDefs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "struct U field f")
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	want := writeManifest(t, root, "")
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := Find(nested)
	require.NoError(t, err)
	wantAbs, err := filepath.Abs(want)
	require.NoError(t, err)
	assert.Equal(t, wantAbs, got)

	got, err = Find(root)
	require.NoError(t, err)
	assert.Equal(t, wantAbs, got)
}

func TestFindNotFound(t *testing.T) {
	dir := t.TempDir()
	// A manifest above the temp dir would be found; only check when none is.
	if _, err := Find(filepath.Dir(dir)); err == nil {
		t.Skip("a manifest exists above the temp directory")
	}
	_, err := Find(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, FileName), 0o755))
	inner := filepath.Join(root, "inner")
	require.NoError(t, os.Mkdir(inner, 0o755))
	want := writeManifest(t, inner, "")

	got, err := Find(inner)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)
	loaded, err := Load(writeManifest(t, dir, ""))
	require.NoError(t, err)
	assert.Equal(t, loaded, m)
}
