// Package manifest loads shaderbind.toml project manifests.
//
// A manifest names the Go package of generated files, the build settings,
// the structs to register and the shaders to compile. Its directory is the
// project root that shader paths are relative to.
package manifest

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/shaderbind"
	"github.com/gogpu/shaderbind/bindgen"
	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/typemap"
)

// FileName is the manifest file looked up by Find.
const FileName = "shaderbind.toml"

// ErrNotFound is returned by Find when no manifest exists up to the
// filesystem root.
var ErrNotFound = errors.New("no " + FileName + " found")

// Manifest is a decoded shaderbind.toml.
type Manifest struct {
	// Path is the manifest file.
	Path string `toml:"-"`

	Package PackageConfig  `toml:"package"`
	Build   BuildConfig    `toml:"build"`
	Structs []StructConfig `toml:"struct"`
	Shaders []ShaderConfig `toml:"shader"`
}

// PackageConfig is the [package] table.
type PackageConfig struct {
	Name      string `toml:"name"`
	OutputDir string `toml:"output_dir"`
}

// BuildConfig is the [build] table.
type BuildConfig struct {
	Dialect     string `toml:"dialect"`
	Compiler    string `toml:"compiler"`
	Glslc       string `toml:"glslc"`
	TargetEnv   string `toml:"target_env"`
	Marker      string `toml:"marker"`
	Echo        bool   `toml:"echo"`
	Jobs        int    `toml:"jobs"`
	EmitStructs bool   `toml:"emit_structs"`
}

// StructConfig is one [[struct]] entry.
type StructConfig struct {
	Name         string        `toml:"name"`
	StableLayout bool          `toml:"stable_layout"`
	Fields       []FieldConfig `toml:"fields"`
}

// FieldConfig is one struct field; Type is a Go type expression.
type FieldConfig struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// ShaderConfig is one [[shader]] entry. Pointer fields distinguish an
// absent key from an empty one.
type ShaderConfig struct {
	Name string  `toml:"name"`
	Ty   *string `toml:"ty"`
	Src  *string `toml:"src"`
	Path *string `toml:"path"`
}

// Find walks from startDir up to the filesystem root and returns the path
// of the first manifest found.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load decodes and validates the manifest at path and fills in defaults.
// Unknown keys are errors.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Path: abs}
	meta, err := toml.DecodeFile(abs, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", abs, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("build", "emit_structs") {
		m.Build.EmitStructs = true
	}
	m.fillDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	return m, nil
}

// New returns a manifest with default settings rooted at root, as if an
// empty shaderbind.toml were there.
func New(root string) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Path: filepath.Join(abs, FileName)}
	m.Build.EmitStructs = true
	m.fillDefaults()
	return m, nil
}

func (m *Manifest) fillDefaults() {
	if m.Package.Name == "" {
		m.Package.Name = bindgen.DefaultPackage
	}
	if m.Package.OutputDir == "" {
		m.Package.OutputDir = "."
	}
	if m.Build.Dialect == "" {
		m.Build.Dialect = typemap.WGSL.String()
	}
	if m.Build.Compiler == "" {
		m.Build.Compiler = compiler.NagaBackend
		if strings.EqualFold(m.Build.Dialect, typemap.GLSL.String()) {
			m.Build.Compiler = compiler.GlslcBackend
		}
	}
	if m.Build.Glslc == "" {
		m.Build.Glslc = "glslc"
	}
	if m.Build.TargetEnv == "" {
		m.Build.TargetEnv = "vulkan1.0"
	}
	if m.Build.Marker == "" {
		m.Build.Marker = preprocess.DefaultMarker
	}
}

func (m *Manifest) validate() error {
	if !token.IsIdentifier(m.Package.Name) {
		return fmt.Errorf("[package].name %q is not a Go identifier", m.Package.Name)
	}
	d, err := typemap.ParseDialect(m.Build.Dialect)
	if err != nil {
		return fmt.Errorf("[build].dialect: %w", err)
	}
	switch m.Build.Compiler {
	case compiler.NagaBackend:
		if d != typemap.WGSL {
			return fmt.Errorf("[build].compiler naga only compiles wgsl")
		}
	case compiler.GlslcBackend:
	default:
		return fmt.Errorf("[build].compiler %q is not naga or glslc", m.Build.Compiler)
	}
	if m.Build.Jobs < 0 {
		return fmt.Errorf("[build].jobs must not be negative")
	}

	for i, s := range m.Structs {
		if !token.IsIdentifier(s.Name) {
			return fmt.Errorf("struct #%d: name %q is not an identifier", i+1, s.Name)
		}
		for _, f := range s.Fields {
			if !token.IsIdentifier(f.Name) {
				return fmt.Errorf("struct %s: field name %q is not an identifier", s.Name, f.Name)
			}
		}
	}

	seen := make(map[string]bool)
	for i, s := range m.Shaders {
		if !token.IsIdentifier(s.Name) {
			return fmt.Errorf("shader #%d: name %q is not an identifier", i+1, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("shader %s declared twice", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Root returns the project root, the directory holding the manifest.
func (m *Manifest) Root() string {
	return filepath.Dir(m.Path)
}

// OutputDir returns the directory generated files are written to.
func (m *Manifest) OutputDir() string {
	if filepath.IsAbs(m.Package.OutputDir) {
		return m.Package.OutputDir
	}
	return filepath.Join(m.Root(), filepath.FromSlash(m.Package.OutputDir))
}

// Dialect returns the validated build dialect.
func (m *Manifest) Dialect() typemap.Dialect {
	d, _ := typemap.ParseDialect(m.Build.Dialect)
	return d
}

// StructDefs converts the [[struct]] entries, parsing each field type.
func (m *Manifest) StructDefs() ([]registry.StructDef, error) {
	defs := make([]registry.StructDef, 0, len(m.Structs))
	for _, s := range m.Structs {
		def := registry.StructDef{Name: s.Name, StableLayout: s.StableLayout}
		for _, f := range s.Fields {
			t, err := hosttype.Parse(f.Type)
			if err != nil {
				return nil, fmt.Errorf("struct %s field %s: %w", s.Name, f.Name, err)
			}
			def.Fields = append(def.Fields, hosttype.Field{Name: f.Name, Type: t})
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ShaderDefs converts the [[shader]] entries to attribute sets. Every key
// present yields an attribute, even when its value is empty.
func (m *Manifest) ShaderDefs() []shaderbind.ShaderDef {
	defs := make([]shaderbind.ShaderDef, 0, len(m.Shaders))
	for _, s := range m.Shaders {
		def := shaderbind.ShaderDef{Name: s.Name}
		add := func(name string, v *string) {
			if v != nil {
				def.Attributes = append(def.Attributes, source.Attribute{Name: name, Value: *v})
			}
		}
		add(source.AttrSource, s.Src)
		add(source.AttrPath, s.Path)
		add(shaderbind.AttrStage, s.Ty)
		defs = append(defs, def)
	}
	return defs
}

// Options builds session options from the [build] and [package] tables.
func (m *Manifest) Options() shaderbind.Options {
	opts := shaderbind.Options{
		Dialect:     m.Dialect(),
		Marker:      m.Build.Marker,
		Reflector:   bindgen.NewGo(bindgen.GoOptions{Package: m.Package.Name, EmitStructs: m.Build.EmitStructs}),
		ProjectRoot: m.Root(),
	}
	switch m.Build.Compiler {
	case compiler.GlslcBackend:
		opts.Compiler = compiler.NewGlslc(compiler.GlslcOptions{Path: m.Build.Glslc, TargetEnv: m.Build.TargetEnv})
	default:
		opts.Compiler = compiler.NewNaga(compiler.NagaOptions{Debug: true, Logger: shaderbind.Logger()})
	}
	if m.Build.Echo {
		opts.Echo = os.Stderr
	}
	return opts
}
