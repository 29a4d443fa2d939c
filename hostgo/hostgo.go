// Package hostgo discovers structs and shaders declared in Go source.
//
// A struct type is registered when its declaration carries the directive
//
//	//shaderbind:struct
//
// and a shader is declared with attributes on any type:
//
//	//shaderbind:shader ty=vertex path="shaders/sprite.wgsl"
//	type Sprite struct{}
//
// Attribute values are bare words or Go-quoted strings.
package hostgo

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/gogpu/shaderbind"
	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
)

// Directive prefixes.
const (
	StructDirective = "//shaderbind:struct"
	ShaderDirective = "//shaderbind:shader"
)

// Package is what ParseDir found in one directory.
type Package struct {
	Name    string
	Dir     string
	Structs []registry.StructDef
	Shaders []shaderbind.ShaderDef
}

// DirectiveError reports a malformed declaration at Pos.
type DirectiveError struct {
	Pos token.Position
	Msg string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Pos.Filename, e.Pos.Line, e.Msg)
}

// ParseDir parses the non-test Go files in dir. Files are visited in name
// order, so results are deterministic.
func ParseDir(dir string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pkg := &Package{Dir: dir}
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		if pkg.Name == "" {
			pkg.Name = file.Name.Name
		} else if pkg.Name != file.Name.Name {
			return nil, &DirectiveError{Pos: fset.Position(file.Name.Pos()),
				Msg: fmt.Sprintf("package %s conflicts with package %s", file.Name.Name, pkg.Name)}
		}
		if err := pkg.collect(fset, file); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

func (p *Package) collect(fset *token.FileSet, file *ast.File) error {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gen.Specs) == 1 {
				doc = gen.Doc
			}
			if doc == nil {
				continue
			}
			for _, c := range doc.List {
				switch {
				case directive(c.Text, StructDirective):
					def, err := structDef(fset, ts)
					if err != nil {
						return err
					}
					p.Structs = append(p.Structs, def)
				case directive(c.Text, ShaderDirective):
					attrs, err := parseAttributes(strings.TrimPrefix(c.Text, ShaderDirective))
					if err != nil {
						return &DirectiveError{Pos: fset.Position(c.Pos()), Msg: err.Error()}
					}
					p.Shaders = append(p.Shaders, shaderbind.ShaderDef{Name: ts.Name.Name, Attributes: attrs})
				}
			}
		}
	}
	return nil
}

// directive reports whether text is prefix alone or followed by a space.
func directive(text, prefix string) bool {
	rest, ok := strings.CutPrefix(text, prefix)
	return ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t')
}

func structDef(fset *token.FileSet, ts *ast.TypeSpec) (registry.StructDef, error) {
	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		return registry.StructDef{}, &DirectiveError{Pos: fset.Position(ts.Pos()),
			Msg: fmt.Sprintf("%s: %s applies only to struct types", ts.Name.Name, StructDirective)}
	}
	def := registry.StructDef{Name: ts.Name.Name}
	for _, f := range st.Fields.List {
		if hosttype.IsHostLayout(f.Type) {
			def.StableLayout = true
			continue
		}
		if len(f.Names) == 0 {
			return registry.StructDef{}, &DirectiveError{Pos: fset.Position(f.Pos()),
				Msg: fmt.Sprintf("%s: embedded field %s is not supported", ts.Name.Name, types.ExprString(f.Type))}
		}
		typ, err := hosttype.FromExpr(f.Type)
		if err != nil {
			return registry.StructDef{}, &DirectiveError{Pos: fset.Position(f.Pos()), Msg: fmt.Sprintf("%s: %v", ts.Name.Name, err)}
		}
		tagged, skip, err := fieldTag(f)
		if err != nil {
			return registry.StructDef{}, &DirectiveError{Pos: fset.Position(f.Pos()), Msg: err.Error()}
		}
		if skip {
			continue
		}
		for _, n := range f.Names {
			if n.Name == "_" {
				continue
			}
			name := n.Name
			if tagged != "" {
				name = tagged
			}
			def.Fields = append(def.Fields, hosttype.Field{Name: name, Type: typ})
		}
	}
	return def, nil
}

func fieldTag(f *ast.Field) (name string, skip bool, err error) {
	if f.Tag == nil {
		return "", false, nil
	}
	raw, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return "", false, fmt.Errorf("bad struct tag %s", f.Tag.Value)
	}
	tag, ok := reflect.StructTag(raw).Lookup(hosttype.TagKey)
	if !ok {
		return "", false, nil
	}
	name, skip = hosttype.TagName(tag)
	return name, skip, nil
}

// parseAttributes splits `ty=vertex path="a b.wgsl"` into attributes.
func parseAttributes(s string) ([]source.Attribute, error) {
	var attrs []source.Attribute
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return attrs, nil
		}
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("attribute %q is not key=value", firstWord(s))
		}
		key := s[:eq]
		if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("attribute %q is not key=value", firstWord(s))
		}
		s = s[eq+1:]

		var value string
		if s != "" && (s[0] == '"' || s[0] == '`') {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: bad quoted value", key)
			}
			value, _ = strconv.Unquote(quoted)
			s = s[len(quoted):]
			if s != "" && !unicode.IsSpace(rune(s[0])) {
				return nil, fmt.Errorf("attribute %s: text after quoted value", key)
			}
		} else {
			value = firstWord(s)
			s = s[len(value):]
		}
		attrs = append(attrs, source.Attribute{Name: key, Value: value})
	}
}

func firstWord(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}
	return s
}

// StructNames returns the names of the discovered structs, sorted.
func (p *Package) StructNames() []string {
	names := make([]string, len(p.Structs))
	for i, s := range p.Structs {
		names[i] = s.Name
	}
	slices.Sort(names)
	return names
}
