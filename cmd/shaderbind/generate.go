package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shaderbind"
	"github.com/gogpu/shaderbind/bindgen"
	"github.com/gogpu/shaderbind/hostgo"
	"github.com/gogpu/shaderbind/manifest"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
)

type generateFlags struct {
	out    string
	jobs   int
	goDirs []string
}

func (a *app) generateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile every declared shader and write Go bindings",
		Long: `generate loads shaderbind.toml and any Go packages named with --go,
registers every struct, compiles every shader and writes one
<name>_shader.go file per shader. Nothing is written unless every shader
succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default: [package].output_dir)")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "shaders compiled in parallel (default: [build].jobs or GOMAXPROCS)")
	cmd.Flags().StringSliceVar(&f.goDirs, "go", nil, "Go package directories to scan for //shaderbind: directives")
	return cmd
}

// build is everything generate needs to run the pipeline.
type build struct {
	m       *manifest.Manifest
	structs []registry.StructDef
	shaders []shaderbind.ShaderDef
}

func (a *app) loadBuild(goDirs []string) (*build, error) {
	var pkgs []*hostgo.Package
	for _, dir := range goDirs {
		pkg, err := hostgo.ParseDir(dir)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}

	m, err := a.loadManifest()
	switch {
	case errors.Is(err, manifest.ErrNotFound) && len(pkgs) > 0:
		if m, err = manifest.New(pkgs[0].Dir); err != nil {
			return nil, err
		}
		m.Package.Name = pkgs[0].Name
	case err != nil:
		return nil, err
	}

	structs, err := m.StructDefs()
	if err != nil {
		return nil, err
	}
	b := &build{m: m, structs: structs, shaders: m.ShaderDefs()}
	for _, pkg := range pkgs {
		b.structs = append(b.structs, pkg.Structs...)
		b.shaders = append(b.shaders, pkg.Shaders...)
	}

	seen := make(map[string]bool)
	types := make(map[string]string)
	files := make(map[string]string)
	for _, s := range b.shaders {
		if seen[s.Name] {
			return nil, fmt.Errorf("shader %s declared twice", s.Name)
		}
		seen[s.Name] = true
		if typ := bindgen.TypeName(s.Name); typ != "" {
			if prev, ok := types[typ]; ok {
				return nil, fmt.Errorf("shaders %s and %s both generate type %s", prev, s.Name, typ)
			}
			types[typ] = s.Name
		}
		file := fileName(s.Name)
		if prev, ok := files[file]; ok {
			return nil, fmt.Errorf("shaders %s and %s both generate %s", prev, s.Name, file)
		}
		files[file] = s.Name
	}
	return b, nil
}

func (a *app) loadManifest() (*manifest.Manifest, error) {
	path := a.manifest
	if path == "" {
		found, err := manifest.Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}
	return manifest.Load(path)
}

func (a *app) generate(cmd *cobra.Command, f generateFlags) error {
	b, err := a.loadBuild(f.goDirs)
	if err != nil {
		return err
	}
	s, err := shaderbind.NewSession(b.m.Options())
	if err != nil {
		return err
	}
	for _, def := range b.structs {
		if _, err := s.Registry().Register(def); err != nil {
			return err
		}
	}

	jobs := f.jobs
	if jobs == 0 {
		jobs = b.m.Build.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	outputs, err := compileAll(cmd.Context(), s, b.shaders, jobs)
	if err != nil {
		return err
	}

	outDir := f.out
	if outDir == "" {
		outDir = b.m.OutputDir()
	}
	files := make(map[string]string, len(outputs))
	for i, out := range outputs {
		files[fileName(b.shaders[i].Name)] = out.Binding
	}
	if err := writeAll(outDir, files); err != nil {
		return err
	}

	green := a.paint(cmd.OutOrStdout(), color.FgGreen)
	green.Fprintf(cmd.OutOrStdout(), "generated %d shader(s) in %s\n", len(outputs), outDir)
	return nil
}

// compileAll compiles shaders in parallel. The first failure cancels the
// rest.
func compileAll(ctx context.Context, s *shaderbind.Session, shaders []shaderbind.ShaderDef, jobs int) ([]*shaderbind.Output, error) {
	outputs := make([]*shaderbind.Output, len(shaders))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, def := range shaders {
		g.Go(func() error {
			out, err := s.CompileShader(ctx, def)
			if err != nil {
				return withSourceContext(err, def, s.Options().ProjectRoot)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// withSourceContext attaches the offending source line to placeholder errors.
func withSourceContext(err error, def shaderbind.ShaderDef, root string) error {
	var pe *preprocess.PlaceholderError
	if !errors.As(err, &pe) {
		return err
	}
	resolved, rerr := source.Resolve(def.Attributes, root)
	if rerr != nil {
		return err
	}
	where := def.Name
	if resolved.Path != "" {
		where = resolved.Path
	}
	// The first line repeats the error message.
	_, snippet, _ := strings.Cut(pe.FormatWithContext(resolved.Text), "\n")
	return &contextError{Err: err, Where: where, Context: snippet}
}

// writeAll writes every file to a temporary name first and renames only
// when all writes succeeded.
func writeAll(dir string, files map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temps := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range temps {
			os.Remove(tmp)
		}
	}
	for name, content := range files {
		tmp, err := os.CreateTemp(dir, "."+name+".tmp*")
		if err != nil {
			cleanup()
			return err
		}
		temps[name] = tmp.Name()
		_, werr := tmp.WriteString(content)
		cerr := tmp.Close()
		if err := errors.Join(werr, cerr); err != nil {
			cleanup()
			return err
		}
	}
	for name, tmp := range temps {
		dst := filepath.Join(dir, name)
		if err := os.Rename(tmp, dst); err != nil {
			cleanup()
			return err
		}
		delete(temps, name)
		shaderbind.Logger().Info("shaderbind: wrote bindings", "file", dst)
	}
	return nil
}

// fileName names the generated file for a shader; "SpriteShader" and
// "Sprite" both give sprite_shader.go.
func fileName(name string) string {
	return strings.TrimSuffix(snake(name), "_shader") + "_shader.go"
}

// snake converts "SpriteShader" to "sprite_shader" and "HTTPServer" to
// "http_server".
func snake(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
