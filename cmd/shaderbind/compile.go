package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/stage"
	"github.com/gogpu/shaderbind/typemap"
)

type compileFlags struct {
	output  string
	stage   string
	dialect string
	glslc   string
	debug   bool
}

// stageByExt maps glslc-style file extensions to stages.
var stageByExt = map[string]stage.Kind{
	".vert": stage.Vertex,
	".frag": stage.Fragment,
	".geom": stage.Geometry,
	".tesc": stage.TessellationControl,
	".tese": stage.TessellationEvaluation,
	".comp": stage.Compute,
}

func (a *app) compileCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile one shader file to SPIR-V",
		Long: `compile runs a single shader through the compiler without placeholder
substitution. The stage comes from --stage or the file extension
(.vert .frag .geom .tesc .tese .comp); the dialect from --dialect or
the extension (.wgsl is WGSL, anything else GLSL).`,
		Example: `  shaderbind compile --stage vertex -o sprite.spv sprite.wgsl
  shaderbind compile shader.frag > shader.spv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := compileStage(args[0], f.stage)
			if err != nil {
				return err
			}
			c, err := compilerFor(args[0], f)
			if err != nil {
				return err
			}
			resolved, err := source.Resolve([]source.Attribute{{Name: source.AttrPath, Value: args[0]}}, "")
			if err != nil {
				return err
			}
			art, err := c.Compile(cmd.Context(), resolved.Text, k)
			if err != nil {
				return err
			}

			if f.output == "" {
				_, err = cmd.OutOrStdout().Write(art.SPIRV)
				return err
			}
			if err := os.WriteFile(f.output, art.SPIRV, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "compiled %s to %s (%d bytes, entry point %s)\n", args[0], f.output, len(art.SPIRV), art.EntryPoint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&f.stage, "stage", "", "shader stage: "+strings.Join(stage.Names(), ", "))
	cmd.Flags().StringVar(&f.dialect, "dialect", "", "source language: wgsl or glsl")
	cmd.Flags().StringVar(&f.glslc, "glslc", "glslc", "glslc executable for GLSL")
	cmd.Flags().BoolVar(&f.debug, "debug", true, "keep debug names in WGSL output")
	return cmd
}

func compileStage(path, name string) (stage.Kind, error) {
	if name != "" {
		return stage.Classify(name)
	}
	if k, ok := stageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("cannot infer the stage of %s; pass --stage", path)
}

func compilerFor(path string, f compileFlags) (compiler.Compiler, error) {
	d := typemap.GLSL
	if strings.EqualFold(filepath.Ext(path), ".wgsl") {
		d = typemap.WGSL
	}
	if f.dialect != "" {
		var err error
		if d, err = typemap.ParseDialect(f.dialect); err != nil {
			return nil, err
		}
	}
	if d == typemap.GLSL {
		return compiler.NewGlslc(compiler.GlslcOptions{Path: f.glslc}), nil
	}
	return compiler.NewNaga(compiler.NagaOptions{Debug: f.debug}), nil
}
