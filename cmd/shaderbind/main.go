// Command shaderbind compiles shaders and generates Go bindings for them.
//
// Usage:
//
//	shaderbind [--manifest file] [--verbose] [--no-color] <command> [args]
//
// Examples:
//
//	shaderbind generate                      # build every shader in shaderbind.toml
//	shaderbind generate --go ./gpu           # also read //shaderbind: directives
//	shaderbind compile -o out.spv sprite.wgsl --stage vertex
//	shaderbind reflect out.spv               # list entry points and bindings
//	shaderbind disasm out.spv                # print SPIR-V assembly
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gogpu/shaderbind"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

// app holds the persistent flags shared by all subcommands.
type app struct {
	manifest string
	verbose  bool
	noColor  bool

	stderr io.Writer
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shaderbind",
		Short:         "Compile shaders to SPIR-V and generate Go bindings",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if a.verbose {
				shaderbind.SetLogger(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}
	root.PersistentFlags().StringVar(&a.manifest, "manifest", "", "path to shaderbind.toml (default: search upward from the working directory)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log pipeline steps to stderr")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.generateCmd(),
		a.compileCmd(),
		a.reflectCmd(),
		a.disasmCmd(),
		versionCmd(),
	)
	return root
}

// useColor reports whether w is a terminal and color is not disabled.
func (a *app) useColor(w io.Writer) bool {
	if a.noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) paint(w io.Writer, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if a.useColor(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (a *app) printError(err error) {
	red := a.paint(a.stderr, color.FgRed, color.Bold)
	var ce *contextError
	if errors.As(err, &ce) {
		red.Fprintf(a.stderr, "error: %v\n", ce.Err)
		fmt.Fprintf(a.stderr, "  in %s\n%s", ce.Where, ce.Context)
		return
	}
	red.Fprintf(a.stderr, "error: %v\n", err)
}

// contextError carries a rendering of err against the shader source.
type contextError struct {
	Err     error
	Where   string
	Context string
}

func (e *contextError) Error() string { return e.Err.Error() }

func (e *contextError) Unwrap() error { return e.Err }
