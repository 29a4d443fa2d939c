package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shaderbind/spvreflect"
	"github.com/gogpu/shaderbind/stage"
)

func (a *app) reflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflect <file.spv>",
		Short: "List the entry points and resources of a SPIR-V module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := spvreflect.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			printModule(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func (a *app) disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.spv>",
		Short: "Print SPIR-V assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := spvreflect.Disassemble(cmd.OutOrStdout(), data); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return nil
		},
	}
}

func modelName(m spirv.ExecutionModel) string {
	if k, ok := stage.FromExecutionModel(m); ok {
		return k.AttributeName()
	}
	return "model " + strconv.Itoa(int(m))
}

func printModule(w io.Writer, m *spvreflect.Module) {
	h := m.Header
	fmt.Fprintf(w, "SPIR-V %d.%d, generator %#08x, bound %d\n", h.Major, h.Minor, h.Generator, h.Bound)

	for _, ep := range m.EntryPoints {
		fmt.Fprintf(w, "\nentry point %s (%s)", ep.Name, modelName(ep.Model))
		if ep.Workgroup != [3]uint32{} {
			fmt.Fprintf(w, " workgroup %dx%dx%d", ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
		}
		fmt.Fprintln(w)
		var t table
		t.row("DIR", "LOCATION", "NAME", "TYPE")
		for _, v := range ep.Inputs {
			t.row("in", strconv.FormatUint(uint64(v.Location), 10), v.Name, v.Type.String())
		}
		for _, v := range ep.Outputs {
			t.row("out", strconv.FormatUint(uint64(v.Location), 10), v.Name, v.Type.String())
		}
		if len(t) > 1 {
			t.write(w)
		}
	}

	if len(m.Resources) > 0 || len(m.PushConstants) > 0 {
		fmt.Fprintln(w, "\nresources")
		var t table
		t.row("SET", "BINDING", "KIND", "NAME", "SIZE", "ACCESS")
		for _, r := range m.Resources {
			t.row(strconv.FormatUint(uint64(r.Set), 10), strconv.FormatUint(uint64(r.Binding), 10),
				kindText(r), r.Name, sizeText(r), accessText(r))
		}
		for _, r := range m.PushConstants {
			t.row("-", "-", "push_constant", r.Name, sizeText(r), accessText(r))
		}
		t.write(w)
	}
}

func kindText(r spvreflect.Resource) string {
	switch r.Count {
	case 1:
		return r.Kind.String()
	case 0:
		return r.Kind.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", r.Kind, r.Count)
}

func sizeText(r spvreflect.Resource) string {
	if r.Type.Kind != spvreflect.TypeStruct {
		return "-"
	}
	return strconv.FormatUint(uint64(r.Type.Size()), 10)
}

func accessText(r spvreflect.Resource) string {
	switch {
	case r.ReadOnly:
		return "read"
	case r.WriteOnly:
		return "write"
	}
	return "read_write"
}

// table aligns columns by display width, so names with wide runes line up.
type table [][]string

func (t *table) row(cells ...string) {
	*t = append(*t, cells)
}

func (t table) write(w io.Writer) {
	var widths []int
	for _, r := range t {
		for i, c := range r {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}
	for _, r := range t {
		var sb strings.Builder
		sb.WriteString("  ")
		for i, c := range r {
			if i == len(r)-1 {
				sb.WriteString(c)
				break
			}
			sb.WriteString(runewidth.FillRight(c, widths[i]+2))
		}
		fmt.Fprintln(w, sb.String())
	}
}
