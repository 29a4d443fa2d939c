// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindgen

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/spvreflect"
	"github.com/gogpu/shaderbind/stage"
)

const wordsPerLine = 6

// fileModel is the data behind the generated file.
type fileModel struct {
	Package       string
	RuntimeImport string
	NeedStructs   bool

	Type             string
	Var              string
	Name             string
	EntryPoint       string
	StageTitle       string
	Stage            string
	Bindings         []bindingModel
	Inputs           []inputModel
	Workgroup        [3]uint32
	PushConstantSize uint32
	WordLines        []string
	Structs          []structModel
}

type bindingModel struct {
	Const    string
	Name     string
	Group    uint32
	Binding  uint32
	Combined bool
	Kind     string
	// Entry is the Go expression for the layout entry fields.
	Entry string
}

type inputModel struct {
	Name     string
	Location uint32
	Format   string
}

type structModel struct {
	Type   string
	Source string
	Size   uint32
	Fields []fieldModel
}

type fieldModel struct {
	Name    string
	Type    string
	Comment string
}

type builder struct {
	name  string
	opts  GoOptions
	names *namer
	typ   string

	consts  uniqueNames
	structs map[uint32]*structModel
	order   []uint32
	taken   uniqueNames
}

func newBuilder(name string, opts GoOptions) *builder {
	b := &builder{
		name:    name,
		opts:    opts,
		names:   newNamer(),
		consts:  make(uniqueNames),
		structs: make(map[uint32]*structModel),
		taken:   make(uniqueNames),
	}
	b.typ = b.names.exported(name)
	return b
}

func (b *builder) build(m *spvreflect.Module, a *compiler.Artifact, words []uint32) (*fileModel, error) {
	if b.typ == "" {
		return nil, fmt.Errorf("shader name %q is not usable as a Go identifier", b.name)
	}
	b.taken.take(b.typ)

	ep, err := entryPoint(m, a)
	if err != nil {
		return nil, err
	}

	vis := a.Stage.Visibility()
	model := &fileModel{
		Package:       b.opts.Package,
		RuntimeImport: b.opts.RuntimeImport,
		Type:          b.typ,
		Var:           unexported(b.typ) + "SPIRV",
		Name:          b.name,
		EntryPoint:    ep.Name,
		StageTitle:    a.Stage.AttributeName(),
		Stage:         stageExpr(vis),
		Workgroup:     ep.Workgroup,
	}

	for _, r := range m.Resources {
		bm, err := b.binding(r, vis)
		if err != nil {
			return nil, err
		}
		model.Bindings = append(model.Bindings, bm)
	}

	if a.Stage == stage.Vertex {
		for _, v := range ep.Inputs {
			f, err := vertexFormat(v.Type)
			if err != nil {
				return nil, fmt.Errorf("input %q at location %d: %w", v.Name, v.Location, err)
			}
			model.Inputs = append(model.Inputs, inputModel{Name: v.Name, Location: v.Location, Format: "gputypes.VertexFormat" + f.String()})
		}
	}

	if len(m.PushConstants) > 0 {
		pc := m.PushConstants[0]
		model.PushConstantSize = pc.Type.Size()
		if body := pc.Type.Content(); b.opts.EmitStructs && body.Kind == spvreflect.TypeStruct {
			if _, err := b.mirror(body, pc.Name); err != nil {
				return nil, err
			}
		}
	}

	if m.Header.BigEndian {
		for i, w := range words {
			words[i] = bits.ReverseBytes32(w)
		}
	}
	model.WordLines = wordLines(words)

	for _, id := range b.order {
		model.Structs = append(model.Structs, *b.structs[id])
	}
	model.NeedStructs = len(model.Structs) > 0
	return model, nil
}

// entryPoint picks the entry point matching the artifact's stage, by name
// when the artifact names one.
func entryPoint(m *spvreflect.Module, a *compiler.Artifact) (*spvreflect.EntryPoint, error) {
	model, ok := a.Stage.ExecutionModel()
	if !ok {
		return nil, fmt.Errorf("artifact has unknown stage %v", a.Stage)
	}
	var found *spvreflect.EntryPoint
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		if ep.Model != model {
			continue
		}
		if a.EntryPoint == "" || ep.Name == a.EntryPoint {
			return ep, nil
		}
		if found == nil {
			found = ep
		}
	}
	if found == nil {
		return nil, fmt.Errorf("module has no %s entry point", a.Stage)
	}
	return found, nil
}

func stageExpr(s gputypes.ShaderStage) string {
	switch s {
	case gputypes.ShaderStageVertex:
		return "gputypes.ShaderStageVertex"
	case gputypes.ShaderStageFragment:
		return "gputypes.ShaderStageFragment"
	case gputypes.ShaderStageCompute:
		return "gputypes.ShaderStageCompute"
	}
	return "gputypes.ShaderStageNone"
}

func (b *builder) binding(r spvreflect.Resource, vis gputypes.ShaderStage) (bindingModel, error) {
	if r.Count != 1 {
		return bindingModel{}, fmt.Errorf("binding %d.%d (%s) is a binding array", r.Set, r.Binding, r.Name)
	}
	ident := b.names.exported(r.Name)
	if ident == "" {
		ident = fmt.Sprintf("Binding%d_%d", r.Set, r.Binding)
	}
	bm := bindingModel{
		Const:   b.consts.take(b.typ + ident),
		Name:    r.Name,
		Group:   r.Set,
		Binding: r.Binding,
		Kind:    r.Kind.String(),
	}

	var entry string
	switch r.Kind {
	case spvreflect.UniformBuffer, spvreflect.StorageBuffer:
		typ := gputypes.BufferBindingTypeUniform
		if r.Kind == spvreflect.StorageBuffer {
			typ = gputypes.BufferBindingTypeStorage
			if r.ReadOnly {
				typ = gputypes.BufferBindingTypeReadOnlyStorage
			}
		}
		entry = fmt.Sprintf("Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingType%s, MinBindingSize: %d}",
			typ, r.Type.Size())
		if body := r.Type.Content(); b.opts.EmitStructs && body.Kind == spvreflect.TypeStruct {
			if _, err := b.mirror(body, r.Name); err != nil {
				return bindingModel{}, err
			}
		}

	case spvreflect.Sampler:
		entry = "Sampler: &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}"

	case spvreflect.SampledImage, spvreflect.CombinedImageSampler:
		img := r.Type.Image
		if r.Kind == spvreflect.CombinedImageSampler {
			img = r.Type.Elem.Image
			bm.Combined = true
		}
		tex, err := textureEntry(img)
		if err != nil {
			return bindingModel{}, fmt.Errorf("binding %d.%d (%s): %w", r.Set, r.Binding, r.Name, err)
		}
		entry = tex

	case spvreflect.StorageImage:
		img := r.Type.Image
		format, err := textureFormat(img.Format)
		if err != nil {
			return bindingModel{}, fmt.Errorf("binding %d.%d (%s): %w", r.Set, r.Binding, r.Name, err)
		}
		dim, err := viewDimension(img)
		if err != nil {
			return bindingModel{}, fmt.Errorf("binding %d.%d (%s): %w", r.Set, r.Binding, r.Name, err)
		}
		entry = fmt.Sprintf("StorageTexture: &gputypes.StorageTextureBindingLayout{Access: gputypes.StorageTextureAccess%s, Format: gputypes.TextureFormat%s, ViewDimension: gputypes.TextureViewDimension%s}",
			storageAccess(r), format, dim)
	}
	bm.Entry = fmt.Sprintf("Binding: %d, Visibility: %s, %s", r.Binding, stageExpr(vis), entry)
	return bm, nil
}

func textureEntry(img *spvreflect.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("not an image")
	}
	st, err := sampleType(img)
	if err != nil {
		return "", err
	}
	dim, err := viewDimension(img)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Texture: &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleType%s, ViewDimension: gputypes.TextureViewDimension%s, Multisampled: %t}",
		st, dim, img.Multisampled), nil
}

func wordLines(words []uint32) []string {
	var lines []string
	for chunk := range slices.Chunk(words, wordsPerLine) {
		parts := make([]string, len(chunk))
		for i, w := range chunk {
			parts[i] = fmt.Sprintf("0x%08x", w)
		}
		lines = append(lines, strings.Join(parts, ", ")+",")
	}
	return lines
}

// mirror registers a Go mirror of a block struct and returns its type name.
// Nested structs are mirrored first so they precede their users.
func (b *builder) mirror(t *spvreflect.Type, fallback string) (string, error) {
	if s, ok := b.structs[t.ID]; ok {
		return s.Type, nil
	}
	base := t.Name
	if base == "" {
		base = fallback
	}
	ident := b.names.exported(base)
	if ident == "" {
		ident = fmt.Sprintf("Struct%d", t.ID)
	}
	s := &structModel{Type: b.taken.take(b.typ + ident), Source: base, Size: t.Size()}
	b.structs[t.ID] = s

	members := slices.Clone(t.Members)
	slices.SortStableFunc(members, func(x, y spvreflect.Member) int { return cmp.Compare(x.Offset, y.Offset) })
	fieldNames := make(uniqueNames)
	var cur uint32
	runtimeSized := false
	for i, m := range members {
		if m.Offset > cur {
			s.Fields = append(s.Fields, fieldModel{Name: "_", Type: fmt.Sprintf("[%d]byte", m.Offset-cur)})
		}
		if m.Type.Kind == spvreflect.TypeRuntimeArray {
			s.Fields = append(s.Fields, fieldModel{
				Name:    "",
				Comment: fmt.Sprintf("%s %s at offset %d follows, stride %d", m.Name, m.Type, m.Offset, m.Type.ArrayStride),
			})
			cur = max(cur, m.Offset)
			runtimeSized = true
			continue
		}
		goType, size, err := b.goType(m)
		if err != nil {
			return "", fmt.Errorf("struct %s member %s: %w", base, m.Name, err)
		}
		name := b.names.exported(m.Name)
		if name == "" {
			name = fmt.Sprintf("Field%d", i)
		}
		s.Fields = append(s.Fields, fieldModel{Name: fieldNames.take(name), Type: goType})
		cur = m.Offset + size
	}
	switch {
	case runtimeSized:
		s.Size = cur
	case s.Size > cur:
		s.Fields = append(s.Fields, fieldModel{Name: "_", Type: fmt.Sprintf("[%d]byte", s.Size-cur)})
	}
	// Nested mirrors were appended while walking members.
	b.order = append(b.order, t.ID)
	return s.Type, nil
}

func scalarGoType(t *spvreflect.Type) (string, error) {
	switch t.Kind {
	case spvreflect.TypeBool:
		return "uint32", nil
	case spvreflect.TypeFloat:
		switch t.Width {
		case 32:
			return "float32", nil
		case 64:
			return "float64", nil
		case 16:
			return "uint16", nil
		}
	case spvreflect.TypeInt:
		prefix := "uint"
		if t.Signed {
			prefix = "int"
		}
		switch t.Width {
		case 8, 16, 32, 64:
			return fmt.Sprintf("%s%d", prefix, t.Width), nil
		}
	}
	return "", fmt.Errorf("no Go type for %s", t)
}

// goType returns the Go type of a struct member and its byte size.
func (b *builder) goType(m spvreflect.Member) (string, uint32, error) {
	t := m.Type
	switch t.Kind {
	case spvreflect.TypeBool, spvreflect.TypeInt, spvreflect.TypeFloat:
		s, err := scalarGoType(t)
		return s, t.Size(), err

	case spvreflect.TypeVector:
		s, err := scalarGoType(t.Elem)
		return fmt.Sprintf("[%d]%s", t.Count, s), t.Size(), err

	case spvreflect.TypeMatrix:
		col := t.Elem
		scalar := col.Elem
		s, err := scalarGoType(scalar)
		if err != nil {
			return "", 0, err
		}
		stride := m.MatrixStride
		if stride == 0 {
			stride = roundUpTo(col.Size(), col.Align())
		}
		rows := stride / scalar.Size()
		return fmt.Sprintf("[%d][%d]%s", t.Count, rows, s), t.Count * stride, nil

	case spvreflect.TypeArray:
		stride := t.ArrayStride
		if stride == 0 {
			stride = roundUpTo(t.Elem.Size(), t.Elem.Align())
		}
		elem, elemSize, err := b.goType(spvreflect.Member{Name: m.Name, Type: t.Elem})
		if err != nil {
			return "", 0, err
		}
		switch {
		case elemSize == stride:
		case t.Elem.Kind == spvreflect.TypeVector || t.Elem.Kind <= spvreflect.TypeFloat:
			// Pad each element out to the stride with extra components.
			scalar := t.Elem
			if scalar.Kind == spvreflect.TypeVector {
				scalar = scalar.Elem
			}
			s, err := scalarGoType(scalar)
			if err != nil {
				return "", 0, err
			}
			elem = fmt.Sprintf("[%d]%s", stride/scalar.Size(), s)
		default:
			elem = fmt.Sprintf("[%d]byte", stride)
		}
		return fmt.Sprintf("[%d]%s", t.Count, elem), t.Count * stride, nil

	case spvreflect.TypeStruct:
		name, err := b.mirror(t, m.Name)
		return name, t.Size(), err
	}
	return "", 0, fmt.Errorf("%s cannot appear in a host-shareable struct", t)
}

func roundUpTo(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}
