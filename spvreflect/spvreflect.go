// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package spvreflect reads the interface of a SPIR-V module: entry points,
// descriptor bindings, push constants and stage inputs/outputs, together
// with the buffer layouts they use.
package spvreflect

import (
	"cmp"
	"fmt"
	"slices"

	"fortio.org/safecast"
	"github.com/gogpu/naga/spirv"
)

// ResourceKind classifies a descriptor binding.
type ResourceKind uint8

const (
	UniformBuffer ResourceKind = iota
	StorageBuffer
	Sampler
	SampledImage
	StorageImage
	CombinedImageSampler
)

var resourceKindNames = [...]string{
	UniformBuffer:        "uniform_buffer",
	StorageBuffer:        "storage_buffer",
	Sampler:              "sampler",
	SampledImage:         "sampled_image",
	StorageImage:         "storage_image",
	CombinedImageSampler: "combined_image_sampler",
}

func (k ResourceKind) String() string {
	if int(k) < len(resourceKindNames) {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", uint8(k))
}

// Resource is a descriptor-bound or push-constant variable.
type Resource struct {
	ID      uint32
	Name    string
	Set     uint32
	Binding uint32
	Kind    ResourceKind
	// Type is the block struct for buffers and the image/sampler type
	// otherwise, with any binding array stripped.
	Type *Type
	// Count is the binding array length, 1 when not an array and 0 for a
	// runtime-sized binding array.
	Count     uint32
	ReadOnly  bool
	WriteOnly bool
}

// Variable is a stage input or output with an explicit location.
type Variable struct {
	ID       uint32
	Name     string
	Location uint32
	Type     *Type
}

// EntryPoint is one OpEntryPoint with its execution modes applied.
type EntryPoint struct {
	Name      string
	Model     spirv.ExecutionModel
	Workgroup [3]uint32
	Inputs    []Variable
	Outputs   []Variable
}

// Module is the reflected interface of a SPIR-V binary.
type Module struct {
	Header        Header
	EntryPoints   []EntryPoint
	Resources     []Resource
	PushConstants []Resource
}

// EntryPoint returns the first entry point with execution model m.
func (m *Module) EntryPoint(model spirv.ExecutionModel) (*EntryPoint, bool) {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Model == model {
			return &m.EntryPoints[i], true
		}
	}
	return nil, false
}

type decorations struct {
	set, binding, location          uint32
	hasSet, hasBinding, hasLocation bool
	builtIn                         bool
	nonWritable, nonReadable        bool
	block, bufferBlock              bool
	arrayStride                     uint32
}

type memberDecorations struct {
	offset       uint32
	matrixStride uint32
	rowMajor     bool
	nonWritable  bool
	builtIn      bool
}

type variable struct {
	id, ptrType uint32
	class       spirv.StorageClass
}

type entry struct {
	name      string
	model     spirv.ExecutionModel
	fn        uint32
	iface     []uint32
	workgroup [3]uint32
}

// parser accumulates the declarations of one module.
type parser struct {
	names       map[uint32]string
	memberNames map[uint32]map[uint32]string
	decos       map[uint32]*decorations
	memberDecos map[uint32]map[uint32]*memberDecorations
	typeDefs    map[uint32]instruction
	constants   map[uint32]uint32
	variables   []variable
	entries     []*entry
	modes       map[uint32][3]uint32

	types map[uint32]*Type
}

// Parse reflects a SPIR-V binary in either byte order.
func Parse(data []byte) (*Module, error) {
	header, words, err := decode(data)
	if err != nil {
		return nil, err
	}
	p := &parser{
		names:       make(map[uint32]string),
		memberNames: make(map[uint32]map[uint32]string),
		decos:       make(map[uint32]*decorations),
		memberDecos: make(map[uint32]map[uint32]*memberDecorations),
		typeDefs:    make(map[uint32]instruction),
		constants:   make(map[uint32]uint32),
		modes:       make(map[uint32][3]uint32),
		types:       make(map[uint32]*Type),
	}
	if err := walk(words, p.collect); err != nil {
		return nil, err
	}
	m := &Module{Header: header}
	if err := p.build(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) deco(id uint32) *decorations {
	d, ok := p.decos[id]
	if !ok {
		d = &decorations{}
		p.decos[id] = d
	}
	return d
}

func (p *parser) memberDeco(id, member uint32) *memberDecorations {
	byMember, ok := p.memberDecos[id]
	if !ok {
		byMember = make(map[uint32]*memberDecorations)
		p.memberDecos[id] = byMember
	}
	d, ok := byMember[member]
	if !ok {
		d = &memberDecorations{}
		byMember[member] = d
	}
	return d
}

//nolint:gocyclo,cyclop // one case per reflected opcode
func (p *parser) collect(inst instruction) error {
	ops := inst.operands
	switch inst.op {
	case spirv.OpName:
		if err := need(inst, 1); err != nil {
			return err
		}
		p.names[ops[0]], _ = literalString(ops[1:])

	case spirv.OpMemberName:
		if err := need(inst, 2); err != nil {
			return err
		}
		byMember, ok := p.memberNames[ops[0]]
		if !ok {
			byMember = make(map[uint32]string)
			p.memberNames[ops[0]] = byMember
		}
		byMember[ops[1]], _ = literalString(ops[2:])

	case spirv.OpEntryPoint:
		if err := need(inst, 3); err != nil {
			return err
		}
		name, n := literalString(ops[2:])
		p.entries = append(p.entries, &entry{
			name:  name,
			model: spirv.ExecutionModel(ops[0]),
			fn:    ops[1],
			iface: ops[2+n:],
		})

	case spirv.OpExecutionMode:
		if err := need(inst, 2); err != nil {
			return err
		}
		if spirv.ExecutionMode(ops[1]) == spirv.ExecutionModeLocalSize {
			if err := need(inst, 5); err != nil {
				return err
			}
			p.modes[ops[0]] = [3]uint32{ops[2], ops[3], ops[4]}
		}

	case spirv.OpDecorate:
		if err := need(inst, 2); err != nil {
			return err
		}
		return p.decorate(inst, p.deco(ops[0]), spirv.Decoration(ops[1]), ops[2:])

	case spirv.OpMemberDecorate:
		if err := need(inst, 3); err != nil {
			return err
		}
		d := p.memberDeco(ops[0], ops[1])
		switch spirv.Decoration(ops[2]) {
		case spirv.DecorationOffset:
			if err := need(inst, 4); err != nil {
				return err
			}
			d.offset = ops[3]
		case spirv.DecorationMatrixStride:
			if err := need(inst, 4); err != nil {
				return err
			}
			d.matrixStride = ops[3]
		case spirv.DecorationRowMajor:
			d.rowMajor = true
		case spirv.DecorationNonWritable:
			d.nonWritable = true
		case spirv.DecorationBuiltIn:
			d.builtIn = true
		}

	case spirv.OpTypeBool, spirv.OpTypeInt, spirv.OpTypeFloat, spirv.OpTypeVector,
		spirv.OpTypeMatrix, opTypeImage, opTypeSampler, opTypeSampledImage,
		spirv.OpTypeArray, spirv.OpTypeRuntimeArray, spirv.OpTypeStruct, spirv.OpTypePointer:
		if err := need(inst, 1); err != nil {
			return err
		}
		p.typeDefs[ops[0]] = inst

	case spirv.OpConstant:
		if err := need(inst, 3); err != nil {
			return err
		}
		p.constants[ops[1]] = ops[2]

	case spirv.OpVariable:
		if err := need(inst, 3); err != nil {
			return err
		}
		p.variables = append(p.variables, variable{
			ptrType: ops[0],
			id:      ops[1],
			class:   spirv.StorageClass(ops[2]),
		})
	}
	return nil
}

func (p *parser) decorate(inst instruction, d *decorations, dec spirv.Decoration, lits []uint32) error {
	literal := func() (uint32, error) {
		if len(lits) == 0 {
			return 0, &FormatError{Offset: inst.offset, Reason: fmt.Sprintf("decoration %d needs a literal", dec)}
		}
		return lits[0], nil
	}
	var err error
	switch dec {
	case spirv.DecorationDescriptorSet:
		d.set, err = literal()
		d.hasSet = true
	case spirv.DecorationBinding:
		d.binding, err = literal()
		d.hasBinding = true
	case spirv.DecorationLocation:
		d.location, err = literal()
		d.hasLocation = true
	case spirv.DecorationArrayStride:
		d.arrayStride, err = literal()
	case spirv.DecorationBuiltIn:
		d.builtIn = true
	case spirv.DecorationNonWritable:
		d.nonWritable = true
	case spirv.DecorationNonReadable:
		d.nonReadable = true
	case spirv.DecorationBlock:
		d.block = true
	case decorationBufferBlock:
		d.bufferBlock = true
	}
	return err
}

// typeOf resolves a type id, building and caching the reflected Type.
//
//nolint:gocyclo,cyclop // one case per type opcode
func (p *parser) typeOf(id uint32) (*Type, error) {
	if t, ok := p.types[id]; ok {
		return t, nil
	}
	inst, ok := p.typeDefs[id]
	if !ok {
		return nil, fmt.Errorf("spirv: type %%%d is not declared", id)
	}
	ops := inst.operands
	t := &Type{ID: id, Name: p.names[id]}
	p.types[id] = t
	if d, ok := p.decos[id]; ok {
		t.ArrayStride = d.arrayStride
		t.Block = d.block
		t.BufferBlock = d.bufferBlock
	}

	elem := func(i int) (*Type, error) {
		if err := need(inst, i+1); err != nil {
			return nil, err
		}
		return p.typeOf(ops[i])
	}
	var err error
	switch inst.op {
	case spirv.OpTypeBool:
		t.Kind = TypeBool
	case spirv.OpTypeInt:
		if err = need(inst, 3); err == nil {
			t.Kind, t.Width, t.Signed = TypeInt, ops[1], ops[2] == 1
		}
	case spirv.OpTypeFloat:
		if err = need(inst, 2); err == nil {
			t.Kind, t.Width = TypeFloat, ops[1]
		}
	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		t.Kind = TypeVector
		if inst.op == spirv.OpTypeMatrix {
			t.Kind = TypeMatrix
		}
		if t.Elem, err = elem(1); err == nil {
			err = need(inst, 3)
		}
		if err == nil {
			t.Count = ops[2]
		}
	case spirv.OpTypeArray:
		t.Kind = TypeArray
		if t.Elem, err = elem(1); err == nil {
			err = need(inst, 3)
		}
		if err == nil {
			n, known := p.constants[ops[2]]
			if !known {
				return nil, fmt.Errorf("spirv: array %%%d has a non-constant length", id)
			}
			t.Count = n
		}
	case spirv.OpTypeRuntimeArray:
		t.Kind = TypeRuntimeArray
		t.Elem, err = elem(1)
	case spirv.OpTypeStruct:
		t.Kind = TypeStruct
		err = p.members(t, ops[1:])
	case opTypeImage:
		t.Kind = TypeImage
		err = p.image(t, inst)
	case opTypeSampler:
		t.Kind = TypeSampler
	case opTypeSampledImage:
		t.Kind = TypeSampledImage
		t.Elem, err = elem(1)
	case spirv.OpTypePointer:
		// Pointers are resolved by callers; record the pointee as Elem.
		t.Kind = TypeOther
		t.Elem, err = elem(2)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) members(t *Type, memberTypes []uint32) error {
	t.Members = make([]Member, len(memberTypes))
	for i, mt := range memberTypes {
		mtype, err := p.typeOf(mt)
		if err != nil {
			return err
		}
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		m := Member{Name: p.memberNames[t.ID][idx], Type: mtype}
		if d, ok := p.memberDecos[t.ID][idx]; ok {
			m.Offset = d.offset
			m.MatrixStride = d.matrixStride
			m.RowMajor = d.rowMajor
			m.NonWritable = d.nonWritable
			m.BuiltIn = d.builtIn
		}
		t.Members[i] = m
	}
	return nil
}

func (p *parser) image(t *Type, inst instruction) error {
	if err := need(inst, 8); err != nil {
		return err
	}
	ops := inst.operands
	sampled, err := p.typeOf(ops[1])
	if err != nil {
		return err
	}
	img := &Image{
		SampledType:  sampled,
		Dim:          Dim(ops[2]),
		Depth:        ops[3] == 1,
		Arrayed:      ops[4] == 1,
		Multisampled: ops[5] == 1,
		Sampled:      ops[6],
		Format:       spirv.ImageFormat(ops[7]),
		Access:       -1,
	}
	if len(ops) > 8 {
		img.Access = int(ops[8])
	}
	t.Image = img
	return nil
}

// pointee resolves the pointer type of a variable.
func (p *parser) pointee(v variable) (*Type, error) {
	inst, ok := p.typeDefs[v.ptrType]
	if !ok || inst.op != spirv.OpTypePointer {
		return nil, fmt.Errorf("spirv: variable %%%d does not have a pointer type", v.id)
	}
	if err := need(inst, 3); err != nil {
		return nil, err
	}
	return p.typeOf(inst.operands[2])
}

func (p *parser) build(m *Module) error {
	vars := make(map[uint32]Variable)
	for _, v := range p.variables {
		d := p.decos[v.id]
		if d == nil {
			d = &decorations{}
		}
		switch v.class {
		case spirv.StorageClassUniform, spirv.StorageClassStorageBuffer, spirv.StorageClassUniformConstant:
			if !d.hasBinding {
				continue
			}
			t, err := p.pointee(v)
			if err != nil {
				return err
			}
			res, err := p.resource(v, d, t)
			if err != nil {
				return err
			}
			m.Resources = append(m.Resources, res)

		case spirv.StorageClassPushConstant:
			t, err := p.pointee(v)
			if err != nil {
				return err
			}
			m.PushConstants = append(m.PushConstants, Resource{
				ID: v.id, Name: p.varName(v.id, t), Kind: UniformBuffer, Type: t, Count: 1, ReadOnly: true,
			})

		case spirv.StorageClassInput, spirv.StorageClassOutput:
			if d.builtIn || !d.hasLocation {
				continue
			}
			t, err := p.pointee(v)
			if err != nil {
				return err
			}
			vars[v.id] = Variable{ID: v.id, Name: p.names[v.id], Location: d.location, Type: t}
		}
	}

	for _, e := range p.entries {
		ep := EntryPoint{Name: e.name, Model: e.model, Workgroup: p.modes[e.fn]}
		for _, id := range e.iface {
			v, ok := vars[id]
			if !ok {
				continue
			}
			if p.classOf(id) == spirv.StorageClassInput {
				ep.Inputs = append(ep.Inputs, v)
			} else {
				ep.Outputs = append(ep.Outputs, v)
			}
		}
		byLocation := func(a, b Variable) int { return cmp.Compare(a.Location, b.Location) }
		slices.SortFunc(ep.Inputs, byLocation)
		slices.SortFunc(ep.Outputs, byLocation)
		m.EntryPoints = append(m.EntryPoints, ep)
	}

	slices.SortFunc(m.Resources, func(a, b Resource) int {
		return cmp.Or(cmp.Compare(a.Set, b.Set), cmp.Compare(a.Binding, b.Binding))
	})
	return nil
}

func (p *parser) classOf(id uint32) spirv.StorageClass {
	for _, v := range p.variables {
		if v.id == id {
			return v.class
		}
	}
	return spirv.StorageClassFunction
}

func (p *parser) varName(id uint32, t *Type) string {
	if name := p.names[id]; name != "" {
		return name
	}
	if c := t.Content(); c != nil && c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("var%d", id)
}

func (p *parser) resource(v variable, d *decorations, t *Type) (Resource, error) {
	res := Resource{ID: v.id, Set: d.set, Binding: d.binding, Count: 1}
	switch t.Kind {
	case TypeArray:
		res.Count = t.Count
		t = t.Elem
	case TypeRuntimeArray:
		res.Count = 0
		t = t.Elem
	}
	res.Type = t
	res.Name = p.varName(v.id, t)

	switch {
	case v.class == spirv.StorageClassStorageBuffer,
		v.class == spirv.StorageClassUniform && t.BufferBlock:
		res.Kind = StorageBuffer
		res.ReadOnly = d.nonWritable || allNonWritable(t)
	case v.class == spirv.StorageClassUniform:
		res.Kind = UniformBuffer
		res.ReadOnly = true
	case t.Kind == TypeSampler:
		res.Kind = Sampler
	case t.Kind == TypeSampledImage:
		res.Kind = CombinedImageSampler
		res.ReadOnly = true
	case t.Kind == TypeImage && t.Image.Sampled == 2:
		res.Kind = StorageImage
		res.ReadOnly = d.nonWritable
		res.WriteOnly = d.nonReadable
	case t.Kind == TypeImage:
		res.Kind = SampledImage
		res.ReadOnly = true
	default:
		return Resource{}, fmt.Errorf("spirv: binding %d.%d (%s) has unsupported type %s", d.set, d.binding, res.Name, t)
	}
	return res, nil
}

func allNonWritable(t *Type) bool {
	if t.Kind != TypeStruct || len(t.Members) == 0 {
		return false
	}
	for _, m := range t.Members {
		if !m.NonWritable {
			return false
		}
	}
	return true
}
