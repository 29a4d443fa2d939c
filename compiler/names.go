package compiler

import (
	"encoding/binary"
	"slices"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// moduleIndex holds what nameResources needs from a SPIR-V binary.
type moduleIndex struct {
	named   map[uint32]bool
	set     map[uint32]uint32
	binding map[uint32]uint32
	varType map[uint32]uint32
	pointee map[uint32]uint32
	members map[uint32][]uint32
	elem    map[uint32]uint32
	vars    []uint32
	// annotations is the word index of the first decoration.
	annotations int
}

func indexModule(words []uint32) (*moduleIndex, bool) {
	x := &moduleIndex{
		named:       make(map[uint32]bool),
		set:         make(map[uint32]uint32),
		binding:     make(map[uint32]uint32),
		varType:     make(map[uint32]uint32),
		pointee:     make(map[uint32]uint32),
		members:     make(map[uint32][]uint32),
		elem:        make(map[uint32]uint32),
		annotations: -1,
	}
	for i := 5; i < len(words); {
		count := int(words[i] >> 16)
		if count == 0 || i+count > len(words) {
			return nil, false
		}
		op := spirv.OpCode(words[i] & 0xFFFF)
		ops := words[i+1 : i+count]
		switch op {
		case spirv.OpName:
			if len(ops) >= 1 {
				x.named[ops[0]] = true
			}
		case spirv.OpDecorate, spirv.OpMemberDecorate:
			if x.annotations < 0 {
				x.annotations = i
			}
			if op == spirv.OpDecorate && len(ops) >= 3 {
				switch spirv.Decoration(ops[1]) {
				case spirv.DecorationDescriptorSet:
					x.set[ops[0]] = ops[2]
				case spirv.DecorationBinding:
					x.binding[ops[0]] = ops[2]
				}
			}
		case spirv.OpTypePointer:
			if len(ops) >= 3 {
				x.pointee[ops[0]] = ops[2]
			}
		case spirv.OpTypeStruct:
			if len(ops) >= 1 {
				x.members[ops[0]] = ops[1:]
			}
		case spirv.OpTypeArray, spirv.OpTypeRuntimeArray:
			if len(ops) >= 2 {
				x.elem[ops[0]] = ops[1]
			}
		case spirv.OpVariable:
			if len(ops) >= 3 {
				x.varType[ops[1]] = ops[0]
				x.vars = append(x.vars, ops[1])
			}
		}
		i += count
	}
	return x, x.annotations >= 0
}

func (x *moduleIndex) variable(set, binding uint32) (uint32, bool) {
	for _, id := range x.vars {
		s, ok1 := x.set[id]
		b, ok2 := x.binding[id]
		if ok1 && ok2 && s == set && b == binding {
			return id, true
		}
	}
	return 0, false
}

// nameType walks the IR type h alongside the SPIR-V type id and names every
// struct it reaches.
func (x *moduleIndex) nameType(m *ir.Module, h ir.TypeHandle, id uint32, add func(uint32, string)) {
	if int(h) >= len(m.Types) {
		return
	}
	switch inner := m.Types[h].Inner.(type) {
	case ir.StructType:
		ms, ok := x.members[id]
		if !ok || len(ms) != len(inner.Members) {
			return
		}
		add(id, m.Types[h].Name)
		for i, mem := range inner.Members {
			x.nameType(m, mem.Type, ms[i], add)
		}
	case ir.ArrayType:
		if e, ok := x.elem[id]; ok {
			x.nameType(m, inner.Base, e, add)
		}
	case ir.BindingArrayType:
		if e, ok := x.elem[id]; ok {
			x.nameType(m, inner.Base, e, add)
		}
	}
}

// blockWrapped reports whether the naga writer wraps g in a synthetic
// single-member Block struct.
func blockWrapped(m *ir.Module, g ir.GlobalVariable) bool {
	switch g.Space {
	case ir.SpaceUniform, ir.SpaceStorage, ir.SpaceImmediate:
	default:
		return false
	}
	if int(g.Type) >= len(m.Types) {
		return false
	}
	switch t := m.Types[g.Type].Inner.(type) {
	case ir.StructType:
		if len(t.Members) == 0 {
			return false
		}
		last := t.Members[len(t.Members)-1].Type
		if int(last) < len(m.Types) {
			if arr, ok := m.Types[last].Inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
				return false
			}
		}
		return true
	case ir.BindingArrayType:
		return false
	}
	return true
}

// nameResources adds OpName instructions for resource variables and the
// struct types they reach. The naga writer emits its debug names before
// it assigns ids, so its binaries carry member names only.
func nameResources(code []byte, m *ir.Module) []byte {
	words, err := Words(code)
	if err != nil || len(words) < 5 {
		return code
	}
	x, ok := indexModule(words)
	if !ok {
		return code
	}

	var names []uint32
	add := func(id uint32, name string) {
		if name == "" || x.named[id] {
			return
		}
		x.named[id] = true
		names = append(names, opName(id, name)...)
	}
	for _, g := range m.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		id, ok := x.variable(g.Binding.Group, g.Binding.Binding)
		if !ok {
			continue
		}
		add(id, g.Name)
		t := x.pointee[x.varType[id]]
		if blockWrapped(m, g) {
			ms := x.members[t]
			if len(ms) != 1 {
				continue
			}
			t = ms[0]
		}
		x.nameType(m, g.Type, t, add)
	}
	if len(names) == 0 {
		return code
	}

	words = slices.Insert(words, x.annotations, names...)
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func opName(id uint32, name string) []uint32 {
	inst := make([]uint32, 2+len(name)/4+1)
	inst[0] = uint32(len(inst))<<16 | uint32(spirv.OpName)
	inst[1] = id
	for i := 0; i < len(name); i++ {
		inst[2+i/4] |= uint32(name[i]) << (8 * (i % 4))
	}
	return inst
}
