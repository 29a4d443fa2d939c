// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package spvreflect

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gogpu/naga/spirv"
)

// shape says where the result id sits in an instruction.
type shape uint8

const (
	statement   shape = iota // no result
	result                   // result id first
	typedResult              // result type, then result id
)

type opInfo struct {
	name  string
	shape shape
}

// Opcodes naga/spirv does not export.
const (
	opConstantTrue           spirv.OpCode = 41
	opConstantFalse          spirv.OpCode = 42
	opSampledImage           spirv.OpCode = 86
	opImageSampleImplicitLod spirv.OpCode = 87
	opImageSampleExplicitLod spirv.OpCode = 88
	opImageFetch             spirv.OpCode = 95
	opImageRead              spirv.OpCode = 98
	opImageWrite             spirv.OpCode = 99
	opImageQuerySize         spirv.OpCode = 104
	opArrayLength            spirv.OpCode = 68
)

var opcodes = map[spirv.OpCode]opInfo{
	spirv.OpNop:           {"OpNop", statement},
	spirv.OpSource:        {"OpSource", statement},
	spirv.OpString:        {"OpString", result},
	spirv.OpName:          {"OpName", statement},
	spirv.OpMemberName:    {"OpMemberName", statement},
	spirv.OpExtension:     {"OpExtension", statement},
	spirv.OpExtInstImport: {"OpExtInstImport", result},
	spirv.OpExtInst:       {"OpExtInst", typedResult},
	spirv.OpMemoryModel:   {"OpMemoryModel", statement},
	spirv.OpEntryPoint:    {"OpEntryPoint", statement},
	spirv.OpExecutionMode: {"OpExecutionMode", statement},
	spirv.OpCapability:    {"OpCapability", statement},

	spirv.OpTypeVoid:         {"OpTypeVoid", result},
	spirv.OpTypeBool:         {"OpTypeBool", result},
	spirv.OpTypeInt:          {"OpTypeInt", result},
	spirv.OpTypeFloat:        {"OpTypeFloat", result},
	spirv.OpTypeVector:       {"OpTypeVector", result},
	spirv.OpTypeMatrix:       {"OpTypeMatrix", result},
	opTypeImage:              {"OpTypeImage", result},
	opTypeSampler:            {"OpTypeSampler", result},
	opTypeSampledImage:       {"OpTypeSampledImage", result},
	spirv.OpTypeArray:        {"OpTypeArray", result},
	spirv.OpTypeRuntimeArray: {"OpTypeRuntimeArray", result},
	spirv.OpTypeStruct:       {"OpTypeStruct", result},
	spirv.OpTypePointer:      {"OpTypePointer", result},
	spirv.OpTypeFunction:     {"OpTypeFunction", result},

	opConstantTrue:            {"OpConstantTrue", typedResult},
	opConstantFalse:           {"OpConstantFalse", typedResult},
	spirv.OpConstant:          {"OpConstant", typedResult},
	spirv.OpConstantComposite: {"OpConstantComposite", typedResult},
	spirv.OpConstantNull:      {"OpConstantNull", typedResult},

	spirv.OpFunction:          {"OpFunction", typedResult},
	spirv.OpFunctionParameter: {"OpFunctionParameter", typedResult},
	spirv.OpFunctionEnd:       {"OpFunctionEnd", statement},
	spirv.OpFunctionCall:      {"OpFunctionCall", typedResult},
	spirv.OpVariable:          {"OpVariable", typedResult},
	spirv.OpLoad:              {"OpLoad", typedResult},
	spirv.OpStore:             {"OpStore", statement},
	spirv.OpAccessChain:       {"OpAccessChain", typedResult},
	opArrayLength:             {"OpArrayLength", typedResult},
	spirv.OpDecorate:          {"OpDecorate", statement},
	spirv.OpMemberDecorate:    {"OpMemberDecorate", statement},

	spirv.OpVectorExtractDynamic: {"OpVectorExtractDynamic", typedResult},

	opSampledImage:           {"OpSampledImage", typedResult},
	opImageSampleImplicitLod: {"OpImageSampleImplicitLod", typedResult},
	opImageSampleExplicitLod: {"OpImageSampleExplicitLod", typedResult},
	opImageFetch:             {"OpImageFetch", typedResult},
	opImageRead:              {"OpImageRead", typedResult},
	opImageWrite:             {"OpImageWrite", statement},
	opImageQuerySize:         {"OpImageQuerySize", typedResult},

	spirv.OpConvertFToU: {"OpConvertFToU", typedResult},
	spirv.OpConvertFToS: {"OpConvertFToS", typedResult},
	spirv.OpConvertSToF: {"OpConvertSToF", typedResult},
	spirv.OpConvertUToF: {"OpConvertUToF", typedResult},
	spirv.OpUConvert:    {"OpUConvert", typedResult},
	spirv.OpSConvert:    {"OpSConvert", typedResult},
	spirv.OpFConvert:    {"OpFConvert", typedResult},
	spirv.OpBitcast:     {"OpBitcast", typedResult},

	spirv.OpSNegate:           {"OpSNegate", typedResult},
	spirv.OpFNegate:           {"OpFNegate", typedResult},
	spirv.OpIAdd:              {"OpIAdd", typedResult},
	spirv.OpFAdd:              {"OpFAdd", typedResult},
	spirv.OpISub:              {"OpISub", typedResult},
	spirv.OpFSub:              {"OpFSub", typedResult},
	spirv.OpIMul:              {"OpIMul", typedResult},
	spirv.OpFMul:              {"OpFMul", typedResult},
	spirv.OpUDiv:              {"OpUDiv", typedResult},
	spirv.OpSDiv:              {"OpSDiv", typedResult},
	spirv.OpFDiv:              {"OpFDiv", typedResult},
	spirv.OpUMod:              {"OpUMod", typedResult},
	spirv.OpSRem:              {"OpSRem", typedResult},
	spirv.OpSMod:              {"OpSMod", typedResult},
	spirv.OpFRem:              {"OpFRem", typedResult},
	spirv.OpFMod:              {"OpFMod", typedResult},
	spirv.OpVectorTimesScalar: {"OpVectorTimesScalar", typedResult},
	spirv.OpMatrixTimesScalar: {"OpMatrixTimesScalar", typedResult},
	spirv.OpVectorTimesMatrix: {"OpVectorTimesMatrix", typedResult},
	spirv.OpMatrixTimesVector: {"OpMatrixTimesVector", typedResult},
	spirv.OpMatrixTimesMatrix: {"OpMatrixTimesMatrix", typedResult},

	spirv.OpAny:                  {"OpAny", typedResult},
	spirv.OpAll:                  {"OpAll", typedResult},
	spirv.OpIsNan:                {"OpIsNan", typedResult},
	spirv.OpIsInf:                {"OpIsInf", typedResult},
	spirv.OpLogicalEqual:         {"OpLogicalEqual", typedResult},
	spirv.OpLogicalNotEqual:      {"OpLogicalNotEqual", typedResult},
	spirv.OpLogicalOr:            {"OpLogicalOr", typedResult},
	spirv.OpLogicalAnd:           {"OpLogicalAnd", typedResult},
	spirv.OpLogicalNot:           {"OpLogicalNot", typedResult},
	spirv.OpSelect:               {"OpSelect", typedResult},
	spirv.OpIEqual:               {"OpIEqual", typedResult},
	spirv.OpINotEqual:            {"OpINotEqual", typedResult},
	spirv.OpUGreaterThan:         {"OpUGreaterThan", typedResult},
	spirv.OpSGreaterThan:         {"OpSGreaterThan", typedResult},
	spirv.OpUGreaterThanEqual:    {"OpUGreaterThanEqual", typedResult},
	spirv.OpSGreaterThanEqual:    {"OpSGreaterThanEqual", typedResult},
	spirv.OpULessThan:            {"OpULessThan", typedResult},
	spirv.OpSLessThan:            {"OpSLessThan", typedResult},
	spirv.OpULessThanEqual:       {"OpULessThanEqual", typedResult},
	spirv.OpSLessThanEqual:       {"OpSLessThanEqual", typedResult},
	spirv.OpFOrdEqual:            {"OpFOrdEqual", typedResult},
	spirv.OpFOrdNotEqual:         {"OpFOrdNotEqual", typedResult},
	spirv.OpFOrdLessThan:         {"OpFOrdLessThan", typedResult},
	spirv.OpFOrdGreaterThan:      {"OpFOrdGreaterThan", typedResult},
	spirv.OpFOrdGreaterThanEqual: {"OpFOrdGreaterThanEqual", typedResult},

	spirv.OpShiftRightLogical:    {"OpShiftRightLogical", typedResult},
	spirv.OpShiftRightArithmetic: {"OpShiftRightArithmetic", typedResult},
	spirv.OpShiftLeftLogical:     {"OpShiftLeftLogical", typedResult},
	spirv.OpBitwiseOr:            {"OpBitwiseOr", typedResult},
	spirv.OpBitwiseXor:           {"OpBitwiseXor", typedResult},
	spirv.OpBitwiseAnd:           {"OpBitwiseAnd", typedResult},
	spirv.OpNot:                  {"OpNot", typedResult},
	spirv.OpBitCount:             {"OpBitCount", typedResult},
	spirv.OpBitReverse:           {"OpBitReverse", typedResult},
	spirv.OpDPdx:                 {"OpDPdx", typedResult},
	spirv.OpDPdy:                 {"OpDPdy", typedResult},
	spirv.OpFwidth:               {"OpFwidth", typedResult},

	spirv.OpPhi:               {"OpPhi", typedResult},
	spirv.OpLoopMerge:         {"OpLoopMerge", statement},
	spirv.OpSelectionMerge:    {"OpSelectionMerge", statement},
	spirv.OpLabel:             {"OpLabel", result},
	spirv.OpBranch:            {"OpBranch", statement},
	spirv.OpBranchConditional: {"OpBranchConditional", statement},
	spirv.OpSwitch:            {"OpSwitch", statement},
	spirv.OpKill:              {"OpKill", statement},
	spirv.OpReturn:            {"OpReturn", statement},
	spirv.OpReturnValue:       {"OpReturnValue", statement},
	spirv.OpUnreachable:       {"OpUnreachable", statement},
	spirv.OpControlBarrier:    {"OpControlBarrier", statement},
	spirv.OpMemoryBarrier:     {"OpMemoryBarrier", statement},
	spirv.OpAtomicLoad:        {"OpAtomicLoad", typedResult},
	spirv.OpAtomicStore:       {"OpAtomicStore", statement},
	spirv.OpAtomicIAdd:        {"OpAtomicIAdd", typedResult},
}

func opName(op spirv.OpCode) string {
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return "Op" + strconv.Itoa(int(op))
}

type enumTable map[uint32]string

func (e enumTable) name(v uint32) string {
	if s, ok := e[v]; ok {
		return s
	}
	return strconv.FormatUint(uint64(v), 10)
}

var (
	capabilityNames = enumTable{
		0: "Matrix", 1: "Shader", 2: "Geometry", 3: "Tessellation", 9: "Float16", 10: "Float64",
		11: "Int64", 22: "Int16", 38: "Int8", 49: "ImageQuery", 50: "DerivativeControl",
		56: "MultiViewport", 61: "GroupNonUniform", 4427: "DrawParameters",
		4437: "StorageBuffer16BitAccess", 4442: "MultiView", 5302: "RuntimeDescriptorArray",
	}
	storageClassNames = enumTable{
		0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output", 4: "Workgroup",
		5: "CrossWorkgroup", 6: "Private", 7: "Function", 8: "Generic", 9: "PushConstant",
		10: "AtomicCounter", 11: "Image", 12: "StorageBuffer",
	}
	decorationNames = enumTable{
		0: "RelaxedPrecision", 1: "SpecId", 2: "Block", 3: "BufferBlock", 4: "RowMajor",
		5: "ColMajor", 6: "ArrayStride", 7: "MatrixStride", 11: "BuiltIn", 13: "NoPerspective",
		14: "Flat", 16: "Centroid", 17: "Sample", 18: "Invariant", 19: "Restrict",
		23: "Coherent", 24: "NonWritable", 25: "NonReadable", 30: "Location", 31: "Component",
		32: "Index", 33: "Binding", 34: "DescriptorSet", 35: "Offset",
	}
	builtInNames = enumTable{
		0: "Position", 1: "PointSize", 3: "CullDistance", 6: "PrimitiveId", 8: "Layer",
		9: "ViewportIndex", 14: "FragCoord", 16: "FrontFacing", 17: "SampleId", 19: "SampleMask",
		22: "FragDepth", 24: "NumWorkgroups", 25: "WorkgroupSize", 26: "WorkgroupId",
		27: "LocalInvocationId", 28: "GlobalInvocationId", 29: "LocalInvocationIndex",
		36: "SubgroupSize", 41: "SubgroupLocalInvocationId", 42: "VertexIndex", 43: "InstanceIndex",
	}
	executionModeNames = enumTable{
		7: "OriginUpperLeft", 8: "OriginLowerLeft", 9: "EarlyFragmentTests", 12: "DepthReplacing",
		14: "DepthGreater", 15: "DepthLess", 16: "DepthUnchanged", 17: "LocalSize",
	}
	executionModelNames = enumTable{
		0: "Vertex", 1: "TessellationControl", 2: "TessellationEvaluation",
		3: "Geometry", 4: "Fragment", 5: "GLCompute", 6: "Kernel",
	}
	addressingModelNames = enumTable{0: "Logical", 1: "Physical32", 2: "Physical64", 5348: "PhysicalStorageBuffer64"}
	memoryModelNames     = enumTable{0: "Simple", 1: "GLSL450", 2: "OpenCL", 3: "Vulkan"}
)

func id(n uint32) string { return "%" + strconv.FormatUint(uint64(n), 10) }

func ids(ops []uint32) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = id(op)
	}
	return out
}

func literals(ops []uint32) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = strconv.FormatUint(uint64(op), 10)
	}
	return out
}

func quoted(ops []uint32) (string, int) {
	s, n := literalString(ops)
	return strconv.Quote(s), n
}

// Disassemble writes a textual listing of a SPIR-V binary to w, one
// instruction per line with result ids right-aligned.
func Disassemble(w io.Writer, data []byte) error {
	h, words, err := decode(data)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; SPIR-V\n; Version: %d.%d\n; Generator: %#08x\n; Bound: %d\n; Schema: %d\n",
		h.Major, h.Minor, h.Generator, h.Bound, h.Schema)
	if h.BigEndian {
		fmt.Fprintln(bw, "; Byte order: big-endian")
	}
	fmt.Fprintln(bw)

	err = walk(words, func(inst instruction) error {
		info, known := opcodes[inst.op]
		ops := inst.operands
		var res string
		switch {
		case known && info.shape == result && len(ops) >= 1:
			res, ops = id(ops[0]), ops[1:]
		case known && info.shape == typedResult && len(ops) >= 2:
			res, ops = id(ops[1]), append([]uint32{ops[0]}, ops[2:]...)
		}
		fields := append([]string{opName(inst.op)}, operandText(inst.op, ops)...)
		line := strings.Join(fields, " ")
		if res != "" {
			fmt.Fprintf(bw, "%12s = %s\n", res, line)
		} else {
			fmt.Fprintf(bw, "%15s%s\n", "", line)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// operandText renders the operands of op, with the result id already
// removed. Enumerants and literals are named where the opcode is known.
//
//nolint:gocyclo,cyclop // one case per opcode with non-id operands
func operandText(op spirv.OpCode, ops []uint32) []string {
	switch op {
	case spirv.OpCapability:
		if len(ops) == 1 {
			return []string{capabilityNames.name(ops[0])}
		}
	case spirv.OpMemoryModel:
		if len(ops) == 2 {
			return []string{addressingModelNames.name(ops[0]), memoryModelNames.name(ops[1])}
		}
	case spirv.OpExtInstImport, spirv.OpString, spirv.OpExtension:
		s, _ := quoted(ops)
		return []string{s}
	case spirv.OpName:
		if len(ops) >= 1 {
			s, _ := quoted(ops[1:])
			return []string{id(ops[0]), s}
		}
	case spirv.OpMemberName:
		if len(ops) >= 2 {
			s, _ := quoted(ops[2:])
			return []string{id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10), s}
		}
	case spirv.OpEntryPoint:
		if len(ops) >= 2 {
			s, n := quoted(ops[2:])
			out := []string{executionModelNames.name(ops[0]), id(ops[1]), s}
			return append(out, ids(ops[2+n:])...)
		}
	case spirv.OpExecutionMode:
		if len(ops) >= 2 {
			out := []string{id(ops[0]), executionModeNames.name(ops[1])}
			return append(out, literals(ops[2:])...)
		}
	case spirv.OpDecorate:
		if len(ops) >= 2 {
			return decorationText([]string{id(ops[0])}, ops[1:])
		}
	case spirv.OpMemberDecorate:
		if len(ops) >= 3 {
			return decorationText([]string{id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10)}, ops[2:])
		}
	case spirv.OpTypeInt, spirv.OpTypeFloat:
		return literals(ops)
	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		if len(ops) == 2 {
			return []string{id(ops[0]), strconv.FormatUint(uint64(ops[1]), 10)}
		}
	case opTypeImage:
		if len(ops) >= 7 {
			out := []string{id(ops[0]), Dim(ops[1]).String()}
			return append(out, literals(ops[2:])...)
		}
	case spirv.OpTypePointer:
		if len(ops) == 2 {
			return []string{storageClassNames.name(ops[0]), id(ops[1])}
		}
	case spirv.OpVariable:
		// Result type, storage class, optional initializer.
		if len(ops) >= 2 {
			out := []string{id(ops[0]), storageClassNames.name(ops[1])}
			return append(out, ids(ops[2:])...)
		}
	case spirv.OpConstant:
		if len(ops) >= 1 {
			return append([]string{id(ops[0])}, literals(ops[1:])...)
		}
	case spirv.OpCompositeExtract:
		if len(ops) >= 2 {
			return append(ids(ops[:2]), literals(ops[2:])...)
		}
	case spirv.OpVectorShuffle:
		if len(ops) >= 3 {
			return append(ids(ops[:3]), literals(ops[3:])...)
		}
	case spirv.OpFunction:
		// Result type, function control, function type.
		if len(ops) == 3 {
			return []string{id(ops[0]), "None", id(ops[2])}
		}
	}
	return ids(ops)
}

func decorationText(out []string, ops []uint32) []string {
	dec := spirv.Decoration(ops[0])
	out = append(out, decorationNames.name(ops[0]))
	if dec == spirv.DecorationBuiltIn && len(ops) > 1 {
		return append(out, builtInNames.name(ops[1]))
	}
	return append(out, literals(ops[1:])...)
}
