// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package spvreflect

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gogpu/naga/spirv"
)

// Opcodes and enumerants not exported by naga/spirv.
const (
	opTypeImage        spirv.OpCode = 25
	opTypeSampler      spirv.OpCode = 26
	opTypeSampledImage spirv.OpCode = 27

	decorationBufferBlock spirv.Decoration = 3
)

const headerWords = 5

// FormatError reports a malformed SPIR-V binary.
type FormatError struct {
	// Offset is the byte offset of the offending word.
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("spirv: at byte %#x: %s", e.Offset, e.Reason)
}

// Header is the five-word SPIR-V module header.
type Header struct {
	Major, Minor uint8
	Generator    uint32
	Bound        uint32
	Schema       uint32
	// BigEndian is true when the binary was stored big-endian.
	BigEndian bool
}

// instruction is one decoded instruction. Operands exclude the opcode word.
type instruction struct {
	op       spirv.OpCode
	operands []uint32
	offset   int
}

// decode validates the header and converts data to host-order words.
func decode(data []byte) (Header, []uint32, error) {
	if len(data) < headerWords*4 {
		return Header{}, nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("module is %d bytes, shorter than the header", len(data))}
	}
	if len(data)%4 != 0 {
		return Header{}, nil, &FormatError{Offset: len(data) &^ 3, Reason: "length is not a multiple of 4"}
	}

	const magic uint32 = spirv.MagicNumber
	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(data) == magic:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data) == magic:
		order = binary.BigEndian
	default:
		return Header{}, nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("bad magic number %#08x", binary.LittleEndian.Uint32(data))}
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	h := Header{
		Major:     uint8(words[1] >> 16),
		Minor:     uint8(words[1] >> 8),
		Generator: words[2],
		Bound:     words[3],
		Schema:    words[4],
		BigEndian: order == binary.BigEndian,
	}
	return h, words, nil
}

// walk calls fn for each instruction after the header.
func walk(words []uint32, fn func(inst instruction) error) error {
	i := headerWords
	for i < len(words) {
		word := words[i]
		count := int(word >> 16)
		if count == 0 {
			return &FormatError{Offset: i * 4, Reason: "instruction with zero word count"}
		}
		if i+count > len(words) {
			return &FormatError{Offset: i * 4, Reason: fmt.Sprintf("instruction of %d words overruns the module", count)}
		}
		inst := instruction{
			op:       spirv.OpCode(word & 0xFFFF),
			operands: words[i+1 : i+count],
			offset:   i * 4,
		}
		if err := fn(inst); err != nil {
			return err
		}
		i += count
	}
	return nil
}

// literalString decodes a nul-terminated literal string packed into words
// and returns it with the number of words it occupies.
func literalString(words []uint32) (string, int) {
	var sb strings.Builder
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(b)
		}
	}
	return sb.String(), len(words)
}

// need reports a FormatError when inst has fewer than n operands.
func need(inst instruction, n int) error {
	if len(inst.operands) < n {
		return &FormatError{
			Offset: inst.offset,
			Reason: fmt.Sprintf("%s needs %d operands, has %d", opName(inst.op), n, len(inst.operands)),
		}
	}
	return nil
}
