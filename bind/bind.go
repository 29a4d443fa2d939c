// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package bind is the runtime used by generated shader bindings. A Shader
// carries SPIR-V words and the reflected interface, and knows how to turn
// itself into HAL objects.
package bind

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"fortio.org/safecast"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Binding is one descriptor binding of a shader.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	// Combined marks a combined image sampler. WebGPU has no such binding,
	// so Entry describes the texture half only.
	Combined bool
	Entry    gputypes.BindGroupLayoutEntry
}

// VertexInput is one vertex shader input attribute.
type VertexInput struct {
	Name     string
	Location uint32
	Format   gputypes.VertexFormat
}

// Shader is a compiled shader stage and its reflected interface.
type Shader struct {
	Name       string
	EntryPoint string
	Stage      gputypes.ShaderStage
	SPIRV      []uint32
	Bindings   []Binding
	Inputs     []VertexInput
	// Workgroup is the compute workgroup size, zero for other stages.
	Workgroup [3]uint32
	// PushConstantSize is the byte size of the push constant block, if any.
	PushConstantSize uint32
}

// CreateModule creates a shader module from the SPIR-V words.
func (s *Shader) CreateModule(device hal.Device) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  s.Name,
		Source: hal.ShaderSource{SPIRV: s.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("bind: create shader module %s: %w", s.Name, err)
	}
	return module, nil
}

// Groups returns the distinct bind group indices in ascending order.
func (s *Shader) Groups() []uint32 {
	return groups(s.Bindings)
}

// LayoutEntries returns the layout entries of one bind group ordered by
// binding number.
func (s *Shader) LayoutEntries(group uint32) []gputypes.BindGroupLayoutEntry {
	return layoutEntries(s.Bindings, group)
}

// CreateBindGroupLayouts creates one layout per group index from 0 to the
// highest group used. Unused indices get empty layouts so the result can be
// passed to CreatePipelineLayout as is.
func (s *Shader) CreateBindGroupLayouts(device hal.Device) ([]hal.BindGroupLayout, error) {
	return CreateBindGroupLayouts(device, s.Name, s.Bindings)
}

// CreatePipelineLayout creates a pipeline layout over layouts, adding a
// push constant range when the shader declares one.
func (s *Shader) CreatePipelineLayout(device hal.Device, layouts []hal.BindGroupLayout) (hal.PipelineLayout, error) {
	desc := &hal.PipelineLayoutDescriptor{
		Label:            s.Name,
		BindGroupLayouts: layouts,
	}
	if s.PushConstantSize > 0 {
		desc.PushConstantRanges = []hal.PushConstantRange{{
			Stages: s.Stage,
			Range:  hal.Range{Start: 0, End: s.PushConstantSize},
		}}
	}
	layout, err := device.CreatePipelineLayout(desc)
	if err != nil {
		return nil, fmt.Errorf("bind: create pipeline layout %s: %w", s.Name, err)
	}
	return layout, nil
}

// VertexBufferLayout packs the shader inputs into a single interleaved
// buffer in location order.
func (s *Shader) VertexBufferLayout(step gputypes.VertexStepMode) gputypes.VertexBufferLayout {
	inputs := slices.Clone(s.Inputs)
	slices.SortFunc(inputs, func(a, b VertexInput) int { return cmp.Compare(a.Location, b.Location) })

	layout := gputypes.VertexBufferLayout{StepMode: step}
	var offset uint64
	for _, in := range inputs {
		layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
			Format:         in.Format,
			Offset:         offset,
			ShaderLocation: in.Location,
		})
		offset += in.Format.Size()
	}
	layout.ArrayStride = offset
	return layout
}

// CreateBindGroupLayouts creates layouts for an arbitrary binding set, such
// as the result of Merge. On failure the layouts already created are
// destroyed.
func CreateBindGroupLayouts(device hal.Device, label string, bindings []Binding) ([]hal.BindGroupLayout, error) {
	used := groups(bindings)
	if len(used) == 0 {
		return nil, nil
	}
	n, err := safecast.Conv[int](used[len(used)-1])
	if err != nil {
		return nil, fmt.Errorf("bind: group index: %w", err)
	}
	layouts := make([]hal.BindGroupLayout, 0, n+1)
	for g := range uint32(n + 1) {
		layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, g),
			Entries: layoutEntries(bindings, g),
		})
		if err != nil {
			for _, l := range layouts {
				device.DestroyBindGroupLayout(l)
			}
			return nil, fmt.Errorf("bind: create bind group layout %d for %s: %w", g, label, err)
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// ConflictError reports two shaders declaring different resources at the
// same group and binding.
type ConflictError struct {
	Group, Binding uint32
	First, Second  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bind: group %d binding %d is %s in one shader and %s in another",
		e.Group, e.Binding, e.First, e.Second)
}

// Merge combines the bindings of the stages of one pipeline. Bindings at
// the same slot must describe the same resource; their visibilities are
// combined and a buffer keeps the largest minimum binding size.
func Merge(shaders ...*Shader) ([]Binding, error) {
	type slot struct{ group, binding uint32 }
	index := make(map[slot]int)
	var out []Binding
	for _, s := range shaders {
		for _, b := range s.Bindings {
			key := slot{b.Group, b.Binding}
			i, seen := index[key]
			if !seen {
				index[key] = len(out)
				out = append(out, b)
				continue
			}
			if !sameResource(out[i], b) {
				return nil, &ConflictError{Group: b.Group, Binding: b.Binding, First: describe(out[i]), Second: describe(b)}
			}
			merged := &out[i].Entry
			merged.Visibility |= b.Entry.Visibility
			if merged.Buffer != nil && b.Entry.Buffer.MinBindingSize > merged.Buffer.MinBindingSize {
				buf := *merged.Buffer
				buf.MinBindingSize = b.Entry.Buffer.MinBindingSize
				merged.Buffer = &buf
			}
		}
	}
	sortBindings(out)
	return out, nil
}

// Words converts little-endian SPIR-V bytes to words.
func Words(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("bind: SPIR-V length %d is not a multiple of 4", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

func groups(bindings []Binding) []uint32 {
	var out []uint32
	for _, b := range bindings {
		out = append(out, b.Group)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func layoutEntries(bindings []Binding, group uint32) []gputypes.BindGroupLayoutEntry {
	var selected []Binding
	for _, b := range bindings {
		if b.Group == group {
			selected = append(selected, b)
		}
	}
	sortBindings(selected)
	entries := make([]gputypes.BindGroupLayoutEntry, len(selected))
	for i, b := range selected {
		entries[i] = b.Entry
		entries[i].Binding = b.Binding
	}
	return entries
}

func sortBindings(bindings []Binding) {
	slices.SortFunc(bindings, func(a, b Binding) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Binding, b.Binding))
	})
}

func sameResource(a, b Binding) bool {
	ea, eb := a.Entry, b.Entry
	return a.Combined == b.Combined &&
		sameBuffer(ea.Buffer, eb.Buffer) &&
		equalPtr(ea.Sampler, eb.Sampler) &&
		equalPtr(ea.Texture, eb.Texture) &&
		equalPtr(ea.StorageTexture, eb.StorageTexture)
}

func sameBuffer(a, b *gputypes.BufferBindingLayout) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type == b.Type && a.HasDynamicOffset == b.HasDynamicOffset
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func describe(b Binding) string {
	e := b.Entry
	switch {
	case e.Buffer != nil:
		return fmt.Sprintf("%s buffer %s", e.Buffer.Type, b.Name)
	case e.Sampler != nil:
		return fmt.Sprintf("%s sampler %s", e.Sampler.Type, b.Name)
	case e.Texture != nil:
		return fmt.Sprintf("%s texture %s", e.Texture.ViewDimension, b.Name)
	case e.StorageTexture != nil:
		return fmt.Sprintf("%s storage texture %s", e.StorageTexture.Format, b.Name)
	}
	return "empty binding " + b.Name
}
