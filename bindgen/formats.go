// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindgen

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shaderbind/spvreflect"
)

var textureFormats = map[spirv.ImageFormat]gputypes.TextureFormat{
	spirv.ImageFormatRgba32f:      gputypes.TextureFormatRGBA32Float,
	spirv.ImageFormatRgba16f:      gputypes.TextureFormatRGBA16Float,
	spirv.ImageFormatR32f:         gputypes.TextureFormatR32Float,
	spirv.ImageFormatRgba8:        gputypes.TextureFormatRGBA8Unorm,
	spirv.ImageFormatRgba8Snorm:   gputypes.TextureFormatRGBA8Snorm,
	spirv.ImageFormatRg32f:        gputypes.TextureFormatRG32Float,
	spirv.ImageFormatRg16f:        gputypes.TextureFormatRG16Float,
	spirv.ImageFormatR11fG11fB10f: gputypes.TextureFormatRG11B10Ufloat,
	spirv.ImageFormatR16f:         gputypes.TextureFormatR16Float,
	spirv.ImageFormatRgba16:       gputypes.TextureFormatRGBA16Unorm,
	spirv.ImageFormatRgb10A2:      gputypes.TextureFormatRGB10A2Unorm,
	spirv.ImageFormatRg16:         gputypes.TextureFormatRG16Unorm,
	spirv.ImageFormatRg8:          gputypes.TextureFormatRG8Unorm,
	spirv.ImageFormatR16:          gputypes.TextureFormatR16Unorm,
	spirv.ImageFormatR8:           gputypes.TextureFormatR8Unorm,
	spirv.ImageFormatRgba16Snorm:  gputypes.TextureFormatRGBA16Snorm,
	spirv.ImageFormatRg16Snorm:    gputypes.TextureFormatRG16Snorm,
	spirv.ImageFormatRg8Snorm:     gputypes.TextureFormatRG8Snorm,
	spirv.ImageFormatR16Snorm:     gputypes.TextureFormatR16Snorm,
	spirv.ImageFormatR8Snorm:      gputypes.TextureFormatR8Snorm,
	spirv.ImageFormatRgba32i:      gputypes.TextureFormatRGBA32Sint,
	spirv.ImageFormatRgba16i:      gputypes.TextureFormatRGBA16Sint,
	spirv.ImageFormatRgba8i:       gputypes.TextureFormatRGBA8Sint,
	spirv.ImageFormatR32i:         gputypes.TextureFormatR32Sint,
	spirv.ImageFormatRg32i:        gputypes.TextureFormatRG32Sint,
	spirv.ImageFormatRg16i:        gputypes.TextureFormatRG16Sint,
	spirv.ImageFormatRg8i:         gputypes.TextureFormatRG8Sint,
	spirv.ImageFormatR16i:         gputypes.TextureFormatR16Sint,
	spirv.ImageFormatR8i:          gputypes.TextureFormatR8Sint,
	spirv.ImageFormatRgba32ui:     gputypes.TextureFormatRGBA32Uint,
	spirv.ImageFormatRgba16ui:     gputypes.TextureFormatRGBA16Uint,
	spirv.ImageFormatRgba8ui:      gputypes.TextureFormatRGBA8Uint,
	spirv.ImageFormatR32ui:        gputypes.TextureFormatR32Uint,
	spirv.ImageFormatRgb10a2ui:    gputypes.TextureFormatRGB10A2Uint,
	spirv.ImageFormatRg32ui:       gputypes.TextureFormatRG32Uint,
	spirv.ImageFormatRg16ui:       gputypes.TextureFormatRG16Uint,
	spirv.ImageFormatRg8ui:        gputypes.TextureFormatRG8Uint,
	spirv.ImageFormatR16ui:        gputypes.TextureFormatR16Uint,
	spirv.ImageFormatR8ui:         gputypes.TextureFormatR8Uint,
}

func textureFormat(f spirv.ImageFormat) (gputypes.TextureFormat, error) {
	if tf, ok := textureFormats[f]; ok {
		return tf, nil
	}
	if f == spirv.ImageFormatUnknown {
		return 0, fmt.Errorf("storage image has no declared format")
	}
	return 0, fmt.Errorf("image format %d has no WebGPU equivalent", f)
}

// vertexFormat maps a stage input type to a vertex attribute format.
func vertexFormat(t *spvreflect.Type) (gputypes.VertexFormat, error) {
	scalar, n := t, uint32(1)
	if t.Kind == spvreflect.TypeVector {
		scalar, n = t.Elem, t.Count
	}
	var formats [4]gputypes.VertexFormat
	switch {
	case scalar.Kind == spvreflect.TypeFloat && scalar.Width == 32:
		formats = [4]gputypes.VertexFormat{gputypes.VertexFormatFloat32, gputypes.VertexFormatFloat32x2,
			gputypes.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x4}
	case scalar.Kind == spvreflect.TypeInt && scalar.Width == 32 && scalar.Signed:
		formats = [4]gputypes.VertexFormat{gputypes.VertexFormatSint32, gputypes.VertexFormatSint32x2,
			gputypes.VertexFormatSint32x3, gputypes.VertexFormatSint32x4}
	case scalar.Kind == spvreflect.TypeInt && scalar.Width == 32:
		formats = [4]gputypes.VertexFormat{gputypes.VertexFormatUint32, gputypes.VertexFormatUint32x2,
			gputypes.VertexFormatUint32x3, gputypes.VertexFormatUint32x4}
	case scalar.Kind == spvreflect.TypeFloat && scalar.Width == 16 && (n == 2 || n == 4):
		formats = [4]gputypes.VertexFormat{1: gputypes.VertexFormatFloat16x2, 3: gputypes.VertexFormatFloat16x4}
	}
	if n < 1 || n > 4 || formats[n-1] == gputypes.VertexFormatUndefined {
		return 0, fmt.Errorf("no vertex format for %s", t)
	}
	return formats[n-1], nil
}

func viewDimension(img *spvreflect.Image) (gputypes.TextureViewDimension, error) {
	switch {
	case img.Dim == spvreflect.Dim1D && !img.Arrayed:
		return gputypes.TextureViewDimension1D, nil
	case img.Dim == spvreflect.Dim2D && img.Arrayed:
		return gputypes.TextureViewDimension2DArray, nil
	case img.Dim == spvreflect.Dim2D:
		return gputypes.TextureViewDimension2D, nil
	case img.Dim == spvreflect.Dim3D && !img.Arrayed:
		return gputypes.TextureViewDimension3D, nil
	case img.Dim == spvreflect.DimCube && img.Arrayed:
		return gputypes.TextureViewDimensionCubeArray, nil
	case img.Dim == spvreflect.DimCube:
		return gputypes.TextureViewDimensionCube, nil
	}
	arrayed := ""
	if img.Arrayed {
		arrayed = " array"
	}
	return 0, fmt.Errorf("image dimension %s%s has no WebGPU view dimension", img.Dim, arrayed)
}

func sampleType(img *spvreflect.Image) (gputypes.TextureSampleType, error) {
	st := img.SampledType
	switch {
	case img.Depth:
		return gputypes.TextureSampleTypeDepth, nil
	case st.Kind == spvreflect.TypeFloat:
		return gputypes.TextureSampleTypeFloat, nil
	case st.Kind == spvreflect.TypeInt && st.Signed:
		return gputypes.TextureSampleTypeSint, nil
	case st.Kind == spvreflect.TypeInt:
		return gputypes.TextureSampleTypeUint, nil
	}
	return 0, fmt.Errorf("image sampled type %s is not a number", st)
}

// storageAccess prefers the image access qualifier and falls back to the
// NonWritable and NonReadable decorations.
func storageAccess(r spvreflect.Resource) gputypes.StorageTextureAccess {
	switch r.Type.Image.Access {
	case 0:
		return gputypes.StorageTextureAccessReadOnly
	case 1:
		return gputypes.StorageTextureAccessWriteOnly
	case 2:
		return gputypes.StorageTextureAccessReadWrite
	}
	switch {
	case r.ReadOnly && !r.WriteOnly:
		return gputypes.StorageTextureAccessReadOnly
	case r.WriteOnly && !r.ReadOnly:
		return gputypes.StorageTextureAccessWriteOnly
	}
	return gputypes.StorageTextureAccessReadWrite
}
