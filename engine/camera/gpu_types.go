package camera

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
)

// GPUCameraUniformSource is the WGSL definition matching GPUCameraUniform, for use as an include.
const GPUCameraUniformSource = `struct CameraUniform {
    view_proj: mat4x4<f32>,
    position: vec3<f32>,
};`

// GPUCameraUniformSize is the size of GPUCameraUniform in a uniform buffer.
const GPUCameraUniformSize = 80

// GPUCameraUniform is the uniform buffer layout of a camera (80 bytes, WGSL aligned).
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset  0: mat4x4<f32>
	CameraPosition [3]float32  // offset 64: vec3<f32>, padded to 80
}

// Marshal serializes the uniform for upload.
//
// Returns:
//   - []byte: GPUCameraUniformSize bytes
func (g GPUCameraUniform) Marshal() []byte {
	b, _ := format.Pack(g.ViewProj, g.CameraPosition, float32(0))
	return b
}
