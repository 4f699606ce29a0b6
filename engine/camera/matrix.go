package camera

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/chewxy/math32"
)

// Projection holds the lens settings of a camera matrix.
type Projection struct {
	// Up is the world up direction. It must not be parallel to the view direction.
	Up [3]float32
	// Fov is the vertical field of view in degrees; 0 selects an orthographic projection.
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
	// Size is the half height of the orthographic view volume.
	Size float32
	// Clip maps depth to [0, 1] as WebGPU expects; false maps it to [-1, 1].
	Clip bool
}

// DefaultProjection returns a 60 degree perspective with +Z up, aspect 1 and planes at 0.1 and 1000.
func DefaultProjection() Projection {
	return Projection{
		Up:     [3]float32{0, 0, 1},
		Fov:    60,
		Aspect: 1,
		Near:   0.1,
		Far:    1000,
		Size:   1,
		Clip:   true,
	}
}

// Option adjusts a Projection.
type Option func(*Projection)

// WithUp sets the world up direction.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - Option: a function that sets the up vector
func WithUp(x, y, z float32) Option {
	return func(p *Projection) {
		p.Up = [3]float32{x, y, z}
	}
}

// WithFov sets the vertical field of view in degrees. Zero gives an orthographic projection.
//
// Parameters:
//   - degrees: the field of view
//
// Returns:
//   - Option: a function that sets the field of view
func WithFov(degrees float32) Option {
	return func(p *Projection) {
		p.Fov = degrees
	}
}

// WithAspect sets the aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio
//
// Returns:
//   - Option: a function that sets the aspect ratio
func WithAspect(aspect float32) Option {
	return func(p *Projection) {
		p.Aspect = aspect
	}
}

// WithNear sets the near plane distance.
func WithNear(near float32) Option {
	return func(p *Projection) {
		p.Near = near
	}
}

// WithFar sets the far plane distance.
func WithFar(far float32) Option {
	return func(p *Projection) {
		p.Far = far
	}
}

// WithSize sets the half height of the orthographic view volume.
func WithSize(size float32) Option {
	return func(p *Projection) {
		p.Size = size
	}
}

// WithClip selects the [0, 1] depth range when true and [-1, 1] when false.
func WithClip(clip bool) Option {
	return func(p *Projection) {
		p.Clip = clip
	}
}

// Matrix returns the combined view-projection matrix for a camera at eye looking at target,
// column-major.
//
// Parameters:
//   - eye: the camera position
//   - target: the point looked at
//   - opts: variadic list of Option functions applied over DefaultProjection
//
// Returns:
//   - [16]float32: the matrix
func Matrix(eye, target [3]float32, opts ...Option) [16]float32 {
	p := DefaultProjection()
	for _, opt := range opts {
		opt(&p)
	}
	return p.Matrix(eye, target)
}

// Matrix returns the view-projection matrix of p for a camera at eye looking at target.
func (p Projection) Matrix(eye, target [3]float32) [16]float32 {
	f := normalize(sub(target, eye))
	s := normalize(cross(f, p.Up))
	u := cross(s, f)
	t := [3]float32{-dot(s, eye), -dot(u, eye), -dot(f, eye)}

	depth := p.Far - p.Near
	if p.Fov == 0 {
		r1 := p.Size
		r2 := p.Size * p.Aspect
		r3, r4 := 2/depth, (p.Far+p.Near)/depth
		if p.Clip {
			r3, r4 = 1/depth, p.Near/depth
		}
		return [16]float32{
			s[0] / r2, u[0] / r1, r3 * f[0], 0,
			s[1] / r2, u[1] / r1, r3 * f[1], 0,
			s[2] / r2, u[2] / r1, r3 * f[2], 0,
			t[0] / r2, t[1] / r1, r3*t[2] - r4, 1,
		}
	}

	r1 := math32.Tan(p.Fov * math32.Pi / 360)
	r2 := r1 * p.Aspect
	r3, r4 := (p.Far+p.Near)/depth, 2*p.Far*p.Near/depth
	if p.Clip {
		r3, r4 = p.Far/depth, p.Far*p.Near/depth
	}
	return [16]float32{
		s[0] / r2, u[0] / r1, r3 * f[0], f[0],
		s[1] / r2, u[1] / r1, r3 * f[1], f[1],
		s[2] / r2, u[2] / r1, r3 * f[2], f[2],
		t[0] / r2, t[1] / r1, r3*t[2] - r4, t[2],
	}
}

// Bytes encodes a matrix as 64 little-endian bytes, ready for a uniform buffer.
func Bytes(m [16]float32) []byte {
	// a [16]float32 is always packable
	b, _ := format.Pack(m)
	return b
}

// Transform multiplies m by the point (x, y, z, 1) and returns the clip-space result.
func Transform(m [16]float32, v [3]float32) [4]float32 {
	var out [4]float32
	for row := range 4 {
		out[row] = m[row]*v[0] + m[4+row]*v[1] + m[8+row]*v[2] + m[12+row]
	}
	return out
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
