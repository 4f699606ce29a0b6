// Package blur composes two render pipelines into a separable Gaussian blur: a horizontal pass
// from the source image into an intermediate image and a vertical pass from the intermediate
// image into the output. Kernel coefficients are computed once and baked into the shaders
// through the include registry. Convolve is the CPU reference of the same two passes.
package blur

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidRadius is returned for kernel radii below 1.
var ErrInvalidRadius = errors.New("blur: radius must be at least 1")

// Kernel returns the normalized 1-D Gaussian kernel of radius s. The kernel has 2s+1 entries
// for x in [-s, s], weighted by exp(-x²/(s²/4)), and sums to 1.
//
// Parameters:
//   - s: the kernel radius in pixels
//
// Returns:
//   - []float64: the symmetric kernel
//   - error: ErrInvalidRadius if s < 1
func Kernel(s int) ([]float64, error) {
	if s < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, s)
	}
	k := make([]float64, 2*s+1)
	sigma := float64(s*s) / 4
	var sum float64
	for i := range k {
		x := float64(i - s)
		k[i] = math.Exp(-x * x / sigma)
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k, nil
}

// KernelSource renders the kernel of radius s as a WGSL include defining the tap count N and
// the coefficient array coeff.
//
// Parameters:
//   - s: the kernel radius in pixels
//
// Returns:
//   - string: the WGSL snippet
//   - error: ErrInvalidRadius if s < 1
func KernelSource(s int) (string, error) {
	k, err := Kernel(s)
	if err != nil {
		return "", err
	}
	coeffs := make([]string, len(k))
	for i, c := range k {
		coeffs[i] = fmt.Sprintf("%.8f", c)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "const N: i32 = %d;\n", len(k))
	fmt.Fprintf(&sb, "var<private> coeff: array<f32, N> = array<f32, N>(%s);\n", strings.Join(coeffs, ", "))
	return sb.String(), nil
}
