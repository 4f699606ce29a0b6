package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumValidity(t *testing.T) {
	assert.True(t, TopologyTriangleStrip.Valid())
	assert.False(t, Topology("triangle_fan").Valid())
	assert.False(t, Topology("").Valid())

	assert.True(t, CullBack.Valid())
	assert.False(t, CullFace("front_and_back").Valid())

	assert.True(t, BlendOneMinusSrcAlpha.Valid())
	assert.False(t, BlendFactor("constant_alpha").Valid())

	assert.True(t, CompareLEqual.Valid())
	assert.True(t, StencilIncrWrap.Valid())
	assert.True(t, AddressMirroredRepeat.Valid())
	assert.False(t, FilterMode("cubic").Valid())
}

func TestTopologyIsStrip(t *testing.T) {
	assert.True(t, TopologyLineStrip.IsStrip())
	assert.True(t, TopologyTriangleStrip.IsStrip())
	assert.False(t, TopologyTriangles.IsStrip())
}

func TestViewportWithin(t *testing.T) {
	assert.True(t, Viewport{0, 0, 64, 64}.Within(64, 64))
	assert.True(t, Viewport{16, 8, 16, 8}.Within(64, 64))
	assert.False(t, Viewport{1, 0, 64, 64}.Within(64, 64))
	assert.False(t, Viewport{-1, 0, 4, 4}.Within(64, 64))
	assert.False(t, Viewport{0, 0, 0, 4}.Within(64, 64))
	assert.True(t, Viewport{}.IsZero())
}

func TestSamplerStateWithDefaults(t *testing.T) {
	s := SamplerState{MagFilter: FilterNearest, WrapX: AddressRepeat}.WithDefaults()
	assert.Equal(t, FilterNearest, s.MagFilter)
	assert.Equal(t, FilterLinear, s.MinFilter)
	assert.Equal(t, AddressRepeat, s.WrapX)
	assert.Equal(t, AddressClampToEdge, s.WrapY)
	assert.Equal(t, float32(1000), s.MaxLod)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, CullNone, Coalesce(CullFace(""), CullNone))
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
}

func TestCoalesceFirstNonZero(t *testing.T) {
	assert.Equal(t, CullBack, Coalesce(CullFace(""), CullBack, CullFront))
	assert.Equal(t, uint32(0xff), Coalesce(uint32(0), 0xff))
	assert.Equal(t, 0, Coalesce[int]())
}
