package params

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestGetDefault(t *testing.T) {
	s := New()
	assert.Equal(t, int32(7), s.GetInt("missing", 7))
	assert.Equal(t, float32(1.5), s.GetFloat("missing", 1.5))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, s.GetVec3("missing", mgl32.Vec3{1, 2, 3}))
	assert.Equal(t, "def", s.GetString("missing", "def"))
}

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.SetInt("spi", 42)
	assert.Equal(t, int32(42), s.GetInt("spi", 0))
}

func TestMergeFromKeepsExistingWhenNotReplacing(t *testing.T) {
	dst := New()
	dst.SetInt("k", 1)
	src := New()
	src.SetInt("k", 2)
	src.SetInt("only_src", 9)

	dst.MergeFrom(src, false)

	assert.Equal(t, int32(1), dst.GetInt("k", 0), "existing value must win when replace=false")
	assert.Equal(t, int32(9), dst.GetInt("only_src", 0))
}

func TestMergeFromOverwritesWhenReplacing(t *testing.T) {
	dst := New()
	dst.SetInt("k", 1)
	src := New()
	src.SetInt("k", 2)

	dst.MergeFrom(src, true)

	assert.Equal(t, int32(2), dst.GetInt("k", 0), "src value must win when replace=true")
}

func TestEmpty(t *testing.T) {
	s := New()
	assert.True(t, s.Empty())
	s.SetFloat("x", 1)
	assert.False(t, s.Empty())
}

func TestDumpIsDeterministic(t *testing.T) {
	s := New()
	s.SetInt("b", 2)
	s.SetInt("a", 1)
	first := s.Dump()
	second := s.Dump()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "[i32] a = 1")
	assert.Contains(t, first, "[i32] b = 2")
}
