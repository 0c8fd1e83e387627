package framebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClearFramebuffer checks property 3: after Clear every AOV's
// iteration count is 0 and every pixel is 0.0; after one committed,
// unlocked iteration the main count is exactly 1.
func TestClearFramebuffer(t *testing.T) {
	s := NewSet(4, 4)
	s.EnsureAOV("Normals")
	s.Main.SetPixel(1, 1, 1, 1, 1)
	s.AOVs["Normals"].IterationCount = 5

	s.Clear("")

	assert.Equal(t, 0, s.Main.IterationCount)
	assert.Equal(t, 0, s.AOVs["Normals"].IterationCount)
	for _, v := range s.Main.Data {
		assert.Equal(t, float32(0), v)
	}

	s.CommitIteration(false)
	assert.Equal(t, 1, s.Main.IterationCount)
}

// TestLockedFramebuffer checks property 4: a locked variant leaves the
// main count unchanged; its AOVs advance only by their own iter_diff.
func TestLockedFramebuffer(t *testing.T) {
	s := NewSet(4, 4)
	aov := s.EnsureAOV("Normals")
	aov.IterDiff = 1

	s.CommitIteration(true)

	assert.Equal(t, 0, s.Main.IterationCount, "locked variant must not advance main iteration count")
	assert.Equal(t, 1, aov.IterationCount, "AOV still advances by its own iter_diff")
}

func TestResolveMainAliases(t *testing.T) {
	s := NewSet(2, 2)
	img, ok := s.Resolve("")
	assert.True(t, ok)
	assert.Same(t, s.Main, img)

	img, ok = s.Resolve("Color")
	assert.True(t, ok)
	assert.Same(t, s.Main, img)
}

func TestResize(t *testing.T) {
	s := NewSet(2, 2)
	s.EnsureAOV("Albedo")
	s.Resize(8, 8)
	assert.Equal(t, 8, s.Main.Width)
	assert.Len(t, s.Main.Data, 8*8*3)
	assert.Equal(t, 8, s.AOVs["Albedo"].Width)
}
