package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/stats"
)

// TestCacheIdempotence checks property 8: loading the same path twice
// returns bit-identical contents and each call increments the shader
// key's load counter by one.
func TestCacheIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.png")

	cache := newImageCache(ignislog.NewNopLogger())
	key := stats.ShaderKey{Kind: stats.KindHit, SubID: 3}

	first := cache.LoadImage(path, key)
	second := cache.LoadImage(path, key)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), cache.LoadCount(key))
	_ = os.ErrNotExist
}

// TestFallbackImage checks property 9: a decode failure substitutes
// FallbackMagenta rather than propagating an error.
func TestFallbackImage(t *testing.T) {
	cache := newImageCache(ignislog.NewNopLogger())
	key := stats.ShaderKey{Kind: stats.KindDevice}

	img := cache.LoadImage("/nonexistent/path/does-not-exist.png", key)
	assert.Equal(t, FallbackMagenta, img)
}

// TestResolverOutOfRangeIDPanics checks the §9 open-question decision: an
// out-of-range resource id is a programmer error that panics rather than
// returning an error.
func TestResolverOutOfRangeIDPanics(t *testing.T) {
	r := newResourcePathResolver("/base", []string{"a.png", "b.png"})
	require.PanicsWithValue(t,
		"device: resource id 5 out of range (resource_map has 2 entries)",
		func() { r.ResolveID(5) },
	)
}

func TestResolverJoinsRelativePaths(t *testing.T) {
	r := newResourcePathResolver("/base/dir", []string{"tex/wood.png"})
	assert.Equal(t, filepath.Join("/base/dir", "tex/wood.png"), r.ResolveID(0))
	assert.Equal(t, "/abs/tex.png", r.ResolvePath("/abs/tex.png"))
}
