package jsonloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/device"
	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/runtime"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/target"
)

const singleTriangleScene = `{
	"film": {"width": 64, "height": 64},
	"technique": "ao",
	"camera": {"eye": [0, 0, -2], "dir": [0, 0, 1], "vfov": 60},
	"spi": 1,
	"triangles": [
		{"v0": [0,0,0], "v1": [1,0,0], "v2": [0,1,0], "material": 0, "radiance": [1,1,1]}
	]
}`

const aovLockScene = `{
	"film": {"width": 64, "height": 64},
	"technique": "aov_lock",
	"camera": {"eye": [0, 0, -2], "dir": [0, 0, 1], "vfov": 60},
	"spi": 1,
	"triangles": [
		{"v0": [0,0,0], "v1": [1,0,0], "v2": [0,1,0], "material": 0, "radiance": [1,1,1]}
	]
}`

// newScenarioRuntime writes contents to a scene file under t.TempDir,
// loads it through a fresh Loader/Device/Runtime triple, and registers the
// reference shaders against the parsed scene.
func newScenarioRuntime(t *testing.T, contents string) *runtime.Runtime {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	dev, err := device.New(device.Setup{Target: target.NewCPU(target.CPUGeneric, 1, 1)})
	require.NoError(t, err)

	registry := compiler.NewFuncRegistry()
	ld := &loaderThenRegister{inner: New(), registry: registry, dev: dev}

	rt := runtime.New(dev, target.NewCPU(target.CPUGeneric, 1, 1), compiler.NewRegistryCompiler(registry), ld, nil, nil)
	require.True(t, rt.LoadFromFile(path, runtime.Overrides{}))
	return rt
}

// loaderThenRegister wraps Loader so RegisterReferenceShaders runs right
// after Load parses the scene, before Runtime.Compile looks up entry
// points by name.
type loaderThenRegister struct {
	inner    *Loader
	registry *compiler.FuncRegistry
	dev      *device.Device
}

func (l *loaderThenRegister) Load(path string) (*scenedb.SceneDatabase, loader.Result, error) {
	db, result, err := l.inner.Load(path)
	if err != nil {
		return nil, loader.Result{}, err
	}
	RegisterReferenceShaders(l.registry, l.dev, l.inner.Last)
	return db, result, nil
}

func TestScenarioA_Smoke(t *testing.T) {
	rt := newScenarioRuntime(t, singleTriangleScene)
	rt.Step(true)

	data, iterCount, ok := rt.Framebuffer("")
	require.True(t, ok)
	assert.Equal(t, 1, iterCount)
	assert.Equal(t, 1, rt.CurrentIterationCount())

	w := rt.FramebufferWidth()
	centerIdx := (32*w + 32) * 3
	for c := 0; c < 3; c++ {
		assert.GreaterOrEqual(t, data[centerIdx+c], float32(0.1))
		assert.LessOrEqual(t, data[centerIdx+c], float32(1.0))
	}

	cornerIdx := (0*w + 0) * 3
	for c := 0; c < 3; c++ {
		assert.Equal(t, float32(0.0), data[cornerIdx+c])
	}
}

func TestScenarioB_Tracer(t *testing.T) {
	rt := newScenarioRuntime(t, singleTriangleScene)

	rays := []runtime.Ray{
		{Org: [3]float32{0, 0, -2}, Dir: [3]float32{0, 0, 1}, TMax: 1e30},
		{Org: [3]float32{0, 0, -2}, Dir: [3]float32{1, 0, 0}, TMax: 1e30},
	}
	out := make([]float32, 6)
	require.NoError(t, rt.Trace(rays, out))

	for c := 0; c < 3; c++ {
		assert.GreaterOrEqual(t, out[c], float32(0.1))
		assert.LessOrEqual(t, out[c], float32(1.0))
	}
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32{out[3], out[4], out[5]})
}

func TestScenarioC_AOVLock(t *testing.T) {
	rt := newScenarioRuntime(t, aovLockScene)
	rt.Step(true)

	assert.Equal(t, 1, rt.CurrentIterationCount())

	aovData, aovIter, ok := rt.Framebuffer("Normals")
	require.True(t, ok)
	assert.Equal(t, 1, aovIter)

	w := rt.FramebufferWidth()
	idx := (32*w + 32) * 3
	assert.InDelta(t, 0.0, aovData[idx+0], 0.05)
	assert.InDelta(t, 0.0, aovData[idx+1], 0.05)
	assert.InDelta(t, -1.0, aovData[idx+2], 0.05)
}
