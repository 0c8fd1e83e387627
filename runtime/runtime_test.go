package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/device"
	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/target"
	"github.com/ignis-render/ignis/variant"
)

type fakeLoader struct {
	result loader.Result
	scene  *scenedb.SceneDatabase
}

func (f *fakeLoader) Load(path string) (*scenedb.SceneDatabase, loader.Result, error) {
	return f.scene, f.result, nil
}

func oneVariantScene(registry *compiler.FuncRegistry, calls *int) *fakeLoader {
	registry.Register("device_main", func(settings *variant.DriverSettings) int32 {
		*calls++
		return 0
	})
	scene := scenedb.New()
	scene.FixTables["entities"] = &scenedb.FixTable{EntryCount: 1}

	return &fakeLoader{
		scene: scene,
		result: loader.Result{
			EnabledAOVs: []string{"Color"},
			FilmWidth:   32,
			FilmHeight:  32,
			Variants: []loader.VariantSource{
				{
					DeviceShader: loader.SlotSource{Source: "fn device_main() {}", Entry: "device_main", Local: params.New()},
					Info:         variant.TechniqueVariantInfo{},
				},
			},
		},
	}
}

func newTestRuntime(t *testing.T) (*Runtime, *int) {
	t.Helper()
	dev, err := device.New(device.Setup{Target: target.NewCPU(target.CPUGeneric, 1, 1)})
	require.NoError(t, err)

	registry := compiler.NewFuncRegistry()
	calls := 0
	ld := oneVariantScene(registry, &calls)
	rt := New(dev, target.NewCPU(target.CPUGeneric, 1, 1), compiler.NewRegistryCompiler(registry), ld, nil, nil)
	return rt, &calls
}

func TestLoadFromFileCompilesAndAssignsScene(t *testing.T) {
	rt, calls := newTestRuntime(t)
	ok := rt.LoadFromFile("scene.json", Overrides{})
	require.True(t, ok)
	assert.Equal(t, 0, *calls)
	assert.Equal(t, 32, rt.FramebufferWidth())
	assert.Equal(t, 32, rt.FramebufferHeight())
}

// TestStepDispatchesAndAdvancesIteration checks the round-trip: step()
// dispatches the device shader once and advances both current_iteration
// and current_sample_count.
func TestStepDispatchesAndAdvancesIteration(t *testing.T) {
	rt, calls := newTestRuntime(t)
	require.True(t, rt.LoadFromFile("scene.json", Overrides{}))

	rt.Step(true)

	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, rt.CurrentIterationCount())
	assert.Greater(t, rt.CurrentSampleCount(), 0)

	data, iterCount, ok := rt.Framebuffer("")
	require.True(t, ok)
	assert.Equal(t, 1, iterCount)
	assert.Len(t, data, 32*32*3)
}

func TestResetZeroesIterationNotFrame(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.True(t, rt.LoadFromFile("scene.json", Overrides{}))
	rt.Step(true)
	rt.IncFrameCount()

	rt.Reset()
	assert.Equal(t, 0, rt.CurrentIterationCount())
	assert.Equal(t, 0, rt.CurrentSampleCount())
	assert.Equal(t, 1, rt.frameCount)
}

func TestRecommendedSPIClampsAndHalvesForInteractive(t *testing.T) {
	cpu := target.NewCPU(target.CPUGeneric, 1, 1)
	gpu := target.NewGPU(target.GPUNVVM, 0)

	assert.Equal(t, 64, RecommendedSPI(cpu, 10, 10, false)) // tiny image clamps to max
	assert.Equal(t, 1, RecommendedSPI(cpu, 4000, 4000, false))
	assert.Equal(t, 64, RecommendedSPI(gpu, 10, 10, true))
}

func TestLockedVariantDoesNotAdvanceSampleCount(t *testing.T) {
	registry := compiler.NewFuncRegistry()
	calls := 0
	registry.Register("locked", func(*variant.DriverSettings) int32 { calls++; return 0 })

	scene := scenedb.New()
	scene.FixTables["entities"] = &scenedb.FixTable{EntryCount: 1}
	ld := &fakeLoader{
		scene: scene,
		result: loader.Result{
			FilmWidth:  8,
			FilmHeight: 8,
			Variants: []loader.VariantSource{
				{
					DeviceShader: loader.SlotSource{Source: "fn locked() {}", Entry: "locked", Local: params.New()},
					Info:         variant.TechniqueVariantInfo{LockFramebuffer: true},
				},
			},
		},
	}

	dev, err := device.New(device.Setup{Target: target.NewCPU(target.CPUGeneric, 1, 1)})
	require.NoError(t, err)
	rt := New(dev, target.NewCPU(target.CPUGeneric, 1, 1), compiler.NewRegistryCompiler(registry), ld, nil, nil)
	require.True(t, rt.LoadFromFile("scene.json", Overrides{}))

	rt.Step(true)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, rt.CurrentSampleCount())
}

// TestTonemapAppliesScaleEff checks §4.6: one iteration at a known main
// accumulator value, tonemapped at Scale=2, produces
// scale_eff = Scale/iter_count = 2/1 = 2 applied before the Clamp method.
func TestTonemapAppliesScaleEff(t *testing.T) {
	registry := compiler.NewFuncRegistry()
	registry.Register("device_main", func(settings *variant.DriverSettings) int32 { return 0 })

	scene := scenedb.New()
	scene.FixTables["entities"] = &scenedb.FixTable{EntryCount: 1}
	ld := &fakeLoader{
		scene: scene,
		result: loader.Result{
			EnabledAOVs: []string{"Color"},
			FilmWidth:   2,
			FilmHeight:  1,
			Variants: []loader.VariantSource{
				{
					DeviceShader: loader.SlotSource{Source: "fn device_main() {}", Entry: "device_main", Local: params.New()},
					Info:         variant.TechniqueVariantInfo{},
				},
			},
		},
	}

	dev, err := device.New(device.Setup{Target: target.NewCPU(target.CPUGeneric, 1, 1)})
	require.NoError(t, err)
	rt := New(dev, target.NewCPU(target.CPUGeneric, 1, 1), compiler.NewRegistryCompiler(registry), ld, nil, nil)
	require.True(t, rt.LoadFromFile("scene.json", Overrides{}))
	rt.Step(true)

	data, _, ok := rt.Framebuffer("")
	require.True(t, ok)
	data[0], data[1], data[2] = 0.1, 0.2, 0.3

	out := make([]uint32, 2)
	require.NoError(t, rt.Tonemap(out, device.TonemapSettings{Scale: 2}))

	r := out[0] & 0xff
	g := (out[0] >> 8) & 0xff
	b := (out[0] >> 16) & 0xff
	assert.Equal(t, uint32(51), r)  // 0.1*2*255 rounded
	assert.Equal(t, uint32(102), g) // 0.2*2*255 rounded
	assert.Equal(t, uint32(153), b) // 0.3*2*255 rounded
}

// TestImageInfoAggregatesAOV checks §4.6's imageinfo aggregation over a
// uniform 32x32 image: every statistic collapses to the same scaled
// luminance value.
func TestImageInfoAggregatesAOV(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.True(t, rt.LoadFromFile("scene.json", Overrides{}))
	rt.Step(true)

	data, _, ok := rt.Framebuffer("")
	require.True(t, ok)
	for i := range data {
		data[i] = 0.5
	}

	out, err := rt.ImageInfo(device.ImageInfoSettings{Scale: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Min, 1e-4)
	assert.InDelta(t, 0.5, out.Max, 1e-4)
	assert.InDelta(t, 0.5, out.Average, 1e-4)
	assert.InDelta(t, 0.5, out.Median, 1e-4)
}
