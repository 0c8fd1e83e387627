package device

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/target"
	"github.com/ignis-render/ignis/variant"
)

func newCPUDevice(t *testing.T) *Device {
	t.Helper()
	d, err := New(Setup{Target: target.NewCPU(target.CPUAVX2, 2, 8)})
	require.NoError(t, err)
	return d
}

func TestNewRejectsGPUWithoutDevice(t *testing.T) {
	_, err := New(Setup{Target: target.NewGPU(target.GPUNVVM, 0)})
	assert.Error(t, err)
}

func TestDeviceIDMatchesTarget(t *testing.T) {
	d := newCPUDevice(t)
	assert.Equal(t, uint32(0), d.ID())
}

func TestAssignSceneRecomputesEntityCount(t *testing.T) {
	d := newCPUDevice(t)
	scene := scenedb.New()
	scene.FixTables["entities"] = &scenedb.FixTable{EntryCount: 7}

	d.AssignScene(scene, []int32{0, 1, 2, 0, 1, 2, 0}, []string{"a.png"})
	assert.Equal(t, 7, d.EntityCount())
	assert.Equal(t, int32(2), d.MaterialID(2))
	assert.Equal(t, int32(-1), d.MaterialID(99))
}

// TestGlobalParameterRegistry checks property 6: writes through
// SetParameter* are visible to GetParameter* on the same device.
func TestGlobalParameterRegistry(t *testing.T) {
	d := newCPUDevice(t)
	d.SetParameterInt("__spi", 4, true)
	d.SetParameterFloat("exposure", 1.5, true)

	assert.Equal(t, int32(4), d.GetParameterInt("__spi", 0, true))
	assert.Equal(t, float32(1.5), d.GetParameterFloat("exposure", 0, true))
	assert.Equal(t, int32(-1), d.GetParameterInt("missing", -1, true))
}

// TestLocalParameterRegistry checks property 6's local-scope branch: a
// local get for a name the shader's own local set defines returns that
// value, a local get for a name it does not define returns the default
// even though the same name exists globally, and the local registry is
// only reachable while that shader is the one currently dispatched.
func TestLocalParameterRegistry(t *testing.T) {
	d := newCPUDevice(t)
	d.SetParameterInt("k", 42, true)

	local := params.New()
	local.SetInt("k", 7)

	var gotLocalK, gotLocalMissing, gotGlobalK int32
	v := &variant.ShaderVariant{
		ID: uuid.New(),
		DeviceShader: variant.Slot{
			Local: local,
			Exec: func(settings *variant.DriverSettings) int32 {
				gotLocalK = d.GetParameterInt("k", -1, false)
				gotLocalMissing = d.GetParameterInt("missing", -1, false)
				gotGlobalK = d.GetParameterInt("k", -1, true)
				return 0
			},
		},
	}
	d.Render(v, RenderSettings{SPI: 1, WorkWidth: 1, WorkHeight: 1}, nil, false, nil)

	assert.Equal(t, int32(7), gotLocalK)
	assert.Equal(t, int32(-1), gotLocalMissing)
	assert.Equal(t, int32(42), gotGlobalK)

	// Outside any dispatch there is no current shader, so a local-scoped
	// get degrades to the default instead of reading stale state.
	assert.Equal(t, int32(-1), d.GetParameterInt("k", -1, false))
}

// TestRenderAdvancesIteration checks property 3's last clause: a
// single Render call dispatches the device shader exactly once and
// advances the framebuffer's iteration count by one when unlocked.
func TestRenderAdvancesIteration(t *testing.T) {
	d := newCPUDevice(t)
	calls := 0
	v := &variant.ShaderVariant{
		ID: uuid.New(),
		DeviceShader: variant.Slot{
			Exec: func(settings *variant.DriverSettings) int32 {
				calls++
				assert.Equal(t, uint32(4), settings.SPI)
				return 0
			},
		},
	}

	rs := RenderSettings{SPI: 4, WorkWidth: 64, WorkHeight: 32, Iteration: 0}
	d.Render(v, rs, nil, false, nil)

	assert.Equal(t, 1, calls)
	fb := d.Framebuffers()
	require.NotNil(t, fb)
	assert.Equal(t, 1, fb.Main.IterationCount)
	assert.Equal(t, 64, fb.Main.Width)
	assert.Equal(t, 32, fb.Main.Height)
}

// TestRenderLockedFramebufferHoldsMainIteration checks that locking the
// framebuffer during Render suppresses the main accumulator's iteration
// advance (§3.5 LockFramebuffer, exercised through Device.Render rather
// than framebuffer.Set directly).
func TestRenderLockedFramebufferHoldsMainIteration(t *testing.T) {
	d := newCPUDevice(t)
	v := &variant.ShaderVariant{ID: uuid.New(), DeviceShader: variant.Slot{Exec: func(*variant.DriverSettings) int32 { return 0 }}}

	rs := RenderSettings{SPI: 1, WorkWidth: 16, WorkHeight: 16}
	d.Render(v, rs, nil, true, nil)

	assert.Equal(t, 0, d.Framebuffers().Main.IterationCount)
}

func TestHandleHitShaderOutOfRangeMaterialPanics(t *testing.T) {
	d := newCPUDevice(t)
	v := variant.NewShaderVariant(2)
	require.PanicsWithValue(t,
		"device: handle_hit_shader: material id 5 out of range (2 materials)",
		func() { d.HandleHitShader(v, 5) },
	)
}

func TestScratchPoolRegisterUnregisterReentrant(t *testing.T) {
	d := newCPUDevice(t)
	tok := d.RegisterThread()
	d.RegisterThread() // reentrant: same token, depth 2
	d.UnregisterThread(tok)
	d.UnregisterThread(tok)
	// A third unregister on an already-released token is a no-op, not a panic.
	d.UnregisterThread(tok)
}
