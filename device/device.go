// Package device implements the Device/Interface component (§4.1):
// owns all device memory, schedules shaders, and exposes the C-ABI
// surface the generated shaders call into. Grounded on
// voxelrt/rt/gpu.GpuBufferManager (named-buffer residency, generalised
// from a fixed voxel buffer set to arbitrary BVH/dyntable/fixtable
// names) and the original backend/driver/glue.cpp's Interface/DeviceData/
// sInterface singleton (device-id derivation, resize_array, the C-ABI
// surface itself).
package device

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/ignis-render/ignis/denoiser"
	"github.com/ignis-render/ignis/framebuffer"
	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/stats"
	"github.com/ignis-render/ignis/streams"
	"github.com/ignis-render/ignis/target"
	"github.com/ignis-render/ignis/variant"
)

// Setup is Device's construction argument (§4.1 "Construction").
type Setup struct {
	Target       target.Target
	AcquireStats bool
	DebugTrace   bool
	BaseDir      string   // resource base directory for relative path resolution
	GPUDevice    *wgpu.Device // required only when Target.IsGPU
	Logger       ignislog.Logger
}

// RenderSettings carries the per-iteration values Runtime.stepVariant
// fills in before calling Render (§4.1 step 2, §4.2).
type RenderSettings struct {
	SPI             uint32
	WorkWidth       uint32
	WorkHeight      uint32
	Iteration       uint32
	Frame           uint32
	Seed            uint32
	Denoise         bool
	Rays            []float32 // tracer mode: non-nil means trace rays instead of a normal iteration
}

// Device owns all device memory for one Target and schedules shader
// dispatch for it. A process is expected to own exactly one Device per
// Runtime, constructed and torn down by the Runtime (§9).
type Device struct {
	mu sync.Mutex

	id     uint32
	setup  Setup
	logger ignislog.Logger

	scratch  *scratchPool
	gpu      *gpuResidency // nil for CPU targets
	cache    *imageCache
	resolver *resourcePathResolver

	scene           *scenedb.SceneDatabase
	entityMaterial  []int32
	entityCount     int

	fb *framebuffer.Set

	primary   map[int]*streams.Side
	secondary map[int]*streams.Side
	tmpBuffer []int32

	namedBuffers map[string][]byte

	bvhLoaded map[string]bool // keyed by "bvh:"/"dyntable:"/"fixtable:" + name; "on first use" copy gate

	driverSettings variant.DriverSettings
	traceRays      []float32
	currentKey     stats.ShaderKey
	currentLocal   *params.Set
	globalParams   *params.Set

	tonemapIn       []float32
	tonemapOut      []uint32
	tonemapW        int
	tonemapH        int
	tonemapSettings TonemapSettings

	imageInfoIn       []float32
	imageInfoW        int
	imageInfoH        int
	imageInfoSettings ImageInfoSettings
	imageInfoOut      ImageInfoOutput

	stats        *stats.Statistics
	statsEnabled bool
}

// New constructs a Device for setup, computing its device id and
// allocating the per-thread scratch pool for CPU targets (§4.1
// "Construction").
func New(setup Setup) (*Device, error) {
	if setup.Target.IsGPU && setup.GPUDevice == nil {
		return nil, fmt.Errorf("device: GPU target requires a GPUDevice")
	}
	logger := ignislog.Or(setup.Logger)

	d := &Device{
		id:           setup.Target.DeviceID(),
		setup:        setup,
		logger:       logger,
		scratch:      newScratchPool(setup.Target.IsGPU, setup.Target.ThreadCount),
		cache:        newImageCache(logger),
		resolver:     newResourcePathResolver(setup.BaseDir, nil),
		primary:      map[int]*streams.Side{},
		secondary:    map[int]*streams.Side{},
		namedBuffers: map[string][]byte{},
		bvhLoaded:    map[string]bool{},
		globalParams: params.New(),
		stats:        stats.New(),
		statsEnabled: setup.AcquireStats,
	}
	if setup.Target.IsGPU {
		d.gpu = newGPUResidency(setup.GPUDevice)
	}
	return d, nil
}

// ID returns the integer device id (0 = host; GPU devices get a
// vendor-tagged non-zero id), matching §4.1's "Construction" rule.
func (d *Device) ID() uint32 { return d.id }

// Statistics returns the device's accumulated Statistics.
func (d *Device) Statistics() *stats.Statistics { return d.stats }

// GlobalParameters returns the runtime-owned global parameter set.
func (d *Device) GlobalParameters() *params.Set { return d.globalParams }

// AssignScene stores the scene database and entity->material map, and
// recomputes entity_count from the "entities" fix table (§4.1 "Scene
// assignment").
func (d *Device) AssignScene(scene *scenedb.SceneDatabase, entityMaterial []int32, resourceMap []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scene = scene
	d.entityMaterial = entityMaterial
	d.entityCount = scene.EntityCount()
	d.resolver = newResourcePathResolver(d.setup.BaseDir, resourceMap)
	d.bvhLoaded = map[string]bool{}
}

// EntityCount returns the entity count recomputed at scene assignment.
func (d *Device) EntityCount() int { return d.entityCount }

// MaterialID returns the material id for an entity id from the
// entity->material map assigned scene assignment.
func (d *Device) MaterialID(entityID int32) int32 {
	if entityID < 0 || int(entityID) >= len(d.entityMaterial) {
		return -1
	}
	return d.entityMaterial[entityID]
}

// EnsureFramebuffer lazily allocates the host framebuffer at (w,h) if it
// doesn't exist yet (§4.1 "Frame setup").
func (d *Device) EnsureFramebuffer(w, h int) *framebuffer.Set {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fb == nil {
		d.fb = framebuffer.NewSet(w, h)
	}
	return d.fb
}

// Resize replaces the framebuffer and every AOV at new dimensions and
// resets iteration counts (§4.1 "Frame setup").
func (d *Device) Resize(w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fb == nil {
		d.fb = framebuffer.NewSet(w, h)
		return
	}
	d.fb.Resize(w, h)
}

// Framebuffers returns the current framebuffer set, or nil if
// EnsureFramebuffer/Resize has not yet been called.
func (d *Device) Framebuffers() *framebuffer.Set { return d.fb }

// dispatchKind is one of the shader roles §4.1's run_X operations cover.
type dispatchKind = stats.ShaderKind

// Dispatch implements the shader dispatch contract (§4.1 "Shader dispatch
// contract"): it records start/stop statistics events, sets the current
// shader key/local registry, calls fn with the current DriverSettings,
// flushes any __dbg_output buffer, and records a stop event.
func (d *Device) Dispatch(variantID uuid.UUID, kind dispatchKind, subID int, slot variant.Slot) int32 {
	if slot.Exec == nil {
		return 0
	}
	key := stats.ShaderKey{VariantID: variantID, Kind: kind, SubID: subID}

	d.mu.Lock()
	d.currentKey = key
	d.currentLocal = slot.Local
	settings := d.driverSettings
	d.mu.Unlock()

	if d.statsEnabled {
		d.stats.BeginShader(key)
	}

	result := slot.Exec(&settings)

	d.flushDebugOutput()

	if d.statsEnabled {
		d.stats.EndShader(key)
	}
	return result
}

// flushDebugOutput interprets the "__dbg_output" named buffer, if
// present, as a log stream and writes it to stdout, per §4.1 step 4. The
// wire format (op:i32 followed by a string/i32/f32) is owned by the
// generated shader side; this reference implementation only recognises a
// plain newline-delimited text payload, which is all the reference
// Compiler/Loader pairing ever produces.
func (d *Device) flushDebugOutput() {
	d.mu.Lock()
	buf, ok := d.namedBuffers["__dbg_output"]
	d.mu.Unlock()
	if !ok || len(buf) == 0 {
		return
	}
	fmt.Print(string(buf))
	d.mu.Lock()
	delete(d.namedBuffers, "__dbg_output")
	d.mu.Unlock()
}

// UpdateSettings copies dimensions/seed/iteration/frame into
// DriverSettings ahead of an iteration (§4.1 step 2).
func (d *Device) UpdateSettings(rs RenderSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.driverSettings = variant.DriverSettings{
		DeviceIndex: d.id,
		SPI:         rs.SPI,
		Frame:       rs.Frame,
		Iteration:   rs.Iteration,
		Width:       rs.WorkWidth,
		Height:      rs.WorkHeight,
		Seed:        rs.Seed,
	}
	d.traceRays = rs.Rays
}

// Render executes one iteration of v (§4.1 "Rendering an iteration").
func (d *Device) Render(v *variant.ShaderVariant, rs RenderSettings, globals *params.Set, lockFramebuffer bool, den denoiser.Denoiser) {
	token := d.RegisterThread()
	defer d.UnregisterThread(token)

	if globals != nil {
		d.mu.Lock()
		d.globalParams = globals
		d.mu.Unlock()
	}

	d.UpdateSettings(rs)

	if d.fb == nil || d.fb.Main.Width != int(rs.WorkWidth) || d.fb.Main.Height != int(rs.WorkHeight) {
		d.Resize(int(rs.WorkWidth), int(rs.WorkHeight))
	}

	env := saveFloatEnv()
	d.Dispatch(v.ID, stats.KindDevice, 0, v.DeviceShader)
	restoreFloatEnv(env)

	d.fb.CommitIteration(lockFramebuffer)

	if rs.Denoise && den != nil {
		if aov, ok := d.fb.Resolve("Denoised"); ok {
			in := denoiser.Input{Width: d.fb.Main.Width, Height: d.fb.Main.Height, Color: d.fb.Main.Data}
			if normals, ok := d.fb.Resolve("Normals"); ok {
				in.Normals = normals.Data
			}
			if albedo, ok := d.fb.Resolve("Albedo"); ok {
				in.Albedo = albedo.Data
			}
			if err := den.Denoise(in, aov.Data); err != nil {
				d.logger.Errorf("denoise failed: %v", err)
			}
		}
	}
}

// RegisterThread acquires a scratch slot for the calling thread (CPU
// targets) or is a no-op (GPU). The returned token must be passed to
// UnregisterThread. Reentrant registration is keyed by the caller
// supplying 0, matching a single logical worker per goroutine in this
// reference implementation; a multi-worker CPU pool would thread a
// distinct token per worker goroutine.
func (d *Device) RegisterThread() int {
	return d.scratch.Register(0)
}

// UnregisterThread releases the scratch slot acquired by RegisterThread.
func (d *Device) UnregisterThread(token int) {
	d.scratch.Unregister(token)
}

// ReleaseAll tears down every cache, matching §5 "Lifetime": releasing
// the Device tears down every cache; available mid-life for a scene
// reload.
func (d *Device) ReleaseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		d.gpu.ReleaseAll()
	}
	d.namedBuffers = map[string][]byte{}
	d.bvhLoaded = map[string]bool{}
	d.primary = map[int]*streams.Side{}
	d.secondary = map[int]*streams.Side{}
}
