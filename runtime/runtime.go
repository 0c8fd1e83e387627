// Package runtime implements the Runtime orchestrator (§4.2): the front
// door applications call — load a scene via the Loader collaborator,
// compile every variant's shader source via the Compiler collaborator,
// then iterate by picking variants per the technique's selector and
// calling into the Device. Grounded on the teacher's app_builder.go
// construction sequencing (load-then-build-then-run phases) generalised
// from an ECS app bootstrap to a load/compile/step render loop.
package runtime

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/denoiser"
	"github.com/ignis-render/ignis/device"
	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/stats"
	"github.com/ignis-render/ignis/target"
	"github.com/ignis-render/ignis/variant"
)

// Overrides carries the command-line-style overrides load_from_file
// applies on top of whatever the scene file declares (§4.2 "Loading").
type Overrides struct {
	FilmWidth, FilmHeight int // 0 = use the scene's declared size
	SPI                   int // 0 = use the recommended SPI
	Interactive           bool
}

// Ray is one tracer-mode input ray (§4.2 "trace", §6.3).
type Ray struct {
	Org, Dir   [3]float32
	TMin, TMax float32
}

// Runtime is the load/compile/step orchestrator. One Runtime owns exactly
// one Device (§9).
type Runtime struct {
	dev      *device.Device
	compiler compiler.Compiler
	loadr    loader.Loader
	den      denoiser.Denoiser
	logger   ignislog.Logger
	target   target.Target

	scene    *scenedb.SceneDatabase
	variants []*variant.ShaderVariant
	infos    []variant.TechniqueVariantInfo
	selector variant.Selector
	result   loader.Result

	globalParams *params.Set

	filmWidth, filmHeight int
	recommendedSPI        int
	overrideSPI           int
	interactive           bool

	currentIteration   int
	currentSampleCount int
	frameCount         int
	loaded             bool
}

// New constructs a Runtime bound to dev and its collaborators. den may be
// nil, in which case denoiser.NoOp is used whenever a step requests
// denoising.
func New(dev *device.Device, t target.Target, c compiler.Compiler, l loader.Loader, den denoiser.Denoiser, logger ignislog.Logger) *Runtime {
	if den == nil {
		den = denoiser.NoOp{}
	}
	return &Runtime{
		dev:          dev,
		target:       t,
		compiler:     c,
		loadr:        l,
		den:          den,
		logger:       ignislog.Or(logger),
		globalParams: dev.GlobalParameters(),
	}
}

// RecommendedSPI computes the base recommended samples-per-iteration for
// target t at filmW x filmH, per §4.2's formula: f = is_gpu?8:2; if
// interactive f/=2; spi = clamp(ceil(f/((w/1000)*(h/1000))), 1, 64).
func RecommendedSPI(t target.Target, filmW, filmH int, interactive bool) int {
	f := 2.0
	if t.IsGPU {
		f = 8.0
	}
	if interactive {
		f /= 2
	}
	wScale := float64(filmW) / 1000.0
	hScale := float64(filmH) / 1000.0
	denomScale := wScale * hScale
	if denomScale <= 0 {
		denomScale = 1
	}
	spi := math.Ceil(f / denomScale)
	if spi < 1 {
		spi = 1
	}
	if spi > 64 {
		spi = 64
	}
	return int(spi)
}

// LoadFromFile parses path via the Loader, applies overrides, computes
// the recommended SPI, assigns the scene to the Device, and compiles
// every variant's non-empty shader slots (§4.2 "Loading", "Compile").
// Returns false (logging details) on scene-load or compile failure,
// matching §7's Compile error class.
func (r *Runtime) LoadFromFile(path string, overrides Overrides) bool {
	scene, result, err := r.loadr.Load(path)
	if err != nil {
		r.logger.Errorf("load_from_file: scene load failed: %v", err)
		return false
	}

	w, h := result.FilmWidth, result.FilmHeight
	if overrides.FilmWidth > 0 {
		w = overrides.FilmWidth
	}
	if overrides.FilmHeight > 0 {
		h = overrides.FilmHeight
	}
	if w <= 0 || h <= 0 {
		r.logger.Errorf("load_from_file: invalid film dimensions %dx%d", w, h)
		return false
	}

	r.scene = scene
	r.result = result
	r.filmWidth, r.filmHeight = w, h
	r.interactive = overrides.Interactive
	r.overrideSPI = overrides.SPI
	r.recommendedSPI = RecommendedSPI(r.target, w, h, r.interactive)
	r.selector = result.Selector

	r.dev.AssignScene(scene, result.EntityMaterial, result.ResourceMap)
	r.dev.EnsureFramebuffer(w, h)
	for _, name := range result.EnabledAOVs {
		r.dev.GetAOVImage(name)
	}

	variants, infos, err := r.compileVariants(result.Variants)
	if err != nil {
		r.logger.Errorf("load_from_file: compile failed: %v", err)
		return false
	}
	r.variants = variants
	r.infos = infos
	r.currentIteration = 0
	r.currentSampleCount = 0
	r.frameCount = 0
	r.loaded = true
	return true
}

func (r *Runtime) compileVariants(sources []loader.VariantSource) ([]*variant.ShaderVariant, []variant.TechniqueVariantInfo, error) {
	variants := make([]*variant.ShaderVariant, len(sources))
	infos := make([]variant.TechniqueVariantInfo, len(sources))

	for i, vs := range sources {
		sv := variant.NewShaderVariant(len(vs.Hit))
		infos[i] = vs.Info

		compileSlot := func(src loader.SlotSource) (variant.Slot, error) {
			if src.Empty() {
				return variant.Slot{}, nil
			}
			prepared := r.compiler.Prepare(src.Source, "")
			out, err := r.compiler.Compile(prepared, src.Entry, src.Local)
			if err != nil {
				return variant.Slot{}, err
			}
			return out, nil
		}

		var err error
		if sv.DeviceShader, err = compileSlot(vs.DeviceShader); err != nil {
			return nil, nil, fmt.Errorf("variant %d device shader: %w", i, err)
		}
		if sv.RayGen, err = compileSlot(vs.RayGen); err != nil {
			return nil, nil, fmt.Errorf("variant %d raygen: %w", i, err)
		}
		if sv.PrimaryTraversal, err = compileSlot(vs.PrimaryTraversal); err != nil {
			return nil, nil, fmt.Errorf("variant %d primary traversal: %w", i, err)
		}
		if sv.SecondaryTraversal, err = compileSlot(vs.SecondaryTraversal); err != nil {
			return nil, nil, fmt.Errorf("variant %d secondary traversal: %w", i, err)
		}
		if sv.Miss, err = compileSlot(vs.Miss); err != nil {
			return nil, nil, fmt.Errorf("variant %d miss: %w", i, err)
		}
		if sv.BeforeIteration, err = compileSlot(vs.BeforeIteration); err != nil {
			return nil, nil, fmt.Errorf("variant %d before-iteration: %w", i, err)
		}
		if sv.AfterIteration, err = compileSlot(vs.AfterIteration); err != nil {
			return nil, nil, fmt.Errorf("variant %d after-iteration: %w", i, err)
		}
		if sv.Tonemap, err = compileSlot(vs.Tonemap); err != nil {
			return nil, nil, fmt.Errorf("variant %d tonemap: %w", i, err)
		}
		if sv.ImageInfo, err = compileSlot(vs.ImageInfo); err != nil {
			return nil, nil, fmt.Errorf("variant %d imageinfo: %w", i, err)
		}
		for m, hit := range vs.Hit {
			if sv.Hit[m], err = compileSlot(hit); err != nil {
				return nil, nil, fmt.Errorf("variant %d hit[%d]: %w", i, m, err)
			}
		}
		for m, hit := range vs.AdvShadowHit {
			if sv.AdvShadowHit[m], err = compileSlot(hit); err != nil {
				return nil, nil, fmt.Errorf("variant %d adv_shadow_hit[%d]: %w", i, m, err)
			}
		}
		for m, miss := range vs.AdvShadowMiss {
			if sv.AdvShadowMiss[m], err = compileSlot(miss); err != nil {
				return nil, nil, fmt.Errorf("variant %d adv_shadow_miss[%d]: %w", i, m, err)
			}
		}
		variants[i] = sv
	}
	return variants, infos, nil
}

// activeVariants resolves which indices run for the current iteration,
// defaulting to "run all in order" when no selector was supplied (§3.8).
func (r *Runtime) activeVariants() []int {
	if r.selector != nil {
		return r.selector(r.currentIteration)
	}
	all := make([]int, len(r.variants))
	for i := range all {
		all[i] = i
	}
	return all
}

// Step runs one non-tracer iteration (§4.2 "Stepping"): resolves the
// active variant list, then steps each in order.
func (r *Runtime) Step(ignoreDenoiser bool) {
	if !r.loaded {
		r.logger.Errorf("step: no scene loaded")
		return
	}
	active := r.activeVariants()
	for pos, idx := range active {
		r.stepVariant(ignoreDenoiser, idx, pos == len(active)-1)
	}
	r.currentIteration++
}

// stepVariant fills in RenderSettings for variant idx, syncs the "__spi"
// global parameter with RenderSettings.SPI from the same computed value
// (§9 open question decision), and invokes Device.Render. The denoiser
// runs only when isLast marks the final variant of the iteration.
func (r *Runtime) stepVariant(ignoreDenoiser bool, idx int, isLast bool) {
	if idx < 0 || idx >= len(r.variants) {
		r.logger.Errorf("step_variant: index %d out of range", idx)
		return
	}
	info := r.infos[idx]
	spi := r.recommendedSPI
	if r.overrideSPI > 0 {
		spi = r.overrideSPI
	}
	if info.SPIOverride > 0 {
		spi = info.SPIOverride
	}

	w, h := r.filmWidth, r.filmHeight
	if info.WidthOverride > 0 {
		w = info.WidthOverride
	}
	if info.HeightOverride > 0 {
		h = info.HeightOverride
	}

	r.globalParams.SetInt("__spi", int32(spi))

	rs := device.RenderSettings{
		SPI:         uint32(spi),
		WorkWidth:   uint32(w),
		WorkHeight:  uint32(h),
		Iteration:   uint32(r.currentIteration),
		Frame:       uint32(r.frameCount),
		Denoise:     !ignoreDenoiser && isLast,
	}

	var den denoiser.Denoiser
	if !ignoreDenoiser && isLast {
		den = r.den
	}
	r.dev.Render(r.variants[idx], rs, r.globalParams, info.LockFramebuffer, den)

	if !info.LockFramebuffer {
		r.currentSampleCount += spi
	}
}

// Trace runs tracer mode (§4.2 "trace"): populates RenderSettings.Rays
// from rays and runs the active variant set for the current iteration
// with work_width = len(rays), work_height = 1, then optionally copies
// the main framebuffer into out.
func (r *Runtime) Trace(rays []Ray, out []float32) error {
	if !r.loaded {
		return fmt.Errorf("runtime: trace: no scene loaded")
	}
	flat := make([]float32, 0, len(rays)*8)
	for _, ray := range rays {
		flat = append(flat, ray.Org[0], ray.Org[1], ray.Org[2], ray.Dir[0], ray.Dir[1], ray.Dir[2], ray.TMin, ray.TMax)
	}

	active := r.activeVariants()
	for _, idx := range active {
		if idx < 0 || idx >= len(r.variants) {
			continue
		}
		info := r.infos[idx]
		spi := r.recommendedSPI
		if r.overrideSPI > 0 {
			spi = r.overrideSPI
		}
		r.globalParams.SetInt("__spi", int32(spi))
		rs := device.RenderSettings{
			SPI:        uint32(spi),
			WorkWidth:  uint32(len(rays)),
			WorkHeight: 1,
			Iteration:  uint32(r.currentIteration),
			Frame:      uint32(r.frameCount),
			Rays:       flat,
		}
		r.dev.Render(r.variants[idx], rs, r.globalParams, info.LockFramebuffer, nil)
	}
	r.currentIteration++

	if out != nil {
		data, _, _ := r.dev.GetFilmData()
		n := len(out)
		if len(data) < n {
			n = len(data)
		}
		copy(out[:n], data[:n])
	}
	return nil
}

// Reset clears all framebuffers and zeroes current_iteration/
// current_sample_count, leaving the frame counter untouched (§4.2 "reset").
func (r *Runtime) Reset() {
	if fb := r.dev.Framebuffers(); fb != nil {
		fb.Clear("")
	}
	r.currentIteration = 0
	r.currentSampleCount = 0
}

// ResizeFramebuffer replaces the framebuffer and every AOV at new
// dimensions (§6.3 resize_framebuffer).
func (r *Runtime) ResizeFramebuffer(w, h int) {
	r.filmWidth, r.filmHeight = w, h
	r.dev.Resize(w, h)
}

// ClearFramebuffer clears the main accumulator and every AOV when name is
// empty, or only the named image otherwise (§6.3 clear_framebuffer).
func (r *Runtime) ClearFramebuffer(name string) {
	if fb := r.dev.Framebuffers(); fb != nil {
		fb.Clear(name)
	}
}

// SetParameter setters forward to the Device's global parameter set
// (§4.7, §6.3 set_parameter for i32 | f32 | Vec3 | Vec4). The host always
// addresses the global scope; only a running shader can reach its local
// registry, through the device ABI's own global/local boolean.
func (r *Runtime) SetParameterInt(name string, v int32)       { r.dev.SetParameterInt(name, v, true) }
func (r *Runtime) SetParameterFloat(name string, v float32)   { r.dev.SetParameterFloat(name, v, true) }
func (r *Runtime) SetParameterVec3(name string, v mgl32.Vec3) { r.dev.SetParameterVec3(name, v, true) }
func (r *Runtime) SetParameterVec4(name string, v mgl32.Vec4) { r.dev.SetParameterVec4(name, v, true) }

// CurrentIterationCount, CurrentSampleCount, Technique, Target,
// SamplesPerIteration, FramebufferWidth/Height, HasDenoiser, IncFrameCount
// are the remaining §6.3 accessors.
func (r *Runtime) CurrentIterationCount() int { return r.currentIteration }
func (r *Runtime) CurrentSampleCount() int    { return r.currentSampleCount }
func (r *Runtime) Technique() string          { return r.result.TechniqueName }
func (r *Runtime) Camera() string             { return r.result.CameraName }
func (r *Runtime) Target() target.Target      { return r.target }
func (r *Runtime) SamplesPerIteration() int {
	if r.overrideSPI > 0 {
		return r.overrideSPI
	}
	return r.recommendedSPI
}
func (r *Runtime) FramebufferWidth() int  { return r.filmWidth }
func (r *Runtime) FramebufferHeight() int { return r.filmHeight }
func (r *Runtime) HasDenoiser() bool {
	_, ok := r.den.(denoiser.NoOp)
	return !ok
}
func (r *Runtime) IncFrameCount() { r.frameCount++ }

// SceneBoundingBox returns the loaded scene's bounding box (§6.3).
func (r *Runtime) SceneBoundingBox() (min, max [3]float32) {
	if r.scene == nil {
		return
	}
	return r.scene.SceneBBoxMin, r.scene.SceneBBoxMax
}

// Framebuffer returns the named AOV's data and iteration count, "" or
// "Color" meaning the main accumulator (§6.3 framebuffer(name)).
func (r *Runtime) Framebuffer(name string) (data []float32, iterationCount int, ok bool) {
	fb := r.dev.Framebuffers()
	if fb == nil {
		return nil, 0, false
	}
	img, found := fb.Resolve(name)
	if !found {
		return nil, 0, false
	}
	return img.Data, img.IterationCount, true
}

// Statistics returns the device's accumulated Statistics, merging nothing
// further since this reference core runs single-threaded per iteration
// (§4.8 "a final get_statistics() pass merges all thread-local stats").
func (r *Runtime) Statistics() *stats.Statistics { return r.dev.Statistics() }

// Tonemap runs §4.6/§6.3's tonemap(out_pixels, settings): delegates to the
// Device using the primary (index 0) compiled variant, since tonemap/
// imageinfo address the currently loaded technique rather than any one
// variant picked per iteration (§9 open question decision).
func (r *Runtime) Tonemap(outPixels []uint32, settings device.TonemapSettings) error {
	if !r.loaded || len(r.variants) == 0 {
		return fmt.Errorf("runtime: tonemap: no scene loaded")
	}
	r.dev.Tonemap(r.variants[0], settings, outPixels)
	return nil
}

// ImageInfo runs §4.6/§6.3's imageinfo(settings) → output.
func (r *Runtime) ImageInfo(settings device.ImageInfoSettings) (device.ImageInfoOutput, error) {
	if !r.loaded || len(r.variants) == 0 {
		return device.ImageInfoOutput{}, fmt.Errorf("runtime: imageinfo: no scene loaded")
	}
	return r.dev.ImageInfo(r.variants[0], settings), nil
}

// InitialCameraOrientation returns the Eye/Dir/Up triple the loaded
// scene's camera declared, before any interactive navigation moved it
// (§6.3 initial_camera_orientation).
func (r *Runtime) InitialCameraOrientation() loader.CameraOrientation {
	return r.result.CameraOrientation
}
