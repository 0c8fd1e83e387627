package device

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ignis-render/ignis/framebuffer"
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/stats"
	"github.com/ignis-render/ignis/streams"
	"github.com/ignis-render/ignis/variant"
)

// This file is the C-ABI exported-function surface the generated shader
// code calls into (§4.1, §6.1), expressed as Go methods instead of cgo
// exports: one method per ignis_* entry point the original glue.cpp's
// Interface implements. Generated shaders run in-process as ShaderFunc
// closures (variant.ShaderFunc), so the boundary here is a plain method
// call rather than a foreign-function trampoline, but the operation
// names and argument shapes mirror the original one-for-one.

// GetFilmData returns the main accumulator's backing slice and its
// dimensions (ignis_get_film_data).
func (d *Device) GetFilmData() (data []float32, w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fb == nil {
		return nil, 0, 0
	}
	return d.fb.Main.Data, d.fb.Main.Width, d.fb.Main.Height
}

// GetAOVImage returns the named AOV's image, lazily allocating it at the
// framebuffer's current dimensions if this is the first request
// (ignis_get_aov_image).
func (d *Device) GetAOVImage(name string) *framebuffer.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fb == nil {
		return nil
	}
	if name == "" || name == "Color" {
		return d.fb.Main
	}
	return d.fb.EnsureAOV(name)
}

// WorkInfo is the dimension/iteration triple ignis_get_work_info reports.
type WorkInfo struct {
	Width, Height uint32
	Iteration     uint32
}

// GetTraceRays returns the flat [org.xyz, dir.xyz, tmin, tmax] ray list
// set by tracer mode's RenderSettings.Rays, or nil outside tracer mode.
func (d *Device) GetTraceRays() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.traceRays
}

// GetWorkInfo returns the device's current iteration/dimension state
// (ignis_get_work_info).
func (d *Device) GetWorkInfo() WorkInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return WorkInfo{
		Width:     d.driverSettings.Width,
		Height:    d.driverSettings.Height,
		Iteration: d.driverSettings.Iteration,
	}
}

// LoadBVH2/4/8Ent copy the named primitive type's BVH blob into device
// residency exactly once per Device lifetime (or since the last
// AssignScene), matching "load_bvh{2,4,8}_ent: cached once per device"
// (§4.1, §6.1). primType keys scene.BVHs; the width is validated against
// what the scene actually stored at that key.
func (d *Device) LoadBVH2Ent(primType string) (scenedb.BVHBlob, error) {
	return d.loadBVH(primType, scenedb.BVH2)
}

func (d *Device) LoadBVH4Ent(primType string) (scenedb.BVHBlob, error) {
	return d.loadBVH(primType, scenedb.BVH4)
}

func (d *Device) LoadBVH8Ent(primType string) (scenedb.BVHBlob, error) {
	return d.loadBVH(primType, scenedb.BVH8)
}

func (d *Device) loadBVH(primType string, want scenedb.BVHWidth) (scenedb.BVHBlob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scene == nil {
		return scenedb.BVHBlob{}, fmt.Errorf("device: load_bvh%d_ent: no scene assigned", want)
	}
	blob, ok := d.scene.BVHs[primType]
	if !ok {
		return scenedb.BVHBlob{}, fmt.Errorf("device: load_bvh%d_ent: no BVH for primitive type %q", want, primType)
	}
	if blob.Width != want {
		return scenedb.BVHBlob{}, fmt.Errorf("device: load_bvh%d_ent: scene stored width %d for %q", want, blob.Width, primType)
	}

	cacheKey := fmt.Sprintf("bvh:%s", primType)
	if d.bvhLoaded[cacheKey] {
		return blob, nil
	}
	if d.gpu != nil {
		if _, err := d.gpu.EnsureBuffer(cacheKey+":nodes", uint64(len(blob.NodesBlob)), 0, blob.NodesBlob); err != nil {
			return scenedb.BVHBlob{}, err
		}
		if _, err := d.gpu.EnsureBuffer(cacheKey+":leaves", uint64(len(blob.LeavesBlob)), 0, blob.LeavesBlob); err != nil {
			return scenedb.BVHBlob{}, err
		}
	}
	d.bvhLoaded[cacheKey] = true
	return blob, nil
}

// LoadDynTable returns the named dyntable, copying it into GPU residency
// on first use (ignis_load_dyntable).
func (d *Device) LoadDynTable(name string) (*scenedb.DynTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scene == nil {
		return nil, fmt.Errorf("device: load_dyntable: no scene assigned")
	}
	t, ok := d.scene.DynTables[name]
	if !ok {
		return nil, fmt.Errorf("device: load_dyntable: no table %q", name)
	}
	cacheKey := "dyntable:" + name
	if !d.bvhLoaded[cacheKey] && d.gpu != nil {
		if _, err := d.gpu.EnsureBuffer(cacheKey, uint64(len(t.Data)), 0, t.Data); err != nil {
			return nil, err
		}
	}
	d.bvhLoaded[cacheKey] = true
	return t, nil
}

// LoadFixTable returns the named fixtable, copying it into GPU residency
// on first use (ignis_load_fixtable).
func (d *Device) LoadFixTable(name string) (*scenedb.FixTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scene == nil {
		return nil, fmt.Errorf("device: load_fixtable: no scene assigned")
	}
	t, ok := d.scene.FixTables[name]
	if !ok {
		return nil, fmt.Errorf("device: load_fixtable: no table %q", name)
	}
	cacheKey := "fixtable:" + name
	if !d.bvhLoaded[cacheKey] && d.gpu != nil {
		if _, err := d.gpu.EnsureBuffer(cacheKey, uint64(len(t.Data)), 0, t.Data); err != nil {
			return nil, err
		}
	}
	d.bvhLoaded[cacheKey] = true
	return t, nil
}

// LoadImage resolves path against the base directory and returns the
// decoded/cached float image (ignis_load_image). LoadImageByID is its
// sibling that first resolves id through the resource map
// (ignis_load_image_by_id).
func (d *Device) LoadImage(path string) FloatImage {
	d.stats.BeginSection(stats.SectionImageLoading)
	defer d.stats.EndSection(stats.SectionImageLoading)
	return d.cache.LoadImage(d.resolver.ResolvePath(path), d.currentShaderKeySnapshot())
}

func (d *Device) LoadImageByID(id int) FloatImage {
	d.stats.BeginSection(stats.SectionImageLoading)
	defer d.stats.EndSection(stats.SectionImageLoading)
	return d.cache.LoadImage(d.resolver.ResolveID(id), d.currentShaderKeySnapshot())
}

// LoadPackedImage/LoadPackedImageByID are the 8-bit sibling pair.
func (d *Device) LoadPackedImage(path string) PackedImage {
	d.stats.BeginSection(stats.SectionPackedImageLoading)
	defer d.stats.EndSection(stats.SectionPackedImageLoading)
	return d.cache.LoadPackedImage(d.resolver.ResolvePath(path), d.currentShaderKeySnapshot())
}

func (d *Device) LoadPackedImageByID(id int) PackedImage {
	d.stats.BeginSection(stats.SectionPackedImageLoading)
	defer d.stats.EndSection(stats.SectionPackedImageLoading)
	return d.cache.LoadPackedImage(d.resolver.ResolveID(id), d.currentShaderKeySnapshot())
}

// LoadBuffer/LoadBufferByID mirror the image pair for raw byte buffers.
func (d *Device) LoadBuffer(path string) ([]byte, error) {
	d.stats.BeginSection(stats.SectionBufferLoading)
	defer d.stats.EndSection(stats.SectionBufferLoading)
	return d.cache.LoadBuffer(d.resolver.ResolvePath(path), d.currentShaderKeySnapshot())
}

func (d *Device) LoadBufferByID(id int) ([]byte, error) {
	d.stats.BeginSection(stats.SectionBufferLoading)
	defer d.stats.EndSection(stats.SectionBufferLoading)
	return d.cache.LoadBuffer(d.resolver.ResolveID(id), d.currentShaderKeySnapshot())
}

func (d *Device) currentShaderKeySnapshot() stats.ShaderKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentKey
}

// RequestBuffer allocates or reuses a named scratch buffer at least size
// bytes large, reused only if the existing buffer is already at least
// that large (ignis_request_buffer, §4.1 "Resize rule").
func (d *Device) RequestBuffer(name string, size int) []byte {
	d.stats.BeginSection(stats.SectionBufferRequests)
	defer d.stats.EndSection(stats.SectionBufferRequests)

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.namedBuffers[name]; ok && len(existing) >= size {
		return existing
	}
	buf := make([]byte, size)
	d.namedBuffers[name] = buf
	return buf
}

// ReleaseBuffer drops a named scratch buffer (ignis_release_buffer); it is
// not an error to release a name that was never requested.
func (d *Device) ReleaseBuffer(name string) {
	d.stats.BeginSection(stats.SectionBufferReleases)
	defer d.stats.EndSection(stats.SectionBufferReleases)
	d.mu.Lock()
	delete(d.namedBuffers, name)
	d.mu.Unlock()
}

// GetPrimaryStream/GetSecondaryStream return the read or write side of the
// named stream, allocating it at the given capacity/payload on first
// request (ignis_get_primary_stream[_const], ignis_get_secondary_stream[_const]).
func (d *Device) GetPrimaryStream(id int, capacity, payload int) *streams.Buffer {
	return d.primarySide(id, capacity, payload).Write()
}

func (d *Device) GetPrimaryStreamConst(id int) *streams.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	side := d.primary[id]
	if side == nil {
		return nil
	}
	return side.Read()
}

func (d *Device) GetSecondaryStream(id int, capacity, payload int) *streams.Buffer {
	return d.secondarySide(id, capacity, payload).Write()
}

func (d *Device) GetSecondaryStreamConst(id int) *streams.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	side := d.secondary[id]
	if side == nil {
		return nil
	}
	return side.Read()
}

func (d *Device) primarySide(id, capacity, payload int) *streams.Side {
	d.mu.Lock()
	defer d.mu.Unlock()
	side, ok := d.primary[id]
	if !ok {
		side = streams.NewSide(capacity, streams.MinPrimaryComponents, payload)
		d.primary[id] = side
		return side
	}
	side.EnsureCapacity(capacity, streams.MinPrimaryComponents)
	return side
}

func (d *Device) secondarySide(id, capacity, payload int) *streams.Side {
	d.mu.Lock()
	defer d.mu.Unlock()
	side, ok := d.secondary[id]
	if !ok {
		side = streams.NewSide(capacity, streams.MinSecondaryComponents, payload)
		d.secondary[id] = side
		return side
	}
	side.EnsureCapacity(capacity, streams.MinSecondaryComponents)
	return side
}

// GPUSwapPrimaryStreams/GPUSwapSecondaryStreams exchange a stream's read
// and write sides (ignis_gpu_swap_primary_streams, _secondary_streams).
func (d *Device) GPUSwapPrimaryStreams(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if side, ok := d.primary[id]; ok {
		side.Swap()
	}
}

func (d *Device) GPUSwapSecondaryStreams(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if side, ok := d.secondary[id]; ok {
		side.Swap()
	}
}

// HandleRayGeneration/HandleTraversePrimary/HandleTraverseSecondary/
// HandleMissShader/HandleHitShader/HandleAdvancedShadowShader/
// HandleCallbackShader are the ignis_handle_* dispatch points: each
// resolves the slot to run from the active variant and routes it through
// Dispatch, attributing statistics by (variant, kind, sub_id).
func (d *Device) HandleRayGeneration(v *variant.ShaderVariant) int32 {
	return d.Dispatch(v.ID, stats.KindRayGeneration, 0, v.RayGen)
}

func (d *Device) HandleTraversePrimary(v *variant.ShaderVariant) int32 {
	return d.Dispatch(v.ID, stats.KindPrimaryTraversal, 0, v.PrimaryTraversal)
}

func (d *Device) HandleTraverseSecondary(v *variant.ShaderVariant) int32 {
	return d.Dispatch(v.ID, stats.KindSecondaryTraversal, 0, v.SecondaryTraversal)
}

func (d *Device) HandleMissShader(v *variant.ShaderVariant) int32 {
	return d.Dispatch(v.ID, stats.KindMiss, 0, v.Miss)
}

// HandleHitShader dispatches the hit slot for materialID, out of range
// materialID is a programmer error and panics, matching ResolveID's
// out-of-range policy (§9).
func (d *Device) HandleHitShader(v *variant.ShaderVariant, materialID int) int32 {
	if materialID < 0 || materialID >= len(v.Hit) {
		panic(fmt.Sprintf("device: handle_hit_shader: material id %d out of range (%d materials)", materialID, len(v.Hit)))
	}
	return d.Dispatch(v.ID, stats.KindHit, materialID, v.Hit[materialID])
}

// HandleAdvancedShadowShader resolves which material slot to dispatch via
// variant.AdvancedShadowIndex and runs the corresponding hit/miss pair
// depending on whether the shadow ray connected.
func (d *Device) HandleAdvancedShadowShader(v *variant.ShaderVariant, mode variant.ShadowMode, materialID int, hit bool) int32 {
	idx := variant.AdvancedShadowIndex(mode, materialID)
	if hit {
		if idx < 0 || idx >= len(v.AdvShadowHit) {
			panic(fmt.Sprintf("device: handle_advanced_shadow_shader: hit index %d out of range", idx))
		}
		return d.Dispatch(v.ID, stats.KindAdvancedShadow, idx, v.AdvShadowHit[idx])
	}
	if idx < 0 || idx >= len(v.AdvShadowMiss) {
		panic(fmt.Sprintf("device: handle_advanced_shadow_shader: miss index %d out of range", idx))
	}
	return d.Dispatch(v.ID, stats.KindAdvancedShadow, idx, v.AdvShadowMiss[idx])
}

func (d *Device) HandleCallbackShader(v *variant.ShaderVariant, slot variant.Slot) int32 {
	return d.Dispatch(v.ID, stats.KindCallback, 0, slot)
}

// GetParameter*/SetParameter* read/write the parameter registry
// (ignis_get_parameter_i/f/v/c/s, ignis_set_parameter_i/f/v/c/s),
// selecting the global set or the current dispatch's local registry by
// the global bool (§4.1, §8 property 6: "A local get with the same name
// returns the default unless the local set also defined it"). The two
// scopes are never merged: a local get sees only the local set, a global
// get only the global set. These calls are how a generated shader reads
// or writes parameters (e.g. __spi) at dispatch time. currentLocal is nil outside a
// dispatch (no shader currently running), in which case a local-scoped
// call degrades to the default/no-op rather than panicking.
func (d *Device) parameterScope(global bool) *params.Set {
	if global {
		return d.globalParams
	}
	return d.currentLocal
}

func (d *Device) GetParameterInt(name string, def int32, global bool) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.parameterScope(global)
	if set == nil {
		return def
	}
	return set.GetInt(name, def)
}

func (d *Device) SetParameterInt(name string, v int32, global bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.parameterScope(global); set != nil {
		set.SetInt(name, v)
	}
}

func (d *Device) GetParameterFloat(name string, def float32, global bool) float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.parameterScope(global)
	if set == nil {
		return def
	}
	return set.GetFloat(name, def)
}

func (d *Device) SetParameterFloat(name string, v float32, global bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.parameterScope(global); set != nil {
		set.SetFloat(name, v)
	}
}

func (d *Device) GetParameterVec3(name string, def mgl32.Vec3, global bool) mgl32.Vec3 {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.parameterScope(global)
	if set == nil {
		return def
	}
	return set.GetVec3(name, def)
}

func (d *Device) SetParameterVec3(name string, v mgl32.Vec3, global bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.parameterScope(global); set != nil {
		set.SetVec3(name, v)
	}
}

// GetParameterVec4/SetParameterVec4 are the "color" (Vec4) parameter
// accessors (ignis_get_parameter_c/ignis_set_parameter_c).
func (d *Device) GetParameterVec4(name string, def mgl32.Vec4, global bool) mgl32.Vec4 {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.parameterScope(global)
	if set == nil {
		return def
	}
	return set.GetVec4(name, def)
}

func (d *Device) SetParameterVec4(name string, v mgl32.Vec4, global bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.parameterScope(global); set != nil {
		set.SetVec4(name, v)
	}
}

// StatsBeginSection/StatsEndSection/StatsAdd are the ignis_stats_* entry
// points a generated shader calls directly to bracket non-dispatch work
// or accumulate a ray-count quantity.
func (d *Device) StatsBeginSection(t stats.SectionType) {
	if d.statsEnabled {
		d.stats.BeginSection(t)
	}
}

func (d *Device) StatsEndSection(t stats.SectionType) {
	if d.statsEnabled {
		d.stats.EndSection(t)
	}
}

func (d *Device) StatsAdd(q stats.Quantity, value int64) {
	if d.statsEnabled {
		d.stats.Add(q, value)
	}
}
