package device

import (
	"math"
	"sort"

	"github.com/ignis-render/ignis/stats"
	"github.com/ignis-render/ignis/variant"
)

// TonemapMethod selects the per-pixel operator Tonemap applies ahead of
// the optional gamma step. The original's method enum is generated
// shader-side and has no surviving definition in original_source; Clamp
// and Reinhard are the two operators this reference core implements
// directly (§9 open question decision).
type TonemapMethod int32

const (
	TonemapClamp TonemapMethod = iota
	TonemapReinhard
)

// TonemapSettings is the tonemap(out_pixels, settings) request (§4.6,
// §6.3). AOV "" or "Color" selects the main accumulator.
type TonemapSettings struct {
	AOV            string
	Method         TonemapMethod
	UseGamma       bool
	Scale          float32
	ExposureFactor float32
	ExposureOffset float32
}

// ImageInfoSettings is the imageinfo(settings) request (§4.6, §6.3).
type ImageInfoSettings struct {
	AOV   string
	Bins  int
	Scale float32
}

// ImageInfoOutput is the aggregate imageinfo returns (§4.6).
type ImageInfoOutput struct {
	Min, Max, Average, SoftMin, SoftMax, Median float32
}

// aovOrMain resolves settings.AOV against the framebuffer set, "" or
// "Color" meaning the main accumulator, matching GetAOVImage's rule.
// Caller must hold d.mu.
func (d *Device) aovOrMain(name string) *imageLike {
	if d.fb == nil {
		return nil
	}
	if name == "" || name == "Color" {
		if d.fb.Main == nil {
			return nil
		}
		return &imageLike{data: d.fb.Main.Data, w: d.fb.Main.Width, h: d.fb.Main.Height, iter: d.fb.Main.IterationCount}
	}
	img := d.fb.EnsureAOV(name)
	if img == nil {
		return nil
	}
	return &imageLike{data: img.Data, w: img.Width, h: img.Height, iter: img.IterationCount}
}

// imageLike is the subset of framebuffer.Image the tonemap/imageinfo
// passes read, captured under the lock before any unlocked math runs.
type imageLike struct {
	data []float32
	w, h int
	iter int
}

// Tonemap implements §4.6 "tonemap": selects the named AOV, computes the
// per-iteration effective scale scale_eff = Scale / max(iter_count, 1),
// and writes one packed RGBA8 pixel (0xAABBGGRR, little-endian channel
// order) per texel into outPixels. If v carries a non-empty Tonemap
// override slot, that runs instead via the normal dispatch contract,
// reading the selected AOV and scale_eff through GetTonemapInput/
// GetTonemapSettings and writing through GetTonemapOutput — this core has
// no compiled-shader backend for the original's per-method generated
// templates, so the built-in path below is the Go-native equivalent of
// ig_tonemap_shader for the methods this reference core supports.
func (d *Device) Tonemap(v *variant.ShaderVariant, settings TonemapSettings, outPixels []uint32) {
	d.mu.Lock()
	img := d.aovOrMain(settings.AOV)
	if img == nil {
		d.mu.Unlock()
		return
	}
	scaleEff := settings.Scale
	if img.iter > 0 {
		scaleEff /= float32(img.iter)
	}
	settings.Scale = scaleEff
	d.tonemapIn, d.tonemapOut, d.tonemapW, d.tonemapH, d.tonemapSettings = img.data, outPixels, img.w, img.h, settings
	d.mu.Unlock()

	if v != nil && !v.Tonemap.Empty() {
		d.Dispatch(v.ID, stats.KindTonemap, 0, v.Tonemap)
		return
	}

	key := stats.ShaderKey{Kind: stats.KindTonemap}
	if v != nil {
		key.VariantID = v.ID
	}
	if d.statsEnabled {
		d.stats.BeginShader(key)
	}

	n := img.w * img.h
	if n > len(outPixels) {
		n = len(outPixels)
	}
	for i := 0; i < n; i++ {
		r := tonemapChannel(img.data[i*3+0], settings)
		g := tonemapChannel(img.data[i*3+1], settings)
		b := tonemapChannel(img.data[i*3+2], settings)
		outPixels[i] = packRGBA8(r, g, b)
	}

	if d.statsEnabled {
		d.stats.EndShader(key)
	}
}

// ImageInfo implements §4.6 "imageinfo": selects the named AOV, computes
// scale_eff the same way as Tonemap, and aggregates {Min, Max, Average,
// SoftMin, SoftMax, Median} over the per-pixel luminance (Rec. 709
// weights), with SoftMin/SoftMax taken as the 1st/99th percentile and
// Median the 50th percentile of the sorted luminance distribution — the
// original's runImageinfoShader aggregation body has no surviving
// definition in original_source, so this percentile-based scheme is this
// reference core's Go-native stand-in (§9 open question decision). Falls
// through to v's ImageInfo override slot when present, same as Tonemap.
func (d *Device) ImageInfo(v *variant.ShaderVariant, settings ImageInfoSettings) ImageInfoOutput {
	d.mu.Lock()
	img := d.aovOrMain(settings.AOV)
	if img == nil {
		d.mu.Unlock()
		return ImageInfoOutput{}
	}
	scaleEff := settings.Scale
	if img.iter > 0 {
		scaleEff /= float32(img.iter)
	}
	settings.Scale = scaleEff
	d.imageInfoIn, d.imageInfoW, d.imageInfoH, d.imageInfoSettings = img.data, img.w, img.h, settings
	d.imageInfoOut = ImageInfoOutput{}
	d.mu.Unlock()

	if v != nil && !v.ImageInfo.Empty() {
		d.Dispatch(v.ID, stats.KindImageInfo, 0, v.ImageInfo)
		d.mu.Lock()
		out := d.imageInfoOut
		d.mu.Unlock()
		return out
	}

	key := stats.ShaderKey{Kind: stats.KindImageInfo}
	if v != nil {
		key.VariantID = v.ID
	}
	if d.statsEnabled {
		d.stats.BeginShader(key)
	}

	n := img.w * img.h
	lum := make([]float32, n)
	for i := 0; i < n; i++ {
		r, g, b := img.data[i*3+0]*scaleEff, img.data[i*3+1]*scaleEff, img.data[i*3+2]*scaleEff
		lum[i] = 0.2126*r + 0.7152*g + 0.0722*b
	}
	out := aggregateLuminance(lum)

	if d.statsEnabled {
		d.stats.EndShader(key)
	}
	return out
}

// GetTonemapInput/GetTonemapSettings/GetTonemapOutput are the accessors
// an overriding Tonemap slot reads/writes through, mirroring the
// GetTraceRays tracer-mode accessor pattern.
func (d *Device) GetTonemapInput() (data []float32, w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tonemapIn, d.tonemapW, d.tonemapH
}

func (d *Device) GetTonemapSettings() TonemapSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tonemapSettings
}

func (d *Device) GetTonemapOutput() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tonemapOut
}

// GetImageInfoInput/GetImageInfoSettings/SetImageInfoOutput are the
// accessors an overriding ImageInfo slot reads/writes through.
func (d *Device) GetImageInfoInput() (data []float32, w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.imageInfoIn, d.imageInfoW, d.imageInfoH
}

func (d *Device) GetImageInfoSettings() ImageInfoSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.imageInfoSettings
}

func (d *Device) SetImageInfoOutput(out ImageInfoOutput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageInfoOut = out
}

// tonemapChannel scales one linear channel value by settings.Scale (which
// Tonemap sets to scale_eff), then applies exposure, the selected method,
// and the optional gamma step.
func tonemapChannel(v float32, settings TonemapSettings) float32 {
	v = (v*settings.Scale + settings.ExposureOffset) * exposureFactorOrOne(settings.ExposureFactor)
	switch settings.Method {
	case TonemapReinhard:
		v = v / (1 + v)
	default:
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
	}
	if settings.UseGamma {
		v = float32(math.Pow(float64(clamp01(v)), 1.0/2.2))
	}
	return clamp01(v)
}

func exposureFactorOrOne(f float32) float32 {
	if f == 0 {
		return 1
	}
	return f
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func packRGBA8(r, g, b float32) uint32 {
	ri := uint32(r*255 + 0.5)
	gi := uint32(g*255 + 0.5)
	bi := uint32(b*255 + 0.5)
	return ri | gi<<8 | bi<<16 | 0xff<<24
}

// aggregateLuminance computes {Min, Max, Average, SoftMin, SoftMax,
// Median} over lum, returning the zero value for an empty image.
func aggregateLuminance(lum []float32) ImageInfoOutput {
	n := len(lum)
	if n == 0 {
		return ImageInfoOutput{}
	}
	sorted := make([]float32, n)
	copy(sorted, lum)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float32
	for _, v := range lum {
		sum += v
	}

	percentile := func(p float32) float32 {
		idx := int(p * float32(n-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}

	return ImageInfoOutput{
		Min:     sorted[0],
		Max:     sorted[n-1],
		Average: sum / float32(n),
		SoftMin: percentile(0.01),
		SoftMax: percentile(0.99),
		Median:  percentile(0.5),
	}
}
