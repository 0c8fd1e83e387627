// Command ignisview is an optional windowed debug viewer: it steps a
// Runtime against a jsonloader scene each frame and blits the resulting
// framebuffer to the screen via a single fullscreen WGPU pass. It has no
// analogue in spec.md — the spec's Non-goals exclude a display surface —
// but SPEC_FULL.md's expanded module list asks for one as a development
// aid, since the reference core otherwise has no way to see what it
// rendered outside of the PNG dump ignisctl writes. The iteration and
// sample counts print to the console each second rather than as an
// on-screen overlay, since a
// glyph-atlas text renderer is disproportionate machinery for a debug
// tool whose only job is showing the image.
package main

import (
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/device"
	ignisruntime "github.com/ignis-render/ignis/runtime"
	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/loader/jsonloader"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/target"
)

func init() {
	runtime.LockOSThread()
}

const blitWGSL = `
struct VertexOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOut {
	var positions = array<vec2<f32>, 3>(
		vec2<f32>(-1.0, -1.0),
		vec2<f32>(3.0, -1.0),
		vec2<f32>(-1.0, 3.0),
	);
	var out: VertexOut;
	let p = positions[idx];
	out.pos = vec4<f32>(p, 0.0, 1.0);
	out.uv = (p + vec2<f32>(1.0, 1.0)) * 0.5;
	return out;
}

@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
	return textureSample(tex, samp, vec2<f32>(in.uv.x, 1.0 - in.uv.y));
}
`

// viewer owns the WGPU presentation chain for one window; it knows
// nothing about how the framebuffer it blits gets filled in.
type viewer struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	config   *wgpu.SurfaceConfiguration
	pipeline *wgpu.RenderPipeline
	sampler  *wgpu.Sampler

	tex      *wgpu.Texture
	texView  *wgpu.TextureView
	bindGrp  *wgpu.BindGroup
	bglayout *wgpu.BindGroupLayout
	texW     int
	texH     int

	rgba []byte
}

func newViewer(window *glfw.Window) (*viewer, error) {
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("ignisview: request adapter: %w", err)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("ignisview: request device: %w", err)
	}

	width, height := window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, dev, config)

	mod, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("ignisview: shader module: %w", err)
	}

	bgl, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ignisview: bind group layout: %w", err)
	}
	pl, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{BindGroupLayouts: []*wgpu.BindGroupLayout{bgl}})
	if err != nil {
		return nil, fmt.Errorf("ignisview: pipeline layout: %w", err)
	}
	pipeline, err := dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit Pipeline",
		Layout: pl,
		Vertex: wgpu.VertexState{Module: mod, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{{Format: config.Format, WriteMask: wgpu.ColorWriteMaskAll}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("ignisview: render pipeline: %w", err)
	}

	sampler, err := dev.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter: wgpu.FilterModeLinear,
		MagFilter: wgpu.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("ignisview: sampler: %w", err)
	}

	return &viewer{
		device:   dev,
		queue:    dev.GetQueue(),
		surface:  surface,
		adapter:  adapter,
		config:   config,
		pipeline: pipeline,
		sampler:  sampler,
		bglayout: bgl,
	}, nil
}

func (v *viewer) resizeSurface(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	v.config.Width, v.config.Height = uint32(w), uint32(h)
	v.surface.Configure(v.adapter, v.device, v.config)
}

// ensureTexture (re)allocates the blit source texture and its bind group
// whenever the framebuffer's own dimensions change, matching the
// teacher's setupTextures/setupBindGroups split in app.go.
func (v *viewer) ensureTexture(w, h int) error {
	if v.tex != nil && v.texW == w && v.texH == h {
		return nil
	}
	if v.tex != nil {
		v.tex.Release()
	}
	tex, err := v.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Framebuffer",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return err
	}
	bg, err := v.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: v.bglayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: v.sampler},
		},
	})
	if err != nil {
		return err
	}
	v.tex, v.texView, v.bindGrp = tex, view, bg
	v.texW, v.texH = w, h
	v.rgba = make([]byte, w*h*4)
	return nil
}

// upload tonemaps data (radiance summed over iterCount iterations) into
// the RGBA8 texture, the same "divide then clamp" rule ignisctl's PNG
// writer uses.
func (v *viewer) upload(data []float32, w, h, iterCount int) {
	if err := v.ensureTexture(w, h); err != nil {
		fmt.Printf("ignisview: texture alloc failed: %v\n", err)
		return
	}
	if iterCount == 0 {
		iterCount = 1
	}
	for i := 0; i < w*h; i++ {
		r := clamp01(data[i*3+0] / float32(iterCount))
		g := clamp01(data[i*3+1] / float32(iterCount))
		b := clamp01(data[i*3+2] / float32(iterCount))
		v.rgba[i*4+0] = uint8(r * 255)
		v.rgba[i*4+1] = uint8(g * 255)
		v.rgba[i*4+2] = uint8(b * 255)
		v.rgba[i*4+3] = 255
	}
	v.queue.WriteTexture(
		v.tex.AsImageCopy(),
		v.rgba,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

func (v *viewer) present() {
	nextTexture, err := v.surface.GetCurrentTexture()
	if err != nil {
		fmt.Printf("ignisview: get current texture: %v\n", err)
		return
	}
	defer nextTexture.Release()
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return
	}
	defer view.Release()

	encoder, err := v.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	if v.bindGrp != nil {
		pass.SetPipeline(v.pipeline)
		pass.SetBindGroup(0, v.bindGrp, nil)
		pass.Draw(3, 1, 0, 0)
	}
	_ = pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return
	}
	v.queue.Submit(cmd)
	v.surface.Present()
	v.device.Poll(false, nil)
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func main() {
	scenePath := flag.String("scene", "", "path to a jsonloader scene file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := ignislog.NewDefaultLogger("ignisview", *debug)
	if *scenePath == "" {
		logger.Errorf("missing -scene")
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "ignisview", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	vw, err := newViewer(window)
	if err != nil {
		panic(err)
	}

	t := target.NewCPU(target.CPUGeneric, 1, 1)
	dev, err := device.New(device.Setup{Target: t, AcquireStats: true, Logger: logger})
	if err != nil {
		panic(err)
	}
	registry := compiler.NewFuncRegistry()
	ld := &registeringLoader{inner: jsonloader.New(), registry: registry, dev: dev}
	rt := ignisruntime.New(dev, t, compiler.NewRegistryCompiler(registry), ld, nil, logger)
	if !rt.LoadFromFile(*scenePath, ignisruntime.Overrides{Interactive: true}) {
		logger.Errorf("failed to load %q", *scenePath)
		return
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		vw.resizeSurface(width, height)
	})

	lastReport := time.Now()
	for !window.ShouldClose() {
		glfw.PollEvents()

		rt.Step(true)
		data, iterCount, ok := rt.Framebuffer("")
		if ok {
			vw.upload(data, rt.FramebufferWidth(), rt.FramebufferHeight(), iterCount)
		}
		vw.present()

		if time.Since(lastReport) > time.Second {
			fmt.Printf("iteration=%d samples=%d\n", rt.CurrentIterationCount(), rt.CurrentSampleCount())
			lastReport = time.Now()
		}
	}
}

// registeringLoader wraps jsonloader.Loader so the reference shaders named
// by the parsed scene's technique are registered right after parsing,
// before Runtime.LoadFromFile compiles variants by entry-point name.
type registeringLoader struct {
	inner    *jsonloader.Loader
	registry *compiler.FuncRegistry
	dev      *device.Device
}

func (l *registeringLoader) Load(path string) (*scenedb.SceneDatabase, loader.Result, error) {
	db, result, err := l.inner.Load(path)
	if err != nil {
		return nil, loader.Result{}, err
	}
	jsonloader.RegisterReferenceShaders(l.registry, l.dev, l.inner.Last)
	return db, result, nil
}
