// Command ignisctl is a headless driver for the Runtime: load a reference
// JSON scene, step it for a fixed iteration count, write the main
// framebuffer out as a PNG, and print the
// accumulated statistics dump. It exists only to exercise the core end to
// end outside of the test suite (§1 names the real CLI/asset-pipeline
// surface as out of scope).
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/device"
	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/loader/jsonloader"
	"github.com/ignis-render/ignis/runtime"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/target"
)

func main() {
	scenePath := flag.String("scene", "", "path to a jsonloader scene file")
	out := flag.String("out", "out.png", "output PNG path for the main framebuffer")
	iterations := flag.Int("iterations", 1, "number of step() calls to run")
	spi := flag.Int("spi", 0, "override samples per iteration (0 = recommended)")
	width := flag.Int("width", 0, "override film width (0 = scene default)")
	height := flag.Int("height", 0, "override film height (0 = scene default)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := ignislog.NewDefaultLogger("ignisctl", *debug)

	if *scenePath == "" {
		logger.Errorf("missing -scene")
		os.Exit(1)
	}

	t := target.NewCPU(target.CPUGeneric, 1, 1)
	dev, err := device.New(device.Setup{Target: t, AcquireStats: true, Logger: logger})
	if err != nil {
		logger.Errorf("device init failed: %v", err)
		os.Exit(1)
	}

	registry := compiler.NewFuncRegistry()
	ld := &registeringLoader{inner: jsonloader.New(), registry: registry, dev: dev}

	rt := runtime.New(dev, t, compiler.NewRegistryCompiler(registry), ld, nil, logger)

	if !rt.LoadFromFile(*scenePath, runtime.Overrides{
		FilmWidth:  *width,
		FilmHeight: *height,
		SPI:        *spi,
	}) {
		logger.Errorf("failed to load %q", *scenePath)
		os.Exit(1)
	}

	logger.Infof("loaded %q: technique=%s camera=%s film=%dx%d", *scenePath, rt.Technique(), rt.Camera(), rt.FramebufferWidth(), rt.FramebufferHeight())

	for i := 0; i < *iterations; i++ {
		rt.Step(true)
	}

	data, iterCount, ok := rt.Framebuffer("")
	if !ok {
		logger.Errorf("no framebuffer after stepping")
		os.Exit(1)
	}
	logger.Infof("ran %d iteration(s), current_iteration_count=%d, current_sample_count=%d", *iterations, iterCount, rt.CurrentSampleCount())

	if err := writePNG(*out, data, rt.FramebufferWidth(), rt.FramebufferHeight(), iterCount); err != nil {
		logger.Errorf("writing %q: %v", *out, err)
		os.Exit(1)
	}
	logger.Infof("wrote %q", *out)

	fmt.Print(rt.Statistics().Dump())
}

// writePNG tonemaps the accumulated radiance by dividing out the
// iteration count and clamping to [0,1], the same "average then clamp"
// rule as device.Tonemap's TonemapClamp method (§4.6), since this command
// has no denoiser or real tonemap operator wired in.
func writePNG(path string, data []float32, w, h, iterCount int) error {
	if iterCount == 0 {
		iterCount = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			r := clamp01(data[i+0] / float32(iterCount))
			g := clamp01(data[i+1] / float32(iterCount))
			b := clamp01(data[i+2] / float32(iterCount))
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(r * 255),
				G: uint8(g * 255),
				B: uint8(b * 255),
				A: 255,
			})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
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

// registeringLoader wraps jsonloader.Loader so the reference shaders named
// by the parsed scene's technique are registered into registry right after
// parsing, before Runtime.LoadFromFile compiles variants by entry-point
// name.
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
