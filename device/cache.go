package device

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ignis-render/ignis/ignislog"
	"github.com/ignis-render/ignis/stats"
)

// FallbackMagenta is the 1x1 RGBA(1,0,1,1) image substituted on any
// decode failure (§4.5, testable property 9).
var FallbackMagenta = FloatImage{Width: 1, Height: 1, Pixels: []float32{1, 0, 1, 1}}

// FloatImage is a float-RGBA image as the core's image cache stores it.
type FloatImage struct {
	Width, Height int
	Pixels        []float32 // len == Width*Height*4
}

// PackedImage is the 8-bit RGBA packed-image cache's stored form.
type PackedImage struct {
	Width, Height int
	Pixels        []byte // len == Width*Height*4
}

// resourcePathResolver turns a resource id or relative filename into an
// absolute path before the image/buffer cache keys on it, adapted from
// the original CacheManager's directory-scoped resolution (it resolves
// names against a cache directory; here against the scene's resource
// base directory and, for ids, the scene's resource_map array). Per §9's
// open question, an out-of-range resource id is a programmer error the
// core cannot validate — it panics rather than returning an error.
type resourcePathResolver struct {
	baseDir     string
	resourceMap []string
}

func newResourcePathResolver(baseDir string, resourceMap []string) *resourcePathResolver {
	return &resourcePathResolver{baseDir: baseDir, resourceMap: resourceMap}
}

// ResolveID resolves a resource id from the generated shader's
// resource_map. Out-of-range ids abort the process (spec.md §9).
func (r *resourcePathResolver) ResolveID(id int) string {
	if id < 0 || id >= len(r.resourceMap) {
		panic(fmt.Sprintf("device: resource id %d out of range (resource_map has %d entries)", id, len(r.resourceMap)))
	}
	return r.ResolvePath(r.resourceMap[id])
}

// ResolvePath resolves a possibly-relative path against the base
// directory into an absolute path suitable for cache keying.
func (r *resourcePathResolver) ResolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.baseDir, name)
}

// imageCache caches decoded float-RGBA images per absolute path, and
// tracks {counter, memory_usage} against the shader key that triggered
// each load (§4.5 "Size tracking").
type imageCache struct {
	mu      sync.Mutex
	images  map[string]FloatImage
	packed  map[string]PackedImage
	buffers map[string][]byte

	usage  map[stats.ShaderKey]int64
	counts map[stats.ShaderKey]int64

	logger ignislog.Logger
}

func newImageCache(logger ignislog.Logger) *imageCache {
	return &imageCache{
		images:  map[string]FloatImage{},
		packed:  map[string]PackedImage{},
		buffers: map[string][]byte{},
		usage:   map[stats.ShaderKey]int64{},
		counts:  map[stats.ShaderKey]int64{},
		logger:  ignislog.Or(logger),
	}
}

// LoadImage returns the cached float-RGBA image for path, decoding and
// caching it on first access. A decode failure logs an error and
// substitutes FallbackMagenta (§4.5 "Load failure policy"). Calling twice
// with the same path returns bit-identical contents and increments the
// current shader key's load counter by one per call (testable property 8).
func (c *imageCache) LoadImage(path string, key stats.ShaderKey) FloatImage {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[key]++
	if img, ok := c.images[path]; ok {
		return img
	}

	img, err := decodeFloatImage(path)
	if err != nil {
		c.logger.Errorf("image load failed for %q: %v", path, err)
		img = FallbackMagenta
	}
	c.images[path] = img
	c.usage[key] += int64(len(img.Pixels) * 4)
	return img
}

// LoadPackedImage is LoadImage's 8-bit sibling: linear vs sRGB decoding is
// the caller's concern, this only decodes and downsamples to 4-byte RGBA.
func (c *imageCache) LoadPackedImage(path string, key stats.ShaderKey) PackedImage {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[key]++
	if img, ok := c.packed[path]; ok {
		return img
	}

	img, err := decodePackedImage(path)
	if err != nil {
		c.logger.Errorf("packed image load failed for %q: %v", path, err)
		img = PackedImage{Width: 1, Height: 1, Pixels: []byte{255, 0, 255, 255}}
	}
	c.packed[path] = img
	c.usage[key] += int64(len(img.Pixels))
	return img
}

// LoadBuffer returns the cached raw bytes for path (or a named request
// buffer such as __dbg_output), reading from disk on first access.
func (c *imageCache) LoadBuffer(path string, key stats.ShaderKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[key]++
	if b, ok := c.buffers[path]; ok {
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("device: load buffer %q: %w", path, err)
	}
	c.buffers[path] = b
	c.usage[key] += int64(len(b))
	return b, nil
}

// MemoryUsage returns the bytes attributed to key across every load.
func (c *imageCache) MemoryUsage(key stats.ShaderKey) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage[key]
}

// LoadCount returns the number of load calls attributed to key.
func (c *imageCache) LoadCount(key stats.ShaderKey) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func decodeFloatImage(path string) (FloatImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return FloatImage{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return FloatImage{}, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := FloatImage{Width: w, Height: h, Pixels: make([]float32, w*h*4)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			out.Pixels[i+0] = float32(r) / 65535.0
			out.Pixels[i+1] = float32(g) / 65535.0
			out.Pixels[i+2] = float32(b) / 65535.0
			out.Pixels[i+3] = float32(a) / 65535.0
		}
	}
	return out, nil
}

func decodePackedImage(path string) (PackedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return PackedImage{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return PackedImage{}, err
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return PackedImage{Width: dst.Rect.Dx(), Height: dst.Rect.Dy(), Pixels: dst.Pix}, nil
}
