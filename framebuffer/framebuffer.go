// Package framebuffer implements the host radiance accumulator and its
// AOV map (§3.5): the "Color" AOV lives as HostFramebuffer.Main, every
// other declared AOV (Normals, Albedo, Denoised, ...) lives in the AOVs
// map keyed by name.
package framebuffer

// Image is one accumulator buffer: W*H*3 floats, a "mapped" flag (true
// when the host copy reflects the latest device copy; any device write
// invalidates it), the committed iteration_count, and the pending
// iter_diff for the iteration in flight.
type Image struct {
	Width, Height int
	Data          []float32
	Mapped        bool
	IterDiff      int32
	IterationCount int
}

// NewImage allocates a zeroed W*H*3 image, mapped (host and device agree
// on nothing having happened yet).
func NewImage(w, h int) *Image {
	return &Image{
		Width:  w,
		Height: h,
		Data:   make([]float32, w*h*3),
		Mapped: true,
	}
}

// Resize reallocates Data for new dimensions and resets iteration
// bookkeeping, matching Device.resize's "replaces them and resets
// iteration counts" rule.
func (img *Image) Resize(w, h int) {
	img.Width, img.Height = w, h
	img.Data = make([]float32, w*h*3)
	img.IterationCount = 0
	img.IterDiff = 0
	img.Mapped = true
}

// Clear zeroes the pixel data and resets iteration bookkeeping.
func (img *Image) Clear() {
	for i := range img.Data {
		img.Data[i] = 0
	}
	img.IterationCount = 0
	img.IterDiff = 0
	img.Mapped = true
}

// Invalidate marks the host copy stale; called whenever the device writes
// to this image without the host copy being refreshed in the same step.
func (img *Image) Invalidate() { img.Mapped = false }

// Pixel returns the (r,g,b) triple at (x,y).
func (img *Image) Pixel(x, y int) (r, g, b float32) {
	i := (y*img.Width + x) * 3
	return img.Data[i], img.Data[i+1], img.Data[i+2]
}

// SetPixel writes the (r,g,b) triple at (x,y).
func (img *Image) SetPixel(x, y int, r, g, b float32) {
	i := (y*img.Width + x) * 3
	img.Data[i], img.Data[i+1], img.Data[i+2] = r, g, b
}

// Set holds the main "Color" accumulator plus every declared AOV.
type Set struct {
	Main *Image
	AOVs map[string]*Image
}

// NewSet allocates the main accumulator at w*h and an empty AOV map; AOVs
// are added lazily via EnsureAOV as the technique declares them.
func NewSet(w, h int) *Set {
	return &Set{
		Main: NewImage(w, h),
		AOVs: map[string]*Image{},
	}
}

// EnsureAOV lazily allocates the named AOV at the framebuffer's current
// dimensions if it doesn't exist yet, matching ensure_framebuffer's
// "one array per declared AOV" rule.
func (s *Set) EnsureAOV(name string) *Image {
	if img, ok := s.AOVs[name]; ok {
		return img
	}
	img := NewImage(s.Main.Width, s.Main.Height)
	s.AOVs[name] = img
	return img
}

// Resolve returns the image for name; "" or "Color" means the main
// accumulator (§6.3 framebuffer() accessor rule).
func (s *Set) Resolve(name string) (*Image, bool) {
	if name == "" || name == "Color" {
		return s.Main, true
	}
	img, ok := s.AOVs[name]
	return img, ok
}

// Resize replaces the main accumulator and every AOV at new dimensions,
// resetting iteration counts.
func (s *Set) Resize(w, h int) {
	s.Main.Resize(w, h)
	for _, img := range s.AOVs {
		img.Resize(w, h)
	}
}

// Clear clears the main accumulator and every AOV when name is empty;
// otherwise it clears only the image name resolves to ("Color" being the
// main accumulator alone), matching §6.3 clear_framebuffer([name]).
func (s *Set) Clear(name string) {
	if name == "" {
		s.Main.Clear()
		for _, img := range s.AOVs {
			img.Clear()
		}
		return
	}
	if img, ok := s.Resolve(name); ok {
		img.Clear()
	}
}

// CommitIteration advances the main iteration count by one and every
// AOV's iteration count by its own iter_diff, unless lockFramebuffer is
// set, in which case only the AOVs' own iter_diff applies and the main
// count is untouched (§4.1 step 5, §3.5 "LockFramebuffer").
func (s *Set) CommitIteration(lockFramebuffer bool) {
	if !lockFramebuffer {
		s.Main.IterationCount++
		s.Main.IterDiff = 0
	}
	for _, img := range s.AOVs {
		img.IterationCount += int(img.IterDiff)
		img.IterDiff = 0
	}
}
