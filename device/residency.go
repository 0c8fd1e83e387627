package device

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// gpuResidency is a named wgpu.Buffer cache generalising
// GpuBufferManager.ensureBuffer to arbitrary buffer names instead of the
// teacher's fixed voxel buffer set: BVH node/leaf copies and dyntable/
// fixtable copies go through EnsureBuffer keyed by name. Stream buffers,
// named request buffers (ignis_request_buffer) and the image caches are
// host-side slices and do not go through it.
type gpuResidency struct {
	gpuDevice *wgpu.Device
	buffers   map[string]*wgpu.Buffer
}

func newGPUResidency(gpuDevice *wgpu.Device) *gpuResidency {
	return &gpuResidency{gpuDevice: gpuDevice, buffers: map[string]*wgpu.Buffer{}}
}

// EnsureBuffer allocates or reuses the named buffer, rounding its size to
// a multiple of 32 bytes and only reallocating when the requested size
// exceeds the current capacity (the spec's "Resize rule", §4.1). When
// data is non-nil it is uploaded after the buffer is sized. Reused only
// if the existing buffer is at least as large, matching
// ignis_request_buffer's "reused only if at least as large" rule.
func (r *gpuResidency) EnsureBuffer(name string, size uint64, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	rounded := roundUp32U64(size)
	usage = usage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

	current := r.buffers[name]
	if current == nil || current.GetSize() < rounded {
		desc := &wgpu.BufferDescriptor{
			Label:            name,
			Size:             rounded,
			Usage:            usage,
			MappedAtCreation: false,
		}
		newBuf, err := r.gpuDevice.CreateBuffer(desc)
		if err != nil {
			return nil, fmt.Errorf("device: allocate buffer %q: %w", name, err)
		}

		if current != nil && data == nil {
			encoder, err := r.gpuDevice.CreateCommandEncoder(nil)
			if err != nil {
				return nil, fmt.Errorf("device: preserve buffer %q on resize: %w", name, err)
			}
			encoder.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
			cmdBuf, err := encoder.Finish(nil)
			if err != nil {
				return nil, fmt.Errorf("device: finish resize copy for %q: %w", name, err)
			}
			r.gpuDevice.GetQueue().Submit(cmdBuf)
		}
		if current != nil {
			current.Release()
		}
		r.buffers[name] = newBuf
		current = newBuf
	}

	if len(data) > 0 {
		r.gpuDevice.GetQueue().WriteBuffer(current, 0, data)
	}
	return current, nil
}

// ReleaseAll destroys every residency buffer, used by Device.ReleaseAll
// for a mid-life reset (scene reload) or teardown.
func (r *gpuResidency) ReleaseAll() {
	for name, buf := range r.buffers {
		buf.Release()
		delete(r.buffers, name)
	}
}

func roundUp32U64(n uint64) uint64 {
	return (n + 31) &^ 31
}
