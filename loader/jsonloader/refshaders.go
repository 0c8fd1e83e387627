package jsonloader

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ignis-render/ignis/compiler"
	"github.com/ignis-render/ignis/device"
	"github.com/ignis-render/ignis/variant"
)

// RegisterReferenceShaders binds the jsonloader's only two shader
// entry points ("ref_hitmask", "ref_normals") into registry, closing over
// dev and scene. This stands in for the out-of-scope shader-generation
// backend (spec.md §1): a real pipeline would decode the scene database's
// opaque BVH/dyntable bytes inside a compiled traversal shader, but this
// reference closure reads the parsed Scene directly, since it exists only
// to drive the Scenario A/B/C tests and the ignisctl demo, not a
// production render path. Supports exactly one emissive triangle — the
// only case the spec's scenario suite requires.
func RegisterReferenceShaders(registry *compiler.FuncRegistry, dev *device.Device, scene Scene) {
	registry.Register("ref_hitmask", hitMaskShader(dev, scene))
	registry.Register("ref_normals", normalsShader(dev, scene))
}

// cameraBasis derives the orthonormal (forward, right, up) frame for
// cam.Dir, falling back to a different world-up candidate when Dir is
// already (near-)parallel to the default one. Shared by pinholeRay and
// the loader's initial_camera_orientation derivation (§6.3) so both
// agree on the same "up" convention.
func cameraBasis(dir [3]float32) (forward, right, up mgl32.Vec3) {
	forward = mgl32.Vec3(dir).Normalize()
	worldUp := mgl32.Vec3{0, 1, 0}
	right = worldUp.Cross(forward)
	if right.Len() < 1e-6 {
		worldUp = mgl32.Vec3{1, 0, 0}
		right = worldUp.Cross(forward)
	}
	right = right.Normalize()
	up = forward.Cross(right).Normalize()
	return
}

// pinholeRay returns the world-space ray direction for pixel (px,py) of a
// w*h image under the given camera, using the convention derived so that
// a centered subject hits the image center: both screen axes map
// linearly to [-1,1] with no vertical flip, scaled by tan(vfov/2) and the
// aspect ratio on the horizontal axis.
func pinholeRay(cam Camera, px, py, w, h int) (org, dir mgl32.Vec3) {
	forward, right, up := cameraBasis(cam.Dir)

	halfFov := float32(math.Tan(float64(cam.VFov) * math.Pi / 360.0))
	aspect := float32(w) / float32(h)

	u := (float32(px)+0.5)/float32(w)*2 - 1
	v := (float32(py)+0.5)/float32(h)*2 - 1

	dir = forward.Add(right.Mul(u * aspect * halfFov)).Add(up.Mul(v * halfFov)).Normalize()
	org = mgl32.Vec3(cam.Eye)
	return
}

// intersectTriangle is a standard Moller-Trumbore ray/triangle test,
// inclusive of edges and vertices so a ray landing exactly on a boundary
// (as Scenario B's first trace ray does) still counts as a hit.
func intersectTriangle(org, dir, v0, v1, v2 mgl32.Vec3) (t float32, hit bool) {
	const epsilon = 1e-7
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return 0, false // ray parallel to triangle plane
	}
	f := 1.0 / a
	s := org.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(edge1)
	vv := f * dir.Dot(q)
	if vv < 0 || u+vv > 1 {
		return 0, false
	}
	t = f * edge2.Dot(q)
	if t < epsilon {
		return 0, false
	}
	return t, true
}

func triangleNormal(v0, v1, v2 mgl32.Vec3) mgl32.Vec3 {
	return v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
}

// hitMaskShader writes the hit triangle's radiance into the main
// accumulator for every pixel whose camera ray intersects it, 0 otherwise
// — the minimal "technique" the reference loader supports in place of a
// real AO/path-tracing kernel (out of scope per spec.md §1).
func hitMaskShader(dev *device.Device, scene Scene) variant.ShaderFunc {
	return func(settings *variant.DriverSettings) int32 {
		data, w, h := dev.GetFilmData()
		if data == nil || len(scene.Triangles) == 0 {
			return 0
		}
		tri := scene.Triangles[0]
		v0, v1, v2 := mgl32.Vec3(tri.V0), mgl32.Vec3(tri.V1), mgl32.Vec3(tri.V2)

		if rays := dev.GetTraceRays(); rays != nil {
			count := len(rays) / 8
			for i := 0; i < count && i < w*h; i++ {
				org := mgl32.Vec3{rays[i*8+0], rays[i*8+1], rays[i*8+2]}
				dir := mgl32.Vec3{rays[i*8+3], rays[i*8+4], rays[i*8+5]}
				o := i * 3
				if _, hit := intersectTriangle(org, dir, v0, v1, v2); hit {
					data[o+0] = tri.Radiance[0]
					data[o+1] = tri.Radiance[1]
					data[o+2] = tri.Radiance[2]
				} else {
					data[o+0], data[o+1], data[o+2] = 0, 0, 0
				}
			}
			return 0
		}

		for py := 0; py < h; py++ {
			for px := 0; px < w; px++ {
				org, dir := pinholeRay(scene.Camera, px, py, w, h)
				i := (py*w + px) * 3
				if _, hit := intersectTriangle(org, dir, v0, v1, v2); hit {
					data[i+0] = tri.Radiance[0]
					data[i+1] = tri.Radiance[1]
					data[i+2] = tri.Radiance[2]
				} else {
					data[i+0], data[i+1], data[i+2] = 0, 0, 0
				}
			}
		}
		return 0
	}
}

// normalsShader writes the hit triangle's camera-facing normal (flipped
// to oppose the incoming ray, the usual shading convention) into the
// "Normals" AOV, advancing its iter_diff by one so CommitIteration bumps
// its iteration count despite this variant locking the main framebuffer.
func normalsShader(dev *device.Device, scene Scene) variant.ShaderFunc {
	return func(settings *variant.DriverSettings) int32 {
		aov := dev.GetAOVImage("Normals")
		if aov == nil || len(scene.Triangles) == 0 {
			return 0
		}
		tri := scene.Triangles[0]
		v0, v1, v2 := mgl32.Vec3(tri.V0), mgl32.Vec3(tri.V1), mgl32.Vec3(tri.V2)
		normal := triangleNormal(v0, v1, v2)

		w, h := aov.Width, aov.Height
		for py := 0; py < h; py++ {
			for px := 0; px < w; px++ {
				org, dir := pinholeRay(scene.Camera, px, py, w, h)
				i := (py*w + px) * 3
				if _, hit := intersectTriangle(org, dir, v0, v1, v2); hit {
					facing := normal
					if facing.Dot(dir) > 0 {
						facing = facing.Mul(-1)
					}
					aov.Data[i+0] = facing.X()
					aov.Data[i+1] = facing.Y()
					aov.Data[i+2] = facing.Z()
				}
			}
		}
		aov.IterDiff = int32(1)
		return 0
	}
}
