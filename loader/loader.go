// Package loader defines the Loader collaborator boundary (§6.2, §9):
// turning a scene description on disk into a SceneDatabase plus the
// per-variant shader source text the Runtime hands to the Compiler. The
// core itself never parses JSON/glTF; loader only names the interface
// and a minimal reference implementation lives in loader/jsonloader.
package loader

import (
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/variant"
)

// SlotSource is one compiled-shader-slot's source text plus its entry
// point name and local parameter set, as the Loader produces it ahead of
// Runtime.Compile (§4.2 "Compile").
type SlotSource struct {
	Source string
	Entry  string
	Local  *params.Set
}

// Empty reports whether this slot has no source, meaning the Runtime
// should skip compiling it (§4.2: "each slot with non-empty source").
func (s SlotSource) Empty() bool { return s.Source == "" }

// VariantSource is one technique variant's full slot set in source form,
// paired with the metadata the Runtime needs to drive dispatch.
type VariantSource struct {
	DeviceShader       SlotSource
	RayGen             SlotSource
	PrimaryTraversal   SlotSource
	SecondaryTraversal SlotSource
	Miss               SlotSource
	Hit                []SlotSource // indexed by material id
	AdvShadowHit       []SlotSource
	AdvShadowMiss      []SlotSource
	BeforeIteration    SlotSource
	AfterIteration     SlotSource
	Tonemap            SlotSource
	ImageInfo          SlotSource
	Info               variant.TechniqueVariantInfo
}

// CameraOrientation is the Eye/Dir/Up triple a Loader derives from the
// scene's declared camera, before any interactive navigation moves it
// (§6.3 initial_camera_orientation).
type CameraOrientation struct {
	Eye, Dir, Up [3]float32
}

// Result is the LoaderResult §6.2 names: the enabled AOV list, every
// variant's shader source, the technique's selector, and the resource map
// used to translate numeric resource ids to paths.
type Result struct {
	EnabledAOVs       []string
	Variants          []VariantSource
	Selector          variant.Selector
	ResourceMap       []string
	EntityMaterial    []int32
	MaterialCount     int
	FilmWidth         int
	FilmHeight        int
	TechniqueName     string
	CameraName        string
	CameraOrientation CameraOrientation
}

// Loader turns a scene file into a built SceneDatabase plus a Result.
// Scene parsing itself (JSON/glTF/BSDF/light/camera/texture definitions)
// is out of scope for the core per spec.md §1; this interface is the
// seam a real asset pipeline plugs into.
type Loader interface {
	Load(path string) (*scenedb.SceneDatabase, Result, error)
}
