// Package variant implements the shader variant pipeline data model
// (§3.7, §3.8): one ShaderVariant per technique pass, composing ray
// generation, traversal, hit/miss, advanced-shadow, callback, tonemap
// and imageinfo slots (there is no "pass" slot), plus the
// TechniqueInfo/TechniqueVariantInfo
// describing how a set of variants is selected per iteration.
package variant

import (
	"github.com/google/uuid"

	"github.com/ignis-render/ignis/params"
)

// ShaderFunc is the compiled function-pointer type every slot holds: the
// generated driver routine the Device calls with a pointer to the current
// DriverSettings block. The concrete signature is opaque to the core past
// this point — it is whatever the Compiler collaborator produced.
type ShaderFunc func(settings *DriverSettings) int32

// DriverSettings is the plain struct of ints/floats the Device passes to
// every shader dispatch (§4.1 step 3, §6.1). The Device zero-initialises
// and overwrites it per iteration.
type DriverSettings struct {
	DeviceIndex uint32
	SPI         uint32
	Frame       uint32
	Iteration   uint32
	Width       uint32
	Height      uint32
	Seed        uint32
}

// Slot pairs a compiled function pointer with the local parameter set
// filled in at compile time (§3.7: "{exec: function_ptr, local_registry:
// ParameterSet}").
type Slot struct {
	Exec  ShaderFunc
	Local *params.Set
}

// Empty reports whether the slot has no compiled function, used to skip
// optional slots (advanced shadow, callbacks, tonemap, imageinfo) that a
// variant did not declare.
func (s Slot) Empty() bool { return s.Exec == nil }

// ShaderVariant is one pass within a technique, carrying its own id and
// slot set. hit/adv_shadow_hit/adv_shadow_miss are indexed by material id;
// their length equals the scene's unique material count.
type ShaderVariant struct {
	ID                uuid.UUID
	DeviceShader      Slot
	PrimaryTraversal  Slot
	SecondaryTraversal Slot
	RayGen            Slot
	Miss              Slot
	Hit               []Slot
	AdvShadowHit      []Slot
	AdvShadowMiss     []Slot
	BeforeIteration   Slot
	AfterIteration    Slot
	Tonemap           Slot
	ImageInfo         Slot
}

// NewShaderVariant returns a ShaderVariant with a fresh id and a hit/
// adv-shadow slot table sized to materialCount, matching §3.7's
// "hit[] length equals the scene's unique material count" rule.
func NewShaderVariant(materialCount int) *ShaderVariant {
	return &ShaderVariant{
		ID:            uuid.New(),
		Hit:           make([]Slot, materialCount),
		AdvShadowHit:  make([]Slot, materialCount),
		AdvShadowMiss: make([]Slot, materialCount),
	}
}

// ShadowMode is the shadow-handling mode a TechniqueVariantInfo declares.
type ShadowMode int

const (
	ShadowSimple ShadowMode = iota
	ShadowAdvanced
	ShadowAdvancedWithMaterials
)

// TechniqueVariantInfo carries the per-variant metadata the Runtime needs
// to drive dispatch (§3.8).
type TechniqueVariantInfo struct {
	ShadowHandling      ShadowMode
	UsesLights          bool
	UsesMedia           bool
	PrimaryPayloadCount int
	SecondaryPayloadCount int
	WidthOverride       int // 0 = use framebuffer width
	HeightOverride      int // 0 = use framebuffer height
	LockFramebuffer     bool
	SPIOverride         int // 0 = use runtime's recommended SPI
}

// Selector picks the active variant indices for the given iteration index.
// A nil Selector means "run all variants in order" (§3.8).
type Selector func(iteration int) []int

// TechniqueInfo is the per-technique description consumed by the Runtime:
// the AOVs it declares and the variants it dispatches.
type TechniqueInfo struct {
	EnabledAOVs []string
	Variants    []TechniqueVariantInfo
	Selector    Selector
}

// ActiveVariants resolves which variant indices run for iteration i,
// applying the "nil selector means all variants in order" default.
func (t *TechniqueInfo) ActiveVariants(iteration int) []int {
	if t.Selector != nil {
		return t.Selector(iteration)
	}
	all := make([]int, len(t.Variants))
	for i := range all {
		all[i] = i
	}
	return all
}

// AdvancedShadowIndex resolves the material index to dispatch
// ignis_handle_advanced_shadow_shader with, per the open question in
// spec.md §9: Advanced mode always dispatches index 0 regardless of
// material id; AdvancedWithMaterials dispatches the given material id.
func AdvancedShadowIndex(mode ShadowMode, materialID int) int {
	if mode == ShadowAdvancedWithMaterials {
		return materialID
	}
	return 0
}
