// Package scenedb implements the scene database access layer (§3.2): BVH
// node/leaf blobs in 2/4/8-wide variants, dynamic tables of variable-length
// records, fixed tables of uniform records, and the scene bounding box.
// A SceneDatabase is built once by the Loader collaborator and handed to
// the Device via assign_scene; it is never mutated afterwards.
package scenedb

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BVHWidth is the tagged sum over {2,4,8}-wide BVH node layouts.
type BVHWidth int

const (
	BVH2 BVHWidth = 2
	BVH4 BVHWidth = 4
	BVH8 BVHWidth = 8
)

// NodeSize returns the fixed per-node byte size for this width, per §3.2's
// "64B/96B (2-wide), 128B/? (4-wide), 256B/? (8-wide)" table. The core
// treats the blob contents as opaque beyond this size used for
// partitioning; only BVH2's leaf size (96B) is named explicitly in the
// spec, the others are derived by doubling per child-count as the traversal
// shaders the core never inspects dictate their own packed layout.
func (w BVHWidth) NodeSize() int {
	switch w {
	case BVH2:
		return 64
	case BVH4:
		return 128
	case BVH8:
		return 256
	default:
		return 0
	}
}

// LeafSize returns the fixed per-leaf-entry byte size for this width.
func (w BVHWidth) LeafSize() int {
	switch w {
	case BVH2:
		return 96
	case BVH4:
		return 192
	case BVH8:
		return 384
	default:
		return 0
	}
}

// BVHBlob is the opaque node/leaf byte pair for one (primitive type, width)
// combination. The core never interprets the bytes; it only copies them
// into device residency and hands pointers to the generated traversal
// shader.
type BVHBlob struct {
	Width      BVHWidth
	NodesBlob  []byte
	LeavesBlob []byte
}

// LookupEntry is the 16-byte {u32 TypeID, u32 Flags, u64 Offset} record
// generated shader code assumes for every dyntable entry (§6.1).
type LookupEntry struct {
	TypeID uint32
	Flags  uint32
	Offset uint64
}

// DynTable is a named blob carrying variable-length records indexed by
// LookupEntry. Each lookup's Offset must be within Data, and offsets are
// monotonically non-decreasing under insertion order (§3.2 invariant).
type DynTable struct {
	Lookups []LookupEntry
	Data    []byte
}

// Validate checks the dyntable invariant: every lookup offset is within
// Data and offsets are non-decreasing in insertion order.
func (t *DynTable) Validate() error {
	var prev uint64
	for i, l := range t.Lookups {
		if l.Offset > uint64(len(t.Data)) {
			return fmt.Errorf("scenedb: dyntable lookup %d offset %d exceeds data length %d", i, l.Offset, len(t.Data))
		}
		if i > 0 && l.Offset < prev {
			return fmt.Errorf("scenedb: dyntable lookup %d offset %d is less than previous offset %d", i, l.Offset, prev)
		}
		prev = l.Offset
	}
	return nil
}

// FixTable is a named blob carrying uniform-size records with an explicit
// entry count.
type FixTable struct {
	Data       []byte
	EntryCount int
}

// SceneDatabase is the immutable-after-load scene data the Device resides
// over. All maps are keyed by name except BVHs, keyed by primitive-type
// tag.
type SceneDatabase struct {
	BVHs          map[string]BVHBlob
	DynTables     map[string]*DynTable
	FixTables     map[string]*FixTable
	MaterialCount int
	SceneBBoxMin  mgl32.Vec3
	SceneBBoxMax  mgl32.Vec3
	SceneRadius   float32
}

// New returns an empty SceneDatabase ready for the Loader to populate.
func New() *SceneDatabase {
	return &SceneDatabase{
		BVHs:      map[string]BVHBlob{},
		DynTables: map[string]*DynTable{},
		FixTables: map[string]*FixTable{},
	}
}

// Validate checks the dyntable invariants of §3.2: offsets within bounds
// and monotonic. Fixtables are not checked.
func (db *SceneDatabase) Validate() error {
	for name, t := range db.DynTables {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("scenedb: table %q: %w", name, err)
		}
	}
	return nil
}

// EntityCount recomputes the entity count from the "entities" fix table,
// matching Device.assign_scene's "recomputes entity_count from the
// entities fix table" rule.
func (db *SceneDatabase) EntityCount() int {
	t, ok := db.FixTables["entities"]
	if !ok {
		return 0
	}
	return t.EntryCount
}

// PreferredWidth picks the BVH width for a target, per §9's design note:
// narrower (2) for GPU targets, wider (4 generic CPU, 8 AVX-like CPU)
// otherwise. avxLike selects between the two CPU tiers; the Loader is
// responsible for actually building at this width, this helper only
// encodes the selection rule the core must respect.
func PreferredWidth(isGPU, avxLike bool) BVHWidth {
	if isGPU {
		return BVH2
	}
	if avxLike {
		return BVH8
	}
	return BVH4
}
