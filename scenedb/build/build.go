// Package build is a reference/test-only BVH constructor. It is NOT the
// production scene-database population path — the real BVH builder is an
// external collaborator the core only consumes as opaque bytes (spec.md
// §1 Out of scope). This package exists so the reference Loader
// (loader/jsonloader) and the Scenario A/B/C tests have a way to produce a
// scenedb.BVHBlob from a list of primitive bounding boxes without
// depending on an actual BVH library.
package build

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ignis-render/ignis/scenedb"
)

// AABBItem is one primitive's bounding box fed to the builder, tagged with
// its original index so LeafFirst/LeafCount can reference it.
type AABBItem struct {
	Min, Max mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

type node struct {
	Min, Max               mgl32.Vec3
	Left, Right            int32
	LeafFirst, LeafCount   int32
}

func (n *node) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))
}

// Builder constructs a BVH2 (2-wide) node blob by recursive median-split
// over the widest axis, the same algorithm the teacher's TLASBuilder uses
// for its voxel-object TLAS.
type Builder struct{}

// Build returns a scenedb.BVHBlob for the given primitive bounds. Leaves
// are packed one AABBItem.Index (as a little-endian uint32) per
// scenedb.BVH2.LeafSize()-sized leaf entry, the remaining bytes zeroed —
// the leaf record layout itself belongs to the traversal shader's opaque
// contract, which test fixtures never inspect beyond this index.
func (b *Builder) Build(items []AABBItem) scenedb.BVHBlob {
	width := scenedb.BVH2
	if len(items) == 0 {
		return scenedb.BVHBlob{
			Width:      width,
			NodesBlob:  make([]byte, width.NodeSize()),
			LeavesBlob: nil,
		}
	}

	sortable := make([]AABBItem, len(items))
	copy(sortable, items)

	var nodes []node
	b.recursiveBuild(sortable, &nodes)

	nodesBlob := make([]byte, len(nodes)*width.NodeSize())
	for i, n := range nodes {
		n.encode(nodesBlob[i*width.NodeSize() : (i+1)*width.NodeSize()])
	}

	leavesBlob := make([]byte, len(items)*width.LeafSize())
	for i, it := range sortable {
		_ = it
		binary.LittleEndian.PutUint32(leavesBlob[i*width.LeafSize():], uint32(sortable[i].Index))
	}

	return scenedb.BVHBlob{Width: width, NodesBlob: nodesBlob, LeavesBlob: leavesBlob}
}

func (b *Builder) recursiveBuild(items []AABBItem, nodes *[]node) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, it := range items {
		minB = componentMin(minB, it.Min)
		maxB = componentMax(maxB, it.Max)
	}
	(*nodes)[idx].Min = minB
	(*nodes)[idx].Max = maxB

	if len(items) == 1 {
		(*nodes)[idx].LeafFirst = int32(items[0].Index)
		(*nodes)[idx].LeafCount = 1
		return idx
	}

	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent[axis] {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	(*nodes)[idx].Left = b.recursiveBuild(items[:mid], nodes)
	(*nodes)[idx].Right = b.recursiveBuild(items[mid:], nodes)
	return idx
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minF(a.X(), b.X()), minF(a.Y(), b.Y()), minF(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxF(a.X(), b.X()), maxF(a.Y(), b.Y()), maxF(a.Z(), b.Z())}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
