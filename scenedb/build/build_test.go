package build

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/scenedb"
)

func TestBuildSingleTriangle(t *testing.T) {
	b := &Builder{}
	blob := b.Build([]AABBItem{
		{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 0}, Centroid: mgl32.Vec3{0.5, 0.5, 0}, Index: 0},
	})
	require.Equal(t, scenedb.BVH2, blob.Width)
	assert.Len(t, blob.NodesBlob, scenedb.BVH2.NodeSize())
	assert.Len(t, blob.LeavesBlob, scenedb.BVH2.LeafSize())
}

func TestBuildEmpty(t *testing.T) {
	b := &Builder{}
	blob := b.Build(nil)
	assert.Len(t, blob.NodesBlob, scenedb.BVH2.NodeSize())
	assert.Empty(t, blob.LeavesBlob)
}

func TestBuildSplitsMultiplePrimitives(t *testing.T) {
	b := &Builder{}
	items := []AABBItem{
		{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}, Centroid: mgl32.Vec3{0.5, 0.5, 0.5}, Index: 0},
		{Min: mgl32.Vec3{10, 0, 0}, Max: mgl32.Vec3{11, 1, 1}, Centroid: mgl32.Vec3{10.5, 0.5, 0.5}, Index: 1},
	}
	blob := b.Build(items)
	// root + 2 leaves => 3 nodes
	assert.Equal(t, 3*scenedb.BVH2.NodeSize(), len(blob.NodesBlob))
	assert.Equal(t, 2*scenedb.BVH2.LeafSize(), len(blob.LeavesBlob))
}
