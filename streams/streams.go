// Package streams implements the structure-of-arrays ray/hit stream
// buffers (§3.4, §4.3): RayStream's fixed columns, PrimaryStream and
// SecondaryStream extending it with technique-defined payload columns,
// and the double-buffered primary/secondary pair a GPU dispatch swaps
// between read and write sides.
package streams

// MinRayComponents is the fixed column count of RayStream:
// id, org_x, org_y, org_z, dir_x, dir_y, dir_z, tmin, tmax.
const MinRayComponents = 9

// MinPrimaryComponents is RayStream's columns plus PrimaryStream's own:
// ent_id, prim_id, t, u, v, rnd, mis, contrib_r, contrib_g, contrib_b, depth.
const MinPrimaryComponents = MinRayComponents + 11

// MinSecondaryComponents is RayStream's columns plus SecondaryStream's
// own: mat_id, color_r, color_g, color_b.
const MinSecondaryComponents = MinRayComponents + 4

// RoundUp32 rounds n up to the next multiple of 32, as required for every
// stream/buffer resize in the core.
func RoundUp32(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 31) &^ 31
}

// CeilTo4 rounds n up to the next multiple of 4, used to derive the
// actual per-ray component count from min-components plus payload width.
func CeilTo4(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 3) &^ 3
}

// Layout describes one allocated stream buffer: its rounded capacity (in
// rays) and total component count (columns), from which column byte/float
// offsets are derived.
type Layout struct {
	Capacity   int // rounded up to a multiple of 32
	Components int // ceil_to_4(minComponents + payload)
}

// NewLayout computes the Layout for a requested ray count and payload
// width given a stream kind's minimum component count.
func NewLayout(requested int, minComponents int, payload int) Layout {
	return Layout{
		Capacity:   RoundUp32(requested),
		Components: CeilTo4(minComponents + payload),
	}
}

// Elements is the total number of float/int elements backing this layout:
// capacity * components, per the spec's stream allocation rule.
func (l Layout) Elements() int {
	return l.Capacity * l.Components
}

// RayColumns indexes the fixed RayStream columns within a backing array of
// stride Capacity.
type RayColumns struct {
	ID                 []int32
	OrgX, OrgY, OrgZ   []float32
	DirX, DirY, DirZ   []float32
	TMin, TMax         []float32
}

// PrimaryColumns indexes RayStream's columns plus PrimaryStream's own,
// plus a variant-defined payload block.
type PrimaryColumns struct {
	RayColumns
	EntID, PrimID                []int32
	T, U, V                      []float32
	Rnd                          []uint32
	MIS                          []float32
	ContribR, ContribG, ContribB []float32
	Depth                        []int32
	Payload                      [][]float32
}

// SecondaryColumns indexes RayStream's columns plus SecondaryStream's own,
// plus a variant-defined payload block.
type SecondaryColumns struct {
	RayColumns
	MatID                  []int32
	ColorR, ColorG, ColorB []float32
	Payload                [][]float32
}

// Buffer is a single contiguous backing array for one stream side, viewed
// as separate column slices. Capacity changes only through EnsureCapacity,
// which replaces the backing array, matching the original's resize_array:
// grow-only, content is not preserved across a capacity change because a stream's contents do not survive past the
// iteration they were produced in.
type Buffer struct {
	Layout  Layout
	payload int
	data    []float32
}

// NewBuffer allocates a buffer able to hold at least requested rays with
// the given minComponents/payload combination.
func NewBuffer(requested, minComponents, payload int) *Buffer {
	layout := NewLayout(requested, minComponents, payload)
	return &Buffer{
		Layout:  layout,
		payload: payload,
		data:    make([]float32, layout.Elements()),
	}
}

// EnsureCapacity grows the buffer in place (by reallocating) if requested
// exceeds the current capacity; it never shrinks. Matches the "only
// reallocates when larger" resize rule.
func (b *Buffer) EnsureCapacity(requested, minComponents int) {
	needed := NewLayout(requested, minComponents, b.payload)
	if needed.Capacity <= b.Layout.Capacity && needed.Components == b.Layout.Components {
		return
	}
	if needed.Capacity < b.Layout.Capacity {
		needed.Capacity = b.Layout.Capacity
	}
	b.Layout = needed
	b.data = make([]float32, needed.Elements())
}

// Column returns a view over the i-th column (0-indexed in declared
// order) as a slice of length Layout.Capacity, backed by the buffer's
// storage.
func (b *Buffer) Column(i int) []float32 {
	start := i * b.Layout.Capacity
	return b.data[start : start+b.Layout.Capacity]
}

// ColumnInt32 returns a copy of a column with each float value converted
// to int32, for the id/ent_id/prim_id/depth/mat_id columns; writes to the
// returned slice do not reach the buffer.
func (b *Buffer) ColumnInt32(i int) []int32 {
	f := b.Column(i)
	out := make([]int32, len(f))
	for j := range f {
		out[j] = int32(f[j])
	}
	return out
}

// RayStream column indices, in the fixed §3.4 order.
const (
	ColID = iota
	ColOrgX
	ColOrgY
	ColOrgZ
	ColDirX
	ColDirY
	ColDirZ
	ColTMin
	ColTMax
	rayColumnCount
)

// PrimaryStream's columns after RayStream's.
const (
	ColEntID = rayColumnCount + iota
	ColPrimID
	ColT
	ColU
	ColV
	ColRnd
	ColMIS
	ColContribR
	ColContribG
	ColContribB
	ColDepth
	primaryFixedColumnCount
)

// SecondaryStream's columns after RayStream's.
const (
	ColMatID = rayColumnCount + iota
	ColColorR
	ColColorG
	ColColorB
	secondaryFixedColumnCount
)

// PrimaryFixedColumns is the column count PrimaryStream occupies before
// any payload columns, matching MinPrimaryComponents before ceil_to_4.
const PrimaryFixedColumns = primaryFixedColumnCount

// SecondaryFixedColumns is the column count SecondaryStream occupies
// before any payload columns, matching MinSecondaryComponents.
const SecondaryFixedColumns = secondaryFixedColumnCount

// Side double-buffers a primary or secondary stream: one side is read by
// the current dispatch, the other is written, and Swap exchanges them.
// There is no synchronisation primitive: each iteration runs sequentially
// from the coordinator's perspective (§4.3).
type Side struct {
	read, write *Buffer
}

// NewSide allocates both sides with the same initial capacity/payload.
func NewSide(requested, minComponents, payload int) *Side {
	return &Side{
		read:  NewBuffer(requested, minComponents, payload),
		write: NewBuffer(requested, minComponents, payload),
	}
}

// Read returns the current read-side buffer.
func (s *Side) Read() *Buffer { return s.read }

// Write returns the current write-side buffer.
func (s *Side) Write() *Buffer { return s.write }

// Swap exchanges the read and write buffers.
func (s *Side) Swap() { s.read, s.write = s.write, s.read }

// EnsureCapacity grows both sides to at least requested rays.
func (s *Side) EnsureCapacity(requested, minComponents int) {
	s.read.EnsureCapacity(requested, minComponents)
	s.write.EnsureCapacity(requested, minComponents)
}
