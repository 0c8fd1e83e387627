package streams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUp32(t *testing.T) {
	cases := map[int]int{0: 0, 1: 32, 31: 32, 32: 32, 33: 64, 64: 64, 65: 96}
	for in, want := range cases {
		assert.Equal(t, want, RoundUp32(in), "RoundUp32(%d)", in)
	}
}

func TestCeilTo4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8}
	for in, want := range cases {
		assert.Equal(t, want, CeilTo4(in), "CeilTo4(%d)", in)
	}
}

// TestStreamLayout checks property 1 from spec.md §8: for any capacity
// derived from round_up_32(N) and payload P, the layout reports
// ceil_to_4(min+P) components and the right capacity.
func TestStreamLayout(t *testing.T) {
	for _, n := range []int{1, 17, 32, 33, 100} {
		for _, payload := range []int{0, 1, 4, 5} {
			l := NewLayout(n, MinPrimaryComponents, payload)
			assert.Equal(t, RoundUp32(n), l.Capacity)
			assert.Equal(t, CeilTo4(MinPrimaryComponents+payload), l.Components)
		}
	}
}

// TestCapacityMonotonicity checks property 2: repeated EnsureCapacity
// calls with non-decreasing N never shrink and only reallocate on growth.
func TestCapacityMonotonicity(t *testing.T) {
	b := NewBuffer(10, MinPrimaryComponents, 0)
	cap0 := b.Layout.Capacity

	b.EnsureCapacity(5, MinPrimaryComponents)
	assert.Equal(t, cap0, b.Layout.Capacity, "shrink request must not shrink capacity")

	b.EnsureCapacity(10, MinPrimaryComponents)
	assert.Equal(t, cap0, b.Layout.Capacity, "same request must not reallocate")

	b.EnsureCapacity(100, MinPrimaryComponents)
	assert.Greater(t, b.Layout.Capacity, cap0, "growth request must reallocate larger")
}

func TestSideSwap(t *testing.T) {
	s := NewSide(32, MinPrimaryComponents, 0)
	r, w := s.Read(), s.Write()
	s.Swap()
	assert.Equal(t, w, s.Read())
	assert.Equal(t, r, s.Write())
}

func TestColumnViewLength(t *testing.T) {
	b := NewBuffer(33, MinPrimaryComponents, 0)
	col := b.Column(ColOrgX)
	assert.Len(t, col, b.Layout.Capacity)
}
