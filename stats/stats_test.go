package stats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestStatisticsMonotonicity checks property 10: with stats enabled,
// count and workload (duration) for every shader key are monotonically
// non-decreasing across consecutive begin/end pairs.
func TestStatisticsMonotonicity(t *testing.T) {
	s := New()
	key := ShaderKey{VariantID: uuid.New(), Kind: KindRayGeneration}

	var prevCount int64
	var prevDur time.Duration
	for i := 0; i < 3; i++ {
		s.BeginShader(key)
		time.Sleep(time.Microsecond)
		s.EndShader(key)

		assert.GreaterOrEqual(t, s.ShaderCount(key), prevCount)
		assert.GreaterOrEqual(t, s.ShaderDuration(key), prevDur)
		prevCount = s.ShaderCount(key)
		prevDur = s.ShaderDuration(key)
	}
	assert.Equal(t, int64(3), prevCount)
}

func TestMergeCombinesQuantities(t *testing.T) {
	a := New()
	a.Add(QuantityCameraRays, 10)
	b := New()
	b.Add(QuantityCameraRays, 5)
	b.Add(QuantityShadowRays, 2)

	a.Merge(b)

	assert.Equal(t, int64(15), a.Quantity(QuantityCameraRays))
	assert.Equal(t, int64(2), a.Quantity(QuantityShadowRays))
}

func TestPrimaryAndTotalRays(t *testing.T) {
	s := New()
	s.Add(QuantityCameraRays, 10)
	s.Add(QuantityBounceRays, 4)
	s.Add(QuantityShadowRays, 3)

	assert.Equal(t, int64(14), s.PrimaryRays())
	assert.Equal(t, int64(17), s.TotalRays())
}

func TestDumpContainsSections(t *testing.T) {
	s := New()
	key := ShaderKey{VariantID: uuid.New(), Kind: KindHit, SubID: 2}
	s.BeginShader(key)
	s.EndShader(key)
	s.BeginSection(SectionImageLoading)
	s.EndSection(SectionImageLoading)

	dump := s.Dump()
	assert.Contains(t, dump, "Hit[2]")
	assert.Contains(t, dump, "ImageLoading")
	assert.Contains(t, dump, "PrimaryRays")
}
