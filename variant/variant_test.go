package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvancedShadowIndex(t *testing.T) {
	assert.Equal(t, 0, AdvancedShadowIndex(ShadowAdvanced, 7), "Advanced mode is material-agnostic")
	assert.Equal(t, 7, AdvancedShadowIndex(ShadowAdvancedWithMaterials, 7))
	assert.Equal(t, 0, AdvancedShadowIndex(ShadowSimple, 7))
}

func TestActiveVariantsDefaultsToAllInOrder(t *testing.T) {
	info := &TechniqueInfo{Variants: make([]TechniqueVariantInfo, 3)}
	assert.Equal(t, []int{0, 1, 2}, info.ActiveVariants(5))
}

// TestVariantSelectorRespected checks property 5: a selector alternating
// [0]/[1] by iteration parity yields exactly one dispatch per variant
// across two ActiveVariants calls (iterations 0 and 1).
func TestVariantSelectorRespected(t *testing.T) {
	info := &TechniqueInfo{
		Variants: make([]TechniqueVariantInfo, 2),
		Selector: func(iter int) []int {
			if iter%2 == 0 {
				return []int{0}
			}
			return []int{1}
		},
	}
	dispatched := map[int]int{}
	for iter := 0; iter < 2; iter++ {
		for _, idx := range info.ActiveVariants(iter) {
			dispatched[idx]++
		}
	}
	assert.Equal(t, 1, dispatched[0])
	assert.Equal(t, 1, dispatched[1])
}

func TestHitSlotsSizedToMaterialCount(t *testing.T) {
	v := NewShaderVariant(4)
	assert.Len(t, v.Hit, 4)
	assert.Len(t, v.AdvShadowHit, 4)
	assert.NotEqual(t, v.ID.String(), NewShaderVariant(4).ID.String())
}
