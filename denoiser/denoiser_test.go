package denoiser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpCopiesColorThrough(t *testing.T) {
	in := Input{Width: 1, Height: 1, Color: []float32{0.1, 0.2, 0.3}}
	out := make([]float32, 3)
	require.NoError(t, NoOp{}.Denoise(in, out))
	assert.Equal(t, in.Color, out)
}
