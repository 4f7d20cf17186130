package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsk/patchseg/internal/encoder"
)

func TestRenderFullFill(t *testing.T) {
	grid := encoder.Grid{HPatches: 16, WPatches: 16}
	scores := make([]float32, grid.NumPatches())
	for i := range scores {
		scores[i] = 0.9
	}

	ov := Render(scores, grid, 0.7)
	require.Equal(t, 16, ov.Width)
	require.Equal(t, 16, ov.Height)
	require.Len(t, ov.Pix, 16*16*4)

	for i := 0; i < len(ov.Pix); i += 4 {
		assert.Equal(t, Highlight[:], ov.Pix[i:i+4])
	}
}

func TestRenderThresholdBoundary(t *testing.T) {
	grid := encoder.Grid{HPatches: 1, WPatches: 2}

	// Exactly at the threshold is background; strictly above is foreground.
	ov := Render([]float32{0.7, 0.71}, grid, 0.7)

	assert.Equal(t, []byte{0, 0, 0, 0}, ov.Pix[0:4])
	assert.Equal(t, Highlight[:], ov.Pix[4:8])
}

func TestRenderEmpty(t *testing.T) {
	grid := encoder.Grid{HPatches: 2, WPatches: 2}
	ov := Render(make([]float32, 4), grid, 0.5)

	for _, b := range ov.Pix {
		assert.Equal(t, byte(0), b)
	}
}
