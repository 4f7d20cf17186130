package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsk/patchseg/internal/encoder"
)

func TestFilterLargestRegionTwoBlobs(t *testing.T) {
	grid := encoder.Grid{HPatches: 4, WPatches: 4}

	// A 2x2 blob in the top-left corner and a lone patch bottom-right.
	scores := []float32{
		1.0, 1.0, 0, 0,
		1.0, 1.0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 1.0,
	}

	require.NoError(t, FilterLargestRegion(scores, grid, 0.5))

	want := []float32{
		1.0, 1.0, 0, 0,
		1.0, 1.0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	assert.Equal(t, want, scores)
}

func TestFilterLargestRegionTieKeepsFirst(t *testing.T) {
	grid := encoder.Grid{HPatches: 2, WPatches: 4}

	// Two single-patch blobs of equal area; the first in scan order wins.
	scores := []float32{
		0.9, 0, 0, 0.8,
		0, 0, 0, 0,
	}

	require.NoError(t, FilterLargestRegion(scores, grid, 0.5))

	assert.Equal(t, float32(0.9), scores[0])
	assert.Equal(t, float32(0), scores[3])
}

func TestFilterLargestRegionDiagonalIs8Connected(t *testing.T) {
	grid := encoder.Grid{HPatches: 4, WPatches: 4}

	// Diagonal patches touch at corners, so 8-connectivity makes them one
	// component; a separate patch far away gets zeroed.
	scores := []float32{
		1.0, 0, 0, 0,
		0, 1.0, 0, 0,
		0, 0, 0, 0,
		1.0, 0, 0, 0,
	}

	require.NoError(t, FilterLargestRegion(scores, grid, 0.5))

	assert.Equal(t, float32(1.0), scores[0])
	assert.Equal(t, float32(1.0), scores[5])
	assert.Equal(t, float32(0), scores[12])
}

func TestFilterLargestRegionAllBackground(t *testing.T) {
	grid := encoder.Grid{HPatches: 3, WPatches: 4}
	scores := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1, 0.2, 0.3}
	orig := append([]float32(nil), scores...)

	require.NoError(t, FilterLargestRegion(scores, grid, 0.5))
	assert.Equal(t, orig, scores)
}

func TestFilterLargestRegionSingleComponentUntouched(t *testing.T) {
	grid := encoder.Grid{HPatches: 2, WPatches: 2}
	scores := []float32{0.9, 0.8, 0.2, 0.1}
	orig := append([]float32(nil), scores...)

	require.NoError(t, FilterLargestRegion(scores, grid, 0.5))
	assert.Equal(t, orig, scores)
}

func TestFilterLargestRegionShapeMismatch(t *testing.T) {
	grid := encoder.Grid{HPatches: 2, WPatches: 2}
	err := FilterLargestRegion(make([]float32, 3), grid, 0.5)
	assert.ErrorIs(t, err, encoder.ErrInvalidGeometry)
}
