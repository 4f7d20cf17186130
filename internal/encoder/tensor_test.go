package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestValidInputSize(t *testing.T) {
	for _, size := range InputSizes {
		assert.True(t, ValidInputSize(size), "size %d", size)
	}
	assert.False(t, ValidInputSize(333))
	assert.False(t, ValidInputSize(0))
}

func TestComputeGridEvenWidth(t *testing.T) {
	sizes := InputSizes
	shapes := []struct{ cols, rows int }{
		{640, 480}, {480, 640}, {1280, 720}, {720, 1280}, {256, 256}, {1013, 771},
	}

	for _, size := range sizes {
		for _, shape := range shapes {
			grid, err := ComputeGrid(shape.cols, shape.rows, size)
			require.NoError(t, err, "size %d shape %dx%d", size, shape.cols, shape.rows)

			assert.Equal(t, 0, grid.WPatches%2, "wPatches must be even")
			assert.Equal(t, size, grid.HPatches*PatchStride, "height must snap to input size")
			assert.Equal(t, grid.HPatches*grid.WPatches, grid.NumPatches())
			assert.Equal(t, 0, grid.PixelWidth()%PatchStride)
			assert.Equal(t, 0, grid.PixelHeight()%PatchStride)
		}
	}
}

func TestComputeGridDegenerate(t *testing.T) {
	_, err := ComputeGrid(0, 480, 512)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = ComputeGrid(640, 0, 512)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	// An extreme portrait ratio collapses the width to zero patches.
	_, err = ComputeGrid(4, 4000, 320)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestEncodeShapeAndNormalization(t *testing.T) {
	rgb := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 256, 256, gocv.MatTypeCV8UC3)
	defer rgb.Close()

	in, err := Encode(rgb, 320)
	require.NoError(t, err)

	grid := in.Grid
	assert.Equal(t, 20, grid.HPatches)
	assert.Equal(t, 20, grid.WPatches)
	require.Len(t, in.Data, 3*grid.PixelHeight()*grid.PixelWidth())

	// A uniform image stays uniform under resize, so every value in a
	// channel plane equals (128/255 - mean[c]) / std[c].
	plane := grid.PixelHeight() * grid.PixelWidth()
	v := float32(128) / 255.0
	for c := 0; c < 3; c++ {
		want := (v - imagenetMean[c]) / imagenetStd[c]
		assert.InDelta(t, want, in.Data[c*plane], 1e-4)
		assert.InDelta(t, want, in.Data[c*plane+plane/2], 1e-4)
		assert.InDelta(t, want, in.Data[(c+1)*plane-1], 1e-4)
	}
}

func TestEncodeAspectRatio(t *testing.T) {
	// 640x480 landscape at 512: hPatches=32, wPatches=round(640*512/(480*16))=43 -> 42.
	rgb := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer rgb.Close()

	in, err := Encode(rgb, 512)
	require.NoError(t, err)
	assert.Equal(t, 32, in.Grid.HPatches)
	assert.Equal(t, 42, in.Grid.WPatches)
}
