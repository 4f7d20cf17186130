package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/dvsk/patchseg/internal/mask"
)

// The pipeline scores patches in the normalizer's upright orientation, which
// is the raw frame rotated 90 degrees clockwise. The blend has to undo that
// rotation: a highlight in the upright top-left corner sits over the raw
// frame's bottom-left.
func TestBlendOverlayCountersRotation(t *testing.T) {
	frm := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 32, 64, gocv.MatTypeCV8UC3)
	defer frm.Close()

	// Portrait 2x4 overlay with only the top-left patch highlighted.
	ov := &mask.Overlay{Width: 2, Height: 4, Pix: make([]byte, 2*4*4)}
	copy(ov.Pix[:4], mask.Highlight[:])

	blendOverlay(&frm, ov)

	alpha := float64(mask.Highlight[3]) / 255.0
	wantG := 100*(1-alpha) + 255*alpha
	wantBR := 100 * (1 - alpha)

	// The highlighted cell maps to the raw frame's bottom-left 16x16 block
	// (rows 16..31, cols 0..15).
	got := frm.GetVecbAt(24, 8)
	assert.InDelta(t, wantBR, float64(got[0]), 1)
	assert.InDelta(t, wantG, float64(got[1]), 1)
	assert.InDelta(t, wantBR, float64(got[2]), 1)
}

func TestBlendOverlayLeavesUnmaskedPixelsUntouched(t *testing.T) {
	frm := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 32, 64, gocv.MatTypeCV8UC3)
	defer frm.Close()

	ov := &mask.Overlay{Width: 2, Height: 4, Pix: make([]byte, 2*4*4)}
	copy(ov.Pix[:4], mask.Highlight[:])

	blendOverlay(&frm, ov)

	for _, pt := range [][2]int{{8, 8}, {24, 40}, {0, 63}} {
		got := frm.GetVecbAt(pt[0], pt[1])
		assert.Equal(t, gocv.Vecb{100, 100, 100}, got, "pixel (%d,%d)", pt[0], pt[1])
	}
}
