package mask

import "github.com/dvsk/patchseg/internal/encoder"

// Highlight is the fixed translucent color painted over foreground patches.
var Highlight = [4]byte{0, 255, 0, 128} // RGBA

// Overlay is an RGBA pixel buffer with one pixel per patch. Upscaling to
// frame resolution is the presentation layer's concern.
type Overlay struct {
	Width  int
	Height int
	// Pix is row-major RGBA, 4 bytes per pixel.
	Pix []byte
}

// Render maps a score vector onto an overlay: patches scoring above the
// threshold get the highlight color, everything else is fully transparent.
func Render(scores []float32, grid encoder.Grid, threshold float32) *Overlay {
	ov := &Overlay{
		Width:  grid.WPatches,
		Height: grid.HPatches,
		Pix:    make([]byte, grid.NumPatches()*4),
	}
	for i, s := range scores {
		if s > threshold {
			copy(ov.Pix[i*4:], Highlight[:])
		}
	}
	return ov
}
