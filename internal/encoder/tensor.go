package encoder

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// PatchStride is the edge length of one patch in pixels. Embeddings and
// scores have one entry per patch.
const PatchStride = 16

// InputSizes are the supported target edge lengths for encoded inputs.
var InputSizes = []int{320, 400, 512, 768}

// ValidInputSize reports whether size is one of the supported input sizes.
func ValidInputSize(size int) bool {
	for _, s := range InputSizes {
		if s == size {
			return true
		}
	}
	return false
}

// ErrInvalidGeometry is returned when a resize target is degenerate or a
// tensor shape does not divide evenly into patches.
var ErrInvalidGeometry = errors.New("invalid tensor geometry")

// ImageNet normalization constants, matching the feature extractor's training.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Grid describes the patch layout of an encoded input.
type Grid struct {
	HPatches int
	WPatches int
}

// NumPatches returns the total patch count.
func (g Grid) NumPatches() int {
	return g.HPatches * g.WPatches
}

// PixelWidth returns the encoded image width in pixels.
func (g Grid) PixelWidth() int {
	return g.WPatches * PatchStride
}

// PixelHeight returns the encoded image height in pixels.
func (g Grid) PixelHeight() int {
	return g.HPatches * PatchStride
}

// Input is a normalized channel-first float tensor of shape [1,3,H,W] plus
// its patch grid. Cycle-scoped: it must not outlive the cycle that built it.
type Input struct {
	Data []float32
	Grid Grid
}

// ComputeGrid derives the patch grid for an image of the given dimensions
// encoded at inputSize. Height snaps exactly to inputSize/PatchStride rows of
// patches; width follows the aspect ratio and is forced even so the grid
// stays symmetric for the connected-component step.
func ComputeGrid(cols, rows, inputSize int) (Grid, error) {
	if cols <= 0 || rows <= 0 {
		return Grid{}, fmt.Errorf("%w: source image %dx%d", ErrInvalidGeometry, cols, rows)
	}
	hPatches := inputSize / PatchStride
	wPatches := int(math.Round(float64(cols*inputSize) / float64(rows*PatchStride)))
	if wPatches%2 != 0 {
		wPatches--
	}
	if hPatches <= 0 || wPatches <= 0 {
		return Grid{}, fmt.Errorf("%w: patch grid %dx%d for input size %d",
			ErrInvalidGeometry, hPatches, wPatches, inputSize)
	}
	return Grid{HPatches: hPatches, WPatches: wPatches}, nil
}

// Encode resizes an upright RGB image to its patch-aligned resolution and
// produces the normalized input tensor. The input Mat is read-only; the
// intermediate resized buffer is released before returning.
func Encode(rgb gocv.Mat, inputSize int) (*Input, error) {
	grid, err := ComputeGrid(rgb.Cols(), rgb.Rows(), inputSize)
	if err != nil {
		return nil, err
	}

	width := grid.PixelWidth()
	height := grid.PixelHeight()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationCubic)

	// HWC uint8 RGB -> CHW float32, (v/255 - mean) / std per channel.
	pixels := resized.ToBytes()
	if len(pixels) != width*height*3 {
		return nil, fmt.Errorf("%w: resized buffer %d bytes, want %d",
			ErrInvalidGeometry, len(pixels), width*height*3)
	}

	data := make([]float32, 3*height*width)
	plane := height * width
	for c := 0; c < 3; c++ {
		mean := imagenetMean[c]
		std := imagenetStd[c]
		for y := 0; y < height; y++ {
			row := y * width
			for x := 0; x < width; x++ {
				v := float32(pixels[(row+x)*3+c]) / 255.0
				data[c*plane+row+x] = (v - mean) / std
			}
		}
	}

	return &Input{Data: data, Grid: grid}, nil
}
