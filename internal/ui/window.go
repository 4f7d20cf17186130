package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dvsk/patchseg/internal/mask"
)

// Window manages the preview display: the live camera frame with the latest
// segmentation overlay blended on top.
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window.
func NewWindow(name string) *Window {
	window := gocv.NewWindow(name)
	window.ResizeWindow(1280, 720)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// Show displays a frame, blending the overlay when one is available, and
// updates the FPS counter.
func (w *Window) Show(frm *gocv.Mat, ov *mask.Overlay) {
	w.frameCount++
	now := time.Now()

	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}

	if ov != nil {
		blendOverlay(frm, ov)
	}

	fpsText := fmt.Sprintf("FPS: %.1f", w.fps)
	gocv.PutText(frm, fpsText, image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, color.RGBA{R: 0, G: 255, B: 0, A: 255}, 2)

	w.window.IMShow(*frm)
}

// blendOverlay maps the patch-resolution overlay back onto the raw camera
// frame and alpha-blends the highlight in place. The overlay is produced in
// the normalizer's upright orientation, so it is rotated back before the
// nearest-neighbor upscale.
func blendOverlay(frm *gocv.Mat, ov *mask.Overlay) {
	small, err := gocv.NewMatFromBytes(ov.Height, ov.Width, gocv.MatTypeCV8UC4, ov.Pix)
	if err != nil {
		return
	}
	defer small.Close()

	unrotated := gocv.NewMat()
	defer unrotated.Close()
	gocv.Rotate(small, &unrotated, gocv.Rotate90CounterClockwise)

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(unrotated, &scaled, image.Pt(frm.Cols(), frm.Rows()), 0, 0,
		gocv.InterpolationNearestNeighbor)

	// Blend only where the overlay is opaque; transparent patches must leave
	// the frame untouched.
	maskMat := gocv.NewMat()
	defer maskMat.Close()
	gocv.ExtractChannel(scaled, &maskMat, 3)

	// Overlay pixels are RGBA; the frame is BGR.
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(scaled, &bgr, gocv.ColorRGBAToBGR)

	alpha := float64(mask.Highlight[3]) / 255.0
	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(*frm, 1.0-alpha, bgr, alpha, 0, &blended)
	blended.CopyToWithMask(frm, maskMat)
}

// WaitKey waits for a key press, returning the key code or -1.
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// FPS returns current frames per second.
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window.
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}
