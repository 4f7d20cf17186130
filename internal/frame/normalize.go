package frame

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Normalize converts a raw camera frame into an upright RGB image. It applies
// a fixed 90 degree clockwise rotation to correct sensor orientation, so the
// returned Mat has the input dimensions swapped. The caller owns the returned
// Mat and must Close it.
func Normalize(raw *Raw) (gocv.Mat, error) {
	switch raw.Format {
	case FormatBGRA:
		return normalizeBGRA(raw)
	case FormatYUV420:
		return normalizeYUV420(raw)
	default:
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, raw.Format)
	}
}

func normalizeBGRA(raw *Raw) (gocv.Mat, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return gocv.Mat{}, fmt.Errorf("%w: bgra frame %dx%d", ErrUnsupportedFormat, raw.Width, raw.Height)
	}
	if len(raw.Planes) != 1 || len(raw.Planes[0]) != raw.Width*raw.Height*4 {
		return gocv.Mat{}, fmt.Errorf("%w: bgra frame needs one %d-byte plane",
			ErrUnsupportedFormat, raw.Width*raw.Height*4)
	}

	bgra, err := gocv.NewMatFromBytes(raw.Height, raw.Width, gocv.MatTypeCV8UC4, raw.Planes[0])
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer bgra.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(bgra, &bgr, gocv.ColorBGRAToBGR)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	return rotateUpright(rgb), nil
}

func normalizeYUV420(raw *Raw) (gocv.Mat, error) {
	w, h := raw.Width, raw.Height
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return gocv.Mat{}, fmt.Errorf("%w: yuv420 frame %dx%d", ErrUnsupportedFormat, w, h)
	}
	if len(raw.Planes) != 3 {
		return gocv.Mat{}, fmt.Errorf("%w: yuv420 frame needs three planes, got %d",
			ErrUnsupportedFormat, len(raw.Planes))
	}
	ySize := w * h
	cSize := ySize / 4
	if len(raw.Planes[0]) != ySize || len(raw.Planes[1]) != cSize || len(raw.Planes[2]) != cSize {
		return gocv.Mat{}, fmt.Errorf("%w: yuv420 plane sizes %d/%d/%d, want %d/%d/%d",
			ErrUnsupportedFormat,
			len(raw.Planes[0]), len(raw.Planes[1]), len(raw.Planes[2]),
			ySize, cSize, cSize)
	}

	// Reconstruct one contiguous I420 buffer (w*h*3/2 bytes) from the planes.
	buf := make([]byte, ySize+2*cSize)
	copy(buf, raw.Planes[0])
	copy(buf[ySize:], raw.Planes[1])
	copy(buf[ySize+cSize:], raw.Planes[2])

	yuv, err := gocv.NewMatFromBytes(h*3/2, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer yuv.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(yuv, &rgb, gocv.ColorYUVToRGBIYUV)

	return rotateUpright(rgb), nil
}

// rotateUpright applies the fixed sensor-orientation correction.
func rotateUpright(rgb gocv.Mat) gocv.Mat {
	upright := gocv.NewMat()
	gocv.Rotate(rgb, &upright, gocv.Rotate90Clockwise)
	return upright
}
