package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dvsk/patchseg/internal/frame"
)

// Capture manages webcam capture and converts frames into the packed BGRA
// format the pipeline's normalizer accepts.
type Capture struct {
	webcam   *gocv.VideoCapture
	deviceID int
	width    int
	height   int
	mu       sync.Mutex
}

// NewCapture opens the camera with a default 720p resolution.
func NewCapture(deviceID int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, 1280, 720)
}

// NewCaptureWithResolution opens the camera at the requested resolution. The
// device may not honor the request; actual dimensions are queried back.
func NewCaptureWithResolution(deviceID, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))

	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:   webcam,
		deviceID: deviceID,
		width:    actualWidth,
		height:   actualHeight,
	}, nil
}

// Read captures a frame into the provided Mat.
func (c *Capture) Read(dst *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}
	return c.webcam.Read(dst)
}

// ToRaw converts a captured BGR frame into the packed BGRA raw frame the
// pipeline accepts. ToBytes already copies, so the plane is detached from the
// Mat.
func ToRaw(frm *gocv.Mat) *frame.Raw {
	bgra := gocv.NewMat()
	defer bgra.Close()
	gocv.CvtColor(*frm, &bgra, gocv.ColorBGRToBGRA)

	return &frame.Raw{
		Width:  bgra.Cols(),
		Height: bgra.Rows(),
		Format: frame.FormatBGRA,
		Planes: [][]byte{bgra.ToBytes()},
	}
}

// Width returns frame width.
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height.
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
