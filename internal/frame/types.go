package frame

import "errors"

// ErrUnsupportedFormat is returned for frames the normalizer cannot decode:
// unknown pixel formats and malformed plane sizes. The pipeline treats it as
// a skipped cycle, never a crash.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// PixelFormat identifies the layout of a raw camera frame.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	// FormatBGRA is packed 4-channel BGRA, one plane.
	FormatBGRA
	// FormatYUV420 is planar I420: full-resolution Y plane followed by
	// half-resolution U and V planes.
	FormatYUV420
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "bgra"
	case FormatYUV420:
		return "yuv420"
	default:
		return "unknown"
	}
}

// Raw is one camera frame as delivered by the frame source. It is ephemeral:
// the source owns the plane buffers and the pipeline must not retain them
// beyond the processing cycle they were submitted for.
type Raw struct {
	Width  int
	Height int
	Format PixelFormat
	// Planes holds one buffer for FormatBGRA and three (Y, U, V) for
	// FormatYUV420.
	Planes [][]byte
}
