package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"time"
)

// Mock synthesizes placeholder frames when no real camera is available or
// demo mode is enabled. Frames are derived from the capture time so the
// stream visibly changes every tick.
type Mock struct {
	width  int
	height int
	state  State
	now    func() time.Time
}

// NewMock creates a mock camera producing width x height placeholder frames.
func NewMock(width, height int) *Mock {
	return &Mock{
		width:  width,
		height: height,
		state:  StateClosed,
		now:    time.Now,
	}
}

func (m *Mock) Open() error {
	m.state = StateOpen
	return nil
}

// Acquire returns one synthesized JPEG frame.
func (m *Mock) Acquire() ([]byte, error) {
	if m.state != StateOpen {
		return nil, ErrNotOpen
	}
	return Placeholder(m.width, m.height, m.now()), nil
}

func (m *Mock) Close() error {
	m.state = StateClosed
	return nil
}

func (m *Mock) State() State {
	return m.state
}

func (m *Mock) Source() Source {
	return SourceMock
}

// Placeholder renders a synthetic JPEG frame: a gray gradient background with
// a block that moves with the given timestamp. Also used by the web server
// for its "awaiting first frame" image.
func Placeholder(width, height int, ts time.Time) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		shade := uint8(40 + (y*120)/height)
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: shade, G: shade, B: shade + 20, A: 255})
		}
	}

	// Moving block, one step per second, wrapping across the frame.
	blockSize := height / 6
	if blockSize < 8 {
		blockSize = 8
	}
	step := int(ts.Unix())
	bx := (step * blockSize / 2) % (width - blockSize)
	if bx < 0 {
		bx = 0
	}
	by := (height - blockSize) / 2

	for y := by; y < by+blockSize; y++ {
		for x := bx; x < bx+blockSize; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 80, B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory RGBA image cannot fail.
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	return buf.Bytes()
}
