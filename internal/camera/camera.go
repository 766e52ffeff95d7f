package camera

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"pivision/internal/logger"
)

// State is the lifecycle of a camera handle. At most one live handle exists
// per process and it is never shared across processes.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Source tags where a frame came from.
type Source string

const (
	SourceReal Source = "real"
	SourceMock Source = "mock"
)

// ErrNotOpen is returned by Acquire when the handle is not in StateOpen.
var ErrNotOpen = errors.New("camera handle is not open")

// Camera is the device abstraction the capture controller drives. Acquire
// returns one JPEG-encoded frame. A transient acquisition error degrades the
// handle to StateFailed so the next tick re-opens it.
type Camera interface {
	Open() error
	Acquire() ([]byte, error)
	Close() error
	State() State
	Source() Source
}

// Device wraps a local video capture device.
type Device struct {
	index  int
	width  int
	height int
	cam    *gocv.VideoCapture
	state  State
	logger *logger.Logger
}

// NewDevice creates an unopened handle for the capture device at index.
func NewDevice(index, width, height int, log *logger.Logger) *Device {
	return &Device{
		index:  index,
		width:  width,
		height: height,
		state:  StateClosed,
		logger: log,
	}
}

// Open initializes the device and configures the capture resolution.
func (d *Device) Open() error {
	d.state = StateOpening

	cam, err := gocv.VideoCaptureDevice(d.index)
	if err != nil {
		d.state = StateFailed
		return fmt.Errorf("failed to open camera device %d: %w", d.index, err)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(d.width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(d.height))

	d.cam = cam
	d.state = StateOpen
	d.logger.Info("Camera device %d opened (%dx%d)", d.index, d.width, d.height)
	return nil
}

// Acquire reads one frame and returns it JPEG-encoded. A failed read marks
// the handle failed without closing the process.
func (d *Device) Acquire() ([]byte, error) {
	if d.state != StateOpen {
		return nil, ErrNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := d.cam.Read(&mat); !ok || mat.Empty() {
		d.state = StateFailed
		return nil, fmt.Errorf("failed to read frame from camera device %d", d.index)
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		d.state = StateFailed
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Close releases the device.
func (d *Device) Close() error {
	if d.cam != nil {
		if err := d.cam.Close(); err != nil {
			d.state = StateFailed
			return fmt.Errorf("failed to close camera device %d: %w", d.index, err)
		}
		d.cam = nil
	}
	d.state = StateClosed
	return nil
}

// State returns the current handle state.
func (d *Device) State() State {
	return d.state
}

// Source tags device frames as real captures.
func (d *Device) Source() Source {
	return SourceReal
}
