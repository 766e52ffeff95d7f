package capture

import (
	"context"
	"fmt"
	"time"

	"pivision/internal/camera"
	"pivision/internal/config"
	"pivision/internal/delivery"
	"pivision/internal/detect"
	"pivision/internal/logger"
)

// Pusher delivers one capture event to the backend.
type Pusher interface {
	Push(ev delivery.Event) error
}

// Controller runs the fixed-period capture loop: ensure the camera handle is
// open, acquire one frame, run detection when enabled, and hand the event to
// the delivery client. Every failure is contained within its tick; the loop
// only stops on context cancellation.
type Controller struct {
	cfg      *config.Config
	device   camera.Camera // nil when no real device is configured
	mock     camera.Camera
	detector detect.Detector
	client   Pusher
	logger   *logger.Logger

	captureCount int
	mockNotified bool
	sleep        func(time.Duration) // test seam for retry backoff
}

// NewController wires the capture loop. device may be nil to force mock mode.
func NewController(device camera.Camera, detector detect.Detector, client Pusher, cfg *config.Config, log *logger.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		device:   device,
		mock:     camera.NewMock(cfg.CameraWidth, cfg.CameraHeight),
		detector: detector,
		client:   client,
		logger:   log,
		sleep:    time.Sleep,
	}
}

// Start verifies the controller can produce frames at all. With mock
// fallback disabled and no openable camera, startup fails so the process can
// exit non-zero instead of ticking uselessly.
func (c *Controller) Start() error {
	if c.cfg.DemoMode {
		c.logger.Info("Demo mode enabled - using mock camera")
		return c.mock.Open()
	}

	if c.device == nil || c.openWithRetries() != nil {
		if !c.cfg.MockFallback {
			return fmt.Errorf("camera unavailable and mock fallback disabled")
		}
		c.logger.Warning("Camera unavailable - falling back to mock frames")
	}

	return c.mock.Open()
}

// Run executes the capture loop until ctx is cancelled, then releases the
// camera handle.
func (c *Controller) Run(ctx context.Context) {
	c.logger.Info("Starting capture service (interval=%s detection=%t demo=%t)",
		c.cfg.CaptureInterval, c.cfg.EnableFaceDetection, c.cfg.DemoMode)

	defer c.release()

	ticker := time.NewTicker(c.cfg.CaptureInterval)
	defer ticker.Stop()

	c.tick(time.Now())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping capture service after %d captures", c.captureCount)
			return
		case t := <-ticker.C:
			c.tick(t)
		}
	}
}

// tick produces at most one capture event. The ticker timestamp is the
// frame's intended capture time.
func (c *Controller) tick(now time.Time) {
	cam := c.ensureCamera()
	if cam == nil {
		return
	}

	frame, err := cam.Acquire()
	if err != nil {
		// Handle degraded itself; next tick re-opens.
		c.logger.Error("Frame acquisition failed: %v", err)
		return
	}

	result := c.detectFaces(cam, frame, now)

	ev := delivery.Event{
		Timestamp:  now,
		Frame:      frame,
		Detections: result,
		Source:     cam.Source(),
	}

	if err := c.client.Push(ev); err != nil {
		c.logger.Error("Delivery failed, dropping event: %v", err)
		return
	}

	c.captureCount++
	if c.captureCount%5 == 0 {
		c.logger.Info("Captures completed: %d", c.captureCount)
	}
}

// detectFaces runs the detection pass for real frames when enabled. Mock
// frames and disabled detection both yield the empty result so delivery
// always proceeds.
func (c *Controller) detectFaces(cam camera.Camera, frame []byte, now time.Time) detect.Result {
	if !c.cfg.EnableFaceDetection || cam.Source() == camera.SourceMock || c.detector == nil {
		return detect.Empty(now)
	}
	return c.detector.Detect(frame, now)
}

// ensureCamera returns the camera to use for this tick: the real device when
// it is (or can be re-) opened, otherwise the mock fallback.
func (c *Controller) ensureCamera() camera.Camera {
	if c.cfg.DemoMode || c.device == nil {
		return c.mock
	}

	if c.device.State() == camera.StateOpen {
		return c.device
	}

	if err := c.openWithRetries(); err == nil {
		c.mockNotified = false
		return c.device
	}

	if !c.cfg.MockFallback {
		c.logger.Error("Camera unavailable and mock fallback disabled - skipping tick")
		return nil
	}

	if !c.mockNotified {
		c.logger.Warning("Camera unavailable - using mock frames until it recovers")
		c.mockNotified = true
	}
	return c.mock
}

// openWithRetries attempts to open the real device a bounded number of times
// with a short backoff between attempts.
func (c *Controller) openWithRetries() error {
	var err error
	for attempt := 1; attempt <= c.cfg.CameraRetries; attempt++ {
		if err = c.device.Open(); err == nil {
			return nil
		}
		c.logger.Warning("Camera open attempt %d/%d failed: %v", attempt, c.cfg.CameraRetries, err)
		if attempt < c.cfg.CameraRetries {
			c.sleep(c.cfg.CameraRetryBackoff)
		}
	}
	return err
}

// release closes whatever handles are live. Called exactly once on shutdown.
func (c *Controller) release() {
	if c.device != nil {
		if err := c.device.Close(); err != nil {
			c.logger.Error("Failed to close camera: %v", err)
		}
	}
	_ = c.mock.Close()
	if c.detector != nil {
		c.detector.Close()
	}
	c.logger.Info("Capture service stopped")
}
