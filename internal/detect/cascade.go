package detect

import (
	"image"
	"os"
	"time"

	"gocv.io/x/gocv"

	"pivision/internal/logger"
)

// Cascade runs a Haar cascade classifier over JPEG frames. Construction is
// defensive: a missing or unloadable model leaves the detector in an
// unavailable state instead of failing the process, so capture and delivery
// keep working with image-only payloads.
type Cascade struct {
	classifier gocv.CascadeClassifier
	params     Params
	loaded     bool
	warned     bool
	logger     *logger.Logger
}

// NewCascade loads the classifier model from cascadePath.
func NewCascade(cascadePath string, params Params, log *logger.Logger) *Cascade {
	c := &Cascade{params: params, logger: log}

	if _, err := os.Stat(cascadePath); os.IsNotExist(err) {
		log.Warning("Cascade model not found: %s - detection unavailable", cascadePath)
		return c
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		log.Warning("Failed to load cascade model %s - detection unavailable", cascadePath)
		return c
	}

	c.classifier = classifier
	c.loaded = true
	log.Info("Cascade classifier loaded: %s (scale=%.2f neighbors=%d minSize=%d)",
		cascadePath, params.ScaleFactor, params.MinNeighbors, params.MinRegionSize)
	return c
}

// Detect runs one multi-scale pass over a JPEG frame. The classifier is asked
// for raw candidate windows (no native grouping) so the neighbor counts
// survive into the reported regions; grouping and suppression happen in
// groupRegions with the configured tunables.
func (c *Cascade) Detect(frame []byte, ts time.Time) Result {
	if !c.loaded {
		c.noteUnavailable("cascade model not loaded")
		return Unavailable(ts)
	}

	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		c.noteUnavailable("failed to decode frame")
		return Unavailable(ts)
	}
	defer mat.Close()

	if mat.Empty() || mat.Channels() != 3 {
		c.noteUnavailable("frame has unexpected format")
		return Unavailable(ts)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		c.noteUnavailable("failed to convert frame to grayscale")
		return Unavailable(ts)
	}

	minSize := image.Pt(c.params.MinRegionSize, c.params.MinRegionSize)
	raw := c.classifier.DetectMultiScaleWithParams(gray, c.params.ScaleFactor, 0, 0, minSize, image.Pt(0, 0))

	regions := groupRegions(raw, c.params.MinNeighbors, c.params.MinRegionSize)
	if len(regions) > 0 {
		c.logger.Info("Detected %d face(s)", len(regions))
	}

	return Result{Regions: regions, FrameTime: ts}
}

// Close releases the classifier resources.
func (c *Cascade) Close() {
	if c.loaded {
		c.classifier.Close()
		c.loaded = false
	}
}

// noteUnavailable logs the degradation once instead of spamming every tick.
func (c *Cascade) noteUnavailable(reason string) {
	if c.warned {
		return
	}
	c.warned = true
	c.logger.Warning("Detection unavailable: %s", reason)
}
