package detect

import "time"

// Region is a single accepted detection. Neighbors is the number of raw
// candidate windows that collapsed into this box, the classifier's
// confidence-adjacent metadata.
type Region struct {
	X         int `json:"x"`
	Y         int `json:"y"`
	Width     int `json:"width"`
	Height    int `json:"height"`
	Neighbors int `json:"neighbors"`
}

// Result is the outcome of one detection pass. An empty Regions slice with
// Unavailable=false is a valid "no faces" result; Unavailable=true means the
// pass could not run at all (model missing, undecodable frame).
type Result struct {
	Regions     []Region  `json:"regions"`
	FrameTime   time.Time `json:"frame_timestamp"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

// Empty returns a valid no-detections result for the given frame time.
func Empty(ts time.Time) Result {
	return Result{Regions: []Region{}, FrameTime: ts}
}

// Unavailable returns a result marking the detection pass as failed.
func Unavailable(ts time.Time) Result {
	return Result{Regions: []Region{}, FrameTime: ts, Unavailable: true}
}

// Params are the three tunables governing the multi-scale pass.
type Params struct {
	ScaleFactor   float64 // geometric step between pyramid scales, > 1.0
	MinNeighbors  int     // candidate windows required to accept a region
	MinRegionSize int     // smallest accepted bounding box side, in pixels
}

// Detector is the polymorphic detection capability the pipeline depends on.
// Implementations must never panic on bad input; they report Unavailable
// instead so delivery can proceed with an image-only payload.
type Detector interface {
	Detect(frame []byte, ts time.Time) Result
	Close()
}
