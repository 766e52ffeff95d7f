package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"pivision/internal/camera"
	"pivision/internal/detect"
)

// Event is the unit handed across the delivery boundary: one frame plus its
// detection metadata and source tag.
type Event struct {
	Timestamp  time.Time
	Frame      []byte
	Detections detect.Result
	Source     camera.Source
}

// Client pushes capture events to the backend ingress endpoint. One
// synchronous push per tick, bounded by the client timeout; a failed push is
// the caller's cue to drop the event, there is no retry queue.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a delivery client for the given backend base URL.
func NewClient(backendURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint: backendURL + "/api/capture",
		http:     &http.Client{Timeout: timeout},
	}
}

// Push serializes the event as multipart form data and posts it. The payload
// is self-describing: frame bytes in the file part, timestamp, source,
// face_count and the detection JSON as form fields.
func (c *Client) Push(ev Event) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "capture.jpg")
	if err != nil {
		return fmt.Errorf("failed to create frame part: %w", err)
	}
	if _, err := part.Write(ev.Frame); err != nil {
		return fmt.Errorf("failed to write frame bytes: %w", err)
	}

	detections, err := json.Marshal(ev.Detections)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	fields := map[string]string{
		"timestamp":  ev.Timestamp.Format(time.RFC3339),
		"source":     string(ev.Source),
		"face_count": strconv.Itoa(len(ev.Detections.Regions)),
		"detections": string(detections),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize payload: %w", err)
	}

	resp, err := c.http.Post(c.endpoint, writer.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("backend rejected event: status %d", resp.StatusCode)
	}

	return nil
}
