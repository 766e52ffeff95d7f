package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pivision/internal/camera"
	"pivision/internal/config"
	"pivision/internal/detect"
	"pivision/internal/eventlog"
	"pivision/internal/logger"
	"pivision/internal/store"
)

type fixture struct {
	cfg      *config.Config
	log      *logger.Logger
	frames   *store.Store
	activity *eventlog.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		DataDirectory:      dir,
		LogDirectory:       filepath.Join(dir, "logs"),
		CameraWidth:        64,
		CameraHeight:       48,
		MaxActivityEntries: 100,
		StreamPollInterval: 5 * time.Millisecond,
	}

	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	frames, err := store.New(cfg.LatestFramePath(), cfg.SnapshotDirectory())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	activity, err := eventlog.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("Failed to open event log: %v", err)
	}
	t.Cleanup(func() { activity.Close() })

	return &fixture{cfg: cfg, log: log, frames: frames, activity: activity}
}

// capturePayload builds a multipart ingress request body.
func capturePayload(t *testing.T, frame []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if frame != nil {
		part, err := writer.CreateFormFile("file", "capture.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(frame)
	}
	for name, value := range fields {
		writer.WriteField(name, value)
	}
	writer.Close()

	return &body, writer.FormDataContentType()
}

func validFrame() []byte {
	return camera.Placeholder(64, 48, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func postCapture(f *fixture, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	handler := CaptureHandler(f.frames, f.activity, nil, f.cfg, f.log)
	req := httptest.NewRequest(http.MethodPost, "/api/capture", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCaptureHandler_AcceptsValidPayload(t *testing.T) {
	f := newFixture(t)
	frame := validFrame()

	detections, _ := json.Marshal(detect.Result{
		Regions: []detect.Region{{X: 5, Y: 5, Width: 40, Height: 40, Neighbors: 6}},
	})
	body, contentType := capturePayload(t, frame, map[string]string{
		"timestamp":  "2025-06-01T12:00:00Z",
		"source":     "real",
		"detections": string(detections),
	})

	rec := postCapture(f, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _, err := f.frames.Read()
	if err != nil {
		t.Fatalf("Slot read failed: %v", err)
	}
	if !bytes.Equal(stored, frame) {
		t.Error("Stored frame differs from uploaded frame")
	}

	records, err := f.activity.Recent(10, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 activity record, got %d", len(records))
	}
	if records[0].FaceCount != 1 || records[0].Source != "real" {
		t.Errorf("Unexpected record: %+v", records[0])
	}
}

func TestCaptureHandler_RejectsUndecodableFrame(t *testing.T) {
	f := newFixture(t)

	// Establish known-good state first.
	goodFrame := validFrame()
	body, contentType := capturePayload(t, goodFrame, nil)
	if rec := postCapture(f, body, contentType); rec.Code != http.StatusCreated {
		t.Fatalf("Setup ingest failed: %d", rec.Code)
	}

	// A truncated JPEG must be rejected without touching stored state.
	truncated := goodFrame[:10]
	body, contentType = capturePayload(t, truncated, nil)
	rec := postCapture(f, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for truncated frame, got %d", rec.Code)
	}

	stored, _, err := f.frames.Read()
	if err != nil {
		t.Fatalf("Slot read failed: %v", err)
	}
	if !bytes.Equal(stored, goodFrame) {
		t.Error("Rejected payload must not change the latest-frame slot")
	}

	count, _ := f.activity.Count()
	if count != 1 {
		t.Errorf("Rejected payload must not append activity records, got %d", count)
	}
}

func TestCaptureHandler_RejectsMissingFrame(t *testing.T) {
	f := newFixture(t)

	body, contentType := capturePayload(t, nil, map[string]string{"source": "real"})
	rec := postCapture(f, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing frame part, got %d", rec.Code)
	}
}

func TestCaptureHandler_RejectsInvalidDetectionMetadata(t *testing.T) {
	f := newFixture(t)

	body, contentType := capturePayload(t, validFrame(), map[string]string{
		"detections": "{not-json",
	})
	rec := postCapture(f, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid detection metadata, got %d", rec.Code)
	}

	if _, _, err := f.frames.Read(); err != store.ErrNoFrame {
		t.Error("Rejected payload must not create the latest-frame slot")
	}
}

func TestCaptureHandler_PrunesActivityLog(t *testing.T) {
	f := newFixture(t)
	f.cfg.MaxActivityEntries = 3

	for i := 0; i < 5; i++ {
		ts := time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC)
		body, contentType := capturePayload(t, validFrame(), map[string]string{
			"timestamp": ts.Format(time.RFC3339),
		})
		if rec := postCapture(f, body, contentType); rec.Code != http.StatusCreated {
			t.Fatalf("Ingest %d failed: %d", i, rec.Code)
		}
	}

	count, err := f.activity.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected activity log pruned to 3, got %d", count)
	}
}

func TestSnapshotHandler_AwaitingFirstFrame(t *testing.T) {
	f := newFixture(t)
	handler := SnapshotHandler(f.frames, f.cfg, f.log)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 before first frame, got %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Status") != "awaiting-first-frame" {
		t.Error("Expected awaiting-first-frame marker")
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("Placeholder is not a decodable JPEG: %v", err)
	}
}

func TestSnapshotHandler_IdempotentBetweenIngests(t *testing.T) {
	f := newFixture(t)
	frame := validFrame()
	if err := f.frames.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	handler := SnapshotHandler(f.frames, f.cfg, f.log)

	var bodies [][]byte
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		bodies = append(bodies, rec.Body.Bytes())
	}

	if !bytes.Equal(bodies[0], bodies[1]) {
		t.Error("Repeated snapshots between ingests must return identical bytes")
	}
	if !bytes.Equal(bodies[0], frame) {
		t.Error("Snapshot must return the stored frame bytes")
	}
}

func TestActivityHandler_Pagination(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := &eventlog.Record{Timestamp: base.Add(time.Duration(i) * time.Minute), Source: "real", Filename: "x.jpg"}
		if err := f.activity.Insert(rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	handler := ActivityHandler(f.activity, f.log)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/activity?page=1&limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var data ActivityData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(data.Records) != 2 {
		t.Errorf("Expected 2 records on page, got %d", len(data.Records))
	}
	if data.Length != 5 || data.TotalPages != 3 || data.CurrentPage != 1 {
		t.Errorf("Unexpected pagination data: %+v", data)
	}
}

func TestActivityHandler_EmptyLog(t *testing.T) {
	f := newFixture(t)
	handler := ActivityHandler(f.activity, f.log)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/activity", nil))

	var data ActivityData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data.Records == nil || len(data.Records) != 0 {
		t.Errorf("Expected empty records array, got %v", data.Records)
	}
}

func TestStreamHandler_SendsFramesUntilDisconnect(t *testing.T) {
	f := newFixture(t)
	frame := validFrame()
	if err := f.frames.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	handler := StreamHandler(f.frames, f.cfg, f.log)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stream handler did not terminate on disconnect")
	}

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "multipart/x-mixed-replace") {
		t.Errorf("Unexpected content type: %s", got)
	}

	body := rec.Body.Bytes()
	if !bytes.Contains(body, []byte("--frame\r\nContent-Type: image/jpeg")) {
		t.Error("Stream body missing multipart chunk header")
	}
	if !bytes.Contains(body, frame) {
		t.Error("Stream body missing the stored frame bytes")
	}
	// Unchanged slot: exactly one chunk despite many poll cycles.
	if n := bytes.Count(body, []byte("--frame\r\n")); n != 1 {
		t.Errorf("Expected 1 chunk for an unchanged slot, got %d", n)
	}
}

func TestStreamHandler_PlaceholderBeforeFirstFrame(t *testing.T) {
	f := newFixture(t)
	handler := StreamHandler(f.frames, f.cfg, f.log)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if n := bytes.Count(rec.Body.Bytes(), []byte("--frame\r\n")); n != 1 {
		t.Errorf("Expected exactly one placeholder chunk, got %d", n)
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}
