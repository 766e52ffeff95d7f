package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoFrame is returned when no frame has ever been ingested.
var ErrNoFrame = errors.New("no frame has been received yet")

const snapshotLayout = "20060102_150405"

// Store owns the latest-frame slot and the snapshot archive. The slot is a
// single-writer/multiple-reader resource: writes go through a temp file and
// an atomic rename, so a reader never observes a partially written image.
type Store struct {
	latestPath  string
	snapshotDir string
}

// New prepares the data directories and probes that they are writable.
// An unwritable storage path is a startup-fatal condition.
func New(latestPath, snapshotDir string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(latestPath), snapshotDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	probe := filepath.Join(filepath.Dir(latestPath), ".writable")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return nil, fmt.Errorf("data directory is not writable: %w", err)
	}
	os.Remove(probe)

	return &Store{latestPath: latestPath, snapshotDir: snapshotDir}, nil
}

// Write atomically replaces the latest-frame slot with the given JPEG bytes.
func (s *Store) Write(frame []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.latestPath), ".latest-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create temp frame file: %w", err)
	}

	if _, err := tmp.Write(frame); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write frame bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp frame file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.latestPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace latest frame: %w", err)
	}

	return nil
}

// Read returns the current latest frame and its modification time.
func (s *Store) Read() ([]byte, time.Time, error) {
	info, err := os.Stat(s.latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, ErrNoFrame
		}
		return nil, time.Time{}, fmt.Errorf("failed to stat latest frame: %w", err)
	}

	frame, err := os.ReadFile(s.latestPath)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read latest frame: %w", err)
	}

	return frame, info.ModTime(), nil
}

// LastModified returns the slot's change marker without reading the bytes.
// Stream viewers poll this to skip re-sending unchanged frames.
func (s *Store) LastModified() (time.Time, error) {
	info, err := os.Stat(s.latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, ErrNoFrame
		}
		return time.Time{}, fmt.Errorf("failed to stat latest frame: %w", err)
	}
	return info.ModTime(), nil
}

// Archive saves a durable per-capture copy into the snapshot directory and
// returns the stored filename.
func (s *Store) Archive(frame []byte, ts time.Time) (string, error) {
	filename := fmt.Sprintf("capture_%s.jpg", ts.Format(snapshotLayout))
	fullpath := filepath.Join(s.snapshotDir, filename)

	if err := os.WriteFile(fullpath, frame, 0644); err != nil {
		return "", fmt.Errorf("failed to archive snapshot %s: %w", filename, err)
	}
	return filename, nil
}

// SnapshotDir returns the snapshot archive directory.
func (s *Store) SnapshotDir() string {
	return s.snapshotDir
}

// ParseSnapshotName extracts the capture timestamp from an archived snapshot
// filename of the form capture_20060102_150405.jpg.
func ParseSnapshotName(filename string) (time.Time, error) {
	name := strings.TrimSuffix(filename, ".jpg")
	name = strings.TrimPrefix(name, "capture_")

	ts, err := time.ParseInLocation(snapshotLayout, name, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot filename %s: %w", filename, err)
	}
	return ts, nil
}
