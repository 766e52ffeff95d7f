package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"pivision/internal/detect"
)

// Record is one append-only activity entry derived from an ingested capture
// event. Records are never mutated after insertion, only appended and pruned
// by age or count.
type Record struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	FaceCount int             `json:"face_count"`
	Regions   []detect.Region `json:"regions"`
	Filename  string          `json:"filename"`
}

// Log handles SQLite persistence of activity records. Single writer (the
// ingress path); WAL keeps readers unblocked.
type Log struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the activity database and runs migrations.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return l, nil
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		source TEXT NOT NULL,
		face_count INTEGER NOT NULL DEFAULT 0,
		regions TEXT NOT NULL DEFAULT '[]',
		filename TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity(timestamp);
	CREATE INDEX IF NOT EXISTS idx_activity_source ON activity(source);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Insert appends a new activity record. A missing ID is generated.
func (l *Log) Insert(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Regions == nil {
		rec.Regions = []detect.Region{}
	}

	regions, err := json.Marshal(rec.Regions)
	if err != nil {
		return fmt.Errorf("failed to marshal regions: %w", err)
	}

	_, err = l.db.Exec(`
		INSERT INTO activity (id, timestamp, source, face_count, regions, filename)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Timestamp, rec.Source, rec.FaceCount, string(regions), rec.Filename)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Recent returns records ordered newest first.
func (l *Log) Recent(limit, offset int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT id, timestamp, source, face_count, regions, filename
		FROM activity
		ORDER BY timestamp DESC
	`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var regions string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Source, &rec.FaceCount, &regions, &rec.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(regions), &rec.Regions); err != nil {
			rec.Regions = []detect.Region{}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the total number of records.
func (l *Log) Count() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM activity`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// PruneOlderThan removes records older than the given age and returns the
// number removed.
func (l *Log) PruneOlderThan(age time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-age)
	result, err := l.db.Exec(`DELETE FROM activity WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return result.RowsAffected()
}

// PruneToCount keeps only the newest max records.
func (l *Log) PruneToCount(max int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.db.Exec(`
		DELETE FROM activity WHERE id NOT IN (
			SELECT id FROM activity ORDER BY timestamp DESC LIMIT ?
		)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return result.RowsAffected()
}

// Stats returns aggregate statistics about logged activity.
func (l *Log) Stats() (map[string]interface{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]interface{})

	var total int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM activity`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_events"] = total

	var totalFaces int
	if err := l.db.QueryRow(`SELECT COALESCE(SUM(face_count), 0) FROM activity`).Scan(&totalFaces); err != nil {
		return nil, err
	}
	stats["total_faces"] = totalFaces

	rows, err := l.db.Query(`SELECT source, COUNT(*) FROM activity GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perSource := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		perSource[source] = count
	}
	stats["per_source"] = perSource

	return stats, rows.Err()
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}
