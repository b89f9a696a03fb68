package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"
)

// ErrPathRequired is returned when the journal path is missing.
var ErrPathRequired = errors.New("journal path must be configured")

const defaultFilePragmas = "mode=rwc&_busy_timeout=5000&_journal_mode=WAL"

// Status labels the outcome of a journaled operation.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
)

// Entry is one journaled vault operation.
type Entry struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Caller    string            `json:"caller,omitempty"`
	Status    Status            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Journal is an append-only sqlite log of vault operations. It is an audit
// trail only; ledger state lives in the KV store.
type Journal struct {
	db *sql.DB
}

// FileDSN converts a filesystem path into an on-disk SQLite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// Open initialises the journal using a sqlite DSN such as ":memory:" or the
// output of FileDSN.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if trimmed == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry, assigning an ID and timestamp when absent. The
// stored entry is returned.
func (j *Journal) Record(ctx context.Context, entry Entry) (Entry, error) {
	if j == nil || j.db == nil {
		return entry, fmt.Errorf("journal not configured")
	}
	if strings.TrimSpace(entry.Operation) == "" {
		return entry, fmt.Errorf("journal entry missing operation")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.Status == "" {
		entry.Status = StatusCommitted
	}
	details := "{}"
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return entry, fmt.Errorf("encode details: %w", err)
		}
		details = string(encoded)
	}
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO operations(id, operation, caller, status, error, details, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
    `, entry.ID, entry.Operation, entry.Caller, string(entry.Status), entry.Error, details, entry.Timestamp.UnixNano())
	if err != nil {
		return entry, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT id, operation, caller, status, error, details, recorded_at
        FROM operations
        ORDER BY seq DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			status   string
			details  string
			recorded int64
		)
		if err := rows.Scan(&entry.ID, &entry.Operation, &entry.Caller, &status, &entry.Error, &details, &recorded); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Status = Status(status)
		entry.Timestamp = time.Unix(0, recorded).UTC()
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    operation TEXT NOT NULL,
    caller TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '{}',
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_operation ON operations(operation);
`
