// Package audit keeps a queryable log of capability invocations made by
// workbench agents, keyed by role.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/spectersec/specter/internal/session"
	"github.com/spectersec/specter/pkg/models"
)

// Store is the SQLite-backed audit log.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// Record is one logged tool call or tool result.
type Record struct {
	ID         string
	RunID      string
	Role       models.Role
	Kind       string // "tool_call" or "tool_result"
	ToolName   string
	ToolCallID string
	Payload    string
	IsError    bool
	CreatedAt  time.Time
}

// DefaultPath returns the audit database location under the XDG data dir.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "specter", "audit.db")
}

// Open opens (or creates) the audit database at the given path and applies
// the schema. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory audit database: %w", err)
	}
	s := &Store{conn: conn, path: ":memory:"}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tool_events (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			role TEXT NOT NULL,
			kind TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			tool_call_id TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tool_events_role ON tool_events(role);
		CREATE INDEX IF NOT EXISTS idx_tool_events_run ON tool_events(run_id);
	`)
	if err != nil {
		return fmt.Errorf("create tool_events table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordDelta logs the tool calls and results appended to a role's history
// since the previous turn. prevLen is the history length before the turn;
// only entries past it are considered, so repeated turns never duplicate
// rows.
func (s *Store) RecordDelta(runID string, role models.Role, prevLen int, h session.History) error {
	if prevLen < 0 {
		prevLen = 0
	}
	if prevLen > len(h) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tool_events (id, run_id, role, kind, tool_name, tool_call_id, payload, is_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range h[prevLen:] {
		var payload string
		switch e.Kind {
		case session.EntryToolCall:
			payload = string(e.ToolInput)
		case session.EntryToolResult:
			payload = e.Content
		default:
			continue
		}

		isError := 0
		if e.IsError {
			isError = 1
		}
		if _, err := stmt.Exec(uuid.New().String(), runID, string(role),
			string(e.Kind), e.ToolName, e.ToolCallID, payload, isError); err != nil {
			return fmt.Errorf("insert audit row: %w", err)
		}
	}

	return tx.Commit()
}

// ByRole returns the role's logged events, oldest first.
func (s *Store) ByRole(role models.Role) ([]Record, error) {
	return s.query(`SELECT id, run_id, role, kind, tool_name, tool_call_id, payload, is_error, created_at
		FROM tool_events WHERE role = ? ORDER BY created_at, id`, string(role))
}

// ByRun returns a run's logged events, oldest first.
func (s *Store) ByRun(runID string) ([]Record, error) {
	return s.query(`SELECT id, run_id, role, kind, tool_name, tool_call_id, payload, is_error, created_at
		FROM tool_events WHERE run_id = ? ORDER BY created_at, id`, runID)
}

// Recent returns the most recent events, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(`SELECT id, run_id, role, kind, tool_name, tool_call_id, payload, is_error, created_at
		FROM tool_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) query(q string, args ...interface{}) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var role string
		var isError int
		if err := rows.Scan(&r.ID, &r.RunID, &role, &r.Kind, &r.ToolName,
			&r.ToolCallID, &r.Payload, &isError, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.Role = models.Role(role)
		r.IsError = isError != 0
		records = append(records, r)
	}
	return records, rows.Err()
}
