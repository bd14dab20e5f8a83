// Package store persists conversation sessions in SQLite: one row per turn
// with the question, the validated command, the final answer, and any partial
// responses a composite run produced along the way.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"k9/internal/logging"
)

// SessionStore wraps the SQLite database. All writes are serialized; reads
// take the shared lock.
type SessionStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *logging.Logger
}

// Turn is one persisted question/answer exchange.
type Turn struct {
	SessionID   string    `json:"session_id"`
	TurnNumber  int       `json:"turn_number"`
	Question    string    `json:"question"`
	CommandJSON string    `json:"command_json,omitempty"`
	Intent      string    `json:"intent,omitempty"`
	Answer      string    `json:"answer"`
	Partials    []string  `json:"partials,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS session_turns (
	session_id   TEXT NOT NULL,
	turn_number  INTEGER NOT NULL,
	question     TEXT NOT NULL,
	command_json TEXT,
	intent       TEXT,
	answer       TEXT,
	partials     TEXT,
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, turn_number)
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON session_turns(session_id);
`

// Open initializes the database at path, creating the directory and schema
// as needed.
func Open(path string) (*SessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	s := &SessionStore{db: db, dbPath: path, log: logging.Get(logging.CategoryBoot)}
	s.log.Info("session store opened at %s", path)
	return s, nil
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveTurn records one completed turn. Duplicate (session, turn) pairs are
// silently skipped so replays stay idempotent.
func (s *SessionStore) SaveTurn(turn Turn) error {
	if s == nil || s.db == nil {
		return nil
	}
	var partials sql.NullString
	if len(turn.Partials) > 0 {
		raw, err := json.Marshal(turn.Partials)
		if err != nil {
			return fmt.Errorf("encoding partials: %w", err)
		}
		partials = sql.NullString{String: string(raw), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_turns
		 (session_id, turn_number, question, command_json, intent, answer, partials)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.TurnNumber, turn.Question,
		nullable(turn.CommandJSON), nullable(turn.Intent), turn.Answer, partials,
	)
	if err != nil {
		return fmt.Errorf("saving turn %d of %s: %w", turn.TurnNumber, turn.SessionID, err)
	}
	return nil
}

// History returns a session's turns in turn order.
func (s *SessionStore) History(sessionID string) ([]Turn, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT session_id, turn_number, question,
		        COALESCE(command_json, ''), COALESCE(intent, ''),
		        COALESCE(answer, ''), COALESCE(partials, ''), created_at
		 FROM session_turns WHERE session_id = ? ORDER BY turn_number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var partials string
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.Question,
			&t.CommandJSON, &t.Intent, &t.Answer, &partials, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if partials != "" {
			if err := json.Unmarshal([]byte(partials), &t.Partials); err != nil {
				return nil, fmt.Errorf("decoding partials for turn %d: %w", t.TurnNumber, err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// NextTurnNumber returns 1 + the highest turn recorded for the session.
func (s *SessionStore) NextTurnNumber(sessionID string) (int, error) {
	if s == nil || s.db == nil {
		return 1, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(turn_number) FROM session_turns WHERE session_id = ?`, sessionID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("counting turns for %s: %w", sessionID, err)
	}
	return int(max.Int64) + 1, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
