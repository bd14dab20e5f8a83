package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ClarificationEvent is one audit record of a failed or ambiguous
// interpretation. Write-only from the pipeline's perspective; nothing ever
// reads these back during a request.
type ClarificationEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Turn      int       `json:"turn"`
	Question  string    `json:"question"`
	Reason    string    `json:"reason"`
	Options   []string  `json:"options,omitempty"`
	RawOutput string    `json:"raw_output,omitempty"`
}

// ClarificationLog appends line-delimited JSON events to a single file.
// Appends are serialized; concurrent writers never interleave lines.
type ClarificationLog struct {
	mu   sync.Mutex
	path string
}

// NewClarificationLog returns a sink writing to path. The directory is
// created on first append.
func NewClarificationLog(path string) *ClarificationLog {
	return &ClarificationLog{path: path}
}

// Append writes one event. Errors are returned for visibility but callers
// must treat them as non-fatal: audit logging never aborts a request.
func (c *ClarificationLog) Append(event ClarificationEvent) error {
	if c == nil || c.path == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding clarification event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating clarification log directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening clarification log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending clarification event: %w", err)
	}
	return nil
}
