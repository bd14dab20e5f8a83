// Package logging provides categorized file-based trace logging plus the
// append-only clarification audit sink. Logs are written to <dir>/logs/ with
// one file per category. Logging must never break request execution: every
// failure here degrades to a no-op.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category names one pipeline subsystem's log stream.
type Category string

const (
	CategoryBoot         Category = "boot"         // startup and configuration
	CategoryRouter       Category = "router"       // command routing decisions
	CategoryEngine       Category = "engine"       // dataset loading, slicing
	CategoryAnalyst      Category = "analyst"      // analysis derivations
	CategoryOntology     Category = "ontology"     // ontology resolutions
	CategoryOrchestrator Category = "orchestrator" // graph and composite execution
	CategoryLLM          Category = "llm"          // model calls
	CategoryAPI          Category = "api"          // HTTP layer
	CategoryGraph        Category = "graph"        // graph database access
)

// entry is the JSONL line format.
type entry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes one category's stream.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	enabled   bool
)

// Initialize sets the log directory and enables file logging. Call once at
// startup; without it every logger is a silent no-op.
func Initialize(dir string, debug bool) error {
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	logsDir = filepath.Join(dir, "logs")
	enabled = debug
	if !enabled {
		return nil
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	Get(CategoryBoot).Info("logging initialized, dir=%s", logsDir)
	return nil
}

// Get returns the logger for a category, creating its file lazily.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if enabled {
		path := filepath.Join(logsDir, string(category)+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			l.file = file
			l.logger = log.New(file, "", 0)
		}
	}
	loggers[category] = l
	return l
}

// Close flushes and closes every open log file.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level, format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	e := entry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.logger.Print(string(line))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.write("debug", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.write("info", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.write("warn", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.write("error", format, args...) }

// WithFields logs an info entry with structured fields attached.
func (l *Logger) WithFields(message string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	e := entry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     "info",
		Message:   message,
		Fields:    fields,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.logger.Print(string(line))
}
