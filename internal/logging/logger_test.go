package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, true))
	t.Cleanup(Close)

	Get(CategoryRouter).Info("intent %s validated", "ANALYTICAL_QUERY")
	Get(CategoryRouter).WithFields("time derived", map[string]any{"value": "LAST_WEEK"})
	Close()

	raw, err := os.ReadFile(filepath.Join(dir, "logs", "router.log"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	var lines []map[string]any
	for scanner.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "router", lines[0]["cat"])
	assert.Equal(t, "intent ANALYTICAL_QUERY validated", lines[0]["msg"])
	assert.Equal(t, "LAST_WEEK", lines[1]["fields"].(map[string]any)["value"])
}

func TestDisabledLoggingIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, false))
	t.Cleanup(Close)

	Get(CategoryEngine).Error("boom")
	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestClarificationLogSerializesAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "clarifications.jsonl")
	sink := NewClarificationLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(turn int) {
			defer wg.Done()
			assert.NoError(t, sink.Append(ClarificationEvent{
				SessionID: "s1",
				Turn:      turn,
				Question:  "que?",
				Reason:    "ambiguous time reference",
				Options:   []string{"esta semana", "el mes pasado"},
			}))
		}(i)
	}
	wg.Wait()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	count := 0
	for scanner.Scan() {
		var event ClarificationEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		assert.Equal(t, "s1", event.SessionID)
		assert.False(t, event.Timestamp.IsZero())
		count++
	}
	assert.Equal(t, 20, count)
}

func TestNilSinkIsSafe(t *testing.T) {
	var sink *ClarificationLog
	assert.NoError(t, sink.Append(ClarificationEvent{Question: "q"}))
}
