package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadTurns(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveTurn(Turn{
		SessionID:  "s1",
		TurnNumber: 1,
		Question:   "como va el riesgo R01?",
		Intent:     "ANALYTICAL_QUERY",
		Answer:     "R01 muestra tendencia al alza.",
	}))
	require.NoError(t, s.SaveTurn(Turn{
		SessionID:  "s1",
		TurnNumber: 2,
		Question:   "y comparado con el proactivo?",
		Intent:     "COMPARATIVE_QUERY",
		Answer:     "El modelo proactivo lo subestima.",
		Partials:   []string{"paso 1 listo", "paso 2 listo"},
	}))

	turns, err := s.History("s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "ANALYTICAL_QUERY", turns[0].Intent)
	assert.Empty(t, turns[0].Partials)
	assert.Equal(t, []string{"paso 1 listo", "paso 2 listo"}, turns[1].Partials)
	assert.False(t, turns[1].CreatedAt.IsZero())

	n, err := s.NextTurnNumber("s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDuplicateTurnIsIgnored(t *testing.T) {
	s := openTestStore(t)

	first := Turn{SessionID: "s1", TurnNumber: 1, Question: "q", Answer: "original"}
	require.NoError(t, s.SaveTurn(first))
	require.NoError(t, s.SaveTurn(Turn{SessionID: "s1", TurnNumber: 1, Question: "q", Answer: "replay"}))

	turns, err := s.History("s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "original", turns[0].Answer)
}

func TestEmptySessionHistory(t *testing.T) {
	s := openTestStore(t)

	turns, err := s.History("missing")
	require.NoError(t, err)
	assert.Empty(t, turns)

	n, err := s.NextTurnNumber("missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *SessionStore
	assert.NoError(t, s.SaveTurn(Turn{SessionID: "s1", TurnNumber: 1}))
	turns, err := s.History("s1")
	assert.NoError(t, err)
	assert.Nil(t, turns)
}
