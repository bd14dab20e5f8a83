package perception

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted LLMClient for tests and offline runs. Responses
// are returned in order; when the script runs out, the last response
// repeats.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	calls     []string
	err       error
	failFrom  int
}

// NewMockClient returns a client that replays the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses, failFrom: -1}
}

// NewFailingMockClient returns a client whose every call fails with err.
func NewFailingMockClient(err error) *MockClient {
	return &MockClient{err: err, failFrom: -1}
}

// FailAfter makes every call after the first n fail.
func (m *MockClient) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFrom = n
}

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the next scripted response.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && m.failFrom < 0 {
		return "", m.err
	}
	m.calls = append(m.calls, userPrompt)
	if m.failFrom >= 0 && len(m.calls) > m.failFrom {
		if m.err != nil {
			return "", m.err
		}
		return "", fmt.Errorf("mock client scripted failure")
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock client has no scripted responses")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls returns the prompts received so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
