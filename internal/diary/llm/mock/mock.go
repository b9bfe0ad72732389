package mock

import (
	"context"
	"sync"

	"github.com/blueplan/diary-go/internal/diary/llm"
)

// Mock replays a fixed response and records every request it saw.
type Mock struct {
	mu       sync.Mutex
	Response *llm.Response
	Err      error
	Requests []llm.Request
}

func New(candidates ...string) *Mock {
	return &Mock{Response: &llm.Response{Candidates: candidates}}
}

func (m *Mock) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// Calls returns how many requests were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
