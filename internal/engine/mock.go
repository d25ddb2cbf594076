package engine

import (
	"context"
	"sync"
)

// Mock provides deterministic replies for tests. When Fragments is set the
// streaming path emits them one by one; otherwise Reply is emitted whole.
type Mock struct {
	mu        sync.Mutex
	Reply     string
	Fragments []string
	Err       error

	// FailAfter aborts the stream with Err after this many fragments when
	// Err is set and Fragments is non-empty. Zero means fail before the
	// first fragment.
	FailAfter int

	requests []Request
}

func NewMock(reply string) *Mock {
	return &Mock{Reply: reply}
}

func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	m.record(req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *Mock) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	m.record(req)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fragments := m.Fragments
	if len(fragments) == 0 {
		fragments = []string{m.Reply}
	}
	if m.Err != nil && len(m.Fragments) == 0 {
		return "", m.Err
	}

	var out string
	for i, f := range fragments {
		if m.Err != nil && i >= m.FailAfter {
			return "", m.Err
		}
		out += f
		if onDelta != nil {
			if err := onDelta(f); err != nil {
				return "", err
			}
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return out, nil
}

// Requests returns a copy of every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil before any call.
func (m *Mock) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	r := m.requests[len(m.requests)-1]
	return &r
}

func (m *Mock) record(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}
