package publish

import (
	"context"
	"fmt"
	"sync"
)

// MockPublisher records issues instead of filing them.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, issue Issue) (*Published, error)

	mu     sync.Mutex
	issues []Issue
}

// Publish implements Publisher.
func (m *MockPublisher) Publish(ctx context.Context, issue Issue) (*Published, error) {
	m.mu.Lock()
	m.issues = append(m.issues, issue)
	n := len(m.issues)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, issue)
	}
	return &Published{Number: n, URL: fmt.Sprintf("https://example.com/issues/%d", n)}, nil
}

// Issues returns the issues published so far.
func (m *MockPublisher) Issues() []Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Issue(nil), m.issues...)
}
