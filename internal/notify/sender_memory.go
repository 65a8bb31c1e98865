package notify

import (
	"context"
	"sync"
)

// MemorySender records requests instead of delivering them. Used in dev mode
// without a broker and as the test double for the dispatcher.
type MemorySender struct {
	mu   sync.Mutex
	sent []Request
	fail error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// FailWith makes subsequent Send calls return err (nil restores success).
func (s *MemorySender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemorySender) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, req)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (s *MemorySender) Sent() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.sent...)
}
