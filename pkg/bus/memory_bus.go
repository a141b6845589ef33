package bus

import (
	"context"
	"sync"
)

// MemoryBus delivers events within a single process. It backs unit tests and
// local development without Redis.
type MemoryBus struct {
	mu       sync.Mutex
	handlers []func(Event)
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	handlers := make([]func(Event), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()
	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler func(Event)) {
	b.mu.Lock()
	if !b.closed {
		b.handlers = append(b.handlers, handler)
	}
	b.mu.Unlock()
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.closed = true
	b.mu.Unlock()
	return nil
}
