package memory

import (
	"context"
	"sync"
)

// Bus is a synchronous in-process event bus. Publish delivers to every
// subscriber of the topic before returning, which makes single-process mode
// and tests deterministic; subscriber isolation is the router's job.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]func(context.Context, []byte)
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]func(context.Context, []byte))}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, []byte){}, b.handlers[topic]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(ctx, payload)
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, topic string, handler func(context.Context, []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}
