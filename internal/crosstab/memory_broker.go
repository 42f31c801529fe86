package crosstab

import (
	"context"
	"sync"

	"github.com/ikkim/storefront-sync/internal/app/model"
)

// MemoryBroker fans signals out to listeners in the same process.
// Each delivery runs on its own goroutine so a slow tab cannot block the publisher.
type MemoryBroker struct {
	mu        sync.RWMutex
	listeners map[int]func(model.SyncSignal)
	next      int
	wg        sync.WaitGroup
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{listeners: make(map[int]func(model.SyncSignal))}
}

func (b *MemoryBroker) Broadcast(_ context.Context, sig model.SyncSignal) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		b.wg.Add(1)
		go func(fn func(model.SyncSignal)) {
			defer b.wg.Done()
			fn(sig)
		}(fn)
	}
	return nil
}

func (b *MemoryBroker) Listen(_ context.Context, fn func(model.SyncSignal)) (func(), error) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}, nil
}

// Drain waits for deliveries already in flight
func (b *MemoryBroker) Drain() {
	b.wg.Wait()
}
