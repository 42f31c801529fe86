package crosstab

import (
	"context"
	"sync"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Handler receives signals published by other tabs.
type Handler func(ctx context.Context, sig model.SyncSignal)

// Channel broadcasts "data changed" signals between tabs of one origin.
type Channel interface {
	// Publish records a signal for kind in persistent storage and notifies other tabs.
	// The returned signal carries the timestamp actually used.
	Publish(ctx context.Context, kind model.SyncKind, action string, at time.Time) (model.SyncSignal, error)
	// Subscribe registers handler for signals of kind published by other tabs.
	Subscribe(kind model.SyncKind, handler Handler) (unsubscribe func())
	// Latest returns the last stored signal for kind, whoever published it.
	Latest(ctx context.Context, kind model.SyncKind) (model.SyncSignal, bool)
	// TabID identifies this tab as the origin of its signals
	TabID() string
}

// Transport delivers signals to every listening tab, including the sender.
type Transport interface {
	Broadcast(ctx context.Context, sig model.SyncSignal) error
	Listen(ctx context.Context, fn func(model.SyncSignal)) (stop func(), err error)
}

type subscription struct {
	id      int
	kind    model.SyncKind
	handler Handler
}

// SyncChannel is the Channel of one tab.
type SyncChannel struct {
	store     *storage.LocalStore
	transport Transport
	tabID     string
	log       *logger.Logger

	mu       sync.Mutex
	subs     []subscription
	nextSub  int
	lastSent int64
	stop     func()
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSyncChannel starts listening on transport for signals from other tabs.
func NewSyncChannel(ctx context.Context, store *storage.LocalStore, transport Transport, tabID string, log *logger.Logger) (*SyncChannel, error) {
	if log == nil {
		log = logger.Nop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := &SyncChannel{
		store:     store,
		transport: transport,
		tabID:     tabID,
		log:       log.Component("crosstab").WithContext(map[string]interface{}{"tab_id": tabID}),
		ctx:       runCtx,
		cancel:    cancel,
	}

	stop, err := transport.Listen(ctx, c.dispatch)
	if err != nil {
		cancel()
		return nil, err
	}
	c.stop = stop
	return c, nil
}

func (c *SyncChannel) TabID() string {
	return c.tabID
}

func (c *SyncChannel) Publish(ctx context.Context, kind model.SyncKind, action string, at time.Time) (model.SyncSignal, error) {
	c.mu.Lock()
	ts := at.UnixMilli()
	if ts <= c.lastSent {
		ts = c.lastSent + 1
	}
	c.lastSent = ts
	c.mu.Unlock()

	sig := model.SyncSignal{Kind: kind, Action: action, Timestamp: ts, Origin: c.tabID}
	if err := c.store.Write(ctx, storage.SyncKey(kind), storage.ScopePersistent, sig); err != nil {
		return sig, err
	}
	if err := c.transport.Broadcast(ctx, sig); err != nil {
		c.log.Warn("Failed to notify other tabs", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return sig, err
	}

	c.log.Debug("Signal published", map[string]interface{}{
		"kind":      string(kind),
		"action":    action,
		"timestamp": ts,
	})
	return sig, nil
}

func (c *SyncChannel) Subscribe(kind model.SyncKind, handler Handler) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, kind: kind, handler: handler})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *SyncChannel) Latest(ctx context.Context, kind model.SyncKind) (model.SyncSignal, bool) {
	var sig model.SyncSignal
	if !c.store.Read(ctx, storage.SyncKey(kind), storage.ScopePersistent, &sig) {
		return model.SyncSignal{}, false
	}
	return sig, true
}

// Close stops listening and cancels handlers still running.
func (c *SyncChannel) Close() {
	c.cancel()
	if c.stop != nil {
		c.stop()
	}
}

func (c *SyncChannel) dispatch(sig model.SyncSignal) {
	// a tab never observes its own writes
	if sig.Origin == c.tabID {
		return
	}

	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs))
	for _, s := range c.subs {
		if s.kind == sig.Kind {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(c.ctx, sig)
	}
}
