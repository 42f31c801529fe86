package crosstab

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisNotifier carries signals over the pub/sub channel <origin>:storage.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisNotifier(client *redis.Client, origin string, log *logger.Logger) *RedisNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisNotifier{
		client:  client,
		channel: fmt.Sprintf("%s:storage", origin),
		log:     log.Component("crosstab"),
	}
}

func (n *RedisNotifier) Broadcast(ctx context.Context, sig model.SyncSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

func (n *RedisNotifier) Listen(ctx context.Context, fn func(model.SyncSignal)) (func(), error) {
	ps := n.client.Subscribe(ctx, n.channel)
	// wait for the subscription to be confirmed so no signal published afterwards is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var sig model.SyncSignal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				n.log.Warn("Dropping malformed signal", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			fn(sig)
		}
	}()

	return func() {
		_ = ps.Close()
		<-done
	}, nil
}
