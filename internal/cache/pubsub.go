package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/redis/go-redis/v9"
)

// operationChannels lists every channel an operation is published to.
func operationChannels(op *models.OperationEvent) []string {
	channels := []string{constants.PubSubChannelOperations}
	if op.Kind != "" {
		channels = append(channels, fmt.Sprintf("%s:kind:%s", constants.PubSubChannelOperations, op.Kind))
	}
	if op.Mint != "" {
		channels = append(channels, fmt.Sprintf("%s:mint:%s", constants.PubSubChannelOperations, op.Mint))
	}
	return channels
}

// PublishOperation publishes an operation to the live channel and to its
// kind- and mint-specific channels.
func (r *RedisCache) PublishOperation(ctx context.Context, op *models.OperationEvent) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, channel := range operationChannels(op) {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// SubscribeOperations streams operations from the live channel until ctx is done.
func (r *RedisCache) SubscribeOperations(ctx context.Context) (<-chan *models.OperationEvent, error) {
	pubsub := r.client.Subscribe(ctx, constants.PubSubChannelOperations)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", constants.PubSubChannelOperations, err)
	}

	out := make(chan *models.OperationEvent, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		r.pump(ctx, pubsub.Channel(), func(op *models.OperationEvent) {
			select {
			case out <- op:
			case <-ctx.Done():
			}
		})
	}()
	return out, nil
}

// Subscribe to a channel and call handler for each operation until ctx is done
func (r *RedisCache) Subscribe(ctx context.Context, channel string, handler func(*models.OperationEvent)) error {
	pubsub := r.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	r.logger.WithField("channel", channel).Info("subscribed")
	r.pump(ctx, pubsub.Channel(), handler)
	return ctx.Err()
}

// PSubscribe subscribes to a pattern (e.g., "ops:live:kind:*")
func (r *RedisCache) PSubscribe(ctx context.Context, pattern string, handler func(*models.OperationEvent)) error {
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	r.logger.WithField("pattern", pattern).Info("subscribed")
	r.pump(ctx, pubsub.Channel(), handler)
	return ctx.Err()
}

func (r *RedisCache) pump(ctx context.Context, ch <-chan *redis.Message, handler func(*models.OperationEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var op models.OperationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &op); err != nil {
				r.logger.WithError(err).WithField("channel", msg.Channel).Warn("error unmarshaling operation")
				continue
			}
			handler(&op)
		}
	}
}
