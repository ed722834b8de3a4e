package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/redis"
)

// RedisStreamQueue is a Queue backed by Redis streams with consumer groups.
// Each topic maps to one stream; workers in the same group share the
// messages, and a message is acknowledged only after its handler returns
// without error so a crashed worker leaves it pending for redelivery.
type RedisStreamQueue struct {
	client       *redis.Client
	group        string
	consumer     string
	blockTimeout time.Duration
	log          *logger.Logger
}

// NewRedisStreamQueue creates a stream-backed queue for the given consumer
// group. The consumer name is unique per process.
func NewRedisStreamQueue(client *redis.Client, group string, blockTimeout time.Duration, log *logger.Logger) *RedisStreamQueue {
	return &RedisStreamQueue{
		client:       client,
		group:        group,
		consumer:     fmt.Sprintf("%s-%s", group, uuid.New().String()[:8]),
		blockTimeout: blockTimeout,
		log:          log,
	}
}

// Publish appends a message to the topic stream
func (q *RedisStreamQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	_, err := q.client.AddToStream(ctx, topic, map[string]interface{}{
		"key":   key,
		"value": string(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins the consumer group on the topic stream and processes
// messages until ctx is cancelled
func (q *RedisStreamQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if err := q.client.CreateStreamGroup(ctx, topic, q.group); err != nil {
		return fmt.Errorf("failed to join group on %s: %w", topic, err)
	}

	q.log.Info("subscribing to stream", "topic", topic, "group", q.group, "consumer", q.consumer)

	go q.consume(ctx, topic, handler)
	return nil
}

func (q *RedisStreamQueue) consume(ctx context.Context, topic string, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			q.log.Info("stream subscription cancelled", "topic", topic)
			return
		default:
		}

		streams, err := q.client.ReadFromStreamGroup(ctx, q.group, q.consumer, topic, 10, q.blockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("failed to read from stream", "topic", topic, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				key, _ := msg.Values["key"].(string)
				value, _ := msg.Values["value"].(string)

				if err := handler(ctx, key, []byte(value)); err != nil {
					// Leave unacked for redelivery
					q.log.Error("message handler error", "topic", topic, "key", key, "error", err)
					continue
				}

				if err := q.client.AckStreamMessage(ctx, topic, q.group, msg.ID); err != nil {
					q.log.Error("failed to ack message", "topic", topic, "id", msg.ID, "error", err)
				}
			}
		}
	}
}

// Close closes the queue
func (q *RedisStreamQueue) Close() error {
	return nil
}
