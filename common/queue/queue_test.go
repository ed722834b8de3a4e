package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/logger"
)

func TestMemoryQueueDeliversToSubscriber(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	ctx := context.Background()

	received := make(chan string, 1)
	require.NoError(t, q.Subscribe(ctx, TopicAssetValidate, func(ctx context.Context, key string, value []byte) error {
		received <- key
		return nil
	}))

	require.NoError(t, q.Publish(ctx, TopicAssetValidate, "42", []byte(`{"asset_row_id":42}`)))

	select {
	case key := <-received:
		assert.Equal(t, "42", key)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

// Closing the queue while a subscriber is blocked on its channel must stop
// the subscriber cleanly, not hand it a nil message.
func TestMemoryQueueCloseStopsSubscribers(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	ctx := context.Background()

	var handled atomic.Int64
	done := make(chan struct{}, 1)
	require.NoError(t, q.Subscribe(ctx, TopicVersionValidate, func(ctx context.Context, key string, value []byte) error {
		handled.Add(1)
		done <- struct{}{}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, TopicVersionValidate, "1", []byte(`{}`)))
	<-done

	require.NoError(t, q.Close())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), handled.Load())
}
