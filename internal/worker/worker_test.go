package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khadka27/assignmentghar-chat/internal/queue"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
)

func newTestPool(t *testing.T) (*WorkerPool, *redis.Client, context.CancelFunc) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := ws.NewHub(ws.NewPresenceRegistry(), nil)
	t.Cleanup(hub.Close)

	wp := NewWorkerPool(rdb, 1, hub)
	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)
	t.Cleanup(func() {
		cancel()
		wp.Wait()
	})
	return wp, rdb, cancel
}

func TestWorkerMovesExhaustedJobToDLQ(t *testing.T) {
	_, rdb, _ := newTestPool(t)

	ctx := context.Background()
	producer := queue.NewProducer(rdb)

	now := time.Now().Unix()
	job := queue.Job{
		ID:        "doomed",
		Type:      "no_such_job_type",
		Payload:   queue.MustMarshal(map[string]string{}),
		MaxRetry:  0,
		CreatedAt: now - 5,
		ExpireAt:  now - 1,
	}
	require.NoError(t, producer.Enqueue(ctx, job))

	require.Eventually(t, func() bool {
		n, err := rdb.LLen(ctx, queue.DLQKey).Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)

	raw, err := rdb.LPop(ctx, queue.DLQKey).Result()
	require.NoError(t, err)

	var dead queue.Job
	require.NoError(t, json.Unmarshal([]byte(raw), &dead))
	assert.Equal(t, "doomed", dead.ID)
	assert.Equal(t, 1, dead.Retry)
	assert.Contains(t, dead.ErrorMsg, "unknown job type")
}

func TestWorkerRequeuesFailedJobWithBackoff(t *testing.T) {
	_, rdb, _ := newTestPool(t)

	ctx := context.Background()
	producer := queue.NewProducer(rdb)

	now := time.Now().Unix()
	job := queue.Job{
		ID:        "flaky",
		Type:      "no_such_job_type",
		Payload:   queue.MustMarshal(map[string]string{}),
		MaxRetry:  3,
		CreatedAt: now - 5,
		ExpireAt:  now + 300,
	}
	require.NoError(t, producer.Enqueue(ctx, job))

	// the failed attempt re-enters the queue scored into the future
	require.Eventually(t, func() bool {
		entries, err := rdb.ZRangeWithScores(ctx, queue.QueueKey, 0, -1).Result()
		if err != nil || len(entries) != 1 {
			return false
		}
		var requeued queue.Job
		if err := json.Unmarshal([]byte(entries[0].Member.(string)), &requeued); err != nil {
			return false
		}
		return requeued.Retry == 1 && entries[0].Score > float64(time.Now().Unix())
	}, 5*time.Second, 50*time.Millisecond)

	n, err := rdb.LLen(ctx, queue.DLQKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherStopsWhileBlockedOnFullChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// no workers and no channel buffer, so the first popped job parks the
	// dispatcher on the send
	wp := &WorkerPool{Redis: rdb, JobChannel: make(chan string)}

	ctx, cancel := context.WithCancel(context.Background())
	producer := queue.NewProducer(rdb)

	now := time.Now().Unix()
	for _, id := range []string{"first", "second"} {
		require.NoError(t, producer.Enqueue(ctx, queue.Job{
			ID:        id,
			Type:      "no_such_job_type",
			Payload:   queue.MustMarshal(map[string]string{}),
			CreatedAt: now - 5,
			ExpireAt:  now + 300,
		}))
	}

	wp.Start(ctx)

	require.Eventually(t, func() bool {
		n, err := rdb.ZCard(context.Background(), queue.QueueKey).Result()
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	// cancellation must unblock the send so the dispatcher exits and closes
	// the channel
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-wp.JobChannel:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
