package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, msg redis.XMessage) error

func (f handlerFunc) Handle(ctx context.Context, msg redis.XMessage) error { return f(ctx, msg) }

func TestNewConsumerNormalizesConfig(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Workers: 0, ClaimInterval: time.Minute, ClaimMinIdle: time.Second}, zerolog.Nop(), nil)

	assert.Equal(t, 1, c.cfg.Workers)
	assert.Equal(t, time.Minute, c.cfg.ClaimMinIdle)
}

func TestProcessReportsFailureWithoutAck(t *testing.T) {
	boom := errors.New("boom")
	c := NewConsumer(nil, ConsumerConfig{Workers: 1, ClaimInterval: time.Second}, zerolog.Nop(), handlerFunc(func(context.Context, redis.XMessage) error {
		return boom
	}))

	c.process(context.Background(), redis.XMessage{ID: "1-0"})

	select {
	case f := <-c.Failures():
		assert.Equal(t, "1-0", f.MessageID)
		assert.ErrorIs(t, f.Err, boom)
	default:
		t.Fatal("expected a failure report")
	}
}

func TestReportFailureNeverBlocks(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{ClaimInterval: time.Second}, zerolog.Nop(), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(c.failures)+10; i++ {
			c.reportFailure(Failure{MessageID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reportFailure blocked on a full channel")
	}
	assert.Len(t, c.failures, cap(c.failures))
}

func TestDispatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := make(chan redis.XMessage)
	require.False(t, dispatch(ctx, jobs, redis.XMessage{ID: "1-0"}))

	buffered := make(chan redis.XMessage, 1)
	require.True(t, dispatch(context.Background(), buffered, redis.XMessage{ID: "2-0"}))
	assert.Equal(t, "2-0", (<-buffered).ID)
}

func TestScanPendingWalksEveryPage(t *testing.T) {
	var pending []redis.XPendingExt
	for i := 0; i < 2*pendingPageSize+5; i++ {
		pending = append(pending, redis.XPendingExt{ID: fmt.Sprintf("%d-0", i+1)})
	}

	var starts []string
	fetch := func(start string) ([]redis.XPendingExt, error) {
		starts = append(starts, start)
		from := 0
		if start != "-" {
			for i, e := range pending {
				if "("+e.ID == start {
					from = i + 1
				}
			}
		}
		to := from + pendingPageSize
		if to > len(pending) {
			to = len(pending)
		}
		return pending[from:to], nil
	}

	var visited []string
	err := scanPending(fetch, func(e redis.XPendingExt) error {
		visited = append(visited, e.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, visited, len(pending))
	assert.Equal(t, "25-0", visited[len(visited)-1])
	assert.Equal(t, []string{"-", "(10-0", "(20-0"}, starts)
}

func TestScanPendingStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(string) ([]redis.XPendingExt, error) {
		return []redis.XPendingExt{{ID: "1-0"}, {ID: "2-0"}}, nil
	}

	calls := 0
	err := scanPending(fetch, func(redis.XPendingExt) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	err = scanPending(func(string) ([]redis.XPendingExt, error) { return nil, boom }, func(redis.XPendingExt) error { return nil })
	assert.ErrorIs(t, err, boom)
}
