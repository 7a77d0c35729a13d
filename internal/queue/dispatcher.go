package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pixelhost/internal/models"
	"pixelhost/internal/tasks"
)

// StreamDispatcher appends background tasks to a Redis stream, so queued
// purges survive an API or worker restart.
type StreamDispatcher struct {
	client *redis.Client
	stream string
}

func NewStreamDispatcher(client *redis.Client, stream string) *StreamDispatcher {
	return &StreamDispatcher{client: client, stream: stream}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, task models.PurgeTask) error {
	return d.add(ctx, tasks.PurgeValues(task))
}

func (d *StreamDispatcher) EnqueueReconcile(ctx context.Context) error {
	return d.add(ctx, tasks.ReconcileValues())
}

func (d *StreamDispatcher) add(ctx context.Context, values map[string]any) error {
	if _, err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: values,
	}).Result(); err != nil {
		return fmt.Errorf("xadd %s: %w", d.stream, err)
	}
	return nil
}
