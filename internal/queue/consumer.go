package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxDeliveries caps how often a pending entry is re-claimed before it is
// acknowledged and dropped.
const maxDeliveries = 5

const pendingPageSize = 10

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

// Failure reports an entry whose handler failed. The entry stays pending.
type Failure struct {
	MessageID string
	Err       error
}

type ConsumerConfig struct {
	Stream        string
	Group         string
	Name          string
	Workers       int
	ClaimInterval time.Duration

	// ClaimMinIdle must exceed the longest a handler may run, or entries still
	// in progress get claimed a second time.
	ClaimMinIdle time.Duration
}

type Consumer struct {
	client   *redis.Client
	cfg      ConsumerConfig
	logger   zerolog.Logger
	handler  MessageHandler
	failures chan Failure
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, logger zerolog.Logger, handler MessageHandler) *Consumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ClaimMinIdle < cfg.ClaimInterval {
		cfg.ClaimMinIdle = cfg.ClaimInterval
	}
	return &Consumer{
		client:   client,
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		failures: make(chan Failure, 64),
	}
}

// Failures is closed once Start has returned and every worker has stopped.
func (c *Consumer) Failures() <-chan Failure {
	return c.failures
}

// Start reads the stream with a fixed pool of workers until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	defer close(c.failures)

	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	jobs := make(chan redis.XMessage)
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				c.process(ctx, msg)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	ticker := time.NewTicker(c.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx, jobs); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("stream read error")
				sleep(ctx, 2*time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx, jobs); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("claim stalled entries failed")
			}
		default:
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) read(ctx context.Context, jobs chan<- redis.XMessage) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    int64(c.cfg.Workers),
		Block:    5 * time.Second,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			if !dispatch(ctx, jobs, msg) {
				return ctx.Err()
			}
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("handle message failed")
		c.reportFailure(Failure{MessageID: msg.ID, Err: err})
		return
	}
	// the work is done; acknowledge it even if shutdown started meanwhile
	if err := c.client.XAck(context.WithoutCancel(ctx), c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

func (c *Consumer) reportFailure(f Failure) {
	select {
	case c.failures <- f:
	default:
		c.logger.Warn().Str("message_id", f.MessageID).Msg("failure channel full, dropping report")
	}
}

func (c *Consumer) claimStalled(ctx context.Context, jobs chan<- redis.XMessage) error {
	fetch := func(start string) ([]redis.XPendingExt, error) {
		return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: c.cfg.Stream,
			Group:  c.cfg.Group,
			Idle:   c.cfg.ClaimMinIdle,
			Start:  start,
			End:    "+",
			Count:  pendingPageSize,
		}).Result()
	}
	return scanPending(fetch, func(entry redis.XPendingExt) error {
		return c.claimEntry(ctx, jobs, entry)
	})
}

func (c *Consumer) claimEntry(ctx context.Context, jobs chan<- redis.XMessage, entry redis.XPendingExt) error {
	if entry.Idle < c.cfg.ClaimMinIdle {
		return nil
	}
	if entry.RetryCount >= maxDeliveries {
		c.logger.Error().
			Str("message_id", entry.ID).
			Int64("deliveries", entry.RetryCount).
			Msg("giving up on entry")
		if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, entry.ID).Err(); err != nil {
			c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("ack abandoned entry failed")
		}
		return nil
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		MinIdle:  c.cfg.ClaimMinIdle,
		Messages: []string{entry.ID},
	}).Result()
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("claim error")
		return nil
	}
	for _, msg := range msgs {
		c.logger.Info().Str("message_id", msg.ID).Msg("retrying stalled entry")
		if !dispatch(ctx, jobs, msg) {
			return ctx.Err()
		}
	}
	return nil
}

// scanPending walks the whole pending list page by page, resuming after the
// last id of each full page.
func scanPending(fetch func(start string) ([]redis.XPendingExt, error), visit func(redis.XPendingExt) error) error {
	start := "-"
	for {
		page, err := fetch(start)
		if err != nil {
			return err
		}
		for _, entry := range page {
			if err := visit(entry); err != nil {
				return err
			}
		}
		if len(page) < pendingPageSize {
			return nil
		}
		start = "(" + page[len(page)-1].ID
	}
}

func dispatch(ctx context.Context, jobs chan<- redis.XMessage, msg redis.XMessage) bool {
	select {
	case jobs <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
