package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pixelhost/internal/models"
	"pixelhost/internal/service"
)

// Runner executes the background work queued by the API.
type Runner interface {
	RunPurge(ctx context.Context, task models.PurgeTask) (models.PurgeReport, error)
	ReconcileCounts(ctx context.Context) (service.ReconcileReport, error)
}

type Processor struct {
	runner     Runner
	jobTimeout time.Duration
	logger     zerolog.Logger
}

func NewProcessor(runner Runner, jobTimeout time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		runner:     runner,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Handle returns an error when the entry should stay pending and be retried.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload Payload
	if err := decodePayload(msg.Values, &payload); err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}

	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	switch payload.Type {
	case TypePurge:
		return p.handlePurge(ctx, payload)
	case TypeReconcile:
		return p.handleReconcile(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handlePurge(ctx context.Context, payload Payload) error {
	task, err := payload.PurgeTask()
	if err != nil {
		p.logger.Error().Err(err).Msg("dropping malformed purge task")
		return nil
	}

	report, err := p.runner.RunPurge(ctx, task)
	if err != nil {
		return fmt.Errorf("purge %s: %w", task.JobID, err)
	}
	p.logger.Debug().
		Str("job_id", report.JobID).
		Int("total", report.Total).
		Msg("purge task finished")
	return nil
}

func (p *Processor) handleReconcile(ctx context.Context) error {
	if _, err := p.runner.ReconcileCounts(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}
