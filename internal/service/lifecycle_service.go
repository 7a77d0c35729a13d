package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pixelhost/internal/ids"
	"pixelhost/internal/metrics"
	"pixelhost/internal/models"
	"pixelhost/internal/repository"
	"pixelhost/internal/security"
)

// recountTimeout bounds the final recount, which runs even when the job
// context has already expired.
const recountTimeout = 30 * time.Second

type PurgeTicket struct {
	JobID     string
	AccountID string
}

type ReconcileReport struct {
	Accounts int
	Failures int
}

type LifecycleService struct {
	accounts    AccountStore
	images      ImageStore
	blobs       BlobStore
	dispatcher  PurgeDispatcher
	concurrency int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewLifecycleService(accounts AccountStore, images ImageStore, blobs BlobStore, dispatcher PurgeDispatcher, concurrency int, m *metrics.Metrics, log zerolog.Logger) *LifecycleService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LifecycleService{
		accounts:    accounts,
		images:      images,
		blobs:       blobs,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		metrics:     m,
		log:         log,
	}
}

// RequestPurge validates the target and queues the purge. It returns as soon
// as the task is handed off; the images are not deleted yet.
func (s *LifecycleService) RequestPurge(ctx context.Context, targetID string, reason models.DeletionReason, requestedBy string) (PurgeTicket, error) {
	if !reason.Valid() {
		return PurgeTicket{}, fmt.Errorf("invalid deletion reason %q", reason)
	}

	account, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return PurgeTicket{}, ErrTargetNotFound
		}
		return PurgeTicket{}, fmt.Errorf("lookup target: %w", err)
	}

	task := models.PurgeTask{
		JobID:       ids.New(),
		AccountID:   account.ID,
		Reason:      reason,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.metrics.PurgeJobsTotal.WithLabelValues("dispatch_error").Inc()
		return PurgeTicket{}, fmt.Errorf("queue purge: %w", err)
	}

	s.metrics.PurgeJobsTotal.WithLabelValues("queued").Inc()
	s.log.Info().
		Str("job_id", task.JobID).
		Str("account_id", task.AccountID).
		Str("requested_by", requestedBy).
		Str("reason", string(reason)).
		Msg("purge queued")

	return PurgeTicket{JobID: task.JobID, AccountID: task.AccountID}, nil
}

type purgeOutcome struct {
	blobErr   error
	recordErr error
}

// RunPurge soft-deletes every active image of the task's account. Each image
// has its blob removed and is then marked deleted even if the blob removal
// failed. Failures stay isolated per image, and the account's image count is
// recomputed once the whole batch has settled.
func (s *LifecycleService) RunPurge(ctx context.Context, task models.PurgeTask) (models.PurgeReport, error) {
	start := time.Now()
	report := models.PurgeReport{JobID: task.JobID, AccountID: task.AccountID}
	logger := s.log.With().Str("job_id", task.JobID).Str("account_id", task.AccountID).Logger()

	images, err := s.images.ListActiveByUploader(ctx, task.AccountID)
	if err != nil {
		s.metrics.PurgeJobsTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("list active images: %w", err)
	}
	report.Total = len(images)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, image := range images {
		image := image
		g.Go(func() error {
			outcome := s.purgeOne(ctx, image, task.Reason)

			mu.Lock()
			defer mu.Unlock()
			if outcome.blobErr != nil {
				report.BlobFailures++
				logger.Warn().Err(outcome.blobErr).Str("storage_key", image.StorageKey).Msg("blob delete failed, blob leaked")
			} else {
				report.BlobsDeleted++
			}
			if outcome.recordErr != nil {
				report.RecordFailures++
				logger.Error().Err(outcome.recordErr).Str("short_id", image.ShortID).Msg("mark deleted failed")
			} else {
				report.RecordsMarked++
			}
			return nil
		})
	}
	_ = g.Wait()

	count, err := s.recount(ctx, task.AccountID)
	s.metrics.PurgeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PurgeJobsTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("recount images: %w", err)
	}
	report.ImageCount = count

	logger.Info().
		Int("total", report.Total).
		Int("blobs_deleted", report.BlobsDeleted).
		Int("blob_failures", report.BlobFailures).
		Int("records_marked", report.RecordsMarked).
		Int("record_failures", report.RecordFailures).
		Int64("image_count", report.ImageCount).
		Dur("took", time.Since(start)).
		Msg("purge settled")

	if report.RecordFailures > 0 {
		s.metrics.PurgeJobsTotal.WithLabelValues("incomplete").Inc()
		return report, ErrPurgeIncomplete
	}
	s.metrics.PurgeJobsTotal.WithLabelValues("done").Inc()
	return report, nil
}

func (s *LifecycleService) purgeOne(ctx context.Context, image models.Image, reason models.DeletionReason) purgeOutcome {
	var outcome purgeOutcome

	outcome.blobErr = s.blobs.Delete(ctx, image.StorageKey)
	s.metrics.PurgeObjectsTotal.WithLabelValues("blob", result(outcome.blobErr)).Inc()

	outcome.recordErr = s.images.MarkDeleted(ctx, image.ShortID, reason)
	s.metrics.PurgeObjectsTotal.WithLabelValues("record", result(outcome.recordErr)).Inc()

	return outcome
}

// DeleteWithKey soft-deletes one image using its deletion key. Deleting an
// image that is already deleted succeeds without side effects.
func (s *LifecycleService) DeleteWithKey(ctx context.Context, storageKey, deletionKey string) (models.Image, error) {
	image, err := s.images.GetByStorageKey(ctx, storageKey)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, fmt.Errorf("lookup image: %w", err)
	}
	if !security.SecretsEqual(image.DeletionKey, deletionKey) {
		return models.Image{}, ErrInvalidDeletionKey
	}
	if image.Deleted {
		return image, nil
	}

	if err := s.blobs.Delete(ctx, image.StorageKey); err != nil {
		s.log.Warn().Err(err).Str("storage_key", image.StorageKey).Msg("blob delete failed, blob leaked")
	}
	if err := s.images.MarkDeleted(ctx, image.ShortID, models.DeletionReasonKey); err != nil {
		return models.Image{}, fmt.Errorf("%w: %w", ErrMetadataWriteFailed, err)
	}
	image = image.MarkDeleted(models.DeletionReasonKey)

	if _, err := s.recount(ctx, image.UploaderID); err != nil {
		s.log.Error().Err(err).Str("account_id", image.UploaderID).Msg("recount after key deletion failed")
	}
	return image, nil
}

// ReconcileCounts recomputes the image count of every account, correcting any
// drift left by interrupted uploads or purges.
func (s *LifecycleService) ReconcileCounts(ctx context.Context) (ReconcileReport, error) {
	accountIDs, err := s.accounts.ListIDs(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list accounts: %w", err)
	}

	var report ReconcileReport
	for _, id := range accountIDs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Accounts++
		if _, err := s.recount(ctx, id); err != nil {
			report.Failures++
			s.metrics.AccountsReconciled.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Str("account_id", id).Msg("reconcile account failed")
			continue
		}
		s.metrics.AccountsReconciled.WithLabelValues("ok").Inc()
	}

	s.log.Info().Int("accounts", report.Accounts).Int("failures", report.Failures).Msg("image counts reconciled")
	return report, nil
}

func (s *LifecycleService) recount(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recountTimeout)
	defer cancel()

	count, err := s.images.CountByUploader(ctx, accountID, false)
	if err != nil {
		return 0, err
	}
	if err := s.accounts.SetImageCount(ctx, accountID, count); err != nil {
		return 0, err
	}
	return count, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
