package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pixelhost/internal/config"
	"pixelhost/internal/media/digest"
	"pixelhost/internal/media/sniffer"
	"pixelhost/internal/metrics"
	"pixelhost/internal/models"
	"pixelhost/internal/repository"
	"pixelhost/internal/security"
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,16}$`)

type UploadInput struct {
	Credential   string
	Payload      []byte
	OriginalName string
	ContentType  string
	Host         string
	ClientIP     string
}

type UploadResult struct {
	Image       models.Image
	Account     models.Account
	URL         string
	RawURL      string
	DeletionURL string
}

type UploadService struct {
	accounts AccountStore
	images   ImageStore
	blobs    BlobStore
	tokens   TokenSource
	cfg      config.UploadConfig
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

func NewUploadService(accounts AccountStore, images ImageStore, blobs BlobStore, tokens TokenSource, cfg config.UploadConfig, m *metrics.Metrics, log zerolog.Logger) *UploadService {
	return &UploadService{
		accounts: accounts,
		images:   images,
		blobs:    blobs,
		tokens:   tokens,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AdmitUpload runs admission and then commits the upload in a fixed order:
// account counter, metadata record, blob. A failure after the counter moved
// is returned as is; nothing already written is rolled back.
func (s *UploadService) AdmitUpload(ctx context.Context, input UploadInput) (UploadResult, error) {
	account, err := s.resolveAccount(ctx, input.Credential)
	if err != nil {
		s.observe("invalid_credential")
		return UploadResult{}, err
	}
	if account.Banned {
		s.observe("banned")
		return UploadResult{}, &BannedError{Reason: account.BanMessage()}
	}

	shortID, err := s.tokens.ShortID()
	if err != nil {
		s.observe("error")
		return UploadResult{}, fmt.Errorf("generate short id: %w", err)
	}
	deletionKey, err := s.tokens.Secret()
	if err != nil {
		s.observe("error")
		return UploadResult{}, fmt.Errorf("generate deletion key: %w", err)
	}

	host := strings.TrimSpace(input.Host)
	if host == "" {
		host = s.cfg.DefaultHost
	}

	image := models.Image{
		Host:           host,
		SizeBytes:      int64(len(input.Payload)),
		ContentType:    sniffer.ContentType(input.ContentType, input.Payload),
		OriginalName:   input.OriginalName,
		ContentHash:    digest.SHA256Hex(input.Payload),
		UploaderID:     account.ID,
		UploaderIP:     input.ClientIP,
		DeletionKey:    deletionKey,
		UploadedAt:     s.now(),
		DeletionReason: models.DeletionReasonNone,
	}

	account, err = s.accounts.RecordUpload(ctx, account.ID, input.ClientIP)
	if err != nil {
		s.observe("metadata_error")
		return UploadResult{}, fmt.Errorf("%w: record upload on account: %w", ErrMetadataWriteFailed, err)
	}

	image, err = s.createRecord(ctx, image, shortID, input.OriginalName)
	if err != nil {
		s.observe("metadata_error")
		s.log.Error().Err(err).
			Str("account_id", account.ID).
			Int64("image_count", account.ImageCount).
			Msg("image record not created after account counter moved")
		return UploadResult{Account: account}, err
	}

	if err := s.blobs.Put(ctx, image.StorageKey, input.Payload, image.ContentType); err != nil {
		s.observe("blob_error")
		s.log.Error().Err(err).
			Str("account_id", account.ID).
			Str("storage_key", image.StorageKey).
			Msg("blob write failed, metadata record left without payload")
		return UploadResult{Image: image, Account: account}, fmt.Errorf("%w: %w", ErrBlobWriteFailed, err)
	}

	s.observe("ok")
	s.metrics.UploadBytes.Add(float64(image.SizeBytes))
	s.log.Info().
		Str("account_id", account.ID).
		Str("short_id", image.ShortID).
		Int64("size_bytes", image.SizeBytes).
		Msg("image uploaded")

	rawURL := PublicURL(image.Host, image.StorageKey)
	return UploadResult{
		Image:       image,
		Account:     account,
		URL:         DisplayURL(rawURL, account.DiscordLink),
		RawURL:      rawURL,
		DeletionURL: DeletionURL(s.cfg.BaseURL, image.StorageKey, image.DeletionKey),
	}, nil
}

func (s *UploadService) resolveAccount(ctx context.Context, credential string) (models.Account, error) {
	if credential == "" {
		return models.Account{}, ErrInvalidCredential
	}

	account, err := s.accounts.GetByUploadToken(ctx, credential)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrInvalidCredential
		}
		return models.Account{}, fmt.Errorf("lookup upload key: %w", err)
	}
	if !security.SecretsEqual(account.UploadToken, credential) {
		return models.Account{}, ErrInvalidCredential
	}
	return account, nil
}

// createRecord persists image under shortID, drawing a new id each time the
// store reports a collision.
func (s *UploadService) createRecord(ctx context.Context, image models.Image, shortID, originalName string) (models.Image, error) {
	for attempt := 1; ; attempt++ {
		image.ShortID = shortID
		image.StorageKey = storageKey(shortID, originalName)

		err := s.images.Create(ctx, image)
		if err == nil {
			return image, nil
		}
		if !errors.Is(err, repository.ErrDuplicateShortID) {
			return models.Image{}, fmt.Errorf("%w: %w", ErrMetadataWriteFailed, err)
		}

		s.metrics.ShortIDCollisions.Inc()
		s.log.Warn().Str("short_id", shortID).Int("attempt", attempt).Msg("short id collision")
		if attempt >= s.cfg.MaxIDAttempts {
			return models.Image{}, ErrIdentifierSpaceExhausted
		}

		shortID, err = s.tokens.ShortID()
		if err != nil {
			return models.Image{}, fmt.Errorf("generate short id: %w", err)
		}
	}
}

func (s *UploadService) observe(result string) {
	s.metrics.UploadsTotal.WithLabelValues(result).Inc()
}

// storageKey keeps the original extension when it is a plain token.
func storageKey(shortID, originalName string) string {
	ext := path.Ext(originalName)
	if !extPattern.MatchString(ext) {
		return shortID
	}
	return shortID + ext
}
