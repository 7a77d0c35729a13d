package service

import (
	"context"

	"pixelhost/internal/models"
)

// AccountStore is the slice of the account store the pipelines need.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByUploadToken(ctx context.Context, token string) (models.Account, error)
	RecordUpload(ctx context.Context, id string, ip string) (models.Account, error)
	SetImageCount(ctx context.Context, id string, count int64) error
	ListIDs(ctx context.Context) ([]string, error)
}

type ImageStore interface {
	Create(ctx context.Context, image models.Image) error
	GetByStorageKey(ctx context.Context, storageKey string) (models.Image, error)
	ListActiveByUploader(ctx context.Context, uploaderID string) ([]models.Image, error)
	MarkDeleted(ctx context.Context, shortID string, reason models.DeletionReason) error
	CountByUploader(ctx context.Context, uploaderID string, deleted bool) (int64, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, payload []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type TokenSource interface {
	ShortID() (string, error)
	Secret() (string, error)
}

// PurgeDispatcher hands an accepted purge to whatever runs it in the background.
type PurgeDispatcher interface {
	Dispatch(ctx context.Context, task models.PurgeTask) error
}
