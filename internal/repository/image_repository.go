package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pixelhost/internal/models"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrDuplicateShortID = errors.New("short id already taken")
)

const uniqueViolation = "23505"

const imageColumns = `
	short_id, host, storage_key, size_bytes, content_type, original_name,
	content_hash, uploader_id, uploader_ip, deletion_key, uploaded_at,
	deleted, deletion_reason
`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, image models.Image) error {
	const query = `
		INSERT INTO images (
			short_id, host, storage_key, size_bytes, content_type, original_name,
			content_hash, uploader_id, uploader_ip, deletion_key, uploaded_at,
			deleted, deletion_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			FALSE, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ShortID,
		image.Host,
		image.StorageKey,
		image.SizeBytes,
		image.ContentType,
		image.OriginalName,
		image.ContentHash,
		image.UploaderID,
		image.UploaderIP,
		image.DeletionKey,
		image.UploadedAt,
		models.DeletionReasonNone,
	)
	return mapCreateError(err)
}

// mapCreateError turns a uniqueness violation into ErrDuplicateShortID so the
// caller can draw a new short id.
func mapCreateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateShortID
	}
	return err
}

func (r *ImageRepository) GetByStorageKey(ctx context.Context, storageKey string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE storage_key = $1`
	image, err := scanImage(r.pool.QueryRow(ctx, query, storageKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Image{}, ErrImageNotFound
	}
	return image, err
}

// ListActiveByUploader returns every image of uploaderID not yet deleted,
// oldest first.
func (r *ImageRepository) ListActiveByUploader(ctx context.Context, uploaderID string) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		WHERE uploader_id = $1 AND deleted = FALSE
		ORDER BY uploaded_at, short_id`

	rows, err := r.pool.Query(ctx, query, uploaderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (r *ImageRepository) MarkDeleted(ctx context.Context, shortID string, reason models.DeletionReason) error {
	const query = `
		UPDATE images SET deleted = TRUE, deletion_reason = $2 WHERE short_id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, shortID, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) CountByUploader(ctx context.Context, uploaderID string, deleted bool) (int64, error) {
	const query = `SELECT COUNT(*) FROM images WHERE uploader_id = $1 AND deleted = $2`
	var count int64
	if err := r.pool.QueryRow(ctx, query, uploaderID, deleted).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	err := row.Scan(
		&image.ShortID,
		&image.Host,
		&image.StorageKey,
		&image.SizeBytes,
		&image.ContentType,
		&image.OriginalName,
		&image.ContentHash,
		&image.UploaderID,
		&image.UploaderIP,
		&image.DeletionKey,
		&image.UploadedAt,
		&image.Deleted,
		&image.DeletionReason,
	)
	return image, err
}
