package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pixelhost/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

const accountColumns = `
	id, username, upload_token, role, banned, ban_reason, image_count,
	known_ips, discord_link, created_at, updated_at
`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUploadToken(ctx context.Context, token string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE upload_token = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, token))
}

// RecordUpload bumps image_count and adds ip to known_ips when it is not
// already present, in one statement.
func (r *AccountRepository) RecordUpload(ctx context.Context, id string, ip string) (models.Account, error) {
	query := `
		UPDATE accounts
		SET image_count = image_count + 1,
		    known_ips = CASE
		        WHEN $2::text = '' OR $2::text = ANY(known_ips) THEN known_ips
		        ELSE array_append(known_ips, $2::text)
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns
	return scanAccount(r.pool.QueryRow(ctx, query, id, ip))
}

func (r *AccountRepository) SetImageCount(ctx context.Context, id string, count int64) error {
	const query = `
		UPDATE accounts SET image_count = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, count)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.UploadToken,
		&account.Role,
		&account.Banned,
		&account.BanReason,
		&account.ImageCount,
		&account.KnownIPs,
		&account.DiscordLink,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}
