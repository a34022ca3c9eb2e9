package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/reelflow/internal/models"
)

type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.InstagramCredential, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.InstagramCredential, error)
	UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error
	CreateIfMissing(ctx context.Context, cred *models.InstagramCredential) (bool, error)
}

type credentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

const credentialColumns = `id, user_id, ig_user_id, username, access_token, token_expires_at, created_at, updated_at`

func (r *credentialRepository) GetByUserID(ctx context.Context, userID string) (*models.InstagramCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM instagram_credentials WHERE user_id = $1`

	var cred models.InstagramCredential
	err := r.db.GetContext(ctx, &cred, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &cred, nil
}

// ListExpiring returns credentials expiring before the given time, plus those
// whose expiry was never recorded.
func (r *credentialRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.InstagramCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM instagram_credentials
		WHERE token_expires_at IS NULL OR token_expires_at <= $1
		ORDER BY token_expires_at ASC NULLS FIRST
	`

	creds := []*models.InstagramCredential{}
	err := r.db.SelectContext(ctx, &creds, query, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepository) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE instagram_credentials
		SET access_token = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, accessToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// CreateIfMissing inserts cred unless the user already has a credential.
func (r *credentialRepository) CreateIfMissing(ctx context.Context, cred *models.InstagramCredential) (bool, error) {
	query := `
		INSERT INTO instagram_credentials (id, user_id, ig_user_id, username, access_token, token_expires_at)
		VALUES (:id, :user_id, :ig_user_id, :username, :access_token, :token_expires_at)
		ON CONFLICT (user_id) DO NOTHING
	`

	res, err := r.db.NamedExecContext(ctx, query, cred)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
