package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/reelflow/internal/models"
)

// ProfileRepository reads the credential columns left on the profiles table
// by older releases. Only the backfill command uses it.
type ProfileRepository interface {
	ListWithLegacyCredentials(ctx context.Context) ([]*models.LegacyProfile, error)
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ListWithLegacyCredentials(ctx context.Context) ([]*models.LegacyProfile, error) {
	query := `
		SELECT id, ig_user_id, ig_access_token, ig_username
		FROM profiles
		WHERE ig_user_id IS NOT NULL AND ig_access_token IS NOT NULL
	`

	profiles := []*models.LegacyProfile{}
	err := r.db.SelectContext(ctx, &profiles, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return profiles, nil
}
