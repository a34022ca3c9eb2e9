package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/transfer"
	"github.com/maheshrc27/reelflow/pkg/utils"
)

// BackfillLegacyCredentials copies Instagram credentials still embedded in
// profiles into instagram_credentials. Users that already have a credential
// row are left untouched, so the command can be re-run safely. With dryRun
// nothing is written.
func BackfillLegacyCredentials(
	ctx context.Context,
	pr repository.ProfileRepository,
	cr repository.CredentialRepository,
	secretKey string,
	dryRun bool) (*transfer.BackfillReport, error) {
	profiles, err := pr.ListWithLegacyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy profiles: %w", err)
	}

	report := &transfer.BackfillReport{Found: len(profiles)}
	for _, p := range profiles {
		if p.AccountID == nil || p.AccessToken == nil || *p.AccountID == "" || *p.AccessToken == "" {
			report.Skipped++
			continue
		}

		existing, err := cr.GetByUserID(ctx, p.UserID)
		if err != nil {
			slog.Warn("failed to look up credential", "user_id", p.UserID, "error", err)
			report.Failed++
			continue
		}
		if existing != nil {
			report.Skipped++
			continue
		}

		if dryRun {
			slog.Info("would migrate credential", "user_id", p.UserID, "ig_user_id", *p.AccountID)
			report.Migrated++
			continue
		}

		encrypted, err := utils.Encrypt([]byte(*p.AccessToken), []byte(secretKey))
		if err != nil {
			return report, fmt.Errorf("failed to encrypt access token: %w", err)
		}

		cred := &models.InstagramCredential{
			ID:          uuid.NewString(),
			UserID:      p.UserID,
			AccountID:   *p.AccountID,
			AccessToken: encrypted,
		}
		if p.Username != nil {
			cred.Username = *p.Username
		}

		created, err := cr.CreateIfMissing(ctx, cred)
		if err != nil {
			slog.Warn("failed to migrate credential", "user_id", p.UserID, "error", err)
			report.Failed++
			continue
		}
		if !created {
			report.Skipped++
			continue
		}
		report.Migrated++
	}
	return report, nil
}
