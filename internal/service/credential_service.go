package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/pkg/utils"
)

var ErrNoCredential = errors.New("instagram account is not connected")

// Credential is a decrypted, ready-to-use Instagram credential.
type Credential struct {
	ID             string
	UserID         string
	AccountID      string
	AccessToken    string
	TokenExpiresAt *time.Time
}

type CredentialService interface {
	// Get returns ErrNoCredential when the user has not connected an account.
	Get(ctx context.Context, userID string) (*Credential, error)
	// Expiring lists credentials that expire before the given time or whose
	// expiry is unknown.
	Expiring(ctx context.Context, before time.Time) ([]*Credential, error)
	StoreToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error
}

type credentialService struct {
	cfg config.Config
	cr  repository.CredentialRepository
}

func NewCredentialService(cfg config.Config, cr repository.CredentialRepository) CredentialService {
	return &credentialService{cfg: cfg, cr: cr}
}

func (s *credentialService) Get(ctx context.Context, userID string) (*Credential, error) {
	cred, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.AccountID == "" || cred.AccessToken == "" {
		return nil, ErrNoCredential
	}

	token, err := utils.Decrypt(cred.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return &Credential{
		ID:             cred.ID,
		UserID:         cred.UserID,
		AccountID:      cred.AccountID,
		AccessToken:    token,
		TokenExpiresAt: cred.TokenExpiresAt,
	}, nil
}

func (s *credentialService) Expiring(ctx context.Context, before time.Time) ([]*Credential, error) {
	creds, err := s.cr.ListExpiring(ctx, before)
	if err != nil {
		return nil, err
	}

	out := make([]*Credential, 0, len(creds))
	for _, cred := range creds {
		token, err := utils.Decrypt(cred.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			slog.Warn("skipping credential with unreadable token", "user_id", cred.UserID, "error", err)
			continue
		}
		out = append(out, &Credential{
			ID:             cred.ID,
			UserID:         cred.UserID,
			AccountID:      cred.AccountID,
			AccessToken:    token,
			TokenExpiresAt: cred.TokenExpiresAt,
		})
	}
	return out, nil
}

func (s *credentialService) StoreToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	encrypted, err := utils.Encrypt([]byte(accessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	return s.cr.UpdateToken(ctx, id, encrypted, expiresAt)
}
