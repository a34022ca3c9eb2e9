package models

import "time"

// InstagramCredential is written by the account-connection flow. AccessToken
// is stored AES-GCM encrypted with the shared secret key.
type InstagramCredential struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	AccountID      string     `db:"ig_user_id" json:"ig_user_id"`
	Username       string     `db:"username" json:"username"`
	AccessToken    string     `db:"access_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// LegacyProfile carries the credential columns the profiles table held
// before instagram_credentials existed.
type LegacyProfile struct {
	UserID      string  `db:"id"`
	AccountID   *string `db:"ig_user_id"`
	AccessToken *string `db:"ig_access_token"`
	Username    *string `db:"ig_username"`
}
