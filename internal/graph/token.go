package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/reelflow/internal/transfer"
	"golang.org/x/oauth2"
)

// DefaultTokenLifetime applies when a refresh response carries no expires_in.
const DefaultTokenLifetime = 60 * 24 * time.Hour

// RefreshToken exchanges a long-lived token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (*oauth2.Token, error) {
	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", accessToken)

	var resp transfer.RefreshTokenResponse
	status, err := c.getJSON(ctx, fmt.Sprintf("%s/refresh_access_token?%s", c.tokenBaseURL, q.Encode()), &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh long-lived token: %w", err)
	}
	if err := responseError(status, resp.Error, "Failed to refresh access token"); err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp.AccessToken == "" {
		return nil, fmt.Errorf("no access token returned from Instagram (status code: %d)", status)
	}

	lifetime := DefaultTokenLifetime
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
	}

	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	return &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   tokenType,
		Expiry:      time.Now().Add(lifetime),
	}, nil
}
