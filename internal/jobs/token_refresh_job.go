package job

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/metrics"
	"github.com/maheshrc27/reelflow/internal/service"
	"github.com/maheshrc27/reelflow/internal/transfer"
	"golang.org/x/oauth2"
)

const refreshConcurrency = 10

// TokenRefresher exchanges a long-lived Instagram token for a fresh one.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, accessToken string) (*oauth2.Token, error)
}

type TokenRefreshJob struct {
	cs     service.CredentialService
	ns     service.NotificationService
	rt     TokenRefresher
	policy config.Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewTokenRefreshJob(
	cs service.CredentialService,
	ns service.NotificationService,
	rt TokenRefresher,
	policy config.Policy,
	logger *slog.Logger) *TokenRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenRefreshJob{
		cs:     cs,
		ns:     ns,
		rt:     rt,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// RefreshTokens is the cron entry point.
func (c *TokenRefreshJob) RefreshTokens() {
	if _, err := c.Run(context.Background()); err != nil {
		c.logger.Error("token refresh run failed", "error", err)
	}
}

// Run warns about and refreshes credentials close to expiry. Only a failure
// to list credentials is returned; per-account problems land in the report.
func (c *TokenRefreshJob) Run(ctx context.Context) (*transfer.TokenRefreshReport, error) {
	now := c.now()
	warnWindow := time.Duration(c.policy.TokenWarningDays) * 24 * time.Hour

	creds, err := c.cs.Expiring(ctx, now.Add(warnWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring credentials: %w", err)
	}

	report := &transfer.TokenRefreshReport{Errors: []string{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, cred := range creds {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *service.Credential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := c.check(ctx, cred, now)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if outcome.refreshed {
				report.Refreshed++
			}
			if outcome.warned {
				report.Warned++
			}
			if outcome.err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", cred.UserID, outcome.err))
			}
		}(cred)
	}
	wg.Wait()

	c.logger.Info("token refresh check completed",
		"checked", report.Checked,
		"refreshed", report.Refreshed,
		"warned", report.Warned,
		"errors", len(report.Errors))
	return report, nil
}

type refreshOutcome struct {
	refreshed bool
	warned    bool
	err       error
}

func (c *TokenRefreshJob) check(ctx context.Context, cred *service.Credential, now time.Time) refreshOutcome {
	if cred.TokenExpiresAt == nil {
		// expiry unknown: refresh, nothing to warn about
		if err := c.refresh(ctx, cred); err != nil {
			return refreshOutcome{err: err}
		}
		return refreshOutcome{refreshed: true}
	}

	days := daysUntil(*cred.TokenExpiresAt, now)
	if days <= 0 {
		c.ns.NotifyTokenExpiring(ctx, cred.UserID, 0)
		metrics.TokenRefreshes.WithLabelValues("expired").Inc()
		return refreshOutcome{warned: true}
	}

	var out refreshOutcome
	if days <= c.policy.TokenWarningDays && days > c.policy.TokenRefreshDaysBefore {
		c.ns.NotifyTokenExpiring(ctx, cred.UserID, days)
		metrics.TokenRefreshes.WithLabelValues("warned").Inc()
		out.warned = true
	}

	if days <= c.policy.TokenRefreshDaysBefore {
		if err := c.refresh(ctx, cred); err != nil {
			c.ns.NotifyTokenExpiring(ctx, cred.UserID, days)
			out.warned = true
			out.err = err
			return out
		}
		out.refreshed = true
	}
	return out
}

func (c *TokenRefreshJob) refresh(ctx context.Context, cred *service.Credential) error {
	token, err := c.rt.RefreshToken(ctx, cred.AccessToken)
	if err != nil {
		c.logger.Warn("instagram token refresh failed", "user_id", cred.UserID, "error", err)
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		return err
	}

	if err := c.cs.StoreToken(ctx, cred.ID, token.AccessToken, token.Expiry); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}

	c.logger.Info("instagram token refreshed", "user_id", cred.UserID, "expires_at", token.Expiry)
	metrics.TokenRefreshes.WithLabelValues("refreshed").Inc()
	return nil
}

// daysUntil counts whole days left, rounding down.
func daysUntil(expiresAt, now time.Time) int {
	return int(math.Floor(expiresAt.Sub(now).Hours() / 24))
}
