package application

import (
	"context"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/rs/zerolog"
)

const DefaultRefreshThreshold = 10 * time.Minute

// TokenManager holds the current Credential and renews it ahead of expiry.
// It is driven from the foreground tick and is not safe for concurrent use.
type TokenManager struct {
	auth      ports.Authenticator
	box       *mailbox.Mailbox
	runner    *Runner
	threshold time.Duration
	logger    zerolog.Logger

	current    domain.Credential
	held       bool
	refreshing bool
}

func NewTokenManager(auth ports.Authenticator, box *mailbox.Mailbox, runner *Runner, threshold time.Duration, logger zerolog.Logger) *TokenManager {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}

	return &TokenManager{
		auth:      auth,
		box:       box,
		runner:    runner,
		threshold: threshold,
		logger:    logger,
	}
}

func (m *TokenManager) Current() (domain.Credential, bool) {
	return m.current, m.held
}

func (m *TokenManager) Refreshing() bool {
	return m.refreshing
}

// Adopt makes cred current, e.g. right after an interactive login.
func (m *TokenManager) Adopt(cred domain.Credential) {
	m.current = cred
	m.held = cred.Valid()
	m.refreshing = false
	m.box.Tokens.Write(cred)
}

// Logout forgets the Credential and everything cached for the account.
func (m *TokenManager) Logout() {
	m.current = domain.Credential{}
	m.held = false
	m.refreshing = false
	m.box.ClearAccount()
}

func (m *TokenManager) Tick(now time.Time) {
	if !m.held {
		// An expired credential is only worth holding if it can be refreshed.
		cred, ok := m.box.Tokens.Peek()
		if !ok || !cred.Valid() || (cred.Expired(now) && !cred.CanRefresh()) {
			return
		}
		m.current = cred
		m.held = true
		m.logger.Debug().Time("expires_at", cred.ExpiresAt).Msg("adopted stored credential")
	}

	if m.refreshing {
		delivered, ok := m.box.Tokens.Peek()
		if ok && delivered.Supersedes(m.current) {
			m.current = delivered
			m.refreshing = false
			m.logger.Info().Time("expires_at", delivered.ExpiresAt).Msg("credential refreshed")
		}
		return
	}

	if !m.current.ShouldRefresh(now, m.threshold) || !m.current.CanRefresh() {
		return
	}

	m.refreshing = true
	refreshToken := m.current.RefreshToken
	m.runner.Go("token-refresh", func(ctx context.Context) {
		cred, err := m.auth.Refresh(ctx, refreshToken)
		if err != nil {
			metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
			m.logger.Error().Err(err).Msg("refresh credential")
			return
		}
		if cred.RefreshToken == "" {
			cred.RefreshToken = refreshToken
		}

		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		m.box.Tokens.Write(cred)
	})
}
