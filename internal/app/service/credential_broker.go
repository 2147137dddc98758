package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	"github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	prominfra "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultSafetyMargin is how long before nominal expiry a token is treated as stale.
	DefaultSafetyMargin = 300 * time.Second

	refreshResultOK      = "ok"
	refreshResultRevoked = "revoked"
	refreshResultError   = "error"
)

var tracer = otel.Tracer("github.com/petermyo/DecentralizeFileShare/internal/app/service")

// CredentialBroker hands out usable access tokens for owners, refreshing them
// through the provider when the stored one is about to lapse.
type CredentialBroker struct {
	vault     repository.CredentialVault
	refresher provider.TokenRefresher
	margin    time.Duration
	metrics   *prominfra.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewCredentialBroker wires a broker. A zero margin falls back to DefaultSafetyMargin.
func NewCredentialBroker(vault repository.CredentialVault, refresher provider.TokenRefresher, margin time.Duration, metrics *prominfra.Metrics, logger *zap.Logger) *CredentialBroker {
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialBroker{
		vault:     vault,
		refresher: refresher,
		margin:    margin,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// AccessToken loads the owner's vault entry and returns a valid access token.
func (b *CredentialBroker) AccessToken(ctx context.Context, ownerID string) (string, error) {
	entry, err := b.vault.Get(ctx, ownerID)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return "", fmt.Errorf("%w: %w", ErrOwnerAccessRevoked, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: load credential: %w", ErrRegistryUnavailable, err)
	}
	return b.ValidAccessToken(ctx, entry)
}

// ValidAccessToken returns entry's access token while it is fresh. Otherwise it
// exchanges the refresh token, persists the merged entry and returns the new token.
// Concurrent refreshes for one owner are not coordinated; the last vault write wins.
func (b *CredentialBroker) ValidAccessToken(ctx context.Context, entry *model.CredentialEntry) (string, error) {
	now := b.now()
	if entry.FreshAt(now, b.margin) {
		return entry.AccessToken, nil
	}

	ctx, span := tracer.Start(ctx, "CredentialBroker.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", entry.OwnerID))

	if entry.RefreshToken == "" {
		b.metrics.ObserveRefresh(refreshResultRevoked)
		span.SetStatus(codes.Error, "no refresh token")
		return "", fmt.Errorf("%w: owner %s has no refresh token", ErrOwnerAccessRevoked, entry.OwnerID)
	}

	tok, err := b.refresher.Refresh(ctx, entry.RefreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		if errors.Is(err, provider.ErrGrantRevoked) {
			b.metrics.ObserveRefresh(refreshResultRevoked)
			b.logger.Warn("delegated grant rejected by provider", zap.String("owner_id", entry.OwnerID))
			return "", fmt.Errorf("%w: %w", ErrOwnerAccessRevoked, err)
		}
		b.metrics.ObserveRefresh(refreshResultError)
		b.logger.Error("credential refresh failed", zap.String("owner_id", entry.OwnerID), zap.Error(err))
		return "", fmt.Errorf("%w: refresh: %w", ErrProviderUnavailable, err)
	}

	updated := *entry
	updated.AccessToken = tok.AccessToken
	updated.IssuedAt = now
	updated.ValidForSeconds = int64(tok.ExpiresIn / time.Second)
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}

	if err := b.vault.Put(ctx, &updated); err != nil {
		b.metrics.ObserveRefresh(refreshResultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return "", fmt.Errorf("%w: persist refreshed credential: %w", ErrRegistryUnavailable, err)
	}

	b.metrics.ObserveRefresh(refreshResultOK)
	b.logger.Debug("credential refreshed",
		zap.String("owner_id", entry.OwnerID),
		zap.Int64("valid_for_seconds", updated.ValidForSeconds),
	)
	return updated.AccessToken, nil
}

// Enroll stores the credentials obtained at sign-in. A sign-in that yields no
// refresh token keeps the one already on file.
func (b *CredentialBroker) Enroll(ctx context.Context, ownerID string, tok *provider.Token) error {
	if ownerID == "" || tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: enrollment needs an owner and an access token", ErrInvalidInput)
	}

	entry := &model.CredentialEntry{
		OwnerID:         ownerID,
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		IssuedAt:        b.now(),
		ValidForSeconds: int64(tok.ExpiresIn / time.Second),
	}
	if entry.RefreshToken == "" {
		existing, err := b.vault.Get(ctx, ownerID)
		switch {
		case err == nil:
			entry.RefreshToken = existing.RefreshToken
		case !errors.Is(err, repository.ErrCredentialNotFound):
			return fmt.Errorf("%w: load credential: %w", ErrRegistryUnavailable, err)
		}
	}

	if err := b.vault.Put(ctx, entry); err != nil {
		return fmt.Errorf("%w: store credential: %w", ErrRegistryUnavailable, err)
	}
	b.logger.Info("owner enrolled",
		zap.String("owner_id", ownerID),
		zap.Bool("has_refresh_token", entry.RefreshToken != ""),
	)
	return nil
}
