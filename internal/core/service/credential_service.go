package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/pkg/metrics"
)

const defaultTokenTTL = 24 * time.Hour

// CredentialService issues signed credentials carrying a snapshot of the
// user's roles and subscription.
//
// The snapshot is not refreshed: a role revoked after issuance stays in the
// credential until it expires. Use it for coarse gates only and ask the
// Authorizer for anything that must reflect the current store.
type CredentialService struct {
	store  ports.RBACReader
	signer ports.Signer
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewCredentialService(store ports.RBACReader, signer ports.Signer, ttl time.Duration, log zerolog.Logger) *CredentialService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &CredentialService{
		store:  store,
		signer: signer,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

var _ ports.CredentialService = (*CredentialService)(nil)

// Issue snapshots the user's current roles and active subscription into a
// signed credential. A user without roles still gets one.
func (s *CredentialService) Issue(ctx context.Context, userID string) (*domain.Credential, error) {
	var (
		roles []domain.Role
		sub   *domain.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = s.store.GetRolesForUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		sub, err = s.store.GetActiveSubscription(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.CredentialsTotal.WithLabelValues("issue", "error").Inc()
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	now := s.now().Truncate(time.Second)
	claims := domain.CredentialClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Roles:     make([]domain.RoleClaim, 0, len(roles)),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	for _, r := range roles {
		claims.Roles = append(claims.Roles, r.Claim())
	}
	if sub != nil {
		claims.SubscriptionType = sub.Type
		claims.SubscriptionStatus = sub.Status
	}

	token, err := s.signer.Sign(claims)
	if err != nil {
		metrics.CredentialsTotal.WithLabelValues("issue", "error").Inc()
		return nil, fmt.Errorf("issue credential: sign: %w", err)
	}

	metrics.CredentialsTotal.WithLabelValues("issue", "ok").Inc()
	s.log.Debug().Str("user_id", userID).Int("roles", len(claims.Roles)).Str("jti", claims.ID).Msg("credential issued")

	return &domain.Credential{Token: token, ExpiresAt: claims.ExpiresAt, Claims: claims}, nil
}

// Validate verifies the token and returns the embedded snapshot. The store is
// not consulted.
func (s *CredentialService) Validate(_ context.Context, token string) (*domain.Identity, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		result := "invalid"
		if errors.Is(err, domain.ErrCredentialExpired) {
			result = "expired"
		}
		metrics.CredentialsTotal.WithLabelValues("validate", result).Inc()
		return nil, err
	}
	metrics.CredentialsTotal.WithLabelValues("validate", "ok").Inc()
	identity := claims.Identity()
	return &identity, nil
}
