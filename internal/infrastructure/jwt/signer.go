// Package jwt signs and verifies credentials as HS256 JSON Web Tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusgate/access-core/internal/core/domain"
)

// Config holds the signing parameters.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Leeway tolerates clock skew when checking exp and iat.
	Leeway time.Duration
}

// claims is the wire form of domain.CredentialClaims.
type claims struct {
	Roles              []domain.RoleClaim        `json:"roles"`
	SubscriptionType   domain.SubscriptionType   `json:"sub_type,omitempty"`
	SubscriptionStatus domain.SubscriptionStatus `json:"sub_status,omitempty"`
	jwt.RegisteredClaims
}

// Signer implements ports.Signer.
type Signer struct {
	cfg    Config
	key    []byte
	parser *jwt.Parser
}

func NewSigner(cfg Config, opts ...jwt.ParserOption) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: empty signing secret")
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	parserOpts = append(parserOpts, opts...)

	return &Signer{
		cfg:    cfg,
		key:    []byte(cfg.Secret),
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

func (s *Signer) Sign(c domain.CredentialClaims) (string, error) {
	wire := claims{
		Roles:              c.Roles,
		SubscriptionType:   c.SubscriptionType,
		SubscriptionStatus: c.SubscriptionStatus,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Subject:   c.Subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	if s.cfg.Audience != "" {
		wire.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt sign: %w", err)
	}
	return signed, nil
}

func (s *Signer) Verify(token string) (domain.CredentialClaims, error) {
	var wire claims
	_, err := s.parser.ParseWithClaims(token, &wire, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.CredentialClaims{}, fmt.Errorf("%w: %v", domain.ErrCredentialExpired, err)
		}
		return domain.CredentialClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	if wire.Subject == "" {
		return domain.CredentialClaims{}, fmt.Errorf("%w: missing subject", domain.ErrInvalidCredential)
	}

	out := domain.CredentialClaims{
		ID:                 wire.ID,
		Subject:            wire.Subject,
		Roles:              wire.Roles,
		SubscriptionType:   wire.SubscriptionType,
		SubscriptionStatus: wire.SubscriptionStatus,
	}
	if wire.IssuedAt != nil {
		out.IssuedAt = wire.IssuedAt.Time.UTC()
	}
	if wire.ExpiresAt != nil {
		out.ExpiresAt = wire.ExpiresAt.Time.UTC()
	}
	return out, nil
}
