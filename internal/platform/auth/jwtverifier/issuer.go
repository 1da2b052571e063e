package jwtverifier

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/platform/config"
)

// Issuer mints HS256 access tokens that Verifier accepts.
type Issuer struct {
	cfg   config.JWTConfig
	clock Clock
}

func NewIssuer(cfg config.JWTConfig, clock Clock) *Issuer {
	if clock == nil {
		clock = realClock{}
	}
	return &Issuer{cfg: cfg, clock: clock}
}

// Issue returns a signed token for sub and its expiry time.
func (i *Issuer) Issue(sub domain.SubjectID) (string, time.Time, error) {
	return i.IssueFor(string(sub), i.cfg.TTL)
}

// IssueFor mints a token with an explicit lifetime.
func (i *Issuer) IssueFor(sub string, ttl time.Duration) (string, time.Time, error) {
	if sub == "" {
		return "", time.Time{}, fmt.Errorf("issue token: empty subject")
	}
	now := i.clock.Now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   sub,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
