package jwtverifier_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinship-labs/parent-match-api/internal/platform/auth/jwtverifier"
	"github.com/kinship-labs/parent-match-api/internal/platform/config"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:    strings.Repeat("k", 32),
		Issuer:    "test-iss",
		Audience:  "test-aud",
		TTL:       5 * time.Minute,
		ClockSkew: 0,
	}
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()

	tok, exp, err := jwtverifier.NewIssuer(cfg, clk).Issue("acct-123")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(cfg.TTL), exp)

	sub, err := jwtverifier.NewWithOptions(cfg, clk).Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-123", sub)
}

func TestVerifier_Verify_Expired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()
	tok, _, err := jwtverifier.NewIssuer(cfg, clk).Issue("acct-123")
	require.NoError(t, err)

	clk.Advance(cfg.TTL + time.Second)
	_, err = jwtverifier.NewWithOptions(cfg, clk).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, jwtverifier.ErrUnauthorized)
}

func TestVerifier_Verify_ClockSkewAllowsSlightlyExpired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()
	cfg.ClockSkew = 30 * time.Second
	tok, _, err := jwtverifier.NewIssuer(cfg, clk).Issue("acct-123")
	require.NoError(t, err)

	clk.Advance(cfg.TTL + 10*time.Second)
	sub, err := jwtverifier.NewWithOptions(cfg, clk).Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-123", sub)
}

func TestVerifier_Verify_RejectsWrongIssuerAudienceOrSecret(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()
	tok, _, err := jwtverifier.NewIssuer(cfg, clk).Issue("acct-123")
	require.NoError(t, err)

	wrongIss := cfg
	wrongIss.Issuer = "other"
	wrongAud := cfg
	wrongAud.Audience = "other"
	wrongSecret := cfg
	wrongSecret.Secret = strings.Repeat("x", 32)

	for name, c := range map[string]config.JWTConfig{"iss": wrongIss, "aud": wrongAud, "secret": wrongSecret} {
		_, err := jwtverifier.NewWithOptions(c, clk).Verify(context.Background(), tok)
		assert.ErrorIs(t, err, jwtverifier.ErrUnauthorized, name)
	}
}

func TestVerifier_Verify_RejectsNoneAlgAndGarbage(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()
	v := jwtverifier.NewWithOptions(cfg, clk)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acct-123",
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{none, "", "not.a.jwt"} {
		_, err := v.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, jwtverifier.ErrUnauthorized)
	}
}

func TestVerifier_Verify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "acct-123",
		Issuer:   cfg.Issuer,
		Audience: jwt.ClaimStrings{cfg.Audience},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = jwtverifier.NewWithOptions(cfg, clk).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, jwtverifier.ErrUnauthorized)
}
