package matchrepo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/adapters/postgres/testutil"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	matchrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
)

func TestPairKey_CanonicalAcrossTextForms(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	want := domain.PairKey(domain.ProfileID(a.String()), domain.ProfileID(b.String()))

	for _, form := range []string{
		strings.ToUpper(b.String()),
		"{" + b.String() + "}",
		"urn:uuid:" + b.String(),
	} {
		ua, ub, err := parsePair(domain.ProfileID(a.String()), domain.ProfileID(form))
		if err != nil {
			t.Fatalf("parsePair(%q) err=%v", form, err)
		}
		if got := pairKey(ub, ua); got != want {
			t.Fatalf("pairKey(%q)=%q, want %q", form, got, want)
		}
	}
}

func TestRepo_NonCanonicalIDsHitTheSamePair(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	repo := NewRepo(pool)
	ctx := context.Background()

	now := time.Unix(2000, 0).UTC()
	a, b := uuid.NewString(), uuid.NewString()
	ab := domain.Match{
		ID:          domain.MatchID(uuid.NewString()),
		InitiatorID: domain.ProfileID(a),
		TargetID:    domain.ProfileID(b),
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, ab); err != nil {
		t.Fatalf("Create: %v", err)
	}

	upperA := domain.ProfileID(strings.ToUpper(a))
	got, err := repo.FindByPairEitherOrder(ctx, domain.ProfileID(b), upperA)
	if err != nil || got.ID != ab.ID {
		t.Fatalf("FindByPairEitherOrder(b, upper(a))=%+v err=%v", got, err)
	}

	ba := domain.Match{
		ID:          domain.MatchID(uuid.NewString()),
		InitiatorID: domain.ProfileID(b),
		TargetID:    upperA,
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, ba); !errors.Is(err, matchrepoport.ErrPairExists) {
		t.Fatalf("Create(b, upper(a)) err=%v, want ErrPairExists", err)
	}
}
