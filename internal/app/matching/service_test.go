package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	memclock "github.com/kinship-labs/parent-match-api/internal/adapters/memory/clock"
	memmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/matchrepo"
	memprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/profilerepo"
	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

type fixture struct {
	svc      *Service
	matches  *memmatchrepo.Repo
	profiles *memprofilerepo.Repo
	clk      *memclock.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		matches:  memmatchrepo.NewRepo(),
		profiles: memprofilerepo.NewRepo(),
		clk:      memclock.NewManualClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.matches, f.profiles, f.clk)
	n := 0
	f.svc.SetNewMatchIDForTest(func() domain.MatchID {
		n++
		return domain.MatchID(fmt.Sprintf("m-%d", n))
	})
	return f
}

func (f fixture) addProfile(t *testing.T, id string, loc *domain.GeoLocation, interests ...string) domain.Profile {
	t.Helper()
	now := f.clk.Now()
	p := domain.Profile{
		ID:        domain.ProfileID(id),
		UserID:    domain.SubjectID("sub-" + id),
		FirstName: id,
		LastName:  "Test",
		Email:     id + "@example.com",
		Interests: interests,
		Location:  loc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.profiles.Create(context.Background(), p); err != nil {
		t.Fatalf("profiles.Create(%s) err=%v", id, err)
	}
	return p
}

func requireAppErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status() != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_RequestMatch_MutualLikeAutoAccepts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)

	first, err := f.svc.RequestMatch(ctx, "a", "b")
	if err != nil {
		t.Fatalf("RequestMatch(a,b) err=%v", err)
	}
	if first.Status != domain.MatchStatusPending || first.InitiatorID != "a" || first.TargetID != "b" {
		t.Fatalf("first=%+v", first)
	}

	f.clk.Advance(time.Minute)
	second, err := f.svc.RequestMatch(ctx, "b", "a")
	if err != nil {
		t.Fatalf("RequestMatch(b,a) err=%v", err)
	}
	if second.ID != first.ID || second.Status != domain.MatchStatusAccepted {
		t.Fatalf("second=%+v, want accepted %s", second, first.ID)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updatedAt not bumped: %v", second.UpdatedAt)
	}

	all, err := f.svc.ListMatches(ctx, "a", nil)
	if err != nil {
		t.Fatalf("ListMatches err=%v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(matches)=%d, want 1", len(all))
	}

	again, err := f.svc.RequestMatch(ctx, "a", "b")
	if err != nil || again.ID != first.ID || again.Status != domain.MatchStatusAccepted {
		t.Fatalf("again=%+v err=%v", again, err)
	}
}

func TestService_RequestMatch_RepeatReturnsExisting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)

	first, err := f.svc.RequestMatch(ctx, "a", "b")
	if err != nil {
		t.Fatalf("RequestMatch err=%v", err)
	}
	again, err := f.svc.RequestMatch(ctx, "a", "b")
	if err != nil {
		t.Fatalf("RequestMatch again err=%v", err)
	}
	if again.ID != first.ID || again.Status != domain.MatchStatusPending {
		t.Fatalf("again=%+v", again)
	}
}

func TestService_RequestMatch_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)

	_, err := f.svc.RequestMatch(ctx, "a", "a")
	requireAppErr(t, err, 400, "SELF_MATCH")

	_, err = f.svc.RequestMatch(ctx, "a", "ghost")
	requireAppErr(t, err, 404, "PROFILE_NOT_FOUND")
}

// caseFoldingProfiles resolves ids case-insensitively, like a store that parses
// UUIDs and accepts more than one spelling of the same id.
type caseFoldingProfiles struct {
	*memprofilerepo.Repo
}

func (r caseFoldingProfiles) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	return r.Repo.GetByID(ctx, domain.ProfileID(strings.ToLower(string(id))))
}

var _ profilerepo.Repository = caseFoldingProfiles{}

func TestService_RequestMatch_AlternateIDSpellingReachesSamePair(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)
	svc := NewService(f.matches, caseFoldingProfiles{f.profiles}, f.clk)

	first, err := svc.RequestMatch(ctx, "a", "b")
	if err != nil {
		t.Fatalf("RequestMatch(a,b) err=%v", err)
	}
	second, err := svc.RequestMatch(ctx, "b", "A")
	if err != nil {
		t.Fatalf("RequestMatch(b,A) err=%v", err)
	}
	if second.ID != first.ID || second.Status != domain.MatchStatusAccepted {
		t.Fatalf("second=%+v, want %s accepted", second, first.ID)
	}
	all, _ := f.matches.ListByProfile(ctx, "a", nil)
	if len(all) != 1 {
		t.Fatalf("matches for a=%+v, want exactly one", all)
	}

	_, err = svc.RequestMatch(ctx, "a", "A")
	requireAppErr(t, err, 400, "SELF_MATCH")
}

func TestService_RequestMatch_AfterRejectionIsUnchanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)

	m, _ := f.svc.RequestMatch(ctx, "a", "b")
	if _, err := f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusRejected); err != nil {
		t.Fatalf("Respond err=%v", err)
	}
	for _, dir := range [][2]domain.ProfileID{{"a", "b"}, {"b", "a"}} {
		got, err := f.svc.RequestMatch(ctx, dir[0], dir[1])
		if err != nil {
			t.Fatalf("RequestMatch(%s,%s) err=%v", dir[0], dir[1], err)
		}
		if got.Status != domain.MatchStatusRejected {
			t.Fatalf("RequestMatch(%s,%s) status=%s, want REJECTED", dir[0], dir[1], got.Status)
		}
	}
}

// racingRepo makes the first Create lose against a match that appears concurrently.
type racingRepo struct {
	*memmatchrepo.Repo
	winner domain.Match
	raced  bool
}

func (r *racingRepo) Create(ctx context.Context, m domain.Match) error {
	if !r.raced {
		r.raced = true
		if err := r.Repo.Create(ctx, r.winner); err != nil {
			return err
		}
		return matchrepo.ErrPairExists
	}
	return r.Repo.Create(ctx, m)
}

func TestService_RequestMatch_PairConflictRereads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)

	now := f.clk.Now()
	repo := &racingRepo{
		Repo: f.matches,
		winner: domain.Match{
			ID: "winner", InitiatorID: "b", TargetID: "a",
			Status: domain.MatchStatusPending, CreatedAt: now, UpdatedAt: now,
		},
	}
	svc := NewService(repo, f.profiles, f.clk)

	got, err := svc.RequestMatch(ctx, "a", "b")
	if err != nil {
		t.Fatalf("RequestMatch err=%v", err)
	}
	if got.ID != "winner" || got.Status != domain.MatchStatusAccepted {
		t.Fatalf("got=%+v, want accepted winner", got)
	}
}

func TestService_Respond(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)
	m, _ := f.svc.RequestMatch(ctx, "a", "b")

	_, err := f.svc.Respond(ctx, m.ID, "a", domain.MatchStatusAccepted)
	requireAppErr(t, err, 403, "NOT_MATCH_TARGET")

	_, err = f.svc.Respond(ctx, "missing", "b", domain.MatchStatusAccepted)
	requireAppErr(t, err, 404, "MATCH_NOT_FOUND")

	_, err = f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusPending)
	requireAppErr(t, err, 400, "INVALID_DECISION")

	accepted, err := f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusAccepted)
	if err != nil || accepted.Status != domain.MatchStatusAccepted {
		t.Fatalf("accepted=%+v err=%v", accepted, err)
	}

	same, err := f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusAccepted)
	if err != nil || same.Status != domain.MatchStatusAccepted {
		t.Fatalf("same=%+v err=%v", same, err)
	}

	_, err = f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusRejected)
	requireAppErr(t, err, 400, "MATCH_NOT_PENDING")
}

func TestService_ObserverSeesTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addProfile(t, "a", nil)
	f.addProfile(t, "b", nil)

	var seen []domain.MatchStatus
	f.svc.WithTransitionObserver(func(s domain.MatchStatus) { seen = append(seen, s) })

	if _, err := f.svc.RequestMatch(ctx, "a", "b"); err != nil {
		t.Fatalf("RequestMatch err=%v", err)
	}
	if _, err := f.svc.RequestMatch(ctx, "b", "a"); err != nil {
		t.Fatalf("RequestMatch err=%v", err)
	}
	if len(seen) != 2 || seen[0] != domain.MatchStatusPending || seen[1] != domain.MatchStatusAccepted {
		t.Fatalf("seen=%v", seen)
	}
}

func TestService_ListMatches_FiltersByStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		f.addProfile(t, id, nil)
	}
	m, _ := f.svc.RequestMatch(ctx, "a", "b")
	_, _ = f.svc.Respond(ctx, m.ID, "b", domain.MatchStatusAccepted)
	_, _ = f.svc.RequestMatch(ctx, "c", "a")

	accepted := domain.MatchStatusAccepted
	got, err := f.svc.ListMatches(ctx, "a", &accepted)
	if err != nil {
		t.Fatalf("ListMatches err=%v", err)
	}
	if len(got) != 1 || got[0].ID != m.ID {
		t.Fatalf("got=%+v", got)
	}

	bogus := domain.MatchStatus("MAYBE")
	_, err = f.svc.ListMatches(ctx, "a", &bogus)
	requireAppErr(t, err, 400, "VALIDATION_ERROR")
}

func TestService_RankCandidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sf := &domain.GeoLocation{Latitude: 37.7749, Longitude: -122.4194}
	nearby := &domain.GeoLocation{Latitude: 37.7849, Longitude: -122.4094}
	la := &domain.GeoLocation{Latitude: 34.0522, Longitude: -118.2437}

	f.addProfile(t, "me", sf, "hiking", "art")
	f.addProfile(t, "best", nearby, "hiking", "art")
	f.addProfile(t, "some", nearby, "hiking")
	f.addProfile(t, "none", sf, "chess")
	f.addProfile(t, "matched", sf, "hiking", "art")
	f.addProfile(t, "far", la, "hiking", "art")
	if _, err := f.svc.RequestMatch(ctx, "matched", "me"); err != nil {
		t.Fatalf("RequestMatch err=%v", err)
	}

	got, err := f.svc.RankCandidates(ctx, "me", 0, 0)
	if err != nil {
		t.Fatalf("RankCandidates err=%v", err)
	}
	var ids []domain.ProfileID
	for _, c := range got {
		ids = append(ids, c.Profile.ID)
	}
	want := []domain.ProfileID{"best", "some", "none"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("ids=%v, want %v", ids, want)
	}
	if got[0].Score.InterestScore != 100 {
		t.Fatalf("best score=%+v", got[0].Score)
	}

	limited, err := f.svc.RankCandidates(ctx, "me", 0, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited=%v err=%v", limited, err)
	}
}
