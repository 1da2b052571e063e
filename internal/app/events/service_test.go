package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	memclock "github.com/kinship-labs/parent-match-api/internal/adapters/memory/clock"
	memeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/eventrepo"
	memprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/profilerepo"
	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

var (
	testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	park    = domain.GeoLocation{Latitude: 37.7694, Longitude: -122.4862}
)

func newTestService(t *testing.T) (*Service, *memprofilerepo.Repo, *memclock.ManualClock) {
	t.Helper()
	profiles := memprofilerepo.NewRepo()
	clk := memclock.NewManualClock(testNow)
	svc := NewService(memeventrepo.NewRepo(), profiles, clk)
	n := 0
	svc.SetNewEventIDForTest(func() domain.EventID {
		n++
		return domain.EventID(fmt.Sprintf("e-%d", n))
	})
	return svc, profiles, clk
}

func requireAppErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status() != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func intPtr(v int) *int { return &v }

func createEvent(t *testing.T, svc *Service, organizer domain.ProfileID, max *int, in time.Duration) domain.Event {
	t.Helper()
	loc := park
	e, err := svc.CreateEvent(context.Background(), organizer, CreateEventInput{
		Title:           "  Park   playdate ",
		Description:     "Bring snacks",
		Location:        &loc,
		DateTime:        testNow.Add(in),
		MaxParticipants: max,
	})
	if err != nil {
		t.Fatalf("CreateEvent err=%v", err)
	}
	return e
}

func TestService_CreateEvent_NormalizesAndValidates(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	e := createEvent(t, svc, "org", intPtr(3), 24*time.Hour)
	if e.Title != "Park playdate" || e.OrganizerID != "org" || len(e.ParticipantIDs) != 0 {
		t.Fatalf("e=%+v", e)
	}

	_, err := svc.CreateEvent(context.Background(), "org", CreateEventInput{
		Title:           "x",
		Description:     "y",
		DateTime:        testNow.Add(-time.Hour),
		MaxParticipants: intPtr(0),
	})
	requireAppErr(t, err, 400, "VALIDATION_ERROR")
	ae := (*apperr.Error)(nil)
	_ = errors.As(err, &ae)
	for _, k := range []string{"location", "dateTime", "maxParticipants"} {
		if _, ok := ae.Details[k]; !ok {
			t.Fatalf("details=%v, missing %q", ae.Details, k)
		}
	}
}

func TestService_JoinLeave_CapacityAndIdempotency(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", intPtr(2), time.Hour)

	for _, p := range []domain.ProfileID{"p1", "p2"} {
		if _, err := svc.Join(ctx, e.ID, p); err != nil {
			t.Fatalf("Join(%s) err=%v", p, err)
		}
	}
	again, err := svc.Join(ctx, e.ID, "p1")
	if err != nil || len(again.ParticipantIDs) != 2 {
		t.Fatalf("rejoin=%+v err=%v", again, err)
	}

	_, err = svc.Join(ctx, e.ID, "p3")
	requireAppErr(t, err, 409, "EVENT_FULL")

	left, err := svc.Leave(ctx, e.ID, "p1")
	if err != nil || len(left.ParticipantIDs) != 1 || left.HasParticipant("p1") {
		t.Fatalf("left=%+v err=%v", left, err)
	}
	noop, err := svc.Leave(ctx, e.ID, "p1")
	if err != nil || len(noop.ParticipantIDs) != 1 {
		t.Fatalf("noop=%+v err=%v", noop, err)
	}

	joined, err := svc.Join(ctx, e.ID, "p3")
	if err != nil || !joined.HasParticipant("p3") {
		t.Fatalf("joined=%+v err=%v", joined, err)
	}

	_, err = svc.Join(ctx, "missing", "p1")
	requireAppErr(t, err, 404, "EVENT_NOT_FOUND")
}

func TestService_Join_ReturnsSnapshots(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", nil, time.Hour)

	first, err := svc.Join(ctx, e.ID, "p1")
	if err != nil {
		t.Fatalf("Join err=%v", err)
	}
	if _, err := svc.Join(ctx, e.ID, "p2"); err != nil {
		t.Fatalf("Join err=%v", err)
	}
	if len(first.ParticipantIDs) != 1 {
		t.Fatalf("earlier snapshot changed: %v", first.ParticipantIDs)
	}
	if len(e.ParticipantIDs) != 0 {
		t.Fatalf("created snapshot changed: %v", e.ParticipantIDs)
	}
}

func TestService_Join_ConcurrentJoinsAreAllKept(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", nil, time.Hour)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Join(ctx, e.ID, domain.ProfileID(fmt.Sprintf("p%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Join err=%v", err)
		}
	}

	got, err := svc.GetEvent(ctx, e.ID)
	if err != nil || len(got.ParticipantIDs) != n {
		t.Fatalf("participants=%v err=%v, want %d", got.ParticipantIDs, err, n)
	}
}

func TestService_Join_ConcurrentJoinsRespectCapacity(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", intPtr(3), time.Hour)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Join(ctx, e.ID, domain.ProfileID(fmt.Sprintf("p%d", i)))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !apperr.Is(err, apperr.KindCapacityExceeded) {
				t.Errorf("Join err=%v, want capacity exceeded", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := svc.GetEvent(ctx, e.ID)
	if accepted != 3 || len(got.ParticipantIDs) != 3 {
		t.Fatalf("accepted=%d stored=%v, want 3", accepted, got.ParticipantIDs)
	}
}

// joinDuringSave runs a join between the organizer's read and the details write.
type joinDuringSave struct {
	*memeventrepo.Repo
	onSave func()
}

func (r *joinDuringSave) Save(ctx context.Context, e domain.Event) error {
	if r.onSave != nil {
		r.onSave()
	}
	return r.Repo.Save(ctx, e)
}

var _ eventrepo.Repository = (*joinDuringSave)(nil)

func TestService_UpdateEvent_KeepsParticipantsJoinedMeanwhile(t *testing.T) {
	t.Parallel()

	repo := &joinDuringSave{Repo: memeventrepo.NewRepo()}
	svc := NewService(repo, memprofilerepo.NewRepo(), memclock.NewManualClock(testNow))
	ctx := context.Background()
	e := createEvent(t, svc, "org", nil, time.Hour)

	repo.onSave = func() {
		if _, err := svc.Join(ctx, e.ID, "late"); err != nil {
			t.Errorf("Join err=%v", err)
		}
	}
	updated, err := svc.UpdateEvent(ctx, "org", e.ID, UpdateEventInput{Title: Some("Beach day")})
	if err != nil {
		t.Fatalf("UpdateEvent err=%v", err)
	}
	if updated.Title != "Beach day" || !updated.HasParticipant("late") {
		t.Fatalf("updated=%+v", updated)
	}
	stored, _ := svc.GetEvent(ctx, e.ID)
	if !stored.HasParticipant("late") {
		t.Fatalf("stored participants=%v, want late kept", stored.ParticipantIDs)
	}
}

func TestService_UpdateEvent_OrganizerOnlyAndCapacity(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", intPtr(5), time.Hour)
	_, _ = svc.Join(ctx, e.ID, "p1")
	_, _ = svc.Join(ctx, e.ID, "p2")

	_, err := svc.UpdateEvent(ctx, "p1", e.ID, UpdateEventInput{Title: Some("Mine now")})
	requireAppErr(t, err, 403, "NOT_EVENT_ORGANIZER")

	_, err = svc.UpdateEvent(ctx, "org", e.ID, UpdateEventInput{MaxParticipants: Some(1)})
	requireAppErr(t, err, 409, "EVENT_FULL")

	_, err = svc.UpdateEvent(ctx, "org", e.ID, UpdateEventInput{Title: Null[string]()})
	requireAppErr(t, err, 400, "VALIDATION_ERROR")

	updated, err := svc.UpdateEvent(ctx, "org", e.ID, UpdateEventInput{
		Title:           Some("Beach day"),
		MaxParticipants: Null[int](),
	})
	if err != nil {
		t.Fatalf("UpdateEvent err=%v", err)
	}
	if updated.Title != "Beach day" || updated.MaxParticipants != nil || len(updated.ParticipantIDs) != 2 {
		t.Fatalf("updated=%+v", updated)
	}
}

func TestService_DeleteEvent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e := createEvent(t, svc, "org", nil, time.Hour)

	requireAppErr(t, svc.DeleteEvent(ctx, "other", e.ID), 403, "NOT_EVENT_ORGANIZER")
	if err := svc.DeleteEvent(ctx, "org", e.ID); err != nil {
		t.Fatalf("DeleteEvent err=%v", err)
	}
	_, err := svc.GetEvent(ctx, e.ID)
	requireAppErr(t, err, 404, "EVENT_NOT_FOUND")
}

func TestService_Listings(t *testing.T) {
	t.Parallel()

	svc, profiles, clk := newTestService(t)
	ctx := context.Background()

	later := createEvent(t, svc, "org", nil, 48*time.Hour)
	sooner := createEvent(t, svc, "org", nil, 2*time.Hour)
	past := createEvent(t, svc, "other", nil, time.Hour)
	clk.Advance(90 * time.Minute)

	upcoming, err := svc.ListUpcoming(ctx)
	if err != nil {
		t.Fatalf("ListUpcoming err=%v", err)
	}
	if len(upcoming) != 2 || upcoming[0].ID != sooner.ID || upcoming[1].ID != later.ID {
		t.Fatalf("upcoming=%v", upcoming)
	}

	organized, err := svc.ListOrganizedBy(ctx, "org")
	if err != nil || len(organized) != 2 {
		t.Fatalf("organized=%v err=%v", organized, err)
	}

	_, _ = svc.Join(ctx, past.ID, "p1")
	_, _ = svc.Join(ctx, later.ID, "p1")
	participating, err := svc.ListParticipating(ctx, "p1")
	if err != nil || len(participating) != 2 || participating[0].ID != past.ID {
		t.Fatalf("participating=%v err=%v", participating, err)
	}

	near := domain.GeoLocation{Latitude: 37.7749, Longitude: -122.4194}
	for _, p := range []domain.Profile{
		{ID: "p1", UserID: "sub-1", FirstName: "A", LastName: "B", Email: "a@example.com", Location: &near},
		{ID: "p2", UserID: "sub-2", FirstName: "C", LastName: "D", Email: "c@example.com"},
	} {
		if err := profiles.Create(ctx, p); err != nil {
			t.Fatalf("profiles.Create err=%v", err)
		}
	}
	nearby, err := svc.ListNearby(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("ListNearby err=%v", err)
	}
	if len(nearby) != 2 {
		t.Fatalf("nearby=%v, want the two upcoming events", nearby)
	}
	_, err = svc.ListNearby(ctx, "p2", 0)
	requireAppErr(t, err, 400, "LOCATION_NOT_SET")
}
