// Package contracttest holds storage contract suites shared by every adapter
// (memory, postgres, mongo, badger). Each suite seeds fresh UUIDs and asserts on
// membership rather than totals so adapters backed by a shared database can run it.
package contracttest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	accountrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
	eventrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
	idempotencyport "github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
	matchrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	messagerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
	profilerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

type CleanupFunc = func()

type ProfileRepoFactory func(t *testing.T) (profilerepoport.Repository, CleanupFunc)
type MatchRepoFactory func(t *testing.T) (matchrepoport.Repository, CleanupFunc)
type MessageRepoFactory func(t *testing.T) (messagerepoport.Repository, CleanupFunc)
type EventRepoFactory func(t *testing.T) (eventrepoport.Repository, CleanupFunc)
type AccountRepoFactory func(t *testing.T) (accountrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// Reference points used by the proximity checks.
var (
	sanFrancisco = domain.GeoLocation{Latitude: 37.7749, Longitude: -122.4194}
	oakland      = domain.GeoLocation{Latitude: 37.8044, Longitude: -122.2712} // ~13.4km from SF
	losAngeles   = domain.GeoLocation{Latitude: 34.0522, Longitude: -118.2437}
)

func newProfileID() domain.ProfileID { return domain.ProfileID(uuid.NewString()) }

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/api/events",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Any fingerprint component change is a different record.
	other := fp
	other.BodyHash = "different"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get(other body hash) ok=%v err=%v, want ok=false", ok, err)
	}
}

func RunProfileRepo(t *testing.T, newRepo ProfileRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	bio := "Dad of two"
	gender := "girl"
	addr := "Market St"
	sfLoc := sanFrancisco
	sfLoc.Address = &addr

	aID := newProfileID()
	userA := domain.SubjectID(uuid.NewString())
	a := domain.Profile{
		ID:        aID,
		UserID:    userA,
		FirstName: "Alice",
		LastName:  "Johnson",
		Email:     "alice@example.com",
		Bio:       &bio,
		Interests: []string{"Reading", "Sports"},
		Children: []domain.Child{{
			Name:      "Maya",
			BirthDate: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC),
			Gender:    &gender,
			Interests: []string{"Lego"},
		}},
		Location:  &sfLoc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}

	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FirstName != "Alice" || got.UserID != userA || got.Bio == nil || *got.Bio != bio {
		t.Fatalf("GetByID()=%+v", got)
	}
	if len(got.Interests) != 2 || got.Interests[0] != "Reading" {
		t.Fatalf("interests=%v", got.Interests)
	}
	if len(got.Children) != 1 || got.Children[0].Name != "Maya" || !got.Children[0].BirthDate.Equal(a.Children[0].BirthDate) {
		t.Fatalf("children=%+v", got.Children)
	}
	if got.Location == nil || got.Location.Address == nil || *got.Location.Address != addr {
		t.Fatalf("location=%+v", got.Location)
	}

	if _, err := repo.GetByUserID(ctx, userA); err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if _, err := repo.GetByID(ctx, newProfileID()); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByUserID(ctx, domain.SubjectID(uuid.NewString())); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByUserID(missing) err=%v, want ErrNotFound", err)
	}

	// One profile per owning account.
	dup := a
	dup.ID = newProfileID()
	dup.Email = "alice2@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, profilerepoport.ErrUserAlreadyBound) {
		t.Fatalf("Create(same user) err=%v, want ErrUserAlreadyBound", err)
	}

	// Update replaces mutable fields.
	got.Interests = []string{"Cooking"}
	got.Bio = nil
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if after.Bio != nil || len(after.Interests) != 1 || after.Interests[0] != "Cooking" {
		t.Fatalf("after update=%+v", after)
	}
	missing := a
	missing.ID = newProfileID()
	if err := repo.Update(ctx, missing); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want ErrNotFound", err)
	}

	// Proximity: Oakland is ~13km from SF, LA is far away, no-location profiles are skipped.
	oakLoc := oakland
	laLoc := losAngeles
	bID, cID, dID := newProfileID(), newProfileID(), newProfileID()
	for _, p := range []domain.Profile{
		{ID: bID, UserID: domain.SubjectID(uuid.NewString()), FirstName: "Bob", LastName: "B", Email: "bob@example.com", Location: &oakLoc, CreatedAt: now, UpdatedAt: now},
		{ID: cID, UserID: domain.SubjectID(uuid.NewString()), FirstName: "Cara", LastName: "C", Email: "cara@example.com", Location: &laLoc, CreatedAt: now, UpdatedAt: now},
		{ID: dID, UserID: domain.SubjectID(uuid.NewString()), FirstName: "Dan", LastName: "D", Email: "dan@example.com", CreatedAt: now, UpdatedAt: now},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create %s: %v", p.FirstName, err)
		}
	}

	near, err := repo.FindNear(ctx, sanFrancisco.Longitude, sanFrancisco.Latitude, 20000)
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	idx := indexNearby(near)
	if _, ok := idx[aID]; !ok {
		t.Fatalf("FindNear(20km) missing SF profile: %v", idx)
	}
	if _, ok := idx[bID]; !ok {
		t.Fatalf("FindNear(20km) missing Oakland profile: %v", idx)
	}
	if _, ok := idx[cID]; ok {
		t.Fatalf("FindNear(20km) returned LA profile")
	}
	if _, ok := idx[dID]; ok {
		t.Fatalf("FindNear returned profile without location")
	}
	if idx[aID] > idx[bID] {
		t.Fatalf("FindNear not ordered by distance: %v", idx)
	}
	if d := near[idx[bID]].DistanceMeters; d < 10000 || d > 17000 {
		t.Fatalf("Oakland distance=%.0fm, want ~13.4km", d)
	}

	near, err = repo.FindNear(ctx, sanFrancisco.Longitude, sanFrancisco.Latitude, 5000)
	if err != nil {
		t.Fatalf("FindNear(5km): %v", err)
	}
	if _, ok := indexNearby(near)[bID]; ok {
		t.Fatalf("FindNear(5km) returned Oakland profile")
	}
}

func indexNearby(ns []profilerepoport.Nearby) map[domain.ProfileID]int {
	out := make(map[domain.ProfileID]int, len(ns))
	for i, n := range ns {
		out[n.Profile.ID] = i
	}
	return out
}

func RunMatchRepo(t *testing.T, newRepo MatchRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	a, b, c := newProfileID(), newProfileID(), newProfileID()
	ab := domain.Match{
		ID:          domain.MatchID(uuid.NewString()),
		InitiatorID: a,
		TargetID:    b,
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, ab); err != nil {
		t.Fatalf("Create ab: %v", err)
	}

	got, err := repo.GetByID(ctx, ab.ID)
	if err != nil || got.InitiatorID != a || got.TargetID != b || got.Status != domain.MatchStatusPending {
		t.Fatalf("GetByID()=%+v err=%v", got, err)
	}
	if _, err := repo.GetByID(ctx, domain.MatchID(uuid.NewString())); !errors.Is(err, matchrepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}

	// Directional lookup.
	if got, err := repo.FindByPair(ctx, a, b); err != nil || got.ID != ab.ID {
		t.Fatalf("FindByPair(a,b)=%+v err=%v", got, err)
	}
	if _, err := repo.FindByPair(ctx, b, a); !errors.Is(err, matchrepoport.ErrNotFound) {
		t.Fatalf("FindByPair(b,a) err=%v, want ErrNotFound", err)
	}

	// Either-order lookup.
	if got, err := repo.FindByPairEitherOrder(ctx, b, a); err != nil || got.ID != ab.ID {
		t.Fatalf("FindByPairEitherOrder(b,a)=%+v err=%v", got, err)
	}
	if _, err := repo.FindByPairEitherOrder(ctx, a, c); !errors.Is(err, matchrepoport.ErrNotFound) {
		t.Fatalf("FindByPairEitherOrder(a,c) err=%v, want ErrNotFound", err)
	}

	// Unordered pair uniqueness.
	ba := domain.Match{
		ID:          domain.MatchID(uuid.NewString()),
		InitiatorID: b,
		TargetID:    a,
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, ba); !errors.Is(err, matchrepoport.ErrPairExists) {
		t.Fatalf("Create(reverse pair) err=%v, want ErrPairExists", err)
	}

	// Update status.
	got.Status = domain.MatchStatusAccepted
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, err := repo.GetByID(ctx, ab.ID); err != nil || got.Status != domain.MatchStatusAccepted || !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("after Update=%+v err=%v", got, err)
	}
	if err := repo.Update(ctx, domain.Match{ID: domain.MatchID(uuid.NewString()), Status: domain.MatchStatusRejected}); !errors.Is(err, matchrepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want ErrNotFound", err)
	}

	// Listing by either party with optional status filter.
	ca := domain.Match{
		ID:          domain.MatchID(uuid.NewString()),
		InitiatorID: c,
		TargetID:    a,
		Status:      domain.MatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, ca); err != nil {
		t.Fatalf("Create ca: %v", err)
	}
	all, err := repo.ListByProfile(ctx, a, nil)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListByProfile(a) len=%d, want 2", len(all))
	}
	pending := domain.MatchStatusPending
	ps, err := repo.ListByProfile(ctx, a, &pending)
	if err != nil {
		t.Fatalf("ListByProfile(pending): %v", err)
	}
	if len(ps) != 1 || ps[0].ID != ca.ID {
		t.Fatalf("ListByProfile(a, PENDING)=%+v, want [ca]", ps)
	}
	bs, err := repo.ListByProfile(ctx, b, nil)
	if err != nil || len(bs) != 1 || bs[0].ID != ab.ID {
		t.Fatalf("ListByProfile(b)=%+v err=%v", bs, err)
	}
}

func RunMessageRepo(t *testing.T, newRepo MessageRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	base := time.Unix(3000, 0).UTC()
	a, b, c := newProfileID(), newProfileID(), newProfileID()
	msgs := []domain.Message{
		{ID: domain.MessageID(uuid.NewString()), SenderID: b, ReceiverID: a, Content: "second", SentAt: base.Add(2 * time.Second)},
		{ID: domain.MessageID(uuid.NewString()), SenderID: a, ReceiverID: b, Content: "first", SentAt: base.Add(1 * time.Second)},
		{ID: domain.MessageID(uuid.NewString()), SenderID: a, ReceiverID: b, Content: "third", SentAt: base.Add(3 * time.Second)},
		{ID: domain.MessageID(uuid.NewString()), SenderID: c, ReceiverID: a, Content: "other", SentAt: base},
	}
	for _, m := range msgs {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("Create %q: %v", m.Content, err)
		}
	}
	if err := repo.Create(ctx, msgs[0]); !errors.Is(err, messagerepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup) err=%v, want ErrAlreadyExists", err)
	}

	conv, err := repo.ListConversation(ctx, b, a)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(conv) != 3 || conv[0].Content != "first" || conv[1].Content != "second" || conv[2].Content != "third" {
		t.Fatalf("ListConversation order=%v", contents(conv))
	}

	n, err := repo.CountUnread(ctx, a)
	if err != nil || n != 2 {
		t.Fatalf("CountUnread(a)=%d err=%v, want 2", n, err)
	}

	read := msgs[0]
	read.Read = true
	if err := repo.Update(ctx, read); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByID(ctx, read.ID)
	if err != nil || !got.Read || got.Content != "second" {
		t.Fatalf("GetByID after Update=%+v err=%v", got, err)
	}
	if n, err := repo.CountUnread(ctx, a); err != nil || n != 1 {
		t.Fatalf("CountUnread(a) after read=%d err=%v, want 1", n, err)
	}
	if _, err := repo.GetByID(ctx, domain.MessageID(uuid.NewString())); !errors.Is(err, messagerepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, domain.Message{ID: domain.MessageID(uuid.NewString()), Read: true}); !errors.Is(err, messagerepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want ErrNotFound", err)
	}
}

func contents(ms []domain.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Content)
	}
	return out
}

func RunEventRepo(t *testing.T, newRepo EventRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(4000, 0).UTC()
	organizer, p1, p2 := newProfileID(), newProfileID(), newProfileID()
	limit := 2
	addr := "Dolores Park"
	sfLoc := sanFrancisco
	sfLoc.Address = &addr

	soon := domain.Event{
		ID:              domain.EventID(uuid.NewString()),
		OrganizerID:     organizer,
		Title:           "Playground meetup",
		Description:     "Bring snacks",
		Location:        sfLoc,
		DateTime:        now.Add(24 * time.Hour),
		ParticipantIDs:  []domain.ProfileID{p1},
		MaxParticipants: &limit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	later := domain.Event{
		ID:          domain.EventID(uuid.NewString()),
		OrganizerID: organizer,
		Title:       "Zoo trip",
		Description: "Meet at the gate",
		Location:    oakland,
		DateTime:    now.Add(48 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	past := domain.Event{
		ID:          domain.EventID(uuid.NewString()),
		OrganizerID: organizer,
		Title:       "Old picnic",
		Description: "Done",
		Location:    sanFrancisco,
		DateTime:    now.Add(-24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, e := range []domain.Event{later, soon, past} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create %q: %v", e.Title, err)
		}
	}

	got, err := repo.GetByID(ctx, soon.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != soon.Title || got.MaxParticipants == nil || *got.MaxParticipants != 2 || len(got.ParticipantIDs) != 1 || got.ParticipantIDs[0] != p1 {
		t.Fatalf("GetByID()=%+v", got)
	}
	if got.Location.Address == nil || *got.Location.Address != addr {
		t.Fatalf("location=%+v", got.Location)
	}

	// Participants change only through the atomic add/remove operations.
	joinedAt := now.Add(time.Minute)
	added, err := repo.AddParticipant(ctx, soon.ID, p2, joinedAt)
	if err != nil || len(added.ParticipantIDs) != 2 || added.ParticipantIDs[1] != p2 || !added.UpdatedAt.Equal(joinedAt) {
		t.Fatalf("AddParticipant=%+v err=%v", added, err)
	}
	if again, err := repo.AddParticipant(ctx, soon.ID, p2, now.Add(2*time.Minute)); err != nil || len(again.ParticipantIDs) != 2 {
		t.Fatalf("AddParticipant(again)=%+v err=%v", again, err)
	}
	if _, err := repo.AddParticipant(ctx, soon.ID, newProfileID(), now); !errors.Is(err, eventrepoport.ErrCapacityExceeded) {
		t.Fatalf("AddParticipant(full) err=%v, want ErrCapacityExceeded", err)
	}
	if _, err := repo.AddParticipant(ctx, domain.EventID(uuid.NewString()), p1, now); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("AddParticipant(missing) err=%v, want ErrNotFound", err)
	}

	// Save ignores the caller's participant list and checks the new limit against the stored one.
	stale := got
	stale.Title = "Playground meetup (moved)"
	stale.ParticipantIDs = nil
	if err := repo.Save(ctx, stale); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved, err := repo.GetByID(ctx, soon.ID)
	if err != nil || saved.Title != stale.Title || len(saved.ParticipantIDs) != 2 {
		t.Fatalf("after Save=%+v err=%v", saved, err)
	}
	one := 1
	shrink := saved
	shrink.MaxParticipants = &one
	if err := repo.Save(ctx, shrink); !errors.Is(err, eventrepoport.ErrCapacityExceeded) {
		t.Fatalf("Save(limit below participants) err=%v, want ErrCapacityExceeded", err)
	}

	removed, err := repo.RemoveParticipant(ctx, soon.ID, p1, now.Add(3*time.Minute))
	if err != nil || removed.HasParticipant(p1) || !removed.HasParticipant(p2) {
		t.Fatalf("RemoveParticipant=%+v err=%v", removed, err)
	}
	if noop, err := repo.RemoveParticipant(ctx, soon.ID, p1, now); err != nil || len(noop.ParticipantIDs) != 1 {
		t.Fatalf("RemoveParticipant(absent)=%+v err=%v", noop, err)
	}
	if _, err := repo.RemoveParticipant(ctx, domain.EventID(uuid.NewString()), p1, now); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("RemoveParticipant(missing) err=%v, want ErrNotFound", err)
	}
	if _, err := repo.AddParticipant(ctx, soon.ID, p1, now); err != nil {
		t.Fatalf("AddParticipant(p1 back): %v", err)
	}

	// Concurrent joins against a limited event never overshoot or drop a success.
	crowd := domain.Event{
		ID:              domain.EventID(uuid.NewString()),
		OrganizerID:     organizer,
		Title:           "Story time",
		Description:     "Library",
		Location:        losAngeles,
		DateTime:        now.Add(72 * time.Hour),
		MaxParticipants: &limit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.Create(ctx, crowd); err != nil {
		t.Fatalf("Create crowd: %v", err)
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []domain.ProfileID
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(p domain.ProfileID) {
			defer wg.Done()
			if _, err := repo.AddParticipant(ctx, crowd.ID, p, now); err == nil {
				mu.Lock()
				accepted = append(accepted, p)
				mu.Unlock()
			} else if !errors.Is(err, eventrepoport.ErrCapacityExceeded) {
				t.Errorf("AddParticipant(concurrent) err=%v", err)
			}
		}(newProfileID())
	}
	wg.Wait()
	stored, err := repo.GetByID(ctx, crowd.ID)
	if err != nil || len(accepted) != limit || len(stored.ParticipantIDs) != limit {
		t.Fatalf("accepted=%v stored=%v err=%v, want %d", accepted, stored.ParticipantIDs, err, limit)
	}
	for _, p := range accepted {
		if !stored.HasParticipant(p) {
			t.Fatalf("accepted participant %s missing from %v", p, stored.ParticipantIDs)
		}
	}

	upcoming, err := repo.ListUpcoming(ctx, now)
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	ui := indexEvents(upcoming)
	if _, ok := ui[past.ID]; ok {
		t.Fatalf("ListUpcoming returned past event")
	}
	if ui[soon.ID] > ui[later.ID] {
		t.Fatalf("ListUpcoming not ordered by date: %v", ui)
	}

	near, err := repo.FindNear(ctx, sanFrancisco.Longitude, sanFrancisco.Latitude, 5000, now)
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	ni := indexEvents(near)
	if _, ok := ni[soon.ID]; !ok {
		t.Fatalf("FindNear(5km) missing SF event")
	}
	if _, ok := ni[later.ID]; ok {
		t.Fatalf("FindNear(5km) returned Oakland event")
	}
	if _, ok := ni[past.ID]; ok {
		t.Fatalf("FindNear returned past event")
	}

	org, err := repo.ListByOrganizer(ctx, organizer)
	if err != nil || len(org) != 4 {
		t.Fatalf("ListByOrganizer len=%d err=%v, want 4", len(org), err)
	}
	part, err := repo.ListByParticipant(ctx, p2)
	if err != nil || len(part) != 1 || part[0].ID != soon.ID {
		t.Fatalf("ListByParticipant(p2)=%+v err=%v", part, err)
	}

	if err := repo.Delete(ctx, past.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, past.ID); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("GetByID(deleted) err=%v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, past.ID); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("Delete(deleted) err=%v, want ErrNotFound", err)
	}
	if err := repo.Save(ctx, past); !errors.Is(err, eventrepoport.ErrNotFound) {
		t.Fatalf("Save(deleted) err=%v, want ErrNotFound", err)
	}
}

func indexEvents(es []domain.Event) map[domain.EventID]int {
	out := make(map[domain.EventID]int, len(es))
	for i, e := range es {
		out[e.ID] = i
	}
	return out
}

func RunAccountRepo(t *testing.T, newRepo AccountRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(5000, 0).UTC()
	email := uuid.NewString() + "@example.com"
	acc := domain.Account{
		ID:           domain.AccountID(uuid.NewString()),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Alice",
		LastName:     "Johnson",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, acc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, acc.ID)
	if err != nil || got.Email != email || got.PasswordHash != "hash" || !got.IsActive {
		t.Fatalf("GetByID()=%+v err=%v", got, err)
	}
	// Lookup is case-insensitive.
	if got, err := repo.GetByEmail(ctx, "  "+strings.ToUpper(email)); err != nil || got.ID != acc.ID {
		t.Fatalf("GetByEmail(upper)=%+v err=%v", got, err)
	}
	dup := acc
	dup.ID = domain.AccountID(uuid.NewString())
	dup.Email = strings.ToUpper(email)
	if err := repo.Create(ctx, dup); !errors.Is(err, accountrepoport.ErrEmailTaken) {
		t.Fatalf("Create(dup email) err=%v, want ErrEmailTaken", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody-"+email); !errors.Is(err, accountrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail(missing) err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, domain.AccountID(uuid.NewString())); !errors.Is(err, accountrepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}
}
