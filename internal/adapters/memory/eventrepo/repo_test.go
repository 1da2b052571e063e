package eventrepo

import (
	"context"
	"testing"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

func TestRepo_StoredParticipantsAreNotAliased(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	now := time.Unix(100, 0).UTC()
	e := domain.Event{
		ID:             "e1",
		OrganizerID:    "org",
		Title:          "Park",
		Description:    "Swings",
		DateTime:       now.Add(time.Hour),
		ParticipantIDs: []domain.ProfileID{"p1"},
	}
	if err := r.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	// Mutating the caller's slice must not reach the stored record.
	e.ParticipantIDs[0] = "mutated"

	got, err := r.GetByID(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	if got.ParticipantIDs[0] != "p1" {
		t.Fatalf("stored participants=%v, want [p1]", got.ParticipantIDs)
	}
	got.ParticipantIDs[0] = "mutated-again"

	again, _ := r.GetByID(context.Background(), "e1")
	if again.ParticipantIDs[0] != "p1" {
		t.Fatalf("stored participants=%v after mutating a read, want [p1]", again.ParticipantIDs)
	}
}

func TestRepo_ListByParticipantOrdersByDate(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	now := time.Unix(100, 0).UTC()
	_ = r.Create(context.Background(), domain.Event{ID: "e2", OrganizerID: "o", DateTime: now.Add(2 * time.Hour), ParticipantIDs: []domain.ProfileID{"p"}})
	_ = r.Create(context.Background(), domain.Event{ID: "e1", OrganizerID: "o", DateTime: now.Add(1 * time.Hour), ParticipantIDs: []domain.ProfileID{"p"}})
	_ = r.Create(context.Background(), domain.Event{ID: "e3", OrganizerID: "o", DateTime: now.Add(3 * time.Hour)})

	got, err := r.ListByParticipant(context.Background(), "p")
	if err != nil {
		t.Fatalf("ListByParticipant() err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e2" {
		t.Fatalf("ListByParticipant()=%v, want [e1 e2]", []domain.EventID{got[0].ID, got[1].ID})
	}
}
