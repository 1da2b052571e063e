package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
)

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{
		Key:      "k1",
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/api/messages",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"ok":true}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}

	if err := s.Put(context.Background(), fp, rec); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	got, ok, err := s.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if !ok {
		t.Fatalf("Get() ok=false, want true")
	}
	if got.StatusCode != rec.StatusCode || got.ContentType != rec.ContentType || string(got.Body) != string(rec.Body) {
		t.Fatalf("Get()=%+v, want %+v", got, rec)
	}
}

func TestStore_BodyIsNotAliased(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{Key: "k1", Subject: "sub-1", Method: "POST", Route: "/api/events"}
	body := []byte("abc")
	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201, Body: body}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	body[0] = 'z'

	got, _, _ := s.Get(context.Background(), fp)
	got.Body[1] = 'z'

	again, _, _ := s.Get(context.Background(), fp)
	if string(again.Body) != "abc" {
		t.Fatalf("stored body=%q, want %q", again.Body, "abc")
	}
}
