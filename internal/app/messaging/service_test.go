package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	memclock "github.com/kinship-labs/parent-match-api/internal/adapters/memory/clock"
	memmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/matchrepo"
	memmessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/messagerepo"
	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
)

func newTestService(t *testing.T) (*Service, *memmatchrepo.Repo, *memclock.ManualClock) {
	t.Helper()
	matches := memmatchrepo.NewRepo()
	clk := memclock.NewManualClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(memmessagerepo.NewRepo(), matches, clk), matches, clk
}

func seedMatch(t *testing.T, repo *memmatchrepo.Repo, id string, a, b domain.ProfileID, status domain.MatchStatus) {
	t.Helper()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.Create(context.Background(), domain.Match{
		ID: domain.MatchID(id), InitiatorID: a, TargetID: b, Status: status, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed match err=%v", err)
	}
}

func requireAppErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status() != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_CanMessage(t *testing.T) {
	t.Parallel()

	svc, matches, _ := newTestService(t)
	ctx := context.Background()
	seedMatch(t, matches, "m1", "a", "b", domain.MatchStatusAccepted)
	seedMatch(t, matches, "m2", "a", "c", domain.MatchStatusPending)
	seedMatch(t, matches, "m3", "d", "a", domain.MatchStatusRejected)

	cases := []struct {
		from, to domain.ProfileID
		want     bool
	}{
		{"a", "b", true},
		{"b", "a", true},
		{"a", "c", false},
		{"c", "a", false},
		{"a", "d", false},
		{"a", "z", false},
		{"a", "a", false},
	}
	for _, tc := range cases {
		got, err := svc.CanMessage(ctx, tc.from, tc.to)
		if err != nil {
			t.Fatalf("CanMessage(%s,%s) err=%v", tc.from, tc.to, err)
		}
		if got != tc.want {
			t.Fatalf("CanMessage(%s,%s)=%v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestService_Send_GateAndValidation(t *testing.T) {
	t.Parallel()

	svc, matches, _ := newTestService(t)
	ctx := context.Background()
	seedMatch(t, matches, "m1", "a", "b", domain.MatchStatusAccepted)
	seedMatch(t, matches, "m2", "a", "c", domain.MatchStatusPending)

	_, err := svc.Send(ctx, "a", "c", "hi")
	requireAppErr(t, err, 403, "NOT_MATCHED")

	_, err = svc.Send(ctx, "a", "b", "   ")
	requireAppErr(t, err, 400, "VALIDATION_ERROR")

	_, err = svc.Send(ctx, "a", "b", strings.Repeat("x", domain.MaxMessageLength+1))
	requireAppErr(t, err, 400, "VALIDATION_ERROR")

	msg, err := svc.Send(ctx, "b", "a", "  hello ")
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}
	if msg.Content != "hello" || msg.Read || msg.SenderID != "b" || msg.ReceiverID != "a" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestService_MarkRead(t *testing.T) {
	t.Parallel()

	svc, matches, _ := newTestService(t)
	ctx := context.Background()
	seedMatch(t, matches, "m1", "a", "b", domain.MatchStatusAccepted)

	msg, err := svc.Send(ctx, "a", "b", "hello")
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}

	_, err = svc.MarkRead(ctx, msg.ID, "a")
	requireAppErr(t, err, 403, "NOT_MESSAGE_RECEIVER")

	_, err = svc.MarkRead(ctx, "missing", "b")
	requireAppErr(t, err, 404, "MESSAGE_NOT_FOUND")

	for i := 0; i < 2; i++ {
		got, err := svc.MarkRead(ctx, msg.ID, "b")
		if err != nil || !got.Read {
			t.Fatalf("MarkRead #%d got=%+v err=%v", i, got, err)
		}
	}
}

func TestService_ConversationAndUnreadCount(t *testing.T) {
	t.Parallel()

	svc, matches, clk := newTestService(t)
	ctx := context.Background()
	seedMatch(t, matches, "m1", "a", "b", domain.MatchStatusAccepted)
	seedMatch(t, matches, "m2", "c", "b", domain.MatchStatusAccepted)

	first, _ := svc.Send(ctx, "a", "b", "one")
	clk.Advance(time.Second)
	_, _ = svc.Send(ctx, "b", "a", "two")
	clk.Advance(time.Second)
	_, _ = svc.Send(ctx, "a", "b", "three")
	_, _ = svc.Send(ctx, "c", "b", "other thread")

	conv, err := svc.Conversation(ctx, "b", "a")
	if err != nil {
		t.Fatalf("Conversation err=%v", err)
	}
	var contents []string
	for _, m := range conv {
		contents = append(contents, m.Content)
	}
	if strings.Join(contents, ",") != "one,two,three" {
		t.Fatalf("contents=%v", contents)
	}

	n, err := svc.UnreadCount(ctx, "b")
	if err != nil || n != 3 {
		t.Fatalf("unread=%d err=%v, want 3", n, err)
	}
	if _, err := svc.MarkRead(ctx, first.ID, "b"); err != nil {
		t.Fatalf("MarkRead err=%v", err)
	}
	n, _ = svc.UnreadCount(ctx, "b")
	if n != 2 {
		t.Fatalf("unread=%d, want 2", n)
	}
}
