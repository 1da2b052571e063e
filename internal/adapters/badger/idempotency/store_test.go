package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	badgerstore "github.com/kinship-labs/parent-match-api/internal/adapters/badger"
	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	idempotencyport "github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
)

func openInMemory(t *testing.T) *badgerstore.DB {
	t.Helper()
	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestContract_BadgerIdempotencyStore(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(openInMemory(t), time.Hour), nil
	})
}

func TestStore_ExpiredRecordIsGone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore(openInMemory(t), time.Second)

	fp := idempotencyport.Fingerprint{Key: "k1", Subject: domain.SubjectID("sub"), Method: "POST", Route: "/api/events"}
	require.NoError(t, store.Put(ctx, fp, idempotencyport.Record{StatusCode: 201, Body: []byte(`{}`)}))

	_, ok, err := store.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)

	// Badger TTLs have second granularity.
	time.Sleep(2100 * time.Millisecond)

	_, ok, err = store.Get(ctx, fp)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()
	store := NewStore(openInMemory(t), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Get(ctx, idempotencyport.Fingerprint{Key: "k"})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Put(ctx, idempotencyport.Fingerprint{Key: "k"}, idempotencyport.Record{}), context.Canceled)
}
