package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	badgerstore "github.com/kinship-labs/parent-match-api/internal/adapters/badger"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
)

const keyPrefix = "idem:"

// Store is a badger-backed idempotency.Store. Records expire after the configured TTL.
type Store struct {
	db  *badgerstore.DB
	ttl time.Duration
}

// NewStore returns a store writing to db. A non-positive ttl keeps records forever.
func NewStore(db *badgerstore.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

type record struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// fingerprintKey hashes the fingerprint so arbitrary caller keys map to a fixed-size badger key.
func fingerprintKey(fp idempotency.Fingerprint) []byte {
	h := sha256.Sum256([]byte(strings.Join([]string{
		string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
	}, "\x00")))
	return []byte(keyPrefix + hex.EncodeToString(h[:]))
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return idempotency.Record{}, false, err
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fingerprintKey(fp))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return idempotency.Record{}, false, err
	}
	return idempotency.Record{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   rec.CreatedAt,
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(record{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(fingerprintKey(fp), raw)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}
