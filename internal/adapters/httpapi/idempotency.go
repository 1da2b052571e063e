package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
)

const idempotencyKeyHeader = "Idempotency-Key"

func hashBody(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// idempotent runs handle at most once per (Idempotency-Key, subject, route, body).
//
// Replay if same subject+key+route+bodyHash; reject with 409 if the key was used with a
// different body. Requests without the header always run.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, sub domain.SubjectID, route string, raw []byte, handle func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.Idem == nil {
		s.respond(w, r, handle)
		return
	}

	ctx := r.Context()
	bodyHash := hashBody(raw)
	metaFP := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: sub,
		Method:  r.Method,
		Route:   route,
	}
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	if ok && string(meta.Body) != bodyHash {
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return
	}
	if !ok {
		if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   s.now(),
		}); err != nil {
			writeAppError(w, r, s.Logger, err)
			return
		}
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	} else if ok && rec.StatusCode >= 200 && rec.StatusCode < 300 && strings.HasPrefix(rec.ContentType, "application/json") {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	status, payload, err := handle()
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		writeAppError(w, r, s.Logger, err)
		return
	}
	if err := s.Idem.Put(ctx, respFP, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   s.now(),
	}); err != nil && s.Logger != nil {
		s.Logger.WarnContext(ctx, "store idempotent response", "route", route, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
