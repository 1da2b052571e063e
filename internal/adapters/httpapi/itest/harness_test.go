package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/adapters/httpapi"
	memaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/accountrepo"
	memclock "github.com/kinship-labs/parent-match-api/internal/adapters/memory/clock"
	memeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/eventrepo"
	memidempotency "github.com/kinship-labs/parent-match-api/internal/adapters/memory/idempotency"
	memmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/matchrepo"
	memmessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/messagerepo"
	memprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/profilerepo"
	mongoaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/accountrepo"
	mongoeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/eventrepo"
	mongomatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/matchrepo"
	mongomessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/messagerepo"
	mongoprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/profilerepo"
	mongo_testutil "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/testutil"
	pgaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/accountrepo"
	pgeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/eventrepo"
	pgidempotency "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/idempotency"
	pgmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/matchrepo"
	pgmessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/messagerepo"
	pgprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/profilerepo"
	postgres_testutil "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/testutil"
	"github.com/kinship-labs/parent-match-api/internal/app/events"
	"github.com/kinship-labs/parent-match-api/internal/app/matching"
	"github.com/kinship-labs/parent-match-api/internal/app/messaging"
	"github.com/kinship-labs/parent-match-api/internal/app/profiles"
	accountrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
	eventrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
	idempotencyport "github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
	matchrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	messagerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
	profilerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendMongo    backend = "mongo"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "mongo":
		return []backend{backendMongo}
	case "all":
		return []backend{backendMemory, backendPostgres, backendMongo}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|mongo|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		accountRepo accountrepoport.Repository
		profileRepo profilerepoport.Repository
		matchRepo   matchrepoport.Repository
		messageRepo messagerepoport.Repository
		eventRepo   eventrepoport.Repository
		idemStore   idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		accountRepo = pgaccountrepo.NewRepo(pool)
		profileRepo = pgprofilerepo.NewRepo(pool)
		matchRepo = pgmatchrepo.NewRepo(pool)
		messageRepo = pgmessagerepo.NewRepo(pool)
		eventRepo = pgeventrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case backendMongo:
		db := mongo_testutil.OpenIndexedDatabase(t)
		accountRepo = mongoaccountrepo.NewRepo(db)
		profileRepo = mongoprofilerepo.NewRepo(db)
		matchRepo = mongomatchrepo.NewRepo(db)
		messageRepo = mongomessagerepo.NewRepo(db)
		eventRepo = mongoeventrepo.NewRepo(db)
		idemStore = memidempotency.NewStore()
	case backendMemory:
		accountRepo = memaccountrepo.NewRepo()
		profileRepo = memprofilerepo.NewRepo()
		matchRepo = memmatchrepo.NewRepo()
		messageRepo = memmessagerepo.NewRepo()
		eventRepo = memeventrepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	api := httpapi.NewServer(httpapi.Services{
		Profiles:  profiles.NewService(profileRepo, accountRepo, clk),
		Matching:  matching.NewService(matchRepo, profileRepo, clk),
		Messaging: messaging.NewService(messageRepo, matchRepo, clk),
		Events:    events.NewService(eventRepo, profileRepo, clk),
	}, idemStore, clk, nil)

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// An empty default subject means requests MUST provide X-Debug-Subject.
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
	if got.Error.RequestID == "" {
		t.Fatalf("expected requestId in error body=%s", string(body))
	}
}
