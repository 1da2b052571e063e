package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

func TestObserveMatchTransition(t *testing.T) {
	before := testutil.ToFloat64(matchTransitionsTotal.WithLabelValues("ACCEPTED"))
	ObserveMatchTransition(domain.MatchStatusAccepted)
	ObserveMatchTransition(domain.MatchStatusAccepted)
	after := testutil.ToFloat64(matchTransitionsTotal.WithLabelValues("ACCEPTED"))
	assert.Equal(t, before+2, after)
}

func TestObserveHTTPRequest_UnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	ObserveHTTPRequest("GET", "", http.StatusNotFound, 5*time.Millisecond)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	assert.Equal(t, before+1, after)
}

func TestHandler_ExposesCounters(t *testing.T) {
	ObserveMatchTransition(domain.MatchStatusPending)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "parentmatch_matching_transitions_total")
}
