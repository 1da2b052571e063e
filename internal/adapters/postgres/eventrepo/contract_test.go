package eventrepo

import (
	"testing"

	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	"github.com/kinship-labs/parent-match-api/internal/adapters/postgres/testutil"
	eventrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

func TestContract_PostgresEventRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunEventRepo(t, func(t *testing.T) (eventrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
