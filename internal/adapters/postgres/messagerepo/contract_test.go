package messagerepo

import (
	"testing"

	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	"github.com/kinship-labs/parent-match-api/internal/adapters/postgres/testutil"
	messagerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

func TestContract_PostgresMessageRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunMessageRepo(t, func(t *testing.T) (messagerepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
