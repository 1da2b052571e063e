package matchrepo

import (
	"testing"

	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/testutil"
	matchrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
)

func TestContract_MongoMatchRepo(t *testing.T) {
	db := testutil.OpenIndexedDatabase(t)

	contracttest.RunMatchRepo(t, func(t *testing.T) (matchrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(db), nil
	})
}
