package messagerepo

import (
	"testing"

	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/testutil"
	messagerepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

func TestContract_MongoMessageRepo(t *testing.T) {
	db := testutil.OpenIndexedDatabase(t)

	contracttest.RunMessageRepo(t, func(t *testing.T) (messagerepoport.Repository, func()) {
		t.Helper()
		return NewRepo(db), nil
	})
}
