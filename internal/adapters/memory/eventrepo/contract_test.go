package eventrepo

import (
	"testing"

	"github.com/kinship-labs/parent-match-api/internal/adapters/contracttest"
	eventrepoport "github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

func TestContract_EventRepo(t *testing.T) {
	contracttest.RunEventRepo(t, func(t *testing.T) (eventrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	})
}
