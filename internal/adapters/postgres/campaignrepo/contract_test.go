package campaignrepo

import (
	"testing"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/contracttest"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/testutil"
	campaignrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

func TestContract_PostgresCampaignRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunCampaignRepo(t, func(t *testing.T) (campaignrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
