package ledger

import (
	"testing"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/contracttest"
	pgcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/campaignrepo"
	pgdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/donorrepo"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/testutil"
)

func TestContract_PostgresLedger(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunLedger(t, func(t *testing.T) (contracttest.LedgerStores, func()) {
		t.Helper()
		return contracttest.LedgerStores{
			Ledger:    NewLedger(pool),
			Donors:    pgdonorrepo.NewRepo(pool),
			Campaigns: pgcampaignrepo.NewRepo(pool),
		}, nil
	})
}
