package contracttest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	campaignrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
	donorrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
	idempotencyport "github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
	ledgerport "github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

type CleanupFunc = func()

// LedgerStores bundles a ledger with the repositories it mutates.
type LedgerStores struct {
	Ledger    ledgerport.Ledger
	Donors    donorrepoport.Repository
	Campaigns campaignrepoport.Repository
}

type DonorRepoFactory func(t *testing.T) (donorrepoport.Repository, CleanupFunc)
type CampaignRepoFactory func(t *testing.T) (campaignrepoport.Repository, CleanupFunc)
type LedgerFactory func(t *testing.T) (LedgerStores, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  domain.SubjectID("admin-1"),
		Method:   "POST",
		Route:    "/admin/broadcasts",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Fingerprints differing only by body hash are distinct records.
	other := fp
	other.BodyHash = "h-1"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get(other) ok=%v err=%v, want miss", ok, err)
	}
}

func newDonor(marker string, mutate func(d *donorrepoport.Donor)) donorrepoport.Donor {
	now := time.Unix(1000, 0).UTC()
	id := uuid.NewString()
	d := donorrepoport.Donor{
		ID:          domain.DonorID(id),
		Name:        "Donor " + id[:8],
		Email:       "donor-" + id + "@example.com",
		Phone:       "+55 11 99999-0000",
		BloodType:   domain.BloodTypeONeg,
		Gender:      "F",
		DateOfBirth: "1990-01-01",
		PostalCode:  "01000-000",
		Address:     "Rua das Flores 10, Sao Paulo " + marker,
		Interest:    "doacao",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mutate != nil {
		mutate(&d)
	}
	return d
}

func RunDonorRepo(t *testing.T, newRepo DonorRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	marker := "m-" + uuid.NewString()

	a := newDonor(marker, nil)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != a.Email || got.BloodType != a.BloodType || got.Address != a.Address || got.Tier != nil {
		t.Fatalf("GetByID()=%+v, want %+v", got, a)
	}
	if byEmail, err := repo.GetByEmail(ctx, strings.ToUpper(a.Email)); err != nil || byEmail.ID != a.ID {
		t.Fatalf("GetByEmail(upper) id=%q err=%v, want %q", byEmail.ID, err, a.ID)
	}
	if _, err := repo.GetByID(ctx, domain.DonorID(uuid.NewString())); !errors.Is(err, donorrepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want %v", err, donorrepoport.ErrNotFound)
	}

	// Email uniqueness is case-insensitive.
	dupEmail := newDonor(marker, func(d *donorrepoport.Donor) { d.Email = strings.ToUpper(a.Email) })
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, donorrepoport.ErrEmailTaken) {
		t.Fatalf("Create(dup email) err=%v, want %v", err, donorrepoport.ErrEmailTaken)
	}
	dupID := newDonor(marker, func(d *donorrepoport.Donor) { d.ID = a.ID })
	if err := repo.Create(ctx, dupID); !errors.Is(err, donorrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup id) err=%v, want %v", err, donorrepoport.ErrAlreadyExists)
	}

	// Tier is written only through UpdateTier.
	if err := repo.UpdateTier(ctx, a.ID, domain.TierCommitted); err != nil {
		t.Fatalf("UpdateTier: %v", err)
	}
	upd := a
	upd.Phone = "+55 11 98888-1111"
	upd.UpdatedAt = a.UpdatedAt.Add(time.Minute)
	if err := repo.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Phone != upd.Phone || got.Tier == nil || *got.Tier != domain.TierCommitted {
		t.Fatalf("after Update phone=%q tier=%v, want %q COMMITTED", got.Phone, got.Tier, upd.Phone)
	}
	if err := repo.UpdateTier(ctx, domain.DonorID(uuid.NewString()), domain.TierBeginner); !errors.Is(err, donorrepoport.ErrNotFound) {
		t.Fatalf("UpdateTier(missing) err=%v, want %v", err, donorrepoport.ErrNotFound)
	}
	missing := newDonor(marker, nil)
	if err := repo.Update(ctx, missing); !errors.Is(err, donorrepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want %v", err, donorrepoport.ErrNotFound)
	}

	b := newDonor(marker, func(d *donorrepoport.Donor) {
		d.BloodType = domain.BloodTypeAPos
		d.Gender = "M"
		d.Address = "Av. Brasil 200, Rio de Janeiro " + marker
		d.FirstTime = true
		d.ConsentToMessage = true
	})
	c := newDonor(marker, func(d *donorrepoport.Donor) {
		d.Address = "Rua Augusta 5, sao paulo " + marker
		d.Interest = "voluntariado"
		d.Classification = "regular"
	})
	noEmail := newDonor(marker, func(d *donorrepoport.Donor) { d.Email = "" })
	for _, d := range []donorrepoport.Donor{b, c, noEmail} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create %s: %v", d.ID, err)
		}
	}

	scoped := func(f donorrepoport.Filter) []domain.DonorID {
		t.Helper()
		f.AddressContainsAny = append(f.AddressContainsAny, marker)
		ds, err := repo.ListMatching(ctx, f)
		if err != nil {
			t.Fatalf("ListMatching(%+v): %v", f, err)
		}
		ids := make([]domain.DonorID, 0, len(ds))
		for _, d := range ds {
			if strings.Contains(d.Address, marker) {
				ids = append(ids, d.ID)
			}
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1] >= ids[i] {
				t.Fatalf("ListMatching(%+v) not ordered by id: %v", f, ids)
			}
		}
		return ids
	}
	want := func(name string, got []domain.DonorID, ds ...donorrepoport.Donor) {
		t.Helper()
		set := make(map[domain.DonorID]bool, len(ds))
		for _, d := range ds {
			set[d.ID] = true
		}
		if len(got) != len(ds) {
			t.Fatalf("%s: got %v, want %d donors", name, got, len(ds))
		}
		for _, id := range got {
			if !set[id] {
				t.Fatalf("%s: unexpected donor %s in %v", name, id, got)
			}
		}
	}

	want("all", scoped(donorrepoport.Filter{}), a, b, c, noEmail)
	want("require email", scoped(donorrepoport.Filter{RequireEmail: true}), a, b, c)
	want("blood types", scoped(donorrepoport.Filter{BloodTypes: []domain.BloodType{domain.BloodTypeAPos, domain.BloodTypeABNeg}}), b)
	want("gender", scoped(donorrepoport.Filter{Gender: "M"}), b)
	want("interest", scoped(donorrepoport.Filter{Interest: "voluntariado"}), c)
	want("first time", scoped(donorrepoport.Filter{FirstTimeOnly: true}), b)
	want("classification", scoped(donorrepoport.Filter{Classification: "regular"}), c)
	want("consent", scoped(donorrepoport.Filter{ConsentToMessageOnly: true}), b)

	// Location matching is a case-sensitive substring OR across entries.
	ds, err := repo.ListMatching(ctx, donorrepoport.Filter{AddressContainsAny: []string{marker + "-nope", "Rio de Janeiro " + marker, "Sao Paulo " + marker}})
	if err != nil {
		t.Fatalf("ListMatching(locations): %v", err)
	}
	locIDs := make([]domain.DonorID, 0, len(ds))
	for _, d := range ds {
		locIDs = append(locIDs, d.ID)
	}
	want("locations", locIDs, a, b, noEmail)
}

func newCampaign(capacity int, createdAt time.Time) campaignrepoport.Campaign {
	return campaignrepoport.Campaign{
		ID:              domain.CampaignID(uuid.NewString()),
		Name:            "Campanha " + uuid.NewString()[:8],
		BloodTypeTarget: domain.BloodTypeTargetAll,
		Capacity:        capacity,
		Status:          campaignrepoport.StatusActive,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func RunCampaignRepo(t *testing.T, newRepo CampaignRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	base := time.Unix(5000, 0).UTC()
	c := newCampaign(2, base)
	c.ParticipantCount = 7 // ignored on create
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != c.Name || got.Capacity != 2 || got.ParticipantCount != 0 || got.Status != campaignrepoport.StatusActive {
		t.Fatalf("GetByID()=%+v", got)
	}
	if err := repo.Create(ctx, c); !errors.Is(err, campaignrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup) err=%v, want %v", err, campaignrepoport.ErrAlreadyExists)
	}
	if _, err := repo.GetByID(ctx, domain.CampaignID(uuid.NewString())); !errors.Is(err, campaignrepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want %v", err, campaignrepoport.ErrNotFound)
	}

	// Guarded increment stops at capacity.
	for i := 1; i <= 2; i++ {
		after, err := repo.IncrementParticipants(ctx, c.ID)
		if err != nil || after.ParticipantCount != i {
			t.Fatalf("IncrementParticipants #%d count=%d err=%v", i, after.ParticipantCount, err)
		}
	}
	if _, err := repo.IncrementParticipants(ctx, c.ID); !errors.Is(err, campaignrepoport.ErrFull) {
		t.Fatalf("IncrementParticipants(full) err=%v, want %v", err, campaignrepoport.ErrFull)
	}

	// Decrement floors at zero.
	for _, want := range []int{1, 0, 0} {
		after, err := repo.DecrementParticipantsFloorZero(ctx, c.ID)
		if err != nil || after.ParticipantCount != want {
			t.Fatalf("DecrementParticipantsFloorZero count=%d err=%v, want %d", after.ParticipantCount, err, want)
		}
	}
	if _, err := repo.IncrementParticipants(ctx, domain.CampaignID(uuid.NewString())); !errors.Is(err, campaignrepoport.ErrNotFound) {
		t.Fatalf("IncrementParticipants(missing) err=%v, want %v", err, campaignrepoport.ErrNotFound)
	}
	if _, err := repo.DecrementParticipantsFloorZero(ctx, domain.CampaignID(uuid.NewString())); !errors.Is(err, campaignrepoport.ErrNotFound) {
		t.Fatalf("DecrementParticipantsFloorZero(missing) err=%v, want %v", err, campaignrepoport.ErrNotFound)
	}

	// Save never touches the participant count.
	if _, err := repo.IncrementParticipants(ctx, c.ID); err != nil {
		t.Fatalf("IncrementParticipants: %v", err)
	}
	saved := c
	saved.Name = "Renamed"
	saved.Capacity = 5
	saved.Status = campaignrepoport.StatusClosed
	saved.ParticipantCount = 99
	saved.UpdatedAt = base.Add(time.Hour)
	if err := repo.Save(ctx, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID after save: %v", err)
	}
	if got.Name != "Renamed" || got.Capacity != 5 || got.Status != campaignrepoport.StatusClosed || got.ParticipantCount != 1 {
		t.Fatalf("after Save got=%+v", got)
	}
	if _, err := repo.IncrementParticipants(ctx, c.ID); !errors.Is(err, campaignrepoport.ErrClosed) {
		t.Fatalf("IncrementParticipants(closed) err=%v, want %v", err, campaignrepoport.ErrClosed)
	}
	shrunk := saved
	shrunk.Capacity = 0
	if err := repo.Save(ctx, shrunk); !errors.Is(err, campaignrepoport.ErrCapacityBelowParticipants) {
		t.Fatalf("Save(capacity below count) err=%v, want %v", err, campaignrepoport.ErrCapacityBelowParticipants)
	}
	if got, err := repo.GetByID(ctx, c.ID); err != nil || got.Capacity != 5 {
		t.Fatalf("after refused Save capacity=%d err=%v, want 5", got.Capacity, err)
	}
	missing := newCampaign(1, base)
	if err := repo.Save(ctx, missing); !errors.Is(err, campaignrepoport.ErrNotFound) {
		t.Fatalf("Save(missing) err=%v, want %v", err, campaignrepoport.ErrNotFound)
	}

	// Delete is refused while participants remain.
	if err := repo.Delete(ctx, c.ID); !errors.Is(err, campaignrepoport.ErrHasParticipants) {
		t.Fatalf("Delete(with participants) err=%v, want %v", err, campaignrepoport.ErrHasParticipants)
	}
	if _, err := repo.DecrementParticipantsFloorZero(ctx, c.ID); err != nil {
		t.Fatalf("DecrementParticipantsFloorZero: %v", err)
	}
	if err := repo.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, c.ID); !errors.Is(err, campaignrepoport.ErrNotFound) {
		t.Fatalf("Delete(again) err=%v, want %v", err, campaignrepoport.ErrNotFound)
	}

	// List is newest first.
	older := newCampaign(3, base.Add(time.Minute))
	newer := newCampaign(3, base.Add(2*time.Minute))
	for _, x := range []campaignrepoport.Campaign{older, newer} {
		if err := repo.Create(ctx, x); err != nil {
			t.Fatalf("Create %s: %v", x.ID, err)
		}
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	pos := map[domain.CampaignID]int{}
	for i, x := range all {
		pos[x.ID] = i
	}
	pOld, okOld := pos[older.ID]
	pNew, okNew := pos[newer.ID]
	if !okOld || !okNew || pNew > pOld {
		t.Fatalf("List order: newer at %d (%v), older at %d (%v)", pNew, okNew, pOld, okOld)
	}
}

func RunLedger(t *testing.T, newStores LedgerFactory) {
	t.Helper()
	ctx := context.Background()

	st, cleanup := newStores(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	base := time.Unix(10_000, 0).UTC()

	mustDonor := func() domain.DonorID {
		t.Helper()
		d := newDonor("ledger", nil)
		if err := st.Donors.Create(ctx, d); err != nil {
			t.Fatalf("Create donor: %v", err)
		}
		return d.ID
	}
	mustCampaign := func(capacity int) domain.CampaignID {
		t.Helper()
		c := newCampaign(capacity, base)
		if err := st.Campaigns.Create(ctx, c); err != nil {
			t.Fatalf("Create campaign: %v", err)
		}
		return c.ID
	}
	participation := func(d domain.DonorID, c domain.CampaignID, at time.Time) domain.Participation {
		return domain.Participation{
			ID:         domain.ParticipationID(uuid.NewString()),
			DonorID:    d,
			CampaignID: c,
			JoinedAt:   at,
		}
	}
	assertCounts := func(c domain.CampaignID, want int) {
		t.Helper()
		camp, err := st.Campaigns.GetByID(ctx, c)
		if err != nil {
			t.Fatalf("GetByID campaign: %v", err)
		}
		rows, err := st.Ledger.CountForCampaign(ctx, c)
		if err != nil {
			t.Fatalf("CountForCampaign: %v", err)
		}
		if camp.ParticipantCount != want || rows != want {
			t.Fatalf("campaign %s participant_count=%d ledger rows=%d, want %d", c, camp.ParticipantCount, rows, want)
		}
	}
	assertTier := func(d domain.DonorID, want domain.Tier) {
		t.Helper()
		donor, err := st.Donors.GetByID(ctx, d)
		if err != nil {
			t.Fatalf("GetByID donor: %v", err)
		}
		if donor.Tier == nil || *donor.Tier != want {
			t.Fatalf("donor %s tier=%v, want %s", d, donor.Tier, want)
		}
	}

	t.Run("join then duplicate then leave twice", func(t *testing.T) {
		donor := mustDonor()
		camp := mustCampaign(10)

		out, err := st.Ledger.Join(ctx, participation(donor, camp, base))
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		if out.CampaignParticipants != 1 || out.DonorParticipations != 1 || out.Tier != domain.TierBeginner {
			t.Fatalf("Join outcome=%+v", out)
		}
		assertCounts(camp, 1)
		assertTier(donor, domain.TierBeginner)

		if _, err := st.Ledger.Join(ctx, participation(donor, camp, base.Add(time.Second))); !errors.Is(err, ledgerport.ErrAlreadyJoined) {
			t.Fatalf("Join(dup) err=%v, want %v", err, ledgerport.ErrAlreadyJoined)
		}
		assertCounts(camp, 1)

		out, err = st.Ledger.Leave(ctx, donor, camp)
		if err != nil {
			t.Fatalf("Leave: %v", err)
		}
		if out.CampaignParticipants != 0 || out.DonorParticipations != 0 || out.Tier != domain.TierUnranked {
			t.Fatalf("Leave outcome=%+v", out)
		}
		assertCounts(camp, 0)
		assertTier(donor, domain.TierUnranked)

		if _, err := st.Ledger.Leave(ctx, donor, camp); !errors.Is(err, ledgerport.ErrNotFound) {
			t.Fatalf("Leave(again) err=%v, want %v", err, ledgerport.ErrNotFound)
		}
		assertCounts(camp, 0)
	})

	t.Run("missing donor or campaign", func(t *testing.T) {
		donor := mustDonor()
		camp := mustCampaign(10)
		if _, err := st.Ledger.Join(ctx, participation(donor, domain.CampaignID(uuid.NewString()), base)); !errors.Is(err, ledgerport.ErrCampaignNotFound) {
			t.Fatalf("Join(missing campaign) err=%v, want %v", err, ledgerport.ErrCampaignNotFound)
		}
		if _, err := st.Ledger.Join(ctx, participation(domain.DonorID(uuid.NewString()), camp, base)); !errors.Is(err, ledgerport.ErrDonorNotFound) {
			t.Fatalf("Join(missing donor) err=%v, want %v", err, ledgerport.ErrDonorNotFound)
		}
		assertCounts(camp, 0)
	})

	t.Run("full and closed campaigns", func(t *testing.T) {
		camp := mustCampaign(1)
		if _, err := st.Ledger.Join(ctx, participation(mustDonor(), camp, base)); err != nil {
			t.Fatalf("Join: %v", err)
		}
		late := mustDonor()
		if _, err := st.Ledger.Join(ctx, participation(late, camp, base)); !errors.Is(err, ledgerport.ErrCampaignFull) {
			t.Fatalf("Join(full) err=%v, want %v", err, ledgerport.ErrCampaignFull)
		}
		assertCounts(camp, 1)

		closed := mustCampaign(5)
		c, err := st.Campaigns.GetByID(ctx, closed)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		c.Status = campaignrepoport.StatusClosed
		if err := st.Campaigns.Save(ctx, c); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := st.Ledger.Join(ctx, participation(late, closed, base)); !errors.Is(err, ledgerport.ErrCampaignClosed) {
			t.Fatalf("Join(closed) err=%v, want %v", err, ledgerport.ErrCampaignClosed)
		}
		assertCounts(closed, 0)
	})

	t.Run("tier follows participation count", func(t *testing.T) {
		donor := mustDonor()
		camps := make([]domain.CampaignID, 0, 6)
		wantTiers := []domain.Tier{
			domain.TierBeginner, domain.TierBeginner, domain.TierCommitted,
			domain.TierCommitted, domain.TierCommitted, domain.TierHeroic,
		}
		for i := 0; i < 6; i++ {
			camp := mustCampaign(3)
			camps = append(camps, camp)
			out, err := st.Ledger.Join(ctx, participation(donor, camp, base.Add(time.Duration(i)*time.Minute)))
			if err != nil {
				t.Fatalf("Join #%d: %v", i+1, err)
			}
			if out.Tier != wantTiers[i] || out.DonorParticipations != i+1 {
				t.Fatalf("Join #%d outcome=%+v, want tier %s", i+1, out, wantTiers[i])
			}
		}
		assertTier(donor, domain.TierHeroic)

		entries, err := st.Ledger.ListForDonor(ctx, donor)
		if err != nil {
			t.Fatalf("ListForDonor: %v", err)
		}
		if len(entries) != 6 || entries[0].CampaignID != camps[5] || entries[5].CampaignID != camps[0] {
			t.Fatalf("ListForDonor not most-recent-first: %+v", entries)
		}
		if entries[0].CampaignName == "" || entries[0].CampaignStatus != domain.CampaignStatusActive {
			t.Fatalf("ListForDonor entry missing campaign fields: %+v", entries[0])
		}

		for _, camp := range camps[:4] {
			if _, err := st.Ledger.Leave(ctx, donor, camp); err != nil {
				t.Fatalf("Leave: %v", err)
			}
		}
		assertTier(donor, domain.TierBeginner)
		if n, err := st.Ledger.CountForDonor(ctx, donor); err != nil || n != 2 {
			t.Fatalf("CountForDonor=%d err=%v, want 2", n, err)
		}
		for _, camp := range camps {
			rows, _ := st.Ledger.CountForCampaign(ctx, camp)
			assertCounts(camp, rows)
		}
	})

	t.Run("concurrent joins for the same pair", func(t *testing.T) {
		donor := mustDonor()
		camp := mustCampaign(50)

		const n = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
			others    []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.Ledger.Join(ctx, participation(donor, camp, base))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ledgerport.ErrAlreadyJoined):
					conflicts++
				default:
					others = append(others, err)
				}
			}()
		}
		wg.Wait()
		if successes != 1 || conflicts != n-1 || len(others) != 0 {
			t.Fatalf("successes=%d conflicts=%d others=%v, want 1/%d/none", successes, conflicts, others, n-1)
		}
		assertCounts(camp, 1)
	})

	t.Run("concurrent joins never exceed capacity", func(t *testing.T) {
		camp := mustCampaign(5)
		donors := make([]domain.DonorID, 12)
		for i := range donors {
			donors[i] = mustDonor()
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			full      int
			others    []error
		)
		for _, d := range donors {
			wg.Add(1)
			go func(d domain.DonorID) {
				defer wg.Done()
				_, err := st.Ledger.Join(ctx, participation(d, camp, base))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ledgerport.ErrCampaignFull):
					full++
				default:
					others = append(others, err)
				}
			}(d)
		}
		wg.Wait()
		if successes != 5 || full != 7 || len(others) != 0 {
			t.Fatalf("successes=%d full=%d others=%v, want 5/7/none", successes, full, others)
		}
		assertCounts(camp, 5)
	})
}
