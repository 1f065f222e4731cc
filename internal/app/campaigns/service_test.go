package campaigns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/campaignrepo"
	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

type recordingCache struct {
	mu          sync.Mutex
	list        []campaignrepo.Campaign
	hit         bool
	readErr     error
	gets        int
	puts        int
	invalidated int
}

func (c *recordingCache) GetList(context.Context) ([]campaignrepo.Campaign, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	return c.list, c.hit, nil
}

func (c *recordingCache) PutList(_ context.Context, cs []campaignrepo.Campaign) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.list, c.hit = cs, true
	return nil
}

func (c *recordingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.list, c.hit = nil, false
	return nil
}

func newService(cache *recordingCache) (*Service, *memcampaignrepo.Repo, *memclock.ManualClock) {
	repo := memcampaignrepo.NewRepo()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	var svc *Service
	if cache == nil {
		svc = NewService(repo, nil, clk, nil)
	} else {
		svc = NewService(repo, cache, clk, nil)
	}
	return svc, repo, clk
}

func TestService_CreateGetList(t *testing.T) {
	t.Parallel()
	svc, _, clk := newService(nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: " Junho  Vermelho ", BloodTypeTarget: "o-", Capacity: 10})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if a.Name != "Junho Vermelho" || a.BloodTypeTarget != "O-" || a.Status != domain.CampaignStatusActive {
		t.Fatalf("a=%+v", a)
	}
	clk.Advance(time.Minute)
	b, err := svc.Create(ctx, CreateInput{Name: "Inverno", Capacity: 5, Status: "closed"})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if b.BloodTypeTarget != domain.BloodTypeTargetAll || b.Status != domain.CampaignStatusClosed {
		t.Fatalf("b=%+v", b)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil || got.ID != a.ID {
		t.Fatalf("Get got=%+v err=%v", got, err)
	}

	l, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	if len(l.Campaigns) != 2 || l.Campaigns[0].ID != b.ID {
		t.Fatalf("campaigns=%+v, want newest first", l.Campaigns)
	}
	want := domain.CampaignStatistics{TotalCampaigns: 2, TotalParticipants: 0, AvailableSlots: 15}
	if l.Statistics != want {
		t.Fatalf("stats=%+v, want %+v", l.Statistics, want)
	}
}

func TestService_Create_Validation(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "", BloodTypeTarget: "X", Capacity: 0, Status: "OPEN"})
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 422 || len(ae.Details) != 4 {
		t.Fatalf("err=%v details=%v, want 4 validation problems", err, ae)
	}
}

func TestService_Update_CapacityBelowParticipants(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newService(nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{Name: "Junho", Capacity: 3})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.IncrementParticipants(ctx, c.ID); err != nil {
			t.Fatalf("IncrementParticipants err=%v", err)
		}
	}

	_, err = svc.Update(ctx, c.ID, UpdateInput{Capacity: Some(1)})
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 409 || ae.Code != "CAPACITY_BELOW_PARTICIPANTS" {
		t.Fatalf("err=%v, want CAPACITY_BELOW_PARTICIPANTS 409", err)
	}

	updated, err := svc.Update(ctx, c.ID, UpdateInput{Capacity: Some(2), Status: Some("CLOSED")})
	if err != nil {
		t.Fatalf("Update err=%v", err)
	}
	if updated.Capacity != 2 || updated.Status != domain.CampaignStatusClosed || updated.ParticipantCount != 2 {
		t.Fatalf("updated=%+v", updated)
	}
}

// joinDuringSave lets one participant in just before the write, as a concurrent
// join would.
type joinDuringSave struct {
	*memcampaignrepo.Repo
}

func (r joinDuringSave) Save(ctx context.Context, c campaignrepo.Campaign) error {
	if _, err := r.Repo.IncrementParticipants(ctx, c.ID); err != nil {
		return err
	}
	return r.Repo.Save(ctx, c)
}

func TestService_Update_CapacityGuardedAtWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memcampaignrepo.NewRepo()
	svc := NewService(joinDuringSave{repo}, nil, memclock.NewManualClock(time.Unix(100, 0).UTC()), nil)

	c, err := svc.Create(ctx, CreateInput{Name: "Junho", Capacity: 3})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.IncrementParticipants(ctx, c.ID); err != nil {
			t.Fatalf("IncrementParticipants err=%v", err)
		}
	}

	_, err = svc.Update(ctx, c.ID, UpdateInput{Capacity: Some(2)})
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 409 || ae.Code != "CAPACITY_BELOW_PARTICIPANTS" {
		t.Fatalf("err=%v, want CAPACITY_BELOW_PARTICIPANTS 409", err)
	}
	if ae.Details["participantCount"] != 3 {
		t.Fatalf("details=%v, want participantCount 3", ae.Details)
	}

	got, err := repo.GetByID(ctx, c.ID)
	if err != nil || got.Capacity != 3 || got.ParticipantCount != 3 {
		t.Fatalf("stored=%+v err=%v, want capacity 3 with 3 participants", got, err)
	}
}

func TestService_Delete(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newService(nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{Name: "Junho", Capacity: 3})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if _, err := repo.IncrementParticipants(ctx, c.ID); err != nil {
		t.Fatalf("IncrementParticipants err=%v", err)
	}

	ae := (*apperr.Error)(nil)
	if err := svc.Delete(ctx, c.ID); !errors.As(err, &ae) || ae.Code != "CAMPAIGN_HAS_PARTICIPANTS" {
		t.Fatalf("Delete err=%v, want CAMPAIGN_HAS_PARTICIPANTS", err)
	}
	if _, err := repo.DecrementParticipantsFloorZero(ctx, c.ID); err != nil {
		t.Fatalf("Decrement err=%v", err)
	}
	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
	if err := svc.Delete(ctx, c.ID); !errors.As(err, &ae) || ae.Status != 404 {
		t.Fatalf("Delete err=%v, want 404", err)
	}
}

func TestService_List_CacheAsideAndInvalidation(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{}
	svc, _, _ := newService(cache)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "Junho", Capacity: 3}); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("invalidated=%d, want 1 after create", cache.invalidated)
	}

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List err=%v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List err=%v", err)
	}
	if cache.puts != 1 || cache.gets != 2 {
		t.Fatalf("puts=%d gets=%d, want one fill then one hit", cache.puts, cache.gets)
	}
}

func TestService_List_CacheErrorFallsBackToStore(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{readErr: errors.New("redis down")}
	svc, _, _ := newService(cache)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "Junho", Capacity: 3}); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	l, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	if len(l.Campaigns) != 1 {
		t.Fatalf("campaigns=%+v", l.Campaigns)
	}
}
