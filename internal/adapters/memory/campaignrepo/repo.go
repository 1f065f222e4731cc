package campaignrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

// Repo is an in-memory implementation of campaignrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.CampaignID]campaignrepo.Campaign
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.CampaignID]campaignrepo.Campaign)}
}

func (r *Repo) Create(ctx context.Context, c campaignrepo.Campaign) error {
	_ = ctx
	if c.ID == "" {
		return campaignrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return campaignrepo.ErrAlreadyExists
	}
	c.ParticipantCount = 0
	r.byID[c.ID] = c
	return nil
}

func (r *Repo) Save(ctx context.Context, c campaignrepo.Campaign) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[c.ID]
	if !ok {
		return campaignrepo.ErrNotFound
	}
	if c.Capacity < existing.ParticipantCount {
		return campaignrepo.ErrCapacityBelowParticipants
	}
	c.ParticipantCount = existing.ParticipantCount
	c.CreatedAt = existing.CreatedAt
	r.byID[c.ID] = c
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.CampaignID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return campaignrepo.ErrNotFound
	}
	if c.ParticipantCount > 0 {
		return campaignrepo.ErrHasParticipants
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	return c, nil
}

func (r *Repo) List(ctx context.Context) ([]campaignrepo.Campaign, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]campaignrepo.Campaign, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repo) IncrementParticipants(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	if c.Status != campaignrepo.StatusActive {
		return campaignrepo.Campaign{}, campaignrepo.ErrClosed
	}
	if c.ParticipantCount >= c.Capacity {
		return campaignrepo.Campaign{}, campaignrepo.ErrFull
	}
	c.ParticipantCount++
	r.byID[id] = c
	return c, nil
}

func (r *Repo) DecrementParticipantsFloorZero(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	if c.ParticipantCount > 0 {
		c.ParticipantCount--
	}
	r.byID[id] = c
	return c, nil
}
