package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

type pairKey struct {
	donor    domain.DonorID
	campaign domain.CampaignID
}

// Ledger is an in-memory implementation of ledger.Ledger.
//
// It composes a donor and a campaign repository and serializes every Join/Leave behind one
// mutex; the pair index plays the role of the uniqueness constraint. Steps already applied
// are undone when a later step fails. It is safe for concurrent use as long as nothing else
// mutates campaign participant counts or donor tiers.
type Ledger struct {
	mu sync.RWMutex

	donors    donorrepo.Repository
	campaigns campaignrepo.Repository

	byPair map[pairKey]domain.Participation
}

func NewLedger(donors donorrepo.Repository, campaigns campaignrepo.Repository) *Ledger {
	return &Ledger{
		donors:    donors,
		campaigns: campaigns,
		byPair:    make(map[pairKey]domain.Participation),
	}
}

func (l *Ledger) Join(ctx context.Context, p domain.Participation) (ledger.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.donors.GetByID(ctx, p.DonorID); err != nil {
		if errors.Is(err, donorrepo.ErrNotFound) {
			return ledger.Outcome{}, ledger.ErrDonorNotFound
		}
		return ledger.Outcome{}, err
	}
	if _, err := l.campaigns.GetByID(ctx, p.CampaignID); err != nil {
		if errors.Is(err, campaignrepo.ErrNotFound) {
			return ledger.Outcome{}, ledger.ErrCampaignNotFound
		}
		return ledger.Outcome{}, err
	}

	key := pairKey{donor: p.DonorID, campaign: p.CampaignID}
	if _, ok := l.byPair[key]; ok {
		return ledger.Outcome{}, ledger.ErrAlreadyJoined
	}

	c, err := l.campaigns.IncrementParticipants(ctx, p.CampaignID)
	if err != nil {
		switch {
		case errors.Is(err, campaignrepo.ErrFull):
			return ledger.Outcome{}, ledger.ErrCampaignFull
		case errors.Is(err, campaignrepo.ErrClosed):
			return ledger.Outcome{}, ledger.ErrCampaignClosed
		case errors.Is(err, campaignrepo.ErrNotFound):
			return ledger.Outcome{}, ledger.ErrCampaignNotFound
		}
		return ledger.Outcome{}, err
	}
	l.byPair[key] = p

	count := l.countForDonorLocked(p.DonorID)
	tier := domain.ComputeTier(count).Tier
	if err := l.donors.UpdateTier(ctx, p.DonorID, tier); err != nil {
		delete(l.byPair, key)
		_, _ = l.campaigns.DecrementParticipantsFloorZero(ctx, p.CampaignID)
		return ledger.Outcome{}, err
	}

	return ledger.Outcome{
		Participation:        p,
		CampaignParticipants: c.ParticipantCount,
		DonorParticipations:  count,
		Tier:                 tier,
	}, nil
}

func (l *Ledger) Leave(ctx context.Context, donorID domain.DonorID, campaignID domain.CampaignID) (ledger.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pairKey{donor: donorID, campaign: campaignID}
	p, ok := l.byPair[key]
	if !ok {
		return ledger.Outcome{}, ledger.ErrNotFound
	}
	delete(l.byPair, key)

	count := l.countForDonorLocked(donorID)
	tier := domain.ComputeTier(count).Tier
	if err := l.donors.UpdateTier(ctx, donorID, tier); err != nil {
		l.byPair[key] = p
		return ledger.Outcome{}, err
	}

	c, err := l.campaigns.DecrementParticipantsFloorZero(ctx, campaignID)
	if err != nil {
		l.byPair[key] = p
		_ = l.donors.UpdateTier(ctx, donorID, domain.ComputeTier(count+1).Tier)
		return ledger.Outcome{}, err
	}

	return ledger.Outcome{
		Participation:        p,
		CampaignParticipants: c.ParticipantCount,
		DonorParticipations:  count,
		Tier:                 tier,
	}, nil
}

func (l *Ledger) ListForDonor(ctx context.Context, donorID domain.DonorID) ([]domain.ParticipationEntry, error) {
	l.mu.RLock()
	rows := make([]domain.Participation, 0)
	for k, p := range l.byPair {
		if k.donor == donorID {
			rows = append(rows, p)
		}
	}
	l.mu.RUnlock()

	out := make([]domain.ParticipationEntry, 0, len(rows))
	for _, p := range rows {
		c, err := l.campaigns.GetByID(ctx, p.CampaignID)
		if err != nil {
			if errors.Is(err, campaignrepo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, domain.ParticipationEntry{
			Participation:   p,
			CampaignName:    c.Name,
			CampaignStatus:  domain.CampaignStatus(c.Status),
			BloodTypeTarget: c.BloodTypeTarget,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].JoinedAt.After(out[j].JoinedAt)
	})
	return out, nil
}

func (l *Ledger) CountForDonor(ctx context.Context, donorID domain.DonorID) (int, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.countForDonorLocked(donorID), nil
}

func (l *Ledger) CountForCampaign(ctx context.Context, campaignID domain.CampaignID) (int, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for k := range l.byPair {
		if k.campaign == campaignID {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) countForDonorLocked(donorID domain.DonorID) int {
	n := 0
	for k := range l.byPair {
		if k.donor == donorID {
			n++
		}
	}
	return n
}
