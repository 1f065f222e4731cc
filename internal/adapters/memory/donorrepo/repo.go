package donorrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

// Repo is an in-memory implementation of donorrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.DonorID]donorrepo.Donor
	idByEmail map[string]domain.DonorID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.DonorID]donorrepo.Donor),
		idByEmail: make(map[string]domain.DonorID),
	}
}

func (r *Repo) Create(ctx context.Context, d donorrepo.Donor) error {
	_ = ctx
	if d.ID == "" {
		return donorrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[d.ID]; ok {
		return donorrepo.ErrAlreadyExists
	}
	key := emailKey(d.Email)
	if key != "" {
		if _, ok := r.idByEmail[key]; ok {
			return donorrepo.ErrEmailTaken
		}
		r.idByEmail[key] = d.ID
	}
	r.byID[d.ID] = cloneDonor(d)
	return nil
}

func (r *Repo) Update(ctx context.Context, d donorrepo.Donor) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[d.ID]
	if !ok {
		return donorrepo.ErrNotFound
	}
	oldKey, newKey := emailKey(existing.Email), emailKey(d.Email)
	if newKey != oldKey {
		if newKey != "" {
			if owner, ok := r.idByEmail[newKey]; ok && owner != d.ID {
				return donorrepo.ErrEmailTaken
			}
			r.idByEmail[newKey] = d.ID
		}
		delete(r.idByEmail, oldKey)
	}

	// The tier is owned by the participation ledger.
	d.Tier = existing.Tier
	r.byID[d.ID] = cloneDonor(d)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.DonorID) (donorrepo.Donor, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return donorrepo.Donor{}, donorrepo.ErrNotFound
	}
	return cloneDonor(d), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (donorrepo.Donor, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[emailKey(email)]
	if !ok {
		return donorrepo.Donor{}, donorrepo.ErrNotFound
	}
	return cloneDonor(r.byID[id]), nil
}

func (r *Repo) List(ctx context.Context) ([]donorrepo.Donor, error) {
	return r.ListMatching(ctx, donorrepo.Filter{})
}

func (r *Repo) ListMatching(ctx context.Context, f donorrepo.Filter) ([]donorrepo.Donor, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]donorrepo.Donor, 0, len(r.byID))
	for _, d := range r.byID {
		if Matches(d, f) {
			out = append(out, cloneDonor(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repo) UpdateTier(ctx context.Context, id domain.DonorID, tier domain.Tier) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return donorrepo.ErrNotFound
	}
	t := tier
	d.Tier = &t
	r.byID[id] = d
	return nil
}

// Matches reports whether d satisfies every constraint in f.
func Matches(d donorrepo.Donor, f donorrepo.Filter) bool {
	if f.RequireEmail && strings.TrimSpace(d.Email) == "" {
		return false
	}
	if len(f.BloodTypes) > 0 && !containsBloodType(f.BloodTypes, d.BloodType) {
		return false
	}
	if f.Gender != "" && d.Gender != f.Gender {
		return false
	}
	if len(f.AddressContainsAny) > 0 && !containsAny(d.Address, f.AddressContainsAny) {
		return false
	}
	if f.Interest != "" && d.Interest != f.Interest {
		return false
	}
	if f.FirstTimeOnly && !d.FirstTime {
		return false
	}
	if f.Classification != "" && d.Classification != f.Classification {
		return false
	}
	if f.ConsentToMessageOnly && !d.ConsentToMessage {
		return false
	}
	return true
}

func containsBloodType(set []domain.BloodType, bt domain.BloodType) bool {
	for _, v := range set {
		if v == bt {
			return true
		}
	}
	return false
}

func containsAny(hay string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(hay, n) {
			return true
		}
	}
	return false
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneDonor(d donorrepo.Donor) donorrepo.Donor {
	out := d
	if d.Tier != nil {
		t := *d.Tier
		out.Tier = &t
	}
	return out
}
