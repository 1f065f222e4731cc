package campaigns

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaigncache"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
)

type Service struct {
	repo   campaignrepo.Repository
	cache  campaigncache.Cache
	clk    clockport.Clock
	logger *slog.Logger

	newCampaignID func() domain.CampaignID
}

// NewService wires the campaign store. cache may be nil, which disables caching.
func NewService(repo campaignrepo.Repository, cache campaigncache.Cache, clk clockport.Clock, logger *slog.Logger) *Service {
	if cache == nil {
		cache = campaigncache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		clk:    clk,
		logger: logger.With("component", "campaigns"),
		newCampaignID: func() domain.CampaignID {
			return domain.CampaignID(uuid.NewString())
		},
	}
}

// List returns every campaign with aggregate statistics.
// The cache is consulted first; any cache error is logged and treated as a miss.
func (s *Service) List(ctx context.Context) (Listing, error) {
	cs, hit, err := s.cache.GetList(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "campaign cache read failed", "err", err)
		hit = false
	}
	if !hit {
		cs, err = s.repo.List(ctx)
		if err != nil {
			return Listing{}, err
		}
		if err := s.cache.PutList(ctx, cs); err != nil {
			s.logger.WarnContext(ctx, "campaign cache write failed", "err", err)
		}
	}

	out := make([]domain.Campaign, 0, len(cs))
	for _, c := range cs {
		out = append(out, toDomain(c))
	}
	return Listing{Campaigns: out, Statistics: domain.ComputeCampaignStatistics(out)}, nil
}

func (s *Service) Get(ctx context.Context, id domain.CampaignID) (domain.Campaign, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	return toDomain(c), nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Campaign, error) {
	details := map[string]any{}

	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		details["name"] = "must be non-empty"
	}
	target, ok := parseTarget(in.BloodTypeTarget)
	if !ok {
		details["bloodTypeTarget"] = "must be a blood type or ALL"
	}
	if in.Capacity < 1 {
		details["capacity"] = "must be at least 1"
	}
	status, ok := parseStatus(in.Status)
	if !ok {
		details["status"] = "must be ACTIVE or CLOSED"
	}
	if ve := apperr.Validation(details); ve != nil {
		return domain.Campaign{}, ve
	}

	now := s.clk.Now()
	c := campaignrepo.Campaign{
		ID:              s.newCampaignID(),
		Name:            name,
		BloodTypeTarget: target,
		Capacity:        in.Capacity,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return domain.Campaign{}, err
	}
	s.invalidate(ctx)
	return toDomain(c), nil
}

func (s *Service) Update(ctx context.Context, id domain.CampaignID, in UpdateInput) (domain.Campaign, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}

	if in.Name.IsSpecified() {
		name := domain.NormalizeHumanName(in.Name.Value())
		if in.Name.IsNull() || name == "" {
			return domain.Campaign{}, apperr.Invalid("name", "must be non-empty")
		}
		c.Name = name
	}
	if in.BloodTypeTarget.IsSpecified() {
		target, ok := parseTarget(in.BloodTypeTarget.Value())
		if in.BloodTypeTarget.IsNull() || !ok {
			return domain.Campaign{}, apperr.Invalid("bloodTypeTarget", "must be a blood type or ALL")
		}
		c.BloodTypeTarget = target
	}
	if in.Status.IsSpecified() {
		status, ok := parseStatus(in.Status.Value())
		if in.Status.IsNull() || !ok {
			return domain.Campaign{}, apperr.Invalid("status", "must be ACTIVE or CLOSED")
		}
		c.Status = status
	}
	if in.Capacity.IsSpecified() {
		if in.Capacity.IsNull() || in.Capacity.Value() < 1 {
			return domain.Campaign{}, apperr.Invalid("capacity", "must be at least 1")
		}
		if in.Capacity.Value() < c.ParticipantCount {
			return domain.Campaign{}, capacityBelowParticipants(c.ParticipantCount)
		}
		c.Capacity = in.Capacity.Value()
	}

	c.UpdatedAt = s.clk.Now()
	if err := s.repo.Save(ctx, c); err != nil {
		switch {
		case errors.Is(err, campaignrepo.ErrNotFound):
			return domain.Campaign{}, campaignNotFound()
		case errors.Is(err, campaignrepo.ErrCapacityBelowParticipants):
			// A join landed between the read above and the write.
			count := c.ParticipantCount
			if cur, gerr := s.repo.GetByID(ctx, id); gerr == nil {
				count = cur.ParticipantCount
			}
			return domain.Campaign{}, capacityBelowParticipants(count)
		}
		return domain.Campaign{}, err
	}
	s.invalidate(ctx)

	fresh, err := s.get(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	return toDomain(fresh), nil
}

func (s *Service) Delete(ctx context.Context, id domain.CampaignID) error {
	err := s.repo.Delete(ctx, id)
	switch {
	case errors.Is(err, campaignrepo.ErrNotFound):
		return campaignNotFound()
	case errors.Is(err, campaignrepo.ErrHasParticipants):
		return apperr.Conflict("CAMPAIGN_HAS_PARTICIPANTS", "Campaign still has participants.")
	case err != nil:
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) get(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, campaignrepo.ErrNotFound) {
			return campaignrepo.Campaign{}, campaignNotFound()
		}
		return campaignrepo.Campaign{}, err
	}
	return c, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "campaign cache invalidation failed", "err", err)
	}
}

func parseTarget(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, domain.BloodTypeTargetAll) {
		return domain.BloodTypeTargetAll, true
	}
	bt, ok := domain.ParseBloodType(s)
	return string(bt), ok
}

func parseStatus(s string) (campaignrepo.Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(campaignrepo.StatusActive):
		return campaignrepo.StatusActive, true
	case string(campaignrepo.StatusClosed):
		return campaignrepo.StatusClosed, true
	default:
		return "", false
	}
}

func campaignNotFound() *apperr.Error {
	return apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found.")
}

func toDomain(c campaignrepo.Campaign) domain.Campaign {
	return domain.Campaign{
		ID:               c.ID,
		Name:             c.Name,
		BloodTypeTarget:  c.BloodTypeTarget,
		Capacity:         c.Capacity,
		ParticipantCount: c.ParticipantCount,
		Status:           domain.CampaignStatus(c.Status),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func capacityBelowParticipants(count int) *apperr.Error {
	return &apperr.Error{
		Status:  409,
		Code:    "CAPACITY_BELOW_PARTICIPANTS",
		Message: "Capacity cannot be lower than the current number of participants.",
		Details: map[string]any{"participantCount": count},
	}
}
