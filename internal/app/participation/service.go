package participation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaigncache"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

// Result is the state after a successful Join or Leave.
type Result struct {
	Participation        domain.Participation
	Tier                 domain.Tier
	Progress             domain.TierProgress
	CampaignParticipants int
	DonorParticipations  int
}

type Service struct {
	ledger  ledger.Ledger
	clk     clockport.Clock
	cache   campaigncache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger

	newParticipationID func() domain.ParticipationID
}

// NewService wires the ledger. cache, m and logger may be nil.
func NewService(l ledger.Ledger, clk clockport.Clock, cache campaigncache.Cache, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cache == nil {
		cache = campaigncache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:  l,
		clk:     clk,
		cache:   cache,
		metrics: m,
		logger:  logger.With("component", "participation"),
		newParticipationID: func() domain.ParticipationID {
			return domain.ParticipationID(uuid.NewString())
		},
	}
}

// Join records donorID as a participant of campaignID and returns the donor's new tier.
func (s *Service) Join(ctx context.Context, donorID domain.DonorID, campaignID domain.CampaignID) (Result, error) {
	if strings.TrimSpace(string(donorID)) == "" {
		return Result{}, apperr.Invalid("donorId", "must be non-empty")
	}

	out, err := s.ledger.Join(ctx, domain.Participation{
		ID:         s.newParticipationID(),
		DonorID:    donorID,
		CampaignID: campaignID,
		JoinedAt:   s.clk.Now(),
	})
	if err != nil {
		ae := mapJoinError(err)
		s.observe(ctx, "join", err, ae)
		if ae != nil {
			return Result{}, ae
		}
		return Result{}, err
	}
	s.observe(ctx, "join", nil, nil)
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "donor joined campaign",
		"donor_id", donorID, "campaign_id", campaignID, "tier", out.Tier, "participants", out.CampaignParticipants)
	return toResult(out), nil
}

// Leave removes the ledger row for the pair and returns the donor's recomputed tier.
func (s *Service) Leave(ctx context.Context, donorID domain.DonorID, campaignID domain.CampaignID) (Result, error) {
	out, err := s.ledger.Leave(ctx, donorID, campaignID)
	if err != nil {
		var ae *apperr.Error
		if errors.Is(err, ledger.ErrNotFound) {
			ae = apperr.NotFound("PARTICIPATION_NOT_FOUND", "Donor is not registered in this campaign.")
		}
		s.observe(ctx, "leave", err, ae)
		if ae != nil {
			return Result{}, ae
		}
		return Result{}, err
	}
	s.observe(ctx, "leave", nil, nil)
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "donor left campaign",
		"donor_id", donorID, "campaign_id", campaignID, "tier", out.Tier, "participants", out.CampaignParticipants)
	return toResult(out), nil
}

func mapJoinError(err error) *apperr.Error {
	switch {
	case errors.Is(err, ledger.ErrDonorNotFound):
		return apperr.NotFound("DONOR_NOT_FOUND", "Donor not found.")
	case errors.Is(err, ledger.ErrCampaignNotFound):
		return apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found.")
	case errors.Is(err, ledger.ErrAlreadyJoined):
		return apperr.Conflict("ALREADY_JOINED", "Donor is already registered in this campaign.")
	case errors.Is(err, ledger.ErrCampaignClosed):
		return apperr.Conflict("CAMPAIGN_CLOSED", "Campaign is closed.")
	case errors.Is(err, ledger.ErrCampaignFull):
		return apperr.Conflict("CAMPAIGN_FULL", "Campaign has no available slots.")
	default:
		return nil
	}
}

func (s *Service) observe(ctx context.Context, event string, err error, ae *apperr.Error) {
	switch {
	case err == nil:
		s.metrics.ObserveParticipation(event, "ok")
	case ae != nil:
		s.metrics.ObserveParticipation(event, ae.Code)
	default:
		s.metrics.ObserveParticipation(event, "error")
		s.logger.ErrorContext(ctx, "participation storage failure", "event", event, "err", err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "campaign cache invalidation failed", "err", err)
	}
}

func toResult(o ledger.Outcome) Result {
	return Result{
		Participation:        o.Participation,
		Tier:                 o.Tier,
		Progress:             domain.ComputeTier(o.DonorParticipations),
		CampaignParticipants: o.CampaignParticipants,
		DonorParticipations:  o.DonorParticipations,
	}
}
