package ledger

import (
	"context"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// Outcome reports the state left behind by a Join or Leave.
type Outcome struct {
	Participation domain.Participation

	// CampaignParticipants is the campaign's participant count after the change.
	CampaignParticipants int

	// DonorParticipations is the donor's total ledger rows after the change.
	DonorParticipations int

	// Tier is the tier persisted for the donor as part of the change.
	Tier domain.Tier
}

// Ledger records which donors joined which campaigns.
//
// Join and Leave are each a single unit of isolation: the ledger row, the campaign's
// participant count, and the donor's persisted tier (domain.ComputeTier of the donor's
// ledger row count) change together or not at all. Duplicate joins are rejected by a
// uniqueness constraint on (donor, campaign), not only by a prior read.
type Ledger interface {
	Join(ctx context.Context, p domain.Participation) (Outcome, error)
	Leave(ctx context.Context, donorID domain.DonorID, campaignID domain.CampaignID) (Outcome, error)

	// ListForDonor returns the donor's rows joined with their campaign, most recent first.
	ListForDonor(ctx context.Context, donorID domain.DonorID) ([]domain.ParticipationEntry, error)

	CountForDonor(ctx context.Context, donorID domain.DonorID) (int, error)
	CountForCampaign(ctx context.Context, campaignID domain.CampaignID) (int, error)
}
