package domain

import "time"

// Participation is one ledger row binding a donor to a campaign.
type Participation struct {
	ID         ParticipationID
	DonorID    DonorID
	CampaignID CampaignID
	JoinedAt   time.Time
}

// ParticipationEntry is a ledger row joined with its campaign for donor-facing listings.
type ParticipationEntry struct {
	Participation

	CampaignName    string
	CampaignStatus  CampaignStatus
	BloodTypeTarget string
}
