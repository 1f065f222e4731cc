package domain

import "time"

type CampaignStatus string

const (
	CampaignStatusActive CampaignStatus = "ACTIVE"
	CampaignStatusClosed CampaignStatus = "CLOSED"
)

// BloodTypeTargetAll marks a campaign open to every blood type.
const BloodTypeTargetAll = "ALL"

// Campaign is the domain representation of a blood-donation drive.
type Campaign struct {
	ID   CampaignID
	Name string

	// BloodTypeTarget is a BloodType value or BloodTypeTargetAll.
	BloodTypeTarget string

	Capacity         int
	ParticipantCount int
	Status           CampaignStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailableSlots is never negative.
func (c Campaign) AvailableSlots() int {
	if n := c.Capacity - c.ParticipantCount; n > 0 {
		return n
	}
	return 0
}

// CampaignStatistics aggregates the public campaign list.
type CampaignStatistics struct {
	TotalCampaigns    int
	TotalParticipants int
	AvailableSlots    int
}

func ComputeCampaignStatistics(cs []Campaign) CampaignStatistics {
	st := CampaignStatistics{TotalCampaigns: len(cs)}
	for _, c := range cs {
		st.TotalParticipants += c.ParticipantCount
		st.AvailableSlots += c.AvailableSlots()
	}
	return st
}
