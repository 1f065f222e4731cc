package domain

// SubjectID is the caller identity attached to admin requests.
// It is opaque: its format is controlled by whatever sits in front of the API.
type SubjectID string

// DonorID is an internal identifier for a donor record.
type DonorID string

// CampaignID is an internal identifier for a campaign record.
type CampaignID string

// ParticipationID is an internal identifier for a ledger row.
type ParticipationID string
