package ledger

import "errors"

var (
	// ErrNotFound indicates no ledger row exists for the (donor, campaign) pair.
	ErrNotFound = errors.New("participation not found")

	// ErrAlreadyJoined indicates the (donor, campaign) pair already has a ledger row.
	ErrAlreadyJoined = errors.New("donor already joined campaign")

	// ErrDonorNotFound and ErrCampaignNotFound report a missing side of the pair on Join.
	ErrDonorNotFound    = errors.New("donor not found")
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignFull and ErrCampaignClosed report a campaign that cannot take another participant.
	ErrCampaignFull   = errors.New("campaign is full")
	ErrCampaignClosed = errors.New("campaign is closed")
)
