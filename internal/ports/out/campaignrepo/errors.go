package campaignrepo

import "errors"

var (
	ErrNotFound      = errors.New("campaign not found")
	ErrAlreadyExists = errors.New("campaign already exists")

	// ErrFull is returned by IncrementParticipants when the count already equals capacity.
	ErrFull = errors.New("campaign is full")

	// ErrClosed is returned by IncrementParticipants for CLOSED campaigns.
	ErrClosed = errors.New("campaign is closed")

	// ErrCapacityBelowParticipants is returned by Save when the stored participant count
	// already exceeds the new capacity.
	ErrCapacityBelowParticipants = errors.New("capacity below participant count")

	// ErrHasParticipants is returned by Delete while ledger rows still reference the campaign.
	ErrHasParticipants = errors.New("campaign has participants")
)
