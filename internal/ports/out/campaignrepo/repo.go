package campaignrepo

import (
	"context"
	"time"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Campaign is the persistence shape used by the campaign repository.
type Campaign struct {
	ID   domain.CampaignID
	Name string

	BloodTypeTarget string

	Capacity         int
	ParticipantCount int
	Status           Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted campaigns.
//
// ParticipantCount is owned by the participation ledger: Save never changes it, and the
// only mutators are the guarded IncrementParticipants/DecrementParticipantsFloorZero.
// Save checks capacity against the stored count atomically with the write.
//
// Result ordering expectations:
// - List returns campaigns ordered by CreatedAt descending, then ID ascending.
type Repository interface {
	Create(ctx context.Context, c Campaign) error
	Save(ctx context.Context, c Campaign) error
	Delete(ctx context.Context, id domain.CampaignID) error

	GetByID(ctx context.Context, id domain.CampaignID) (Campaign, error)
	List(ctx context.Context) ([]Campaign, error)

	// IncrementParticipants adds one participant if the campaign is ACTIVE and below capacity.
	IncrementParticipants(ctx context.Context, id domain.CampaignID) (Campaign, error)

	// DecrementParticipantsFloorZero removes one participant, never going below zero.
	DecrementParticipantsFloorZero(ctx context.Context, id domain.CampaignID) (Campaign, error)
}
