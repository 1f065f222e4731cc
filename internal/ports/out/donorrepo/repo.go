package donorrepo

import (
	"context"
	"time"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// Donor is the persistence shape used by the donor repository.
// It is not an HTTP DTO.
type Donor struct {
	ID domain.DonorID

	Name  string
	Email string
	Phone string

	BloodType   domain.BloodType
	Gender      string
	DateOfBirth string

	PostalCode string
	Address    string

	AlreadyDonated bool
	FirstTime      bool
	Interest       string
	Classification string

	ConsentToMessage bool
	ConsentToData    bool

	// Tier is nil until the first participation event writes it.
	Tier *domain.Tier

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows ListMatching. Zero values mean "no constraint" for every field.
type Filter struct {
	// RequireEmail excludes donors without an email address.
	RequireEmail bool

	// BloodTypes matches donors whose blood type is in the set.
	BloodTypes []domain.BloodType

	// Gender is an exact match.
	Gender string

	// AddressContainsAny matches donors whose address contains at least one entry
	// (case-sensitive substring).
	AddressContainsAny []string

	// Interest is an exact match.
	Interest string

	// FirstTimeOnly requires the first-time flag.
	FirstTimeOnly bool

	// Classification is an exact match.
	Classification string

	// ConsentToMessageOnly requires message consent.
	ConsentToMessageOnly bool
}

// Repository provides access to persisted donors.
//
// Result ordering expectations:
// - List and ListMatching return donors ordered by ID ascending.
type Repository interface {
	Create(ctx context.Context, d Donor) error
	Update(ctx context.Context, d Donor) error

	GetByID(ctx context.Context, id domain.DonorID) (Donor, error)
	GetByEmail(ctx context.Context, email string) (Donor, error)

	List(ctx context.Context) ([]Donor, error)
	ListMatching(ctx context.Context, f Filter) ([]Donor, error)

	// UpdateTier overwrites only the persisted tier.
	UpdateTier(ctx context.Context, id domain.DonorID, tier domain.Tier) error
}
