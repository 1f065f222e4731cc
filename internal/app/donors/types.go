package donors

import "github.com/hemoconecta/donor-portal-api/internal/domain"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type RegisterInput struct {
	Name        string
	Email       string
	Phone       string
	BloodType   string
	Gender      string
	DateOfBirth string
	PostalCode  string
	Address     string

	AlreadyDonated bool
	FirstTime      bool
	Interest       string
	Classification string

	ConsentToMessage bool
	ConsentToData    bool
}

// UpdateInput is a profile patch. Name, Email and BloodType cannot be null;
// null on any other text field clears it.
type UpdateInput struct {
	Name        Optional[string]
	Email       Optional[string]
	Phone       Optional[string]
	BloodType   Optional[string]
	Gender      Optional[string]
	DateOfBirth Optional[string]
	PostalCode  Optional[string]
	Address     Optional[string]

	AlreadyDonated Optional[bool]
	FirstTime      Optional[bool]
	Interest       Optional[string]
	Classification Optional[string]

	ConsentToMessage Optional[bool]
	ConsentToData    Optional[bool]
}

// Profile is a donor as shown on their own page.
type Profile struct {
	Donor domain.Donor

	// Tier is the displayed tier: the persisted one if present, else computed.
	Tier           domain.Tier
	Progress       domain.TierProgress
	Participations int
	Badges         []domain.Badge
}
