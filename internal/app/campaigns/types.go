package campaigns

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

type CreateInput struct {
	Name            string
	BloodTypeTarget string // empty means ALL
	Capacity        int
	Status          string // empty means ACTIVE
}

// UpdateInput is an admin patch; none of its fields may be null.
type UpdateInput struct {
	Name            Optional[string]
	BloodTypeTarget Optional[string]
	Capacity        Optional[int]
	Status          Optional[string]
}

// Listing is the public campaign page.
type Listing struct {
	Campaigns  []domain.Campaign
	Statistics domain.CampaignStatistics
}
