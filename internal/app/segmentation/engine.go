package segmentation

import (
	"context"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

// Recipient is one selected donor.
type Recipient struct {
	DonorID   domain.DonorID
	Name      string
	Email     string
	BloodType domain.BloodType
	// Age is nil when the date of birth is absent or unparseable.
	Age *int
}

// Engine selects broadcast recipients from the donor store.
type Engine struct {
	donors donorrepo.Repository
	clk    clockport.Clock
}

func NewEngine(donors donorrepo.Repository, clk clockport.Clock) *Engine {
	return &Engine{donors: donors, clk: clk}
}

// Select returns matching donors ordered by donor ID.
// Attribute filters run in the store; the age range is evaluated here against the clock.
func (e *Engine) Select(ctx context.Context, c Criteria) ([]Recipient, error) {
	ds, err := e.donors.ListMatching(ctx, storeFilter(c))
	if err != nil {
		return nil, err
	}

	now := e.clk.Now()
	out := make([]Recipient, 0, len(ds))
	for _, d := range ds {
		r := Recipient{DonorID: d.ID, Name: d.Name, Email: d.Email, BloodType: d.BloodType}
		if age, ok := domain.DonorAge(d.DateOfBirth, now); ok {
			r.Age = &age
		}
		if !withinAge(c, r.Age) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func storeFilter(c Criteria) donorrepo.Filter {
	f := donorrepo.Filter{
		RequireEmail:         true,
		BloodTypes:           c.BloodTypes,
		Gender:               c.Gender,
		AddressContainsAny:   c.Cities,
		ConsentToMessageOnly: c.ConsentOnly,
	}
	if c.Interest != Any {
		f.Interest = c.Interest
	}
	switch c.Classification {
	case Any:
	case FirstTime:
		f.FirstTimeOnly = true
	default:
		f.Classification = c.Classification
	}
	return f
}

func withinAge(c Criteria, age *int) bool {
	if !c.AgeBounded() {
		return true
	}
	if age == nil {
		return false
	}
	if c.MinAge != nil && *age < *c.MinAge {
		return false
	}
	if c.MaxAge != nil && *age > *c.MaxAge {
		return false
	}
	return true
}
