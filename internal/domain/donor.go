package domain

import (
	"strings"
	"time"
)

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

var bloodTypes = map[BloodType]struct{}{
	BloodTypeAPos: {}, BloodTypeANeg: {},
	BloodTypeBPos: {}, BloodTypeBNeg: {},
	BloodTypeABPos: {}, BloodTypeABNeg: {},
	BloodTypeOPos: {}, BloodTypeONeg: {},
}

// ParseBloodType accepts the canonical ABO/Rh notation, case-insensitively.
func ParseBloodType(s string) (BloodType, bool) {
	bt := BloodType(strings.ToUpper(strings.ReplaceAll(s, " ", "")))
	_, ok := bloodTypes[bt]
	return bt, ok
}

// Donor is the domain representation of a registered donor.
type Donor struct {
	ID DonorID

	Name  string
	Email string
	Phone string

	BloodType BloodType
	Gender    string
	// DateOfBirth is kept as entered; see ParseDateOfBirth for the accepted formats.
	DateOfBirth string

	PostalCode string
	Address    string

	AlreadyDonated bool
	FirstTime      bool
	Interest       string
	Classification string

	ConsentToMessage bool
	ConsentToData    bool

	// Tier is the persisted tier; nil until the first participation event.
	Tier *Tier

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayTier returns the persisted tier when present, otherwise the tier computed from count.
// It never writes anything back.
func (d Donor) DisplayTier(participations int) Tier {
	if d.Tier != nil && *d.Tier != "" {
		return *d.Tier
	}
	return ComputeTier(participations).Tier
}
