package domain

import (
	"strings"
	"time"
)

// Accepted date-of-birth layouts: ISO and the day-first format used by the registration form.
var dateOfBirthLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseDateOfBirth returns the date of birth at UTC midnight, or false if s matches no accepted layout.
func ParseDateOfBirth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateOfBirthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeInYears computes whole years as the calendar-day difference divided by 365.
func AgeInYears(dob time.Time, now time.Time) int {
	d0 := time.Date(dob.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	n := now.UTC()
	d1 := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	// Unix seconds, since time.Duration saturates for spans beyond ~292 years.
	days := int((d1.Unix() - d0.Unix()) / 86400)
	if days < 0 {
		return -1
	}
	return days / 365
}

// DonorAge returns the donor's age at now, or false when the date of birth is absent or unparseable.
func DonorAge(dateOfBirth string, now time.Time) (int, bool) {
	dob, ok := ParseDateOfBirth(dateOfBirth)
	if !ok {
		return 0, false
	}
	age := AgeInYears(dob, now)
	if age < 0 {
		return 0, false
	}
	return age, true
}
