package domain

type Badge string

const BadgeFirstDonation Badge = "FIRST_DONATION"

// BadgesFor derives profile badges. Badges are cosmetic and never feed into the tier.
func BadgesFor(d Donor, participations int) []Badge {
	out := []Badge{}
	if d.AlreadyDonated || participations >= 1 {
		out = append(out, BadgeFirstDonation)
	}
	return out
}
