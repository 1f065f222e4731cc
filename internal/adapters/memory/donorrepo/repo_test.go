package donorrepo

import (
	"testing"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

func TestMatches_EmptyFilterMatchesEverything(t *testing.T) {
	t.Parallel()

	if !Matches(donorrepo.Donor{}, donorrepo.Filter{}) {
		t.Fatalf("Matches(zero donor, zero filter)=false, want true")
	}
}

func TestMatches_LocationIsCaseSensitive(t *testing.T) {
	t.Parallel()

	d := donorrepo.Donor{Email: "a@example.com", BloodType: domain.BloodTypeONeg, Address: "Rua X, Campinas"}
	if !Matches(d, donorrepo.Filter{AddressContainsAny: []string{"Recife", "Campinas"}}) {
		t.Fatalf("Matches(Campinas)=false, want true")
	}
	if Matches(d, donorrepo.Filter{AddressContainsAny: []string{"campinas"}}) {
		t.Fatalf("Matches(campinas)=true, want false")
	}
}

func TestMatches_AllConstraintsAreConjunctive(t *testing.T) {
	t.Parallel()

	d := donorrepo.Donor{
		Email:            "a@example.com",
		BloodType:        domain.BloodTypeONeg,
		Gender:           "F",
		Interest:         "doacao",
		FirstTime:        true,
		ConsentToMessage: true,
	}
	f := donorrepo.Filter{
		RequireEmail:         true,
		BloodTypes:           []domain.BloodType{domain.BloodTypeONeg},
		Gender:               "F",
		Interest:             "doacao",
		FirstTimeOnly:        true,
		ConsentToMessageOnly: true,
	}
	if !Matches(d, f) {
		t.Fatalf("Matches()=false, want true")
	}
	f.Gender = "M"
	if Matches(d, f) {
		t.Fatalf("Matches(gender M)=true, want false")
	}
}
