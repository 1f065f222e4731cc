package donors

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

type Service struct {
	repo   donorrepo.Repository
	ledger ledger.Ledger
	clk    clockport.Clock

	newDonorID func() domain.DonorID
}

func NewService(repo donorrepo.Repository, l ledger.Ledger, clk clockport.Clock) *Service {
	return &Service{
		repo:   repo,
		ledger: l,
		clk:    clk,
		newDonorID: func() domain.DonorID {
			return domain.DonorID(uuid.NewString())
		},
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Donor, error) {
	details := map[string]any{}

	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		details["name"] = "must be non-empty"
	}
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		details["email"] = err.Error()
	}
	bt, ok := domain.ParseBloodType(in.BloodType)
	if !ok {
		details["bloodType"] = "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-"
	}
	dob := strings.TrimSpace(in.DateOfBirth)
	if dob != "" {
		if _, ok := domain.ParseDateOfBirth(dob); !ok {
			details["dateOfBirth"] = "must be YYYY-MM-DD or DD/MM/YYYY"
		}
	}
	if ve := apperr.Validation(details); ve != nil {
		return domain.Donor{}, ve
	}

	now := s.clk.Now()
	d := donorrepo.Donor{
		ID:               s.newDonorID(),
		Name:             name,
		Email:            email,
		Phone:            strings.TrimSpace(in.Phone),
		BloodType:        bt,
		Gender:           strings.TrimSpace(in.Gender),
		DateOfBirth:      dob,
		PostalCode:       strings.TrimSpace(in.PostalCode),
		Address:          strings.TrimSpace(in.Address),
		AlreadyDonated:   in.AlreadyDonated,
		FirstTime:        in.FirstTime,
		Interest:         strings.TrimSpace(in.Interest),
		Classification:   strings.TrimSpace(in.Classification),
		ConsentToMessage: in.ConsentToMessage,
		ConsentToData:    in.ConsentToData,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, donorrepo.ErrEmailTaken) {
			return domain.Donor{}, emailTaken()
		}
		return domain.Donor{}, err
	}
	return toDomain(d), nil
}

func (s *Service) GetProfile(ctx context.Context, id domain.DonorID) (Profile, error) {
	d, err := s.get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	count, err := s.ledger.CountForDonor(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	donor := toDomain(d)
	return Profile{
		Donor:          donor,
		Tier:           donor.DisplayTier(count),
		Progress:       domain.ComputeTier(count),
		Participations: count,
		Badges:         domain.BadgesFor(donor, count),
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id domain.DonorID, in UpdateInput) (domain.Donor, error) {
	d, err := s.get(ctx, id)
	if err != nil {
		return domain.Donor{}, err
	}

	if in.Name.IsSpecified() {
		if in.Name.IsNull() {
			return domain.Donor{}, apperr.Invalid("name", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.Name.Value())
		if name == "" {
			return domain.Donor{}, apperr.Invalid("name", "must be non-empty")
		}
		d.Name = name
	}

	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.Donor{}, apperr.Invalid("email", "cannot be null")
		}
		email := domain.NormalizeEmail(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return domain.Donor{}, apperr.Invalid("email", err.Error())
		}
		d.Email = email
	}

	if in.BloodType.IsSpecified() {
		if in.BloodType.IsNull() {
			return domain.Donor{}, apperr.Invalid("bloodType", "cannot be null")
		}
		bt, ok := domain.ParseBloodType(in.BloodType.Value())
		if !ok {
			return domain.Donor{}, apperr.Invalid("bloodType", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
		}
		d.BloodType = bt
	}

	if in.DateOfBirth.IsSpecified() {
		dob := strings.TrimSpace(in.DateOfBirth.Value())
		if in.DateOfBirth.IsNull() {
			dob = ""
		}
		if dob != "" {
			if _, ok := domain.ParseDateOfBirth(dob); !ok {
				return domain.Donor{}, apperr.Invalid("dateOfBirth", "must be YYYY-MM-DD or DD/MM/YYYY")
			}
		}
		d.DateOfBirth = dob
	}

	applyText(&d.Phone, in.Phone)
	applyText(&d.Gender, in.Gender)
	applyText(&d.PostalCode, in.PostalCode)
	applyText(&d.Address, in.Address)
	applyText(&d.Interest, in.Interest)
	applyText(&d.Classification, in.Classification)

	applyFlag(&d.AlreadyDonated, in.AlreadyDonated)
	applyFlag(&d.FirstTime, in.FirstTime)
	applyFlag(&d.ConsentToMessage, in.ConsentToMessage)
	applyFlag(&d.ConsentToData, in.ConsentToData)

	d.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, d); err != nil {
		switch {
		case errors.Is(err, donorrepo.ErrEmailTaken):
			return domain.Donor{}, emailTaken()
		case errors.Is(err, donorrepo.ErrNotFound):
			return domain.Donor{}, donorNotFound()
		}
		return domain.Donor{}, err
	}
	// Update never touches the persisted tier; reload so the caller sees it.
	fresh, err := s.get(ctx, id)
	if err != nil {
		return domain.Donor{}, err
	}
	return toDomain(fresh), nil
}

// ListParticipations returns the donor's ledger entries, most recent first.
func (s *Service) ListParticipations(ctx context.Context, id domain.DonorID) ([]domain.ParticipationEntry, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.ListForDonor(ctx, id)
}

func (s *Service) get(ctx context.Context, id domain.DonorID) (donorrepo.Donor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, donorrepo.ErrNotFound) {
			return donorrepo.Donor{}, donorNotFound()
		}
		return donorrepo.Donor{}, err
	}
	return d, nil
}

func applyText(dst *string, o Optional[string]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = ""
		return
	}
	*dst = strings.TrimSpace(o.Value())
}

func applyFlag(dst *bool, o Optional[bool]) {
	if !o.IsSpecified() {
		return
	}
	*dst = !o.IsNull() && o.Value()
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func donorNotFound() *apperr.Error {
	return apperr.NotFound("DONOR_NOT_FOUND", "Donor not found.")
}

func emailTaken() *apperr.Error {
	return apperr.Conflict("DONOR_EMAIL_TAKEN", "Another donor is already registered with this email.")
}

func toDomain(d donorrepo.Donor) domain.Donor {
	out := domain.Donor{
		ID:               d.ID,
		Name:             d.Name,
		Email:            d.Email,
		Phone:            d.Phone,
		BloodType:        d.BloodType,
		Gender:           d.Gender,
		DateOfBirth:      d.DateOfBirth,
		PostalCode:       d.PostalCode,
		Address:          d.Address,
		AlreadyDonated:   d.AlreadyDonated,
		FirstTime:        d.FirstTime,
		Interest:         d.Interest,
		Classification:   d.Classification,
		ConsentToMessage: d.ConsentToMessage,
		ConsentToData:    d.ConsentToData,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Tier != nil {
		t := *d.Tier
		out.Tier = &t
	}
	return out
}
