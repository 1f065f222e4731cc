package donorrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/sqlfilter"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

const donorColumns = `
	external_id, name, email, phone, blood_type, gender, date_of_birth,
	postal_code, address, already_donated, first_time, interest, classification,
	consent_to_message, consent_to_data, tier, created_at, updated_at`

// Repo is a Postgres implementation of donorrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, d donorrepo.Donor) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(d.ID))
	if err != nil {
		return fmt.Errorf("invalid donor id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO donors (`+donorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		id,
		d.Name,
		d.Email,
		d.Phone,
		string(d.BloodType),
		d.Gender,
		d.DateOfBirth,
		d.PostalCode,
		d.Address,
		d.AlreadyDonated,
		d.FirstTime,
		d.Interest,
		d.Classification,
		d.ConsentToMessage,
		d.ConsentToData,
		tierParam(d.Tier),
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, d donorrepo.Donor) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(d.ID))
	if err != nil {
		return donorrepo.ErrNotFound
	}

	// tier is written only by UpdateTier.
	ct, err := r.pool.Exec(ctx, `
		UPDATE donors
		SET name = $2,
		    email = $3,
		    phone = $4,
		    blood_type = $5,
		    gender = $6,
		    date_of_birth = $7,
		    postal_code = $8,
		    address = $9,
		    already_donated = $10,
		    first_time = $11,
		    interest = $12,
		    classification = $13,
		    consent_to_message = $14,
		    consent_to_data = $15,
		    updated_at = $16
		WHERE external_id = $1
	`,
		id,
		d.Name,
		d.Email,
		d.Phone,
		string(d.BloodType),
		d.Gender,
		d.DateOfBirth,
		d.PostalCode,
		d.Address,
		d.AlreadyDonated,
		d.FirstTime,
		d.Interest,
		d.Classification,
		d.ConsentToMessage,
		d.ConsentToData,
		d.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return donorrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.DonorID) (donorrepo.Donor, error) {
	if r.pool == nil {
		return donorrepo.Donor{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return donorrepo.Donor{}, donorrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+donorColumns+` FROM donors WHERE external_id = $1`, uid)
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return donorrepo.Donor{}, donorrepo.ErrNotFound
		}
		return donorrepo.Donor{}, err
	}
	return d, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (donorrepo.Donor, error) {
	if r.pool == nil {
		return donorrepo.Donor{}, errors.New("nil postgres pool")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return donorrepo.Donor{}, donorrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+donorColumns+`
		FROM donors
		WHERE email <> '' AND lower(email) = lower($1)
	`, email)
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return donorrepo.Donor{}, donorrepo.ErrNotFound
		}
		return donorrepo.Donor{}, err
	}
	return d, nil
}

func (r *Repo) List(ctx context.Context) ([]donorrepo.Donor, error) {
	return r.ListMatching(ctx, donorrepo.Filter{})
}

func (r *Repo) ListMatching(ctx context.Context, f donorrepo.Filter) ([]donorrepo.Donor, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where, args := sqlfilter.NewQueryBuilder(sqlfilter.Postgres).ApplyDonorFilter(f).Build()

	rows, err := r.pool.Query(ctx, `SELECT `+donorColumns+` FROM donors `+where+` ORDER BY external_id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]donorrepo.Donor, 0)
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateTier(ctx context.Context, id domain.DonorID, tier domain.Tier) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return donorrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `UPDATE donors SET tier = $2 WHERE external_id = $1`, uid, string(tier))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return donorrepo.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "donors_external_id_unique":
			return donorrepo.ErrAlreadyExists
		case "donors_email_unique":
			return donorrepo.ErrEmailTaken
		}
	}
	return err
}

func tierParam(t *domain.Tier) any {
	if t == nil {
		return nil
	}
	return string(*t)
}

func scanDonor(row interface{ Scan(dest ...any) error }) (donorrepo.Donor, error) {
	var (
		externalID uuid.UUID
		bloodType  string
		tier       *string
		createdAt  time.Time
		updatedAt  time.Time
		d          donorrepo.Donor
	)
	if err := row.Scan(
		&externalID,
		&d.Name,
		&d.Email,
		&d.Phone,
		&bloodType,
		&d.Gender,
		&d.DateOfBirth,
		&d.PostalCode,
		&d.Address,
		&d.AlreadyDonated,
		&d.FirstTime,
		&d.Interest,
		&d.Classification,
		&d.ConsentToMessage,
		&d.ConsentToData,
		&tier,
		&createdAt,
		&updatedAt,
	); err != nil {
		return donorrepo.Donor{}, err
	}
	d.ID = domain.DonorID(externalID.String())
	d.BloodType = domain.BloodType(bloodType)
	if tier != nil {
		t := domain.Tier(*tier)
		d.Tier = &t
	}
	d.CreatedAt = createdAt.UTC()
	d.UpdatedAt = updatedAt.UTC()
	return d, nil
}
