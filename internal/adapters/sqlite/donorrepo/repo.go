// Package donorrepo is the SQLite implementation of donorrepo.Repository.
package donorrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/sqlfilter"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

const donorColumns = `
	external_id, name, email, phone, blood_type, gender, date_of_birth,
	postal_code, address, already_donated, first_time, interest, classification,
	consent_to_message, consent_to_data, tier, created_at, updated_at`

// Repo persists donors in SQLite.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, d donorrepo.Donor) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	if d.ID == "" {
		return donorrepo.ErrAlreadyExists
	}
	var tier any
	if d.Tier != nil {
		tier = string(*d.Tier)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO donors (`+donorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(d.ID),
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
		tier,
		sqlite.ToMillis(d.CreatedAt),
		sqlite.ToMillis(d.UpdatedAt),
	)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, d donorrepo.Donor) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE donors
		SET name = ?,
		    email = ?,
		    phone = ?,
		    blood_type = ?,
		    gender = ?,
		    date_of_birth = ?,
		    postal_code = ?,
		    address = ?,
		    already_donated = ?,
		    first_time = ?,
		    interest = ?,
		    classification = ?,
		    consent_to_message = ?,
		    consent_to_data = ?,
		    updated_at = ?
		WHERE external_id = ?
	`,
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
		sqlite.ToMillis(d.UpdatedAt),
		string(d.ID),
	)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	if n == 0 {
		return donorrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.DonorID) (donorrepo.Donor, error) {
	if r.db == nil {
		return donorrepo.Donor{}, errors.New("nil sqlite db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE external_id = ?`, string(id))
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return donorrepo.Donor{}, donorrepo.ErrNotFound
		}
		return donorrepo.Donor{}, fmt.Errorf("get donor: %w", err)
	}
	return d, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (donorrepo.Donor, error) {
	if r.db == nil {
		return donorrepo.Donor{}, errors.New("nil sqlite db")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return donorrepo.Donor{}, donorrepo.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+donorColumns+`
		FROM donors
		WHERE email <> '' AND lower(email) = lower(?)
	`, email)
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return donorrepo.Donor{}, donorrepo.ErrNotFound
		}
		return donorrepo.Donor{}, fmt.Errorf("get donor by email: %w", err)
	}
	return d, nil
}

func (r *Repo) List(ctx context.Context) ([]donorrepo.Donor, error) {
	return r.ListMatching(ctx, donorrepo.Filter{})
}

func (r *Repo) ListMatching(ctx context.Context, f donorrepo.Filter) ([]donorrepo.Donor, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	where, args := sqlfilter.NewQueryBuilder(sqlfilter.SQLite).ApplyDonorFilter(f).Build()

	rows, err := r.db.QueryContext(ctx, `SELECT `+donorColumns+` FROM donors `+where+` ORDER BY external_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	defer rows.Close()

	out := make([]donorrepo.Donor, 0)
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return out, nil
}

func (r *Repo) UpdateTier(ctx context.Context, id domain.DonorID, tier domain.Tier) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	res, err := r.db.ExecContext(ctx, `UPDATE donors SET tier = ? WHERE external_id = ?`, string(tier), string(id))
	if err != nil {
		return fmt.Errorf("update donor tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update donor tier: %w", err)
	}
	if n == 0 {
		return donorrepo.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	msg, ok := sqlite.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("write donor: %w", err)
	}
	switch {
	case strings.Contains(msg, "donors_email_unique"):
		return donorrepo.ErrEmailTaken
	case strings.Contains(msg, "donors.external_id"):
		return donorrepo.ErrAlreadyExists
	}
	return fmt.Errorf("write donor: %w", err)
}

func scanDonor(row interface{ Scan(dest ...any) error }) (donorrepo.Donor, error) {
	var (
		id        string
		bloodType string
		tier      sql.NullString
		createdAt int64
		updatedAt int64
		d         donorrepo.Donor
	)
	if err := row.Scan(
		&id,
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
	d.ID = domain.DonorID(id)
	d.BloodType = domain.BloodType(bloodType)
	if tier.Valid {
		t := domain.Tier(tier.String)
		d.Tier = &t
	}
	d.CreatedAt = sqlite.FromMillis(createdAt)
	d.UpdatedAt = sqlite.FromMillis(updatedAt)
	return d, nil
}
