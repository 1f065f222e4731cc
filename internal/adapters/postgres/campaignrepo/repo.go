package campaignrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

const campaignColumns = `external_id, name, blood_type_target, capacity, participant_count, status, created_at, updated_at`

// Repo is a Postgres implementation of campaignrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, c campaignrepo.Campaign) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return fmt.Errorf("invalid campaign id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
	`,
		id,
		c.Name,
		c.BloodTypeTarget,
		c.Capacity,
		string(c.Status),
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "campaigns_external_id_unique" {
			return campaignrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, c campaignrepo.Campaign) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return campaignrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET name = $2,
		    blood_type_target = $3,
		    capacity = $4,
		    status = $5,
		    updated_at = $6
		WHERE external_id = $1 AND participant_count <= $4
	`,
		id,
		c.Name,
		c.BloodTypeTarget,
		c.Capacity,
		string(c.Status),
		c.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	var exists int
	err = r.pool.QueryRow(ctx, `SELECT 1 FROM campaigns WHERE external_id = $1`, id).Scan(&exists)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return campaignrepo.ErrNotFound
	case err != nil:
		return err
	}
	return campaignrepo.ErrCapacityBelowParticipants
}

func (r *Repo) Delete(ctx context.Context, id domain.CampaignID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return campaignrepo.ErrNotFound
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var count int
		err := tx.QueryRow(ctx, `SELECT participant_count FROM campaigns WHERE external_id = $1 FOR UPDATE`, uid).Scan(&count)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return campaignrepo.ErrNotFound
			}
			return err
		}
		if count > 0 {
			return campaignrepo.ErrHasParticipants
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM participations
			WHERE campaign_id = (SELECT id FROM campaigns WHERE external_id = $1)
		`, uid); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM campaigns WHERE external_id = $1`, uid)
		return err
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.pool == nil {
		return campaignrepo.Campaign{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE external_id = $1`, uid)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
		}
		return campaignrepo.Campaign{}, err
	}
	return c, nil
}

func (r *Repo) List(ctx context.Context) ([]campaignrepo.Campaign, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		ORDER BY created_at DESC, external_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]campaignrepo.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) IncrementParticipants(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.pool == nil {
		return campaignrepo.Campaign{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET participant_count = participant_count + 1
		WHERE external_id = $1
		  AND status = 'ACTIVE'
		  AND participant_count < capacity
		RETURNING `+campaignColumns, uid)
	c, err := scanCampaign(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return campaignrepo.Campaign{}, err
	}

	// Nothing updated: report why.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return campaignrepo.Campaign{}, err
	}
	if current.Status != campaignrepo.StatusActive {
		return campaignrepo.Campaign{}, campaignrepo.ErrClosed
	}
	return campaignrepo.Campaign{}, campaignrepo.ErrFull
}

func (r *Repo) DecrementParticipantsFloorZero(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.pool == nil {
		return campaignrepo.Campaign{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET participant_count = GREATEST(participant_count - 1, 0)
		WHERE external_id = $1
		RETURNING `+campaignColumns, uid)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
		}
		return campaignrepo.Campaign{}, err
	}
	return c, nil
}

func scanCampaign(row interface{ Scan(dest ...any) error }) (campaignrepo.Campaign, error) {
	var (
		externalID uuid.UUID
		status     string
		createdAt  time.Time
		updatedAt  time.Time
		c          campaignrepo.Campaign
	)
	if err := row.Scan(
		&externalID,
		&c.Name,
		&c.BloodTypeTarget,
		&c.Capacity,
		&c.ParticipantCount,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return campaignrepo.Campaign{}, err
	}
	c.ID = domain.CampaignID(externalID.String())
	c.Status = campaignrepo.Status(status)
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return c, nil
}
