// Package campaignrepo is the SQLite implementation of campaignrepo.Repository.
package campaignrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

const campaignColumns = `external_id, name, blood_type_target, capacity, participant_count, status, created_at, updated_at`

// Repo persists campaigns in SQLite.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, c campaignrepo.Campaign) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	if c.ID == "" {
		return campaignrepo.ErrAlreadyExists
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`,
		string(c.ID),
		c.Name,
		c.BloodTypeTarget,
		c.Capacity,
		string(c.Status),
		sqlite.ToMillis(c.CreatedAt),
		sqlite.ToMillis(c.UpdatedAt),
	)
	if err != nil {
		if msg, ok := sqlite.UniqueViolation(err); ok && strings.Contains(msg, "campaigns.external_id") {
			return campaignrepo.ErrAlreadyExists
		}
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, c campaignrepo.Campaign) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET name = ?,
		    blood_type_target = ?,
		    capacity = ?,
		    status = ?,
		    updated_at = ?
		WHERE external_id = ? AND participant_count <= ?
	`,
		c.Name,
		c.BloodTypeTarget,
		c.Capacity,
		string(c.Status),
		sqlite.ToMillis(c.UpdatedAt),
		string(c.ID),
		c.Capacity,
	)
	if err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM campaigns WHERE external_id = ?`, string(c.ID)).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return campaignrepo.ErrNotFound
	case err != nil:
		return fmt.Errorf("save campaign: %w", err)
	}
	return campaignrepo.ErrCapacityBelowParticipants
}

func (r *Repo) Delete(ctx context.Context, id domain.CampaignID) error {
	if r.db == nil {
		return errors.New("nil sqlite db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete campaign: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		pk    int64
		count int
	)
	err = tx.QueryRowContext(ctx, `SELECT id, participant_count FROM campaigns WHERE external_id = ?`, string(id)).Scan(&pk, &count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaignrepo.ErrNotFound
		}
		return fmt.Errorf("load campaign: %w", err)
	}
	if count > 0 {
		return campaignrepo.ErrHasParticipants
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM participations WHERE campaign_id = ?`, pk); err != nil {
		return fmt.Errorf("delete campaign participations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, pk); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return tx.Commit()
}

func (r *Repo) GetByID(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.db == nil {
		return campaignrepo.Campaign{}, errors.New("nil sqlite db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE external_id = ?`, string(id))
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaignrepo.Campaign{}, campaignrepo.ErrNotFound
		}
		return campaignrepo.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *Repo) List(ctx context.Context) ([]campaignrepo.Campaign, error) {
	if r.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		ORDER BY created_at DESC, external_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	out := make([]campaignrepo.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}

func (r *Repo) IncrementParticipants(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.db == nil {
		return campaignrepo.Campaign{}, errors.New("nil sqlite db")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET participant_count = participant_count + 1
		WHERE external_id = ?
		  AND status = 'ACTIVE'
		  AND participant_count < capacity
	`, string(id))
	if err != nil {
		return campaignrepo.Campaign{}, fmt.Errorf("increment participants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return campaignrepo.Campaign{}, fmt.Errorf("increment participants: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return campaignrepo.Campaign{}, err
	}
	if n == 1 {
		return current, nil
	}
	if current.Status != campaignrepo.StatusActive {
		return campaignrepo.Campaign{}, campaignrepo.ErrClosed
	}
	return campaignrepo.Campaign{}, campaignrepo.ErrFull
}

func (r *Repo) DecrementParticipantsFloorZero(ctx context.Context, id domain.CampaignID) (campaignrepo.Campaign, error) {
	if r.db == nil {
		return campaignrepo.Campaign{}, errors.New("nil sqlite db")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET participant_count = max(participant_count - 1, 0)
		WHERE external_id = ?
	`, string(id))
	if err != nil {
		return campaignrepo.Campaign{}, fmt.Errorf("decrement participants: %w", err)
	}
	if err := expectOneRow(res, "decrement participants"); err != nil {
		return campaignrepo.Campaign{}, err
	}
	return r.GetByID(ctx, id)
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return campaignrepo.ErrNotFound
	}
	return nil
}

func scanCampaign(row interface{ Scan(dest ...any) error }) (campaignrepo.Campaign, error) {
	var (
		id        string
		status    string
		createdAt int64
		updatedAt int64
		c         campaignrepo.Campaign
	)
	if err := row.Scan(&id, &c.Name, &c.BloodTypeTarget, &c.Capacity, &c.ParticipantCount, &status, &createdAt, &updatedAt); err != nil {
		return campaignrepo.Campaign{}, err
	}
	c.ID = domain.CampaignID(id)
	c.Status = campaignrepo.Status(status)
	c.CreatedAt = sqlite.FromMillis(createdAt)
	c.UpdatedAt = sqlite.FromMillis(updatedAt)
	return c, nil
}
