package ledger

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
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

// Ledger is a Postgres implementation of ledger.Ledger.
//
// Join and Leave run in one transaction that locks the donor row and then the campaign
// row, in that order, so concurrent changes touching either serialize.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Join(ctx context.Context, p domain.Participation) (ledger.Outcome, error) {
	if l.pool == nil {
		return ledger.Outcome{}, errors.New("nil postgres pool")
	}
	pid, err := uuid.Parse(string(p.ID))
	if err != nil {
		return ledger.Outcome{}, fmt.Errorf("invalid participation id: %w", err)
	}
	donorUID, err := uuid.Parse(string(p.DonorID))
	if err != nil {
		return ledger.Outcome{}, ledger.ErrDonorNotFound
	}
	campaignUID, err := uuid.Parse(string(p.CampaignID))
	if err != nil {
		return ledger.Outcome{}, ledger.ErrCampaignNotFound
	}

	var out ledger.Outcome
	err = pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		donorPK, err := lockDonor(ctx, tx, donorUID)
		if err != nil {
			return err
		}

		var (
			campaignPK int64
			capacity   int
			status     string
		)
		err = tx.QueryRow(ctx, `
			SELECT id, capacity, status
			FROM campaigns
			WHERE external_id = $1
			FOR UPDATE
		`, campaignUID).Scan(&campaignPK, &capacity, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ledger.ErrCampaignNotFound
			}
			return err
		}

		var joined bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM participations WHERE donor_id = $1 AND campaign_id = $2)
		`, donorPK, campaignPK).Scan(&joined); err != nil {
			return err
		}
		if joined {
			return ledger.ErrAlreadyJoined
		}

		var rows int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM participations WHERE campaign_id = $1`, campaignPK).Scan(&rows); err != nil {
			return err
		}
		if status != string(domain.CampaignStatusActive) {
			return ledger.ErrCampaignClosed
		}
		if rows >= capacity {
			return ledger.ErrCampaignFull
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO participations (external_id, donor_id, campaign_id, joined_at)
			VALUES ($1, $2, $3, $4)
		`, pid, donorPK, campaignPK, p.JoinedAt.UTC())
		if err != nil {
			if pe, ok := postgres.AsPgError(err); ok {
				switch {
				case pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "participations_donor_campaign_unique":
					return ledger.ErrAlreadyJoined
				case pe.Code == postgres.ForeignKeyViolationCode:
					return ledger.ErrDonorNotFound
				}
			}
			return err
		}

		campaignCount, err := reconcileCampaignCount(ctx, tx, campaignPK)
		if err != nil {
			return err
		}
		donorCount, tier, err := refreshTier(ctx, tx, donorPK)
		if err != nil {
			return err
		}
		out = ledger.Outcome{
			Participation:        p,
			CampaignParticipants: campaignCount,
			DonorParticipations:  donorCount,
			Tier:                 tier,
		}
		return nil
	})
	if err != nil {
		return ledger.Outcome{}, err
	}
	return out, nil
}

func (l *Ledger) Leave(ctx context.Context, donorID domain.DonorID, campaignID domain.CampaignID) (ledger.Outcome, error) {
	if l.pool == nil {
		return ledger.Outcome{}, errors.New("nil postgres pool")
	}
	donorUID, err := uuid.Parse(string(donorID))
	if err != nil {
		return ledger.Outcome{}, ledger.ErrNotFound
	}
	campaignUID, err := uuid.Parse(string(campaignID))
	if err != nil {
		return ledger.Outcome{}, ledger.ErrNotFound
	}

	var out ledger.Outcome
	err = pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		donorPK, err := lockDonor(ctx, tx, donorUID)
		if err != nil {
			if errors.Is(err, ledger.ErrDonorNotFound) {
				return ledger.ErrNotFound
			}
			return err
		}
		var campaignPK int64
		err = tx.QueryRow(ctx, `SELECT id FROM campaigns WHERE external_id = $1 FOR UPDATE`, campaignUID).Scan(&campaignPK)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ledger.ErrNotFound
			}
			return err
		}

		var (
			pid      uuid.UUID
			joinedAt time.Time
		)
		err = tx.QueryRow(ctx, `
			DELETE FROM participations
			WHERE donor_id = $1 AND campaign_id = $2
			RETURNING external_id, joined_at
		`, donorPK, campaignPK).Scan(&pid, &joinedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ledger.ErrNotFound
			}
			return err
		}

		donorCount, tier, err := refreshTier(ctx, tx, donorPK)
		if err != nil {
			return err
		}
		campaignCount, err := reconcileCampaignCount(ctx, tx, campaignPK)
		if err != nil {
			return err
		}
		out = ledger.Outcome{
			Participation: domain.Participation{
				ID:         domain.ParticipationID(pid.String()),
				DonorID:    donorID,
				CampaignID: campaignID,
				JoinedAt:   joinedAt.UTC(),
			},
			CampaignParticipants: campaignCount,
			DonorParticipations:  donorCount,
			Tier:                 tier,
		}
		return nil
	})
	if err != nil {
		return ledger.Outcome{}, err
	}
	return out, nil
}

func (l *Ledger) ListForDonor(ctx context.Context, donorID domain.DonorID) ([]domain.ParticipationEntry, error) {
	if l.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	donorUID, err := uuid.Parse(string(donorID))
	if err != nil {
		return []domain.ParticipationEntry{}, nil
	}
	rows, err := l.pool.Query(ctx, `
		SELECT p.external_id, c.external_id, p.joined_at, c.name, c.status, c.blood_type_target
		FROM participations p
		JOIN donors d ON d.id = p.donor_id
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE d.external_id = $1
		ORDER BY p.joined_at DESC, p.external_id DESC
	`, donorUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ParticipationEntry, 0)
	for rows.Next() {
		var (
			pid, cid uuid.UUID
			joinedAt time.Time
			e        domain.ParticipationEntry
			status   string
		)
		if err := rows.Scan(&pid, &cid, &joinedAt, &e.CampaignName, &status, &e.BloodTypeTarget); err != nil {
			return nil, err
		}
		e.ID = domain.ParticipationID(pid.String())
		e.DonorID = donorID
		e.CampaignID = domain.CampaignID(cid.String())
		e.JoinedAt = joinedAt.UTC()
		e.CampaignStatus = domain.CampaignStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) CountForDonor(ctx context.Context, donorID domain.DonorID) (int, error) {
	if l.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(donorID))
	if err != nil {
		return 0, nil
	}
	var n int
	err = l.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM participations p
		JOIN donors d ON d.id = p.donor_id
		WHERE d.external_id = $1
	`, uid).Scan(&n)
	return n, err
}

func (l *Ledger) CountForCampaign(ctx context.Context, campaignID domain.CampaignID) (int, error) {
	if l.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(campaignID))
	if err != nil {
		return 0, nil
	}
	var n int
	err = l.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM participations p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE c.external_id = $1
	`, uid).Scan(&n)
	return n, err
}

func lockDonor(ctx context.Context, tx pgx.Tx, uid uuid.UUID) (int64, error) {
	var pk int64
	err := tx.QueryRow(ctx, `SELECT id FROM donors WHERE external_id = $1 FOR UPDATE`, uid).Scan(&pk)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ledger.ErrDonorNotFound
		}
		return 0, err
	}
	return pk, nil
}

// reconcileCampaignCount sets participant_count from the ledger rows and returns it.
func reconcileCampaignCount(ctx context.Context, tx pgx.Tx, campaignPK int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		UPDATE campaigns
		SET participant_count = (SELECT count(*) FROM participations WHERE campaign_id = $1)
		WHERE id = $1
		RETURNING participant_count
	`, campaignPK).Scan(&n)
	return n, err
}

func refreshTier(ctx context.Context, tx pgx.Tx, donorPK int64) (int, domain.Tier, error) {
	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM participations WHERE donor_id = $1`, donorPK).Scan(&n); err != nil {
		return 0, "", err
	}
	tier := domain.ComputeTier(n).Tier
	if _, err := tx.Exec(ctx, `UPDATE donors SET tier = $2 WHERE id = $1`, donorPK, string(tier)); err != nil {
		return 0, "", err
	}
	return n, tier, nil
}
