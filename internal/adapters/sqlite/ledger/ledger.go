// Package ledger is the SQLite implementation of ledger.Ledger.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

// Ledger runs each Join and Leave in one transaction. The database handle is opened with a
// single connection and immediate transactions, so concurrent changes are serialized.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Join(ctx context.Context, p domain.Participation) (ledger.Outcome, error) {
	if l.db == nil {
		return ledger.Outcome{}, errors.New("nil sqlite db")
	}
	var out ledger.Outcome
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var donorPK int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM donors WHERE external_id = ?`, string(p.DonorID)).Scan(&donorPK)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrDonorNotFound
			}
			return fmt.Errorf("load donor: %w", err)
		}

		var (
			campaignPK int64
			capacity   int
			count      int
			status     string
		)
		err = tx.QueryRowContext(ctx, `
			SELECT id, capacity, participant_count, status
			FROM campaigns
			WHERE external_id = ?
		`, string(p.CampaignID)).Scan(&campaignPK, &capacity, &count, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrCampaignNotFound
			}
			return fmt.Errorf("load campaign: %w", err)
		}

		var joined int
		if err := tx.QueryRowContext(ctx, `
			SELECT count(*) FROM participations WHERE donor_id = ? AND campaign_id = ?
		`, donorPK, campaignPK).Scan(&joined); err != nil {
			return fmt.Errorf("check participation: %w", err)
		}
		if joined > 0 {
			return ledger.ErrAlreadyJoined
		}
		if status != string(domain.CampaignStatusActive) {
			return ledger.ErrCampaignClosed
		}
		if count >= capacity {
			return ledger.ErrCampaignFull
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participations (external_id, donor_id, campaign_id, joined_at)
			VALUES (?, ?, ?, ?)
		`, string(p.ID), donorPK, campaignPK, sqlite.ToMillis(p.JoinedAt)); err != nil {
			if msg, ok := sqlite.UniqueViolation(err); ok && strings.Contains(msg, "participations.donor_id") {
				return ledger.ErrAlreadyJoined
			}
			return fmt.Errorf("insert participation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE campaigns SET participant_count = participant_count + 1 WHERE id = ?
		`, campaignPK); err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}
		donorCount, tier, err := refreshTier(ctx, tx, donorPK)
		if err != nil {
			return err
		}
		out = ledger.Outcome{
			Participation:        p,
			CampaignParticipants: count + 1,
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
	if l.db == nil {
		return ledger.Outcome{}, errors.New("nil sqlite db")
	}
	var out ledger.Outcome
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var (
			rowPK, donorPK, campaignPK int64
			pid                        string
			joinedAt                   int64
		)
		err := tx.QueryRowContext(ctx, `
			SELECT p.id, p.donor_id, p.campaign_id, p.external_id, p.joined_at
			FROM participations p
			JOIN donors d ON d.id = p.donor_id
			JOIN campaigns c ON c.id = p.campaign_id
			WHERE d.external_id = ? AND c.external_id = ?
		`, string(donorID), string(campaignID)).Scan(&rowPK, &donorPK, &campaignPK, &pid, &joinedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrNotFound
			}
			return fmt.Errorf("load participation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM participations WHERE id = ?`, rowPK); err != nil {
			return fmt.Errorf("delete participation: %w", err)
		}
		donorCount, tier, err := refreshTier(ctx, tx, donorPK)
		if err != nil {
			return err
		}
		var campaignCount int
		if err := tx.QueryRowContext(ctx, `
			UPDATE campaigns
			SET participant_count = max(participant_count - 1, 0)
			WHERE id = ?
			RETURNING participant_count
		`, campaignPK).Scan(&campaignCount); err != nil {
			return fmt.Errorf("decrement participants: %w", err)
		}

		out = ledger.Outcome{
			Participation: domain.Participation{
				ID:         domain.ParticipationID(pid),
				DonorID:    donorID,
				CampaignID: campaignID,
				JoinedAt:   sqlite.FromMillis(joinedAt),
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
	if l.db == nil {
		return nil, errors.New("nil sqlite db")
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT p.external_id, c.external_id, p.joined_at, c.name, c.status, c.blood_type_target
		FROM participations p
		JOIN donors d ON d.id = p.donor_id
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE d.external_id = ?
		ORDER BY p.joined_at DESC, p.external_id DESC
	`, string(donorID))
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ParticipationEntry, 0)
	for rows.Next() {
		var (
			pid, cid, status string
			joinedAt         int64
			e                domain.ParticipationEntry
		)
		if err := rows.Scan(&pid, &cid, &joinedAt, &e.CampaignName, &status, &e.BloodTypeTarget); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		e.ID = domain.ParticipationID(pid)
		e.DonorID = donorID
		e.CampaignID = domain.CampaignID(cid)
		e.JoinedAt = sqlite.FromMillis(joinedAt)
		e.CampaignStatus = domain.CampaignStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participations: %w", err)
	}
	return out, nil
}

func (l *Ledger) CountForDonor(ctx context.Context, donorID domain.DonorID) (int, error) {
	return l.count(ctx, `
		SELECT count(*) FROM participations p JOIN donors d ON d.id = p.donor_id WHERE d.external_id = ?
	`, string(donorID))
}

func (l *Ledger) CountForCampaign(ctx context.Context, campaignID domain.CampaignID) (int, error) {
	return l.count(ctx, `
		SELECT count(*) FROM participations p JOIN campaigns c ON c.id = p.campaign_id WHERE c.external_id = ?
	`, string(campaignID))
}

func (l *Ledger) count(ctx context.Context, query string, arg string) (int, error) {
	if l.db == nil {
		return 0, errors.New("nil sqlite db")
	}
	var n int
	if err := l.db.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return n, nil
}

func (l *Ledger) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

func refreshTier(ctx context.Context, tx *sql.Tx, donorPK int64) (int, domain.Tier, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM participations WHERE donor_id = ?`, donorPK).Scan(&n); err != nil {
		return 0, "", fmt.Errorf("count donor participations: %w", err)
	}
	tier := domain.ComputeTier(n).Tier
	if _, err := tx.ExecContext(ctx, `UPDATE donors SET tier = ? WHERE id = ?`, string(tier), donorPK); err != nil {
		return 0, "", fmt.Errorf("update donor tier: %w", err)
	}
	return n, tier, nil
}
