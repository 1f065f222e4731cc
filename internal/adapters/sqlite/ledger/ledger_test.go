package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

func TestJoin_RollsBackWhenTierUpdateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("database is locked")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM donors WHERE external_id = \?`).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT id, capacity, participant_count, status FROM campaigns`).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "capacity", "participant_count", "status"}).AddRow(int64(3), 10, 0, "ACTIVE"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM participations WHERE donor_id = \? AND campaign_id = \?`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO participations`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE campaigns SET participant_count = participant_count \+ 1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM participations WHERE donor_id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE donors SET tier = \? WHERE id = \?`).
		WithArgs("BEGINNER", int64(7)).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err = NewLedger(db).Join(context.Background(), domain.Participation{
		ID:         "p-1",
		DonorID:    "d-1",
		CampaignID: "c-1",
		JoinedAt:   time.Unix(100, 0).UTC(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountForCampaign_PropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM participations p JOIN campaigns c`).
		WithArgs("c-1").
		WillReturnError(errors.New("no such table: participations"))

	_, err = NewLedger(db).CountForCampaign(context.Background(), "c-1")
	assert.ErrorContains(t, err, "count participations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
