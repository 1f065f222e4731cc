package donorrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

func TestListMatching_PropagatesQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(`SELECT .* FROM donors WHERE blood_type IN \(\?\) ORDER BY external_id ASC`).
		WithArgs("O-").
		WillReturnError(boom)

	_, err = NewRepo(db).ListMatching(context.Background(), donorrepo.Filter{BloodTypes: []domain.BloodType{domain.BloodTypeONeg}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTier_NoRowsIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE donors SET tier = \? WHERE external_id = \?`).
		WithArgs("HEROIC", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewRepo(db).UpdateTier(context.Background(), "missing", domain.TierHeroic)
	assert.ErrorIs(t, err, donorrepo.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_ScansNullTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{
		"external_id", "name", "email", "phone", "blood_type", "gender", "date_of_birth",
		"postal_code", "address", "already_donated", "first_time", "interest", "classification",
		"consent_to_message", "consent_to_data", "tier", "created_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT .* FROM donors WHERE external_id = \?`).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"d-1", "Ana", "ana@example.com", "", "AB+", "F", "1990-05-01",
			"", "Recife", true, false, "", "",
			true, true, nil, int64(1_700_000_000_000), int64(1_700_000_000_000),
		))

	d, err := NewRepo(db).GetByID(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BloodTypeABPos, d.BloodType)
	assert.Nil(t, d.Tier)
	assert.True(t, d.AlreadyDonated)
	assert.Equal(t, int64(1_700_000_000_000), d.CreatedAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}
