package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/scrimhub/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tournamentRowColumns = []string{
	"id", "name", "game", "organizer_id", "entry_fee", "currency",
	"max_teams", "group_size", "status", "start_date", "created_at",
}

func TestTournamentCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresTournamentRepository(db)
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	t.Run("organizer id is stored without a local users row", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tournaments`)).
			WithArgs("Weekly", "pubg", 9001, int64(0), "INR", 32, 16, models.StatusRegistration, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))

		tr := &models.Tournament{
			Name: "Weekly", Game: "pubg", OrganizerID: 9001, Currency: "INR",
			MaxTeams: 32, GroupSize: 16, Status: models.StatusRegistration, StartDate: now,
		}
		require.NoError(t, repo.Create(context.Background(), tr))
		assert.Equal(t, 3, tr.ID)
		assert.Equal(t, now, tr.CreatedAt)
	})

	t.Run("legacy organizer fkey maps to invalid org", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tournaments`)).
			WillReturnError(&pq.Error{Code: pqForeignKeyViolation, Constraint: "tournaments_organizer_id_fkey"})

		err := repo.Create(context.Background(), &models.Tournament{Name: "x", OrganizerID: 1})
		assert.ErrorIs(t, err, ErrTournamentInvalidOrg)
	})

	t.Run("duplicate name", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tournaments`)).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "tournaments_organizer_id_name_key"})

		err := repo.Create(context.Background(), &models.Tournament{Name: "x", OrganizerID: 1})
		assert.ErrorIs(t, err, ErrTournamentNameConflict)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRunsUnderTournamentLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	tournaments := NewPostgresTournamentRepository(db)
	participants := NewPostgresParticipantRepository(db)
	tx := NewPostgresTransactor(db, nil)
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	// все три запроса должны идти в одной транзакции
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM tournaments WHERE id = $1 FOR UPDATE`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(tournamentRowColumns).
			AddRow(5, "Weekly", "pubg", 1, 0, "INR", 2, 16, "registration", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM participants WHERE tournament_id = $1 AND status <> $2`)).
		WithArgs(5, models.ParticipantCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO participants`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))
	mock.ExpectCommit()

	p := &models.Participant{TournamentID: 5, UserID: 42, TeamName: "Alpha", Status: models.ParticipantRegistered}
	err = tx.WithinTx(context.Background(), func(exec SQLExecutor) error {
		locked, err := tournaments.LockByID(context.Background(), exec, 5)
		if err != nil {
			return err
		}
		count, err := participants.CountActive(context.Background(), exec, 5)
		if err != nil {
			return err
		}
		assert.Less(t, count, locked.MaxTeams)
		return participants.Create(context.Background(), exec, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 11, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantCreateForeignKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresParticipantRepository(db)

	tests := map[string]error{
		"participants_user_id_fkey":       ErrParticipantUserInvalid,
		"participants_tournament_id_fkey": ErrParticipantTournamentInvalid,
	}
	for constraint, want := range tests {
		t.Run(constraint, func(t *testing.T) {
			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO participants`)).
				WillReturnError(&pq.Error{Code: pqForeignKeyViolation, Constraint: constraint})

			err := repo.Create(context.Background(), nil, &models.Participant{TournamentID: 1, UserID: 2})
			assert.ErrorIs(t, err, want)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
