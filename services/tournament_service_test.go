package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := CreateTournamentInput{
		Name:      " Diwali Showdown ",
		Game:      "BGMI",
		EntryFee:  5000,
		MaxTeams:  64,
		StartDate: time.Date(2026, 11, 8, 15, 0, 0, 0, time.UTC),
	}

	tr, err := f.tournamentSvc.Create(ctx, input, organizer)
	require.NoError(t, err)
	assert.NotZero(t, tr.ID)
	assert.Equal(t, "Diwali Showdown", tr.Name)
	assert.Equal(t, "INR", tr.Currency)
	assert.Equal(t, 16, tr.GroupSize)
	assert.Equal(t, models.StatusRegistration, tr.Status)
	assert.Equal(t, organizer.UserID, tr.OrganizerID)
	assert.True(t, tr.IsPaid())

	_, err = f.tournamentSvc.Create(ctx, input, player(5))
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	bad := input
	bad.Name = "  "
	_, err = f.tournamentSvc.Create(ctx, bad, organizer)
	assert.ErrorIs(t, err, ErrTournamentNameRequired)

	bad = input
	bad.MaxTeams = 0
	_, err = f.tournamentSvc.Create(ctx, bad, organizer)
	assert.ErrorIs(t, err, ErrTournamentInvalidTeams)
}

func TestTournamentUpdateStatus(t *testing.T) {
	tests := []struct {
		from, to models.TournamentStatus
		ok       bool
	}{
		{models.StatusRegistration, models.StatusActive, true},
		{models.StatusRegistration, models.StatusCanceled, true},
		{models.StatusActive, models.StatusCompleted, true},
		{models.StatusActive, models.StatusCanceled, true},
		{models.StatusRegistration, models.StatusCompleted, false},
		{models.StatusCompleted, models.StatusActive, false},
		{models.StatusCanceled, models.StatusRegistration, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := newFixture(t)
			tr := f.tournament(t, func(tr *models.Tournament) { tr.Status = tt.from })

			updated, err := f.tournamentSvc.UpdateStatus(context.Background(), tr.ID, tt.to, organizer)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrTournamentInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			stored, err := f.tournaments.GetByID(context.Background(), tr.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, stored.Status)
		})
	}

	t.Run("forbidden", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t)
		_, err := f.tournamentSvc.UpdateStatus(context.Background(), tr.ID, models.StatusActive, stranger)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})
}

func TestTournamentOverview(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(t)
	f.register(t, tr.ID, models.ParticipantRegistered, userRange(10, 5)...)
	_, err := f.groupSvc.AutoGroup(context.Background(), tr.ID, 2, organizer)
	require.NoError(t, err)

	overview, err := f.tournamentSvc.Overview(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, overview.Participants, 5)
	assert.Len(t, overview.Groups, 3)

	_, err = f.tournamentSvc.Overview(context.Background(), 999)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestTournamentList_ClampsPaging(t *testing.T) {
	f := newFixture(t)
	f.tournament(t)
	f.tournament(t, func(tr *models.Tournament) { tr.OrganizerID = 2 })

	orgID := organizer.UserID
	list, err := f.tournamentSvc.List(context.Background(), repositories.ListTournamentsFilter{OrganizerID: &orgID, Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
