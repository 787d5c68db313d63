package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	input := RegisterParticipantInput{
		TeamName: "  Soul  ",
		Phone:    "+919999999999",
		Players:  []models.Player{{IGN: "Mortal", GameID: "5111"}},
	}

	t.Run("free tournament registers immediately", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t)

		p, err := f.participantSvc.Register(ctx, tr.ID, input, player(10))
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantRegistered, p.Status)
		assert.Equal(t, "Soul", p.TeamName)
		assert.Equal(t, 10, p.UserID)
		assert.Len(t, p.Players, 1)
	})

	t.Run("paid tournament waits for payment", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t, func(tr *models.Tournament) { tr.EntryFee = 10000 })

		p, err := f.participantSvc.Register(ctx, tr.ID, input, player(10))
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantPendingPayment, p.Status)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t)
		_, err := f.participantSvc.Register(ctx, tr.ID, input, player(10))
		require.NoError(t, err)

		_, err = f.participantSvc.Register(ctx, tr.ID, input, player(10))
		assert.ErrorIs(t, err, ErrRegistrationConflict)
	})

	t.Run("capacity counts active registrations", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t, func(tr *models.Tournament) { tr.MaxTeams = 2 })
		f.register(t, tr.ID, models.ParticipantRegistered, 20)
		f.register(t, tr.ID, models.ParticipantCancelled, 21)

		_, err := f.participantSvc.Register(ctx, tr.ID, input, player(10))
		require.NoError(t, err)
		_, err = f.participantSvc.Register(ctx, tr.ID, input, player(11))
		assert.ErrorIs(t, err, ErrTournamentFull)
	})

	t.Run("concurrent registrations never exceed max teams", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(t, func(tr *models.Tournament) { tr.MaxTeams = 5 })

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			full      int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				_, err := f.participantSvc.Register(ctx, tr.ID, input, player(userID))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrTournamentFull):
					full++
				}
			}(100 + i)
		}
		wg.Wait()

		assert.Equal(t, 5, succeeded)
		assert.Equal(t, 15, full)
		active, err := f.participants.CountActive(ctx, nil, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, active)
	})

	t.Run("rejections", func(t *testing.T) {
		f := newFixture(t)
		open := f.tournament(t)
		closed := f.tournament(t, func(tr *models.Tournament) {
			tr.Name = "Closed"
			tr.Status = models.StatusActive
		})

		_, err := f.participantSvc.Register(ctx, closed.ID, input, player(10))
		assert.ErrorIs(t, err, ErrRegistrationNotOpen)

		_, err = f.participantSvc.Register(ctx, open.ID, RegisterParticipantInput{TeamName: " "}, player(10))
		assert.ErrorIs(t, err, ErrTeamNameRequired)

		six := make([]models.Player, 6)
		_, err = f.participantSvc.Register(ctx, open.ID, RegisterParticipantInput{TeamName: "x", Players: six}, player(10))
		assert.ErrorIs(t, err, ErrTooManyPlayers)

		_, err = f.participantSvc.Register(ctx, 777, input, player(10))
		assert.ErrorIs(t, err, ErrTournamentNotFound)

		_, err = f.participantSvc.Register(ctx, open.ID, input, models.Actor{})
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestListParticipants_StorageOrder(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(t)
	f.register(t, tr.ID, models.ParticipantRegistered, 30, 10, 20)
	f.register(t, tr.ID, models.ParticipantPendingPayment, 40)

	all, err := f.participantSvc.ListParticipants(context.Background(), tr.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []int{30, 10, 20, 40}, []int{all[0].UserID, all[1].UserID, all[2].UserID, all[3].UserID})

	status := models.ParticipantRegistered
	registered, err := f.participantSvc.ListParticipants(context.Background(), tr.ID, &status)
	require.NoError(t, err)
	assert.Len(t, registered, 3)
}

func TestRemoveParticipant_StripsGroupMembership(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(t)
	f.register(t, tr.ID, models.ParticipantRegistered, 10, 11, 12)
	ctx := context.Background()
	g, err := f.groupSvc.CreateGroup(ctx, tr.ID, CreateGroupInput{MemberIDs: []int{10, 11}}, organizer)
	require.NoError(t, err)

	require.NoError(t, f.participantSvc.RemoveParticipant(ctx, tr.ID, 10, organizer))

	_, err = f.participants.FindByUserAndTournament(ctx, 10, tr.ID)
	assert.Error(t, err)
	assert.Equal(t, []int{11}, f.group(t, g.ID).MemberIDs)
	assert.Contains(t, f.notifier.types(), realtime.EventGroupsUpdated)

	t.Run("self removal", func(t *testing.T) {
		require.NoError(t, f.participantSvc.RemoveParticipant(ctx, tr.ID, 12, player(12)))
	})
	t.Run("someone else", func(t *testing.T) {
		err := f.participantSvc.RemoveParticipant(ctx, tr.ID, 11, player(12))
		assert.ErrorIs(t, err, ErrForbiddenOperation)
		assert.Equal(t, []int{11}, f.group(t, g.ID).MemberIDs)
	})
	t.Run("not registered", func(t *testing.T) {
		err := f.participantSvc.RemoveParticipant(ctx, tr.ID, 10, organizer)
		assert.ErrorIs(t, err, ErrParticipantNotFound)
	})
}
