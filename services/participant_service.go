package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
)

type RegisterParticipantInput struct {
	TeamName string          `json:"team_name" validate:"required,max=64"`
	Phone    string          `json:"phone" validate:"omitempty,max=20"`
	RealName string          `json:"real_name" validate:"omitempty,max=128"`
	Players  []models.Player `json:"players" validate:"max=5,dive"`
}

type ParticipantService interface {
	Register(ctx context.Context, tournamentID int, input RegisterParticipantInput, actor models.Actor) (*models.Participant, error)
	ListParticipants(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error)
	RemoveParticipant(ctx context.Context, tournamentID, userID int, actor models.Actor) error
}

type participantService struct {
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	groupRepo       repositories.GroupRepository
	tx              repositories.Transactor
	notifier        realtime.Notifier
	logger          *slog.Logger
}

func NewParticipantService(
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	groupRepo repositories.GroupRepository,
	tx repositories.Transactor,
	notifier realtime.Notifier,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		groupRepo:       groupRepo,
		tx:              tx,
		notifier:        notifierOrNop(notifier),
		logger:          loggerOrDefault(logger),
	}
}

func (s *participantService) Register(ctx context.Context, tournamentID int, input RegisterParticipantInput, actor models.Actor) (*models.Participant, error) {
	if actor.UserID <= 0 {
		return nil, ErrAuthenticationFailed
	}
	teamName := normalizeName(input.TeamName)
	if teamName == "" {
		return nil, ErrTeamNameRequired
	}
	if len(input.Players) > models.MaxPlayersPerTeam {
		return nil, ErrTooManyPlayers
	}

	if _, err := s.participantRepo.FindByUserAndTournament(ctx, actor.UserID, tournamentID); err == nil {
		return nil, ErrRegistrationConflict
	} else if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}

	participant := &models.Participant{
		TournamentID: tournamentID,
		UserID:       actor.UserID,
		TeamName:     teamName,
		Phone:        input.Phone,
		RealName:     input.RealName,
		Players:      models.Players(input.Players),
	}
	if participant.Players == nil {
		participant.Players = models.Players{}
	}

	// Подсчёт мест и вставка под блокировкой строки турнира.
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if locked.Status != models.StatusRegistration {
			return ErrRegistrationNotOpen
		}
		count, err := s.participantRepo.CountActive(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if count >= locked.MaxTeams {
			return ErrTournamentFull
		}

		participant.Status = models.ParticipantRegistered
		if locked.IsPaid() {
			participant.Status = models.ParticipantPendingPayment
		}
		if err := s.participantRepo.Create(ctx, exec, participant); err != nil {
			return handleRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", actor.UserID),
		slog.String("status", string(participant.Status)))
	return participant, nil
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// RemoveParticipant deletes the registration and strips the user from every
// group of the tournament in one transaction.
func (s *participantService) RemoveParticipant(ctx context.Context, tournamentID, userID int, actor models.Actor) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if actor.UserID != userID && !isOrganizer(tournament, actor) {
		return ErrForbiddenOperation
	}

	var (
		stripped int64
		lost     []*models.Group
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.participantRepo.DeleteByUserAndTournament(ctx, exec, userID, tournamentID); err != nil {
			return err
		}
		groups, err := s.groupRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		lost = lost[:0]
		for _, g := range groups {
			if g.HasMember(userID) {
				lost = append(lost, g)
			}
		}
		n, err := s.groupRepo.RemoveMemberFromTournament(ctx, exec, tournamentID, userID)
		if err != nil {
			return err
		}
		stripped = n
		return nil
	})
	if err != nil {
		return handleRepositoryError(err)
	}

	for _, g := range lost {
		revokeRoomAccess(s.notifier, g, userID)
	}
	if stripped > 0 {
		s.notifier.Publish(realtime.TournamentChannel(tournamentID), realtime.EventGroupsUpdated, map[string]int{"removed_user_id": userID})
	}
	s.logger.Info("participant removed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int64("groups_updated", stripped))
	return nil
}
