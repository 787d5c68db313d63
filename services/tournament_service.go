package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/repositories"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name      string    `json:"name" validate:"required,max=128"`
	Game      string    `json:"game" validate:"required,max=64"`
	EntryFee  int64     `json:"entry_fee" validate:"gte=0"`
	Currency  string    `json:"currency" validate:"omitempty,len=3"`
	MaxTeams  int       `json:"max_teams" validate:"required,gt=0"`
	GroupSize int       `json:"group_size" validate:"gte=0"`
	StartDate time.Time `json:"start_date" validate:"required"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput, actor models.Actor) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, actor models.Actor) (*models.Tournament, error)
	Overview(ctx context.Context, id int) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo   repositories.TournamentRepository
	participantRepo  repositories.ParticipantRepository
	groupRepo        repositories.GroupRepository
	defaultGroupSize int
	logger           *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	groupRepo repositories.GroupRepository,
	defaultGroupSize int,
	logger *slog.Logger,
) TournamentService {
	if defaultGroupSize <= 0 {
		defaultGroupSize = models.DefaultGroupSize
	}
	return &tournamentService{
		tournamentRepo:   tournamentRepo,
		participantRepo:  participantRepo,
		groupRepo:        groupRepo,
		defaultGroupSize: defaultGroupSize,
		logger:           loggerOrDefault(logger),
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput, actor models.Actor) (*models.Tournament, error) {
	if actor.Role != models.RoleOrganizer && !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	name := normalizeName(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxTeams <= 0 {
		return nil, ErrTournamentInvalidTeams
	}
	if input.GroupSize < 0 {
		return nil, ErrInvalidGroupSize
	}

	t := &models.Tournament{
		Name:        name,
		Game:        normalizeName(input.Game),
		OrganizerID: actor.UserID,
		EntryFee:    input.EntryFee,
		Currency:    strings.ToUpper(input.Currency),
		MaxTeams:    input.MaxTeams,
		GroupSize:   input.GroupSize,
		Status:      models.StatusRegistration,
		StartDate:   input.StartDate,
	}
	if t.Currency == "" {
		t.Currency = "INR"
	}
	if t.GroupSize == 0 {
		t.GroupSize = s.defaultGroupSize
	}

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", handleRepositoryError(err))
	}
	s.logger.Info("tournament created", slog.Int("tournament_id", t.ID), slog.Int("organizer_id", t.OrganizerID))
	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.tournamentRepo.List(ctx, filter)
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusRegistration: {models.StatusActive, models.StatusCanceled},
		models.StatusActive:       {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:    {},
		models.StatusCanceled:     {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func (s *tournamentService) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus, actor models.Actor) (*models.Tournament, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrganizer(t, actor); err != nil {
		return nil, err
	}
	if !isValidStatusTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatus, t.Status, status)
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, handleRepositoryError(err)
	}
	t.Status = status
	return t, nil
}

// Overview loads the tournament with its participants and groups concurrently.
func (s *tournamentService) Overview(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		participants []*models.Participant
		groups       []*models.Group
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, id, nil)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.groupRepo.ListByTournament(gCtx, nil, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament %d overview: %w", id, err)
	}

	t.Participants = ParticipantsToInterface(participants)
	t.Groups = GroupsToInterface(groups)
	return t, nil
}
