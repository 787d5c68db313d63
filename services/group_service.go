package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/scrimhub/grouping"
	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
	"github.com/Dosada05/scrimhub/storage"
)

type CreateGroupInput struct {
	Name      string `json:"name" validate:"omitempty,max=64"`
	MemberIDs []int  `json:"member_ids" validate:"required,min=1,dive,gt=0"`
}

type MoveMemberInput struct {
	UserID      int `json:"user_id" validate:"required,gt=0"`
	FromGroupID int `json:"from_group_id" validate:"required,gt=0"`
}

type GroupService interface {
	AutoGroup(ctx context.Context, tournamentID, size int, actor models.Actor) ([]*models.Group, error)
	CreateGroup(ctx context.Context, tournamentID int, input CreateGroupInput, actor models.Actor) (*models.Group, error)
	RenameGroup(ctx context.Context, groupID int, name string, actor models.Actor) (*models.Group, error)
	MoveMember(ctx context.Context, userID, fromGroupID, toGroupID int, actor models.Actor) (*models.Group, error)
	RemoveMember(ctx context.Context, groupID, userID int, actor models.Actor) (*models.Group, error)
	DeleteGroup(ctx context.Context, groupID int, actor models.Actor) error
	ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error)
	GetGroup(ctx context.Context, groupID int) (*models.Group, error)
}

type groupService struct {
	groupRepo       repositories.GroupRepository
	roomRepo        repositories.RoomRepository
	messageRepo     repositories.MessageRepository
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	tx              repositories.Transactor
	partitioner     grouping.Partitioner
	archiver        storage.RoomArchiver
	notifier        realtime.Notifier
	logger          *slog.Logger
}

// NewGroupService creates the group service. archiver may be nil, in which
// case rooms are dropped without keeping a transcript.
func NewGroupService(
	groupRepo repositories.GroupRepository,
	roomRepo repositories.RoomRepository,
	messageRepo repositories.MessageRepository,
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	tx repositories.Transactor,
	partitioner grouping.Partitioner,
	archiver storage.RoomArchiver,
	notifier realtime.Notifier,
	logger *slog.Logger,
) GroupService {
	if partitioner == nil {
		partitioner = grouping.NewSequential()
	}
	return &groupService{
		groupRepo:       groupRepo,
		roomRepo:        roomRepo,
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		tx:              tx,
		partitioner:     partitioner,
		archiver:        archiver,
		notifier:        notifierOrNop(notifier),
		logger:          loggerOrDefault(logger),
	}
}

func (s *groupService) organizerTournament(ctx context.Context, tournamentID int, actor models.Actor) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authorizeOrganizer(t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *groupService) registeredParticipants(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	status := models.ParticipantRegistered
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, &status)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered participants: %w", err)
	}
	return participants, nil
}

// AutoGroup splits the registered participants into groups of size and gives
// every group a room. All groups and rooms are created in one transaction.
func (s *groupService) AutoGroup(ctx context.Context, tournamentID, size int, actor models.Actor) ([]*models.Group, error) {
	tournament, err := s.organizerTournament(ctx, tournamentID, actor)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = tournament.GroupSize
	}
	if size <= 0 {
		return nil, ErrInvalidGroupSize
	}

	participants, err := s.registeredParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.partitioner.Partition(participants, size)
	if err != nil {
		if errors.Is(err, grouping.ErrInvalidGroupSize) {
			return nil, ErrInvalidGroupSize
		}
		return nil, err
	}

	groups := make([]*models.Group, 0, len(chunks))
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID); err != nil {
			return err
		}
		existing, err := s.groupRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrGroupsAlreadyExist
		}

		for _, chunk := range chunks {
			group := &models.Group{
				TournamentID: tournamentID,
				Name:         chunk.Name,
				MemberIDs:    chunk.MemberIDs,
			}
			if err := s.groupRepo.Create(ctx, exec, group); err != nil {
				return fmt.Errorf("failed to create %s: %w", chunk.Name, err)
			}
			room, _, err := s.roomRepo.Ensure(ctx, exec, group.ID)
			if err != nil {
				return fmt.Errorf("failed to create room for %s: %w", chunk.Name, err)
			}
			group.RoomID = &room.ID
			groups = append(groups, group)
		}
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.Info("tournament auto-grouped",
		slog.Int("tournament_id", tournamentID),
		slog.Int("group_size", size),
		slog.Int("participants", len(participants)),
		slog.Int("groups", len(groups)),
		slog.String("partitioner", s.partitioner.GetName()))
	s.notifier.Publish(realtime.TournamentChannel(tournamentID), realtime.EventGroupsUpdated, groups)
	return groups, nil
}

func (s *groupService) CreateGroup(ctx context.Context, tournamentID int, input CreateGroupInput, actor models.Actor) (*models.Group, error) {
	memberIDs := dedupeIDs(input.MemberIDs)
	if len(memberIDs) == 0 {
		return nil, ErrGroupMembersRequired
	}
	if _, err := s.organizerTournament(ctx, tournamentID, actor); err != nil {
		return nil, err
	}

	participants, err := s.registeredParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	registered := make(map[int]struct{}, len(participants))
	for _, p := range participants {
		registered[p.UserID] = struct{}{}
	}
	for _, id := range memberIDs {
		if _, ok := registered[id]; !ok {
			return nil, fmt.Errorf("%w: user %d", ErrMemberNotRegistered, id)
		}
	}

	group := &models.Group{
		TournamentID: tournamentID,
		Name:         normalizeName(input.Name),
		MemberIDs:    memberIDs,
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.LockByID(ctx, exec, tournamentID); err != nil {
			return err
		}
		existing, err := s.groupRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		for _, g := range existing {
			for _, id := range memberIDs {
				if g.HasMember(id) {
					return fmt.Errorf("%w: user %d is in %q", ErrMemberAlreadyGrouped, id, g.Name)
				}
			}
		}
		if group.Name == "" {
			group.Name = models.GroupName(len(existing) + 1)
		}
		return s.groupRepo.Create(ctx, exec, group)
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.Info("group created", slog.Int("tournament_id", tournamentID), slog.Int("group_id", group.ID))
	s.notifier.Publish(realtime.TournamentChannel(tournamentID), realtime.EventGroupsUpdated, group)
	return group, nil
}

// groupForOrganizer loads the group and checks that actor manages its tournament.
func (s *groupService) groupForOrganizer(ctx context.Context, groupID int, actor models.Actor) (*models.Group, *models.Tournament, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, handleRepositoryError(err)
	}
	tournament, err := s.organizerTournament(ctx, group.TournamentID, actor)
	if err != nil {
		return nil, nil, err
	}
	return group, tournament, nil
}

func (s *groupService) RenameGroup(ctx context.Context, groupID int, name string, actor models.Actor) (*models.Group, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}
	group, _, err := s.groupForOrganizer(ctx, groupID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.groupRepo.Rename(ctx, groupID, name); err != nil {
		return nil, handleRepositoryError(err)
	}
	group.Name = name

	s.notifier.Publish(realtime.TournamentChannel(group.TournamentID), realtime.EventGroupsUpdated, group)
	return group, nil
}

// MoveMember moves userID from one group into toGroupID. Retrying a finished
// move succeeds without changes; a user found in neither group is an error.
func (s *groupService) MoveMember(ctx context.Context, userID, fromGroupID, toGroupID int, actor models.Actor) (*models.Group, error) {
	if fromGroupID == toGroupID {
		return nil, ErrSameGroup
	}
	to, _, err := s.groupForOrganizer(ctx, toGroupID, actor)
	if err != nil {
		return nil, err
	}
	from, err := s.groupRepo.GetByID(ctx, fromGroupID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if from.TournamentID != to.TournamentID {
		return nil, ErrGroupsDifferentEvents
	}

	var moved bool
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.LockByID(ctx, exec, to.TournamentID); err != nil {
			return err
		}
		lockedFrom, err := s.groupRepo.LockByID(ctx, exec, fromGroupID)
		if err != nil {
			return err
		}
		from = lockedFrom
		lockedTo, err := s.groupRepo.LockByID(ctx, exec, toGroupID)
		if err != nil {
			return err
		}

		inFrom, inTo := lockedFrom.HasMember(userID), lockedTo.HasMember(userID)
		switch {
		case !inFrom && !inTo:
			return ErrMemberNotInGroup
		case !inFrom:
			to = lockedTo
			return nil
		}

		if _, err := s.groupRepo.RemoveMember(ctx, exec, fromGroupID, userID); err != nil {
			return err
		}
		if _, err := s.groupRepo.AppendMember(ctx, exec, toGroupID, userID); err != nil {
			return err
		}
		moved = true
		to, err = s.groupRepo.LockByID(ctx, exec, toGroupID)
		return err
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	if moved {
		s.logger.Info("group member moved",
			slog.Int("user_id", userID),
			slog.Int("from_group_id", fromGroupID),
			slog.Int("to_group_id", toGroupID))
		revokeRoomAccess(s.notifier, from, userID)
		s.notifier.Publish(realtime.TournamentChannel(to.TournamentID), realtime.EventGroupsUpdated, map[string]interface{}{
			"user_id":       userID,
			"from_group_id": fromGroupID,
			"to_group_id":   toGroupID,
		})
	}
	return to, nil
}

func (s *groupService) RemoveMember(ctx context.Context, groupID, userID int, actor models.Actor) (*models.Group, error) {
	group, _, err := s.groupForOrganizer(ctx, groupID, actor)
	if err != nil {
		return nil, err
	}
	removed, err := s.groupRepo.RemoveMember(ctx, nil, groupID, userID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !removed {
		return nil, ErrMemberNotInGroup
	}

	members := make([]int, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	group.MemberIDs = members

	revokeRoomAccess(s.notifier, group, userID)
	s.notifier.Publish(realtime.TournamentChannel(group.TournamentID), realtime.EventGroupsUpdated, group)
	return group, nil
}

// DeleteGroup removes the group; its room and messages go with it.
func (s *groupService) DeleteGroup(ctx context.Context, groupID int, actor models.Actor) error {
	group, _, err := s.groupForOrganizer(ctx, groupID, actor)
	if err != nil {
		return err
	}

	var (
		room *models.Room
		key  string
	)
	if group.RoomID != nil {
		room, err = s.roomRepo.GetByGroupID(ctx, groupID)
		if err != nil && !errors.Is(err, repositories.ErrRoomNotFound) {
			return fmt.Errorf("failed to load room of group %d: %w", groupID, err)
		}
		if room != nil {
			key, err = archiveTranscript(ctx, s.archiver, s.messageRepo, group, room)
			if err != nil {
				return err
			}
		}
	}

	if err := s.groupRepo.Delete(ctx, nil, groupID); err != nil {
		discardArchive(ctx, s.archiver, key, s.logger)
		return handleRepositoryError(err)
	}

	s.logger.Info("group deleted", slog.Int("tournament_id", group.TournamentID), slog.Int("group_id", groupID))
	if room != nil {
		s.notifier.Publish(realtime.RoomChannel(room.ID), realtime.EventRoomDeleted, map[string]int{"room_id": room.ID, "group_id": groupID})
	}
	s.notifier.Publish(realtime.TournamentChannel(group.TournamentID), realtime.EventGroupsUpdated, map[string]int{"deleted_group_id": groupID})
	return nil
}

func (s *groupService) ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	groups, err := s.groupRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (s *groupService) GetGroup(ctx context.Context, groupID int) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return group, nil
}
