package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
	"github.com/Dosada05/scrimhub/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const ensureRoomTimeout = 10 * time.Second

type SendMessageInput struct {
	Type     models.MessageType `json:"type" validate:"omitempty,oneof=text image credentials system"`
	Content  string             `json:"content" validate:"max=4000"`
	ImageURL *string            `json:"image_url" validate:"omitempty,url"`
}

type EditMessageInput struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type RoomService interface {
	EnsureRoom(ctx context.Context, groupID int, actor models.Actor) (*models.Room, error)
	// AuthorizeRoom checks that actor may read the room (member or organizer).
	AuthorizeRoom(ctx context.Context, roomID int, actor models.Actor) (*models.Room, error)
	SendMessage(ctx context.Context, roomID int, input SendMessageInput, actor models.Actor) (*models.Message, error)
	EditMessage(ctx context.Context, roomID int, messageID string, content string, actor models.Actor) (*models.Message, error)
	DeleteMessage(ctx context.Context, roomID int, messageID string, actor models.Actor) error
	ListMessages(ctx context.Context, roomID int, actor models.Actor, includeDeleted bool) ([]models.Message, error)
	DeleteRoom(ctx context.Context, groupID int, actor models.Actor) error
}

type roomService struct {
	roomRepo       repositories.RoomRepository
	messageRepo    repositories.MessageRepository
	groupRepo      repositories.GroupRepository
	tournamentRepo repositories.TournamentRepository
	archiver       storage.RoomArchiver
	notifier       realtime.Notifier
	logger         *slog.Logger

	ensureGroup singleflight.Group
	now         func() time.Time
}

func NewRoomService(
	roomRepo repositories.RoomRepository,
	messageRepo repositories.MessageRepository,
	groupRepo repositories.GroupRepository,
	tournamentRepo repositories.TournamentRepository,
	archiver storage.RoomArchiver,
	notifier realtime.Notifier,
	logger *slog.Logger,
) RoomService {
	return &roomService{
		roomRepo:       roomRepo,
		messageRepo:    messageRepo,
		groupRepo:      groupRepo,
		tournamentRepo: tournamentRepo,
		archiver:       archiver,
		notifier:       notifierOrNop(notifier),
		logger:         loggerOrDefault(logger),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// roomAccess описывает комнату вместе с группой и правами текущего пользователя.
type roomAccess struct {
	room      *models.Room
	group     *models.Group
	organizer bool
}

func (s *roomService) groupAccess(ctx context.Context, group *models.Group, actor models.Actor) (bool, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, group.TournamentID)
	if err != nil {
		return false, handleRepositoryError(err)
	}
	organizer := isOrganizer(tournament, actor)
	if !organizer && !group.HasMember(actor.UserID) {
		return false, ErrForbiddenOperation
	}
	return organizer, nil
}

func (s *roomService) access(ctx context.Context, roomID int, actor models.Actor) (*roomAccess, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	group, err := s.groupRepo.GetByID(ctx, room.GroupID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	organizer, err := s.groupAccess(ctx, group, actor)
	if err != nil {
		return nil, err
	}
	return &roomAccess{room: room, group: group, organizer: organizer}, nil
}

// EnsureRoom returns the room of the group, creating it on first access.
// Concurrent calls for one group share a single insert.
func (s *roomService) EnsureRoom(ctx context.Context, groupID int, actor models.Actor) (*models.Room, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if _, err := s.groupAccess(ctx, group, actor); err != nil {
		return nil, err
	}

	// общий insert не зависит от отмены запроса, который его начал
	flightCtx := context.WithoutCancel(ctx)
	ch := s.ensureGroup.DoChan(strconv.Itoa(groupID), func() (interface{}, error) {
		ensureCtx, cancel := context.WithTimeout(flightCtx, ensureRoomTimeout)
		defer cancel()
		room, created, err := s.roomRepo.Ensure(ensureCtx, nil, groupID)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info("room created", slog.Int("group_id", groupID), slog.Int("room_id", room.ID))
		}
		return room, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, handleRepositoryError(res.Err)
		}
		room := *res.Val.(*models.Room)
		return &room, nil
	}
}

func (s *roomService) AuthorizeRoom(ctx context.Context, roomID int, actor models.Actor) (*models.Room, error) {
	a, err := s.access(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	return a.room, nil
}

func (s *roomService) SendMessage(ctx context.Context, roomID int, input SendMessageInput, actor models.Actor) (*models.Message, error) {
	msgType := input.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return nil, ErrMessageTypeInvalid
	}

	var imageURL *string
	if input.ImageURL != nil && strings.TrimSpace(*input.ImageURL) != "" {
		u := strings.TrimSpace(*input.ImageURL)
		imageURL = &u
	}
	switch {
	case msgType == models.MessageImage && imageURL == nil:
		return nil, ErrMessageImageRequired
	case msgType != models.MessageImage && strings.TrimSpace(input.Content) == "":
		return nil, ErrMessageContentRequired
	}

	a, err := s.access(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	if (msgType == models.MessageSystem || msgType == models.MessageCredentials) && !a.organizer {
		return nil, ErrForbiddenOperation
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  actor.UserID,
		Type:      msgType,
		Content:   input.Content,
		ImageURL:  imageURL,
		State:     models.MessageActive,
		CreatedAt: s.now(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.notifier.Publish(realtime.RoomChannel(roomID), realtime.EventMessageCreated, msg)
	return msg, nil
}

// messageForChange loads a message that actor may edit or delete.
func (s *roomService) messageForChange(ctx context.Context, roomID int, messageID string, actor models.Actor) (*models.Message, error) {
	a, err := s.access(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(messageID); err != nil {
		return nil, ErrMessageNotFound
	}
	msg, err := s.messageRepo.GetByID(ctx, roomID, messageID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if msg.SenderID != actor.UserID && !a.organizer {
		return nil, ErrForbiddenOperation
	}
	return msg, nil
}

func (s *roomService) EditMessage(ctx context.Context, roomID int, messageID string, content string, actor models.Actor) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrMessageContentRequired
	}
	msg, err := s.messageForChange(ctx, roomID, messageID, actor)
	if err != nil {
		return nil, err
	}
	if msg.State == models.MessageDeleted {
		return nil, ErrMessageDeleted
	}

	editedAt := s.now()
	if err := s.messageRepo.UpdateContent(ctx, roomID, messageID, content, editedAt); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			// удалено между чтением и обновлением
			return nil, ErrMessageDeleted
		}
		return nil, fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	msg.Content = content
	msg.State = models.MessageEdited
	msg.EditedAt = &editedAt

	s.notifier.Publish(realtime.RoomChannel(roomID), realtime.EventMessageUpdated, msg)
	return msg, nil
}

// DeleteMessage is a soft delete; deleting twice succeeds.
func (s *roomService) DeleteMessage(ctx context.Context, roomID int, messageID string, actor models.Actor) error {
	msg, err := s.messageForChange(ctx, roomID, messageID, actor)
	if err != nil {
		return err
	}
	if msg.State == models.MessageDeleted {
		return nil
	}
	if err := s.messageRepo.MarkDeleted(ctx, roomID, messageID); err != nil {
		return handleRepositoryError(err)
	}

	s.notifier.Publish(realtime.RoomChannel(roomID), realtime.EventMessageDeleted, map[string]string{"id": messageID})
	return nil
}

// ListMessages returns the room's messages in send order. Deleted messages
// are only returned to the organizer when includeDeleted is set.
func (s *roomService) ListMessages(ctx context.Context, roomID int, actor models.Actor, includeDeleted bool) ([]models.Message, error) {
	a, err := s.access(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	if includeDeleted && !a.organizer {
		return nil, ErrForbiddenOperation
	}
	messages, err := s.messageRepo.ListByRoom(ctx, roomID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of room %d: %w", roomID, err)
	}
	return messages, nil
}

func (s *roomService) DeleteRoom(ctx context.Context, groupID int, actor models.Actor) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return handleRepositoryError(err)
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, group.TournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if err := authorizeOrganizer(tournament, actor); err != nil {
		return err
	}

	room, err := s.roomRepo.GetByGroupID(ctx, groupID)
	if err != nil {
		return handleRepositoryError(err)
	}
	key, err := archiveTranscript(ctx, s.archiver, s.messageRepo, group, room)
	if err != nil {
		return err
	}
	if err := s.roomRepo.Delete(ctx, nil, room.ID); err != nil {
		discardArchive(ctx, s.archiver, key, s.logger)
		return handleRepositoryError(err)
	}

	s.logger.Info("room deleted",
		slog.Int("group_id", groupID),
		slog.Int("room_id", room.ID),
		slog.String("archive_key", key))
	s.notifier.Publish(realtime.RoomChannel(room.ID), realtime.EventRoomDeleted, map[string]int{"room_id": room.ID, "group_id": groupID})
	return nil
}
