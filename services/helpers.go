package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
	"github.com/Dosada05/scrimhub/storage"
)

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
// Unknown errors are returned unchanged so callers can wrap them.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrTournamentInvalidOrg),
		errors.Is(err, repositories.ErrParticipantUserInvalid):
		return ErrInvalidUserReference
	case errors.Is(err, repositories.ErrParticipantTournamentInvalid):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrParticipantConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, repositories.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, repositories.ErrMessageNotFound):
		return ErrMessageNotFound
	case errors.Is(err, repositories.ErrPaymentNotFound):
		return ErrPaymentNotFound
	}
	return err
}

// authorizeOrganizer allows the tournament organizer and admins.
func authorizeOrganizer(t *models.Tournament, actor models.Actor) error {
	if actor.IsAdmin() || (actor.UserID > 0 && t.OrganizerID == actor.UserID) {
		return nil
	}
	return ErrForbiddenOperation
}

func isOrganizer(t *models.Tournament, actor models.Actor) bool {
	return authorizeOrganizer(t, actor) == nil
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// archiveTranscript stores the full message list of room, deleted messages
// included. A nil archiver is a no-op.
func archiveTranscript(ctx context.Context, archiver storage.RoomArchiver, messageRepo repositories.MessageRepository, group *models.Group, room *models.Room) (string, error) {
	if archiver == nil {
		return "", nil
	}
	messages, err := messageRepo.ListByRoom(ctx, room.ID, true)
	if err != nil {
		return "", fmt.Errorf("failed to load messages of room %d: %w", room.ID, err)
	}
	key, err := archiver.ArchiveRoom(ctx, storage.RoomTranscript{
		TournamentID: group.TournamentID,
		GroupID:      group.ID,
		GroupName:    group.Name,
		Room:         *room,
		Messages:     messages,
		ArchivedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive room %d: %w", room.ID, err)
	}
	return key, nil
}

// discardArchive removes a transcript uploaded for a room whose deletion then
// failed, so the bucket only holds transcripts of rooms that are gone.
func discardArchive(ctx context.Context, archiver storage.RoomArchiver, key string, logger *slog.Logger) {
	if archiver == nil || key == "" {
		return
	}
	// удаление должно пройти даже если запрос уже отменён
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := archiver.DeleteArchive(ctx, key); err != nil {
		logger.Error("failed to discard orphaned room transcript", slog.String("archive_key", key), slog.Any("error", err))
		return
	}
	logger.Warn("room transcript discarded after failed delete", slog.String("archive_key", key))
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, interface{}) {}
func (nopNotifier) Revoke(string, int)                   {}

// revokeRoomAccess closes the live room subscriptions of a user who is no
// longer a member of group.
func revokeRoomAccess(n realtime.Notifier, group *models.Group, userID int) {
	if group == nil || group.RoomID == nil {
		return
	}
	n.Revoke(realtime.RoomChannel(*group.RoomID), userID)
}

func notifierOrNop(n realtime.Notifier) realtime.Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func ParticipantsToInterface(slice []*models.Participant) []models.Participant {
	if slice == nil {
		return []models.Participant{}
	}
	result := make([]models.Participant, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

func GroupsToInterface(slice []*models.Group) []models.Group {
	if slice == nil {
		return []models.Group{}
	}
	result := make([]models.Group, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}
