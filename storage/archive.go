package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/scrimhub/models"
)

// RoomTranscript is the archived form of a room, deleted messages included.
type RoomTranscript struct {
	TournamentID int              `json:"tournament_id"`
	GroupID      int              `json:"group_id"`
	GroupName    string           `json:"group_name"`
	Room         models.Room      `json:"room"`
	Messages     []models.Message `json:"messages"`
	ArchivedAt   time.Time        `json:"archived_at"`
}

// RoomArchiver keeps transcripts of rooms before they are removed.
// DeleteArchive drops a transcript whose room ended up not being deleted.
type RoomArchiver interface {
	ArchiveRoom(ctx context.Context, transcript RoomTranscript) (string, error)
	DeleteArchive(ctx context.Context, key string) error
}

type uploaderArchiver struct {
	uploader FileUploader
	prefix   string
}

func NewRoomArchiver(uploader FileUploader, prefix string) RoomArchiver {
	if prefix == "" {
		prefix = "room-archive"
	}
	return &uploaderArchiver{uploader: uploader, prefix: prefix}
}

func TranscriptKey(prefix string, t RoomTranscript) string {
	return fmt.Sprintf("%s/tournament-%d/group-%d/room-%d-%d.json",
		prefix, t.TournamentID, t.GroupID, t.Room.ID, t.ArchivedAt.Unix())
}

func (a *uploaderArchiver) ArchiveRoom(ctx context.Context, transcript RoomTranscript) (string, error) {
	if transcript.ArchivedAt.IsZero() {
		transcript.ArchivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("failed to encode room transcript: %w", err)
	}
	key := TranscriptKey(a.prefix, transcript)
	if _, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
		return "", err
	}
	return key, nil
}

func (a *uploaderArchiver) DeleteArchive(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := a.uploader.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete room transcript %s: %w", key, err)
	}
	return nil
}
