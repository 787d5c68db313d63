package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUploader struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memoryUploader) Upload(_ context.Context, key, contentType string, r io.Reader) (*UploadResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = body
	m.types[key] = contentType
	return &UploadResult{Key: key}, nil
}

func (m *memoryUploader) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryUploader) GetPublicURL(key string) string { return "mem://" + key }

func TestRoomArchiver_UploadsTranscript(t *testing.T) {
	up := &memoryUploader{objects: map[string][]byte{}, types: map[string]string{}}
	archiver := NewRoomArchiver(up, "")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key, err := archiver.ArchiveRoom(context.Background(), RoomTranscript{
		TournamentID: 1,
		GroupID:      2,
		GroupName:    "Group 1",
		Room:         models.Room{ID: 3, GroupID: 2},
		Messages: []models.Message{
			{ID: "a", Content: "hello", State: models.MessageActive},
			{ID: "b", Content: "gone", State: models.MessageDeleted},
		},
		ArchivedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "room-archive/tournament-1/group-2/room-3-1767323045.json", key)
	assert.Equal(t, "application/json", up.types[key])

	var got RoomTranscript
	require.NoError(t, json.Unmarshal(up.objects[key], &got))
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, models.MessageDeleted, got.Messages[1].State)
}

func TestRoomArchiver_DeleteArchive(t *testing.T) {
	up := &memoryUploader{objects: map[string][]byte{}, types: map[string]string{}}
	archiver := NewRoomArchiver(up, "archive")

	key, err := archiver.ArchiveRoom(context.Background(), RoomTranscript{TournamentID: 1, GroupID: 2, Room: models.Room{ID: 3}})
	require.NoError(t, err)
	require.Contains(t, up.objects, key)

	require.NoError(t, archiver.DeleteArchive(context.Background(), key))
	assert.NotContains(t, up.objects, key)
	assert.NoError(t, archiver.DeleteArchive(context.Background(), ""))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a/b.json", publicURL("https://cdn.example.com", "/a/b.json"))
	assert.Equal(t, "https://cdn.example.com/x/a.json", publicURL("https://cdn.example.com/x", "a.json"))
	assert.Equal(t, "", publicURL("", "a.json"))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	second, err := l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)

	release()
	third, err := l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}
