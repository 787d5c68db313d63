package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/scrimhub/models"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomGroupInvalid = errors.New("room group reference invalid")
)

type RoomRepository interface {
	// Ensure returns the room of the group, creating it when missing.
	Ensure(ctx context.Context, exec SQLExecutor, groupID int) (*models.Room, bool, error)
	GetByID(ctx context.Context, id int) (*models.Room, error)
	GetByGroupID(ctx context.Context, groupID int) (*models.Room, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRoomRepository struct {
	db *sql.DB
}

func NewPostgresRoomRepository(db *sql.DB) RoomRepository {
	return &postgresRoomRepository{db: db}
}

func (r *postgresRoomRepository) Ensure(ctx context.Context, exec SQLExecutor, groupID int) (*models.Room, bool, error) {
	executor := getExecutor(r.db, exec)

	room := &models.Room{}
	err := executor.QueryRowContext(ctx, `
		INSERT INTO rooms (group_id) VALUES ($1)
		ON CONFLICT (group_id) DO NOTHING
		RETURNING id, group_id, created_at`, groupID).Scan(&room.ID, &room.GroupID, &room.CreatedAt)
	switch {
	case err == nil:
		return room, true, nil
	case errors.Is(err, sql.ErrNoRows):
		// Комната уже существует
	default:
		if code, _, ok := pqConstraint(err); ok && code == pqForeignKeyViolation {
			return nil, false, ErrRoomGroupInvalid
		}
		return nil, false, fmt.Errorf("failed to create room for group %d: %w", groupID, err)
	}

	err = executor.QueryRowContext(ctx, `SELECT id, group_id, created_at FROM rooms WHERE group_id = $1`, groupID).
		Scan(&room.ID, &room.GroupID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrRoomNotFound
		}
		return nil, false, fmt.Errorf("failed to load room for group %d: %w", groupID, err)
	}
	return room, false, nil
}

func (r *postgresRoomRepository) get(ctx context.Context, query string, arg int) (*models.Room, error) {
	room := &models.Room{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&room.ID, &room.GroupID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (r *postgresRoomRepository) GetByID(ctx context.Context, id int) (*models.Room, error) {
	return r.get(ctx, `SELECT id, group_id, created_at FROM rooms WHERE id = $1`, id)
}

func (r *postgresRoomRepository) GetByGroupID(ctx context.Context, groupID int) (*models.Room, error) {
	return r.get(ctx, `SELECT id, group_id, created_at FROM rooms WHERE group_id = $1`, groupID)
}

// Delete removes the room; its messages go with it (ON DELETE CASCADE).
func (r *postgresRoomRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(r.db, exec).ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}
