package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/google/uuid"
)

var (
	ErrMessageNotFound = errors.New("message not found")
)

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, roomID int, id string) (*models.Message, error)
	// ListByRoom returns messages in insertion order. Deleted messages are
	// only included when includeDeleted is set.
	ListByRoom(ctx context.Context, roomID int, includeDeleted bool) ([]models.Message, error)
	UpdateContent(ctx context.Context, roomID int, id string, content string, editedAt time.Time) error
	MarkDeleted(ctx context.Context, roomID int, id string) error
}

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

const messageColumns = `id, room_id, sender_id, type, content, image_url, state, created_at, edited_at`

// id колонка типа UUID: строка в другом формате уронила бы запрос с 22P02.
func validMessageID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanMessage(row rowScanner, m *models.Message) error {
	return row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Type, &m.Content, &m.ImageURL, &m.State, &m.CreatedAt, &m.EditedAt)
}

func (r *postgresMessageRepository) Create(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, room_id, sender_id, type, content, image_url, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.RoomID, m.SenderID, m.Type, m.Content, m.ImageURL, m.State, m.CreatedAt)
	if err != nil {
		if code, _, ok := pqConstraint(err); ok && code == pqForeignKeyViolation {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *postgresMessageRepository) GetByID(ctx context.Context, roomID int, id string) (*models.Message, error) {
	if !validMessageID(id) {
		return nil, ErrMessageNotFound
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = $1 AND id = $2`
	m := &models.Message{}
	if err := scanMessage(r.db.QueryRowContext(ctx, query, roomID, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func (r *postgresMessageRepository) ListByRoom(ctx context.Context, roomID int, includeDeleted bool) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = $1`
	args := []interface{}{roomID}
	if !includeDeleted {
		query += ` AND state <> $2`
		args = append(args, models.MessageDeleted)
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

func (r *postgresMessageRepository) UpdateContent(ctx context.Context, roomID int, id string, content string, editedAt time.Time) error {
	if !validMessageID(id) {
		return ErrMessageNotFound
	}
	query := `
		UPDATE messages SET content = $1, state = $2, edited_at = $3
		WHERE room_id = $4 AND id = $5 AND state <> $6`
	result, err := r.db.ExecContext(ctx, query, content, models.MessageEdited, editedAt, roomID, id, models.MessageDeleted)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return checkAffectedRows(result, ErrMessageNotFound)
}

func (r *postgresMessageRepository) MarkDeleted(ctx context.Context, roomID int, id string) error {
	if !validMessageID(id) {
		return ErrMessageNotFound
	}
	query := `UPDATE messages SET state = $1 WHERE room_id = $2 AND id = $3`
	result, err := r.db.ExecContext(ctx, query, models.MessageDeleted, roomID, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return checkAffectedRows(result, ErrMessageNotFound)
}
