package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMalformedIDNeverReachesDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresMessageRepository(db)
	ctx := context.Background()

	for _, id := range []string{"abc", "", "1", "not-a-uuid-at-all"} {
		_, err := repo.GetByID(ctx, 1, id)
		assert.ErrorIs(t, err, ErrMessageNotFound, id)
		assert.ErrorIs(t, repo.UpdateContent(ctx, 1, id, "x", time.Now()), ErrMessageNotFound, id)
		assert.ErrorIs(t, repo.MarkDeleted(ctx, 1, id), ErrMessageNotFound, id)
	}

	// ни одного запроса не ожидалось
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageGetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresMessageRepository(db)

	id := "6f1c2c9e-3f7a-4f55-9a55-2b1f3c7d9e10"
	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE room_id = $1 AND id = $2`)).
		WithArgs(1, id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), 1, id)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
