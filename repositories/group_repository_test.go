package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/scrimhub/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groupRowColumns = []string{"id", "tournament_id", "name", "member_ids", "id", "created_at"}

func newMockDB(t *testing.T) (*postgresGroupRepository, *postgresRoomRepository, Transactor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &postgresGroupRepository{db: db}, &postgresRoomRepository{db: db}, NewPostgresTransactor(db, nil), mock
}

func TestGroupCreateWithRoomInTransaction(t *testing.T) {
	groups, rooms, tx, mock := newMockDB(t)
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO groups (tournament_id, name, member_ids)`)).
		WithArgs(1, "Group 1", pq.Int64Array{10, 11}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO rooms (group_id) VALUES ($1)`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "created_at"}).AddRow(70, 7, now))
	mock.ExpectCommit()

	group := &models.Group{TournamentID: 1, Name: "Group 1", MemberIDs: []int{10, 11}}
	err := tx.WithinTx(context.Background(), func(exec SQLExecutor) error {
		if err := groups.Create(context.Background(), exec, group); err != nil {
			return err
		}
		room, created, err := rooms.Ensure(context.Background(), exec, group.ID)
		if err != nil {
			return err
		}
		assert.True(t, created)
		group.RoomID = &room.ID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, group.ID)
	require.NotNil(t, group.RoomID)
	assert.Equal(t, 70, *group.RoomID)
}

func TestGroupCreateRollsBackOnError(t *testing.T) {
	groups, _, tx, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO groups`)).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation, Constraint: "groups_tournament_id_fkey"})
	mock.ExpectRollback()

	err := tx.WithinTx(context.Background(), func(exec SQLExecutor) error {
		return groups.Create(context.Background(), exec, &models.Group{TournamentID: 404, Name: "Group 1", MemberIDs: []int{1}})
	})
	assert.ErrorIs(t, err, ErrGroupTournamentInvalid)
}

func TestEnsureRoomReturnsExisting(t *testing.T) {
	_, rooms, _, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO rooms (group_id) VALUES ($1)`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, group_id, created_at FROM rooms WHERE group_id = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "created_at"}).AddRow(70, 7, now))

	room, created, err := rooms.Ensure(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 70, room.ID)
}

func TestGroupListByTournament(t *testing.T) {
	groups, _, _, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE g.tournament_id = $1 ORDER BY g.id ASC`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(groupRowColumns).
			AddRow(1, 3, "Group 1", "{10,11}", 100, now).
			AddRow(2, 3, "Group 2", "{}", nil, now))

	list, err := groups.ListByTournament(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, []int{10, 11}, list[0].MemberIDs)
	require.NotNil(t, list[0].RoomID)
	assert.Equal(t, 100, *list[0].RoomID)

	assert.Empty(t, list[1].MemberIDs)
	assert.Nil(t, list[1].RoomID)
}

func TestGroupGetByIDNotFound(t *testing.T) {
	groups, _, _, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE g.id = $1`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(groupRowColumns))

	_, err := groups.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupMembershipUpdates(t *testing.T) {
	groups, _, _, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`array_append(member_ids, $1::bigint)`)).
		WithArgs(10, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`array_append(member_ids, $1::bigint)`)).
		WithArgs(10, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`array_remove(member_ids, $1::bigint)`)).
		WithArgs(10, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`WHERE tournament_id = $2 AND $1::bigint = ANY(member_ids)`)).
		WithArgs(10, 3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	added, err := groups.AppendMember(ctx, nil, 2, 10)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = groups.AppendMember(ctx, nil, 2, 10)
	require.NoError(t, err)
	assert.False(t, added, "already a member")

	removed, err := groups.RemoveMember(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := groups.RemoveMemberFromTournament(ctx, nil, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGroupDeleteNotFound(t *testing.T) {
	groups, _, _, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM groups WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := groups.Delete(context.Background(), nil, 5)
	assert.True(t, errors.Is(err, ErrGroupNotFound))
}
