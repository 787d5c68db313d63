package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/scrimhub/models"
	"github.com/lib/pq"
)

var (
	ErrGroupNotFound          = errors.New("group not found")
	ErrGroupTournamentInvalid = errors.New("group tournament conflict or invalid")
)

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	GetByID(ctx context.Context, id int) (*models.Group, error)
	// LockByID reads the group with a row lock; exec must be a transaction.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error)
	Rename(ctx context.Context, id int, name string) error
	// AppendMember adds userID to the end of the member list unless it is already there.
	AppendMember(ctx context.Context, exec SQLExecutor, groupID, userID int) (bool, error)
	// RemoveMember reports whether userID was present in the group.
	RemoveMember(ctx context.Context, exec SQLExecutor, groupID, userID int) (bool, error)
	RemoveMemberFromTournament(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (int64, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

const selectGroupSQL = `
		SELECT g.id, g.tournament_id, g.name, g.member_ids, r.id, g.created_at
		FROM groups g
		LEFT JOIN rooms r ON r.group_id = g.id`

func scanGroup(row rowScanner) (*models.Group, error) {
	var (
		g       models.Group
		members pq.Int64Array
		roomID  sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.TournamentID, &g.Name, &members, &roomID, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.MemberIDs = fromInt64Array(members)
	if roomID.Valid {
		id := int(roomID.Int64)
		g.RoomID = &id
	}
	return &g, nil
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		INSERT INTO groups (tournament_id, name, member_ids)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := getExecutor(r.db, exec).QueryRowContext(ctx, query, g.TournamentID, g.Name, toInt64Array(g.MemberIDs)).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == pqForeignKeyViolation && constraint == "groups_tournament_id_fkey" {
			return ErrGroupTournamentInvalid
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	if g.MemberIDs == nil {
		g.MemberIDs = []int{}
	}
	return nil
}

func (r *postgresGroupRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Group, error) {
	g, err := scanGroup(getExecutor(r.db, exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, id int) (*models.Group, error) {
	return r.getOne(ctx, nil, selectGroupSQL+` WHERE g.id = $1`, id)
}

func (r *postgresGroupRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error) {
	return r.getOne(ctx, exec, selectGroupSQL+` WHERE g.id = $1 FOR UPDATE OF g`, id)
}

func (r *postgresGroupRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error) {
	rows, err := getExecutor(r.db, exec).QueryContext(ctx, selectGroupSQL+` WHERE g.tournament_id = $1 ORDER BY g.id ASC`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func (r *postgresGroupRepository) Rename(ctx context.Context, id int, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

func (r *postgresGroupRepository) AppendMember(ctx context.Context, exec SQLExecutor, groupID, userID int) (bool, error) {
	query := `
		UPDATE groups SET member_ids = array_append(member_ids, $1::bigint)
		WHERE id = $2 AND NOT ($1::bigint = ANY(member_ids))`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to append member %d to group %d: %w", userID, groupID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *postgresGroupRepository) RemoveMember(ctx context.Context, exec SQLExecutor, groupID, userID int) (bool, error) {
	query := `
		UPDATE groups SET member_ids = array_remove(member_ids, $1::bigint)
		WHERE id = $2 AND $1::bigint = ANY(member_ids)`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member %d from group %d: %w", userID, groupID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *postgresGroupRepository) RemoveMemberFromTournament(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (int64, error) {
	query := `
		UPDATE groups SET member_ids = array_remove(member_ids, $1::bigint)
		WHERE tournament_id = $2 AND $1::bigint = ANY(member_ids)`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, userID, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to strip member %d from tournament %d groups: %w", userID, tournamentID, err)
	}
	return result.RowsAffected()
}

func (r *postgresGroupRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := getExecutor(r.db, exec).ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}
