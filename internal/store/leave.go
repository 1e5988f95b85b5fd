package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/leave-notifier/apiserver/types"
)

const leaveColumns = `id, username, date_created, date_from, date_to, justification, means, status, attachment_key`

// LeaveRepository handles persistence for leave requests.
type LeaveRepository struct {
	db *sql.DB
}

func NewLeaveRepository(db *sql.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

func (r *LeaveRepository) List(ctx context.Context) ([]types.Leave, error) {
	const query = `
		SELECT ` + leaveColumns + `
		FROM leaves
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaves(rows)
}

func (r *LeaveRepository) ListByUsername(ctx context.Context, username string) ([]types.Leave, error) {
	const query = `
		SELECT ` + leaveColumns + `
		FROM leaves
		WHERE username = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaves(rows)
}

func (r *LeaveRepository) Get(ctx context.Context, id int) (types.Leave, error) {
	const query = `
		SELECT ` + leaveColumns + `
		FROM leaves
		WHERE id = $1`
	var leave types.Leave
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&leave.ID,
		&leave.Username,
		&leave.DateCreated,
		&leave.From,
		&leave.To,
		&leave.Justification,
		&leave.Means,
		&leave.Status,
		&leave.AttachmentKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Leave{}, ErrNotFound
		}
		return types.Leave{}, err
	}
	return leave, nil
}

func (r *LeaveRepository) Create(ctx context.Context, leave types.Leave) (types.Leave, error) {
	leave.DateCreated = time.Now()

	const query = `
		INSERT INTO leaves (username, date_created, date_from, date_to, justification, means, status, attachment_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		leave.Username,
		leave.DateCreated,
		leave.From,
		leave.To,
		leave.Justification,
		leave.Means,
		leave.Status,
		leave.AttachmentKey,
	).Scan(&leave.ID); err != nil {
		return types.Leave{}, err
	}
	return leave, nil
}

func (r *LeaveRepository) UpdateStatus(ctx context.Context, id int, status types.Status) error {
	const query = `UPDATE leaves SET status = $1 WHERE id = $2`
	return r.execOne(ctx, query, status, id)
}

func (r *LeaveRepository) SetAttachmentKey(ctx context.Context, id int, key string) error {
	const query = `UPDATE leaves SET attachment_key = $1 WHERE id = $2`
	return r.execOne(ctx, query, key, id)
}

func (r *LeaveRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM leaves WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *LeaveRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLeaves(rows *sql.Rows) ([]types.Leave, error) {
	leaves := make([]types.Leave, 0)
	for rows.Next() {
		var leave types.Leave
		if err := rows.Scan(
			&leave.ID,
			&leave.Username,
			&leave.DateCreated,
			&leave.From,
			&leave.To,
			&leave.Justification,
			&leave.Means,
			&leave.Status,
			&leave.AttachmentKey,
		); err != nil {
			return nil, err
		}
		leaves = append(leaves, leave)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leaves, nil
}
