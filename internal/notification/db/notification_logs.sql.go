package db

import (
	"context"
	"time"
)

const createNotificationLog = `
INSERT INTO notification_logs (id, user_id, message, type, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'processing', ?, ?)
`

// CreateNotificationLogParams はCreateNotificationLogの引数。
type CreateNotificationLogParams struct {
	ID        string
	UserID    string
	Message   string
	Type      string
	CreatedAt time.Time
}

// CreateNotificationLog は処理中の配信記録を作成する。
func (q *Queries) CreateNotificationLog(ctx context.Context, arg CreateNotificationLogParams) error {
	_, err := q.db.ExecContext(ctx, createNotificationLog,
		arg.ID,
		arg.UserID,
		arg.Message,
		arg.Type,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getNotificationLog = `
SELECT id, user_id, message, type, status, recipient, failure_reason, created_at, updated_at
FROM notification_logs
WHERE id = ?
`

// GetNotificationLog はIDで配信記録を取得する。
func (q *Queries) GetNotificationLog(ctx context.Context, id string) (NotificationLog, error) {
	row := q.db.QueryRowContext(ctx, getNotificationLog, id)
	var i NotificationLog
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Message,
		&i.Type,
		&i.Status,
		&i.Recipient,
		&i.FailureReason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listNotificationLogsByUser = `
SELECT id, user_id, message, type, status, recipient, failure_reason, created_at, updated_at
FROM notification_logs
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`

// ListNotificationLogsByUserParams はListNotificationLogsByUserの引数。
type ListNotificationLogsByUserParams struct {
	UserID string
	Limit  int64
}

// ListNotificationLogsByUser はユーザーの配信記録を新しい順に最大Limit件取得する。
func (q *Queries) ListNotificationLogsByUser(ctx context.Context, arg ListNotificationLogsByUserParams) ([]NotificationLog, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationLogsByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []NotificationLog{}
	for rows.Next() {
		var i NotificationLog
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Message,
			&i.Type,
			&i.Status,
			&i.Recipient,
			&i.FailureReason,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const completeNotificationLog = `
UPDATE notification_logs
SET status = ?, recipient = ?, failure_reason = ?, updated_at = ?
WHERE id = ? AND status = 'processing'
`

// CompleteNotificationLogParams はCompleteNotificationLogの引数。
type CompleteNotificationLogParams struct {
	ID            string
	Status        string
	Recipient     string
	FailureReason string
	UpdatedAt     time.Time
}

// CompleteNotificationLog は処理中の配信記録を終了状態に更新し、更新した行数を返す。
// 既に終了状態の記録は更新されず0を返す。
func (q *Queries) CompleteNotificationLog(ctx context.Context, arg CompleteNotificationLogParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeNotificationLog,
		arg.Status,
		arg.Recipient,
		arg.FailureReason,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
