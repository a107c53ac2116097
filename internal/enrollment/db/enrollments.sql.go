package db

import (
	"context"
	"time"
)

const createEnrollment = `
INSERT INTO enrollments (id, user_id, course_id, enrollment_date, status)
VALUES (?, ?, ?, ?, ?)
`

// CreateEnrollmentParams はCreateEnrollmentの引数。
type CreateEnrollmentParams struct {
	ID             string
	UserID         string
	CourseID       string
	EnrollmentDate time.Time
	Status         string
}

// CreateEnrollment は受講登録を作成する。
func (q *Queries) CreateEnrollment(ctx context.Context, arg CreateEnrollmentParams) error {
	_, err := q.db.ExecContext(ctx, createEnrollment,
		arg.ID,
		arg.UserID,
		arg.CourseID,
		arg.EnrollmentDate,
		arg.Status,
	)
	return err
}

const getEnrollment = `
SELECT id, user_id, course_id, enrollment_date, status
FROM enrollments
WHERE id = ?
`

// GetEnrollment はIDで受講登録を取得する。
func (q *Queries) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, getEnrollment, id)
	var i Enrollment
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CourseID,
		&i.EnrollmentDate,
		&i.Status,
	)
	return i, err
}

const getActiveEnrollment = `
SELECT id, user_id, course_id, enrollment_date, status
FROM enrollments
WHERE user_id = ? AND course_id = ? AND status = 'active'
`

// GetActiveEnrollmentParams はGetActiveEnrollmentの引数。
type GetActiveEnrollmentParams struct {
	UserID   string
	CourseID string
}

// GetActiveEnrollment は受講中の登録を取得する。
func (q *Queries) GetActiveEnrollment(ctx context.Context, arg GetActiveEnrollmentParams) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, getActiveEnrollment, arg.UserID, arg.CourseID)
	var i Enrollment
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CourseID,
		&i.EnrollmentDate,
		&i.Status,
	)
	return i, err
}

const listEnrollmentsByUser = `
SELECT id, user_id, course_id, enrollment_date, status
FROM enrollments
WHERE user_id = ?
ORDER BY enrollment_date DESC, id
`

// ListEnrollmentsByUser はユーザーの受講登録を新しい順に取得する。
func (q *Queries) ListEnrollmentsByUser(ctx context.Context, userID string) ([]Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, listEnrollmentsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Enrollment{}
	for rows.Next() {
		var i Enrollment
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.CourseID,
			&i.EnrollmentDate,
			&i.Status,
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

const listCourseRoster = `
SELECT user_id, enrollment_date, status
FROM enrollments
WHERE course_id = ?
ORDER BY enrollment_date, user_id
`

// ListCourseRoster はコースの受講者一覧を登録順に取得する。
func (q *Queries) ListCourseRoster(ctx context.Context, courseID string) ([]CourseRosterRow, error) {
	rows, err := q.db.QueryContext(ctx, listCourseRoster, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CourseRosterRow{}
	for rows.Next() {
		var i CourseRosterRow
		if err := rows.Scan(&i.UserID, &i.EnrollmentDate, &i.Status); err != nil {
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

const countEnrollments = `
SELECT COUNT(*) FROM enrollments
`

// CountEnrollments は受講登録の総数を返す。
func (q *Queries) CountEnrollments(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEnrollments)
	var count int64
	err := row.Scan(&count)
	return count, err
}
