package db

import "time"

// 受講状態。
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Enrollment は受講登録。
type Enrollment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CourseID       string    `json:"course_id"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
}

// CourseRosterRow はコース受講者一覧の1行。
type CourseRosterRow struct {
	UserID         string    `json:"user_id"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
}
