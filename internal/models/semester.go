package models

import "time"

// Semester models a registration and teaching period. At most one semester
// is current system-wide; activation clears the flag on every other row.
type Semester struct {
	ID                    string    `db:"id" json:"id"`
	Code                  string    `db:"code" json:"code"`
	Name                  string    `db:"name" json:"name"`
	StartDate             time.Time `db:"start_date" json:"start_date"`
	EndDate               time.Time `db:"end_date" json:"end_date"`
	RegistrationStartDate time.Time `db:"registration_start_date" json:"registration_start_date"`
	RegistrationEndDate   time.Time `db:"registration_end_date" json:"registration_end_date"`
	WithdrawalDeadline    time.Time `db:"withdrawal_deadline" json:"withdrawal_deadline"`
	MinCredits            int       `db:"min_credits" json:"min_credits"`
	MaxCredits            int       `db:"max_credits" json:"max_credits"`
	IsCurrent             bool      `db:"is_current" json:"is_current"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	IsCurrent *bool
	IsActive  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
