package models

import "time"

// ChangeRequestStatus represents the lifecycle of a school-move request.
type ChangeRequestStatus string

const (
	ChangeRequestStatusPending  ChangeRequestStatus = "PENDING"
	ChangeRequestStatusApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestStatusRejected ChangeRequestStatus = "REJECTED"
)

// ChangeRequest is a student's pending request to move between schools.
// Approval also mutates the student's school reference.
type ChangeRequest struct {
	ID             string              `db:"id" json:"id"`
	StudentID      string              `db:"student_id" json:"student_id"`
	FromSchoolID   *string             `db:"from_school_id" json:"from_school_id,omitempty"`
	ToSchoolID     string              `db:"to_school_id" json:"to_school_id"`
	Reason         string              `db:"reason" json:"reason"`
	Status         ChangeRequestStatus `db:"status" json:"status"`
	ResolvedBy     *string             `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time          `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNote *string             `db:"resolution_note" json:"resolution_note,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// ChangeRequestFilter captures filters for listing change requests.
type ChangeRequestFilter struct {
	StudentID string
	Status    ChangeRequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
