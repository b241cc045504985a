package models

import "time"

// RegistrationStatus represents the lifecycle of a registration.
type RegistrationStatus string

// Registration statuses. Rejected and completed are terminal; withdrawal
// deletes the row outright so it never appears as a stored status.
const (
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCompleted RegistrationStatus = "COMPLETED"
)

// CanTransitionTo reports whether the state machine allows moving from the
// receiver status to the target status.
func (s RegistrationStatus) CanTransitionTo(target RegistrationStatus) bool {
	switch s {
	case RegistrationStatusPending:
		return target == RegistrationStatusApproved || target == RegistrationStatusRejected
	case RegistrationStatusApproved:
		return target == RegistrationStatusCompleted
	default:
		return false
	}
}

// Registration links one student to one course section within a semester.
// At most one row exists per (student, course, semester).
type Registration struct {
	ID         string             `db:"id" json:"id"`
	StudentID  string             `db:"student_id" json:"student_id"`
	CourseID   string             `db:"course_id" json:"course_id"`
	SemesterID string             `db:"semester_id" json:"semester_id"`
	Status     RegistrationStatus `db:"status" json:"status"`

	Priority         int  `db:"priority" json:"priority"`
	IsWaitlisted     bool `db:"is_waitlisted" json:"is_waitlisted"`
	WaitlistPosition *int `db:"waitlist_position" json:"waitlist_position,omitempty"`

	ApprovedBy   *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalDate *time.Time `db:"approval_date" json:"approval_date,omitempty"`

	RejectedBy      *string `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectionReason *string `db:"rejection_reason" json:"rejection_reason,omitempty"`

	// A teacher cannot reject unilaterally; the request is staged here
	// until an admin finalizes it.
	RejectionRequested   bool       `db:"rejection_requested" json:"rejection_requested"`
	RejectionRequestedBy *string    `db:"rejection_requested_by" json:"rejection_requested_by,omitempty"`
	RejectionRequestedAt *time.Time `db:"rejection_requested_at" json:"rejection_requested_at,omitempty"`
	RejectionRequestNote *string    `db:"rejection_request_note" json:"rejection_request_note,omitempty"`

	AttendanceTotal    *int     `db:"attendance_total" json:"attendance_total,omitempty"`
	AttendanceAttended *int     `db:"attendance_attended" json:"attendance_attended,omitempty"`
	MidtermScore       *float64 `db:"midterm_score" json:"midterm_score,omitempty"`
	FinalScore         *float64 `db:"final_score" json:"final_score,omitempty"`
	TotalScore         *float64 `db:"total_score" json:"total_score,omitempty"`
	GradeLetter        *string  `db:"grade_letter" json:"grade_letter,omitempty"`
	GradePoints        *float64 `db:"grade_points" json:"grade_points,omitempty"`
	IsPassing          *bool    `db:"is_passing" json:"is_passing,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail enriches a registration with its course, subject and
// schedule context. Slot data feeds the conflict detector.
type RegistrationDetail struct {
	Registration
	ClassCode      string         `db:"class_code" json:"class_code"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	SubjectCode    string         `db:"subject_code" json:"subject_code"`
	SubjectName    string         `db:"subject_name" json:"subject_name"`
	SubjectCredits int            `db:"subject_credits" json:"subject_credits"`
	StudentName    string         `db:"student_name" json:"student_name"`
	Slots          []ScheduleSlot `db:"-" json:"slots,omitempty"`
}

// SwitchCandidate signals that the student already holds a non-approved
// registration for the same subject in another section. It is an
// alternative-action offer, not an error.
type SwitchCandidate struct {
	ExistingRegistrationID string `json:"existing_registration_id"`
	ExistingCourseID       string `json:"existing_course_id"`
	SubjectCode            string `json:"subject_code"`
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	StudentID  string
	CourseID   string
	SemesterID string
	Status     RegistrationStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
