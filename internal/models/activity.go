package models

import "time"

// Activity actions recorded by the audit trail. Withdrawals are hard
// deletes, so the log is the only durable trace of a dropped registration.
const (
	ActivityLogin               = "LOGIN"
	ActivityLogout              = "LOGOUT"
	ActivityRegistrationCreate  = "REGISTRATION_CREATE"
	ActivityRegistrationApprove = "REGISTRATION_APPROVE"
	ActivityRegistrationReject  = "REGISTRATION_REJECT"
	ActivityRegistrationDrop    = "REGISTRATION_WITHDRAW"
	ActivityRegistrationSwitch  = "REGISTRATION_SWITCH"
	ActivityRegistrationGrade   = "REGISTRATION_GRADE"
	ActivitySemesterActivate    = "SEMESTER_ACTIVATE"
	ActivityCourseDelete        = "COURSE_DELETE"
	ActivityChangeRequestCreate = "CHANGE_REQUEST_CREATE"
	ActivityChangeRequestClose  = "CHANGE_REQUEST_RESOLVE"
)

// ActivityLog represents an immutable audit trail record.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ActivityLogFilter captures filters for listing activity logs.
type ActivityLogFilter struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Page       int
	PageSize   int
}
