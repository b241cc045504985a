package models

import "time"

// ScheduleSlot is one weekly meeting of a course section.
// DayOfWeek uses the 2..8 convention (2 = Monday .. 8 = Sunday),
// Period is the teaching block within the day (1..4).
type ScheduleSlot struct {
	ID          string `db:"id" json:"id"`
	CourseID    string `db:"course_id" json:"course_id"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	Period      int    `db:"period" json:"period"`
	ClassroomID string `db:"classroom_id" json:"classroom_id"`
}

// Overlaps reports whether two slots occupy the same weekly position.
func (s ScheduleSlot) Overlaps(other ScheduleSlot) bool {
	return s.DayOfWeek == other.DayOfWeek && s.Period == other.Period
}

// Course is one scheduled section of a subject within a semester.
// CurrentStudents is derived from approved registrations and only the
// registration state machine mutates it.
type Course struct {
	ID               string    `db:"id" json:"id"`
	SubjectID        string    `db:"subject_id" json:"subject_id"`
	SemesterID       string    `db:"semester_id" json:"semester_id"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	ClassCode        string    `db:"class_code" json:"class_code"`
	MaxStudents      int       `db:"max_students" json:"max_students"`
	CurrentStudents  int       `db:"current_students" json:"current_students"`
	AttendanceWeight int       `db:"attendance_weight" json:"attendance_weight"`
	MidtermWeight    int       `db:"midterm_weight" json:"midterm_weight"`
	FinalWeight      int       `db:"final_weight" json:"final_weight"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with subject info and schedule slots.
type CourseDetail struct {
	Course
	SubjectCode    string         `db:"subject_code" json:"subject_code"`
	SubjectName    string         `db:"subject_name" json:"subject_name"`
	SubjectCredits int            `db:"subject_credits" json:"subject_credits"`
	TeacherName    string         `db:"teacher_name" json:"teacher_name"`
	Slots          []ScheduleSlot `db:"-" json:"slots"`
}

// CourseFilter captures filters for listing courses.
type CourseFilter struct {
	SubjectID  string
	SemesterID string
	TeacherID  string
	IsActive   *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
