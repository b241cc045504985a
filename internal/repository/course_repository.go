package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

// CourseRepository handles persistence for course sections and their
// weekly schedule slots.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseDetailColumns = `c.id, c.subject_id, c.semester_id, c.teacher_id, c.class_code, c.max_students, c.current_students, c.attendance_weight, c.midterm_weight, c.final_weight, c.is_active, c.created_at, c.updated_at,
        s.code AS subject_code, s.name AS subject_name, s.credits AS subject_credits, u.full_name AS teacher_name`

// List returns course sections with subject context.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN subjects s ON s.id = c.subject_id
LEFT JOIN users u ON u.id = c.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("c.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("c.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.name ILIKE $%d OR s.code ILIKE $%d OR c.class_code ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"class_code":   "c.class_code",
		"subject_code": "s.code",
		"created_at":   "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseDetailColumns, base+clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	if err := r.attachSlots(ctx, courses); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// FindByID loads a bare course row.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, subject_id, semester_id, teacher_id, class_code, max_students, current_students, attendance_weight, midterm_weight, final_weight, is_active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID loads a course with subject context and schedule slots.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c
LEFT JOIN subjects s ON s.id = c.subject_id
LEFT JOIN users u ON u.id = c.teacher_id
WHERE c.id = $1`, courseDetailColumns)
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	slots, err := r.ListSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Slots = slots
	return &detail, nil
}

// ListSlots returns the weekly schedule slots of a course.
func (r *CourseRepository) ListSlots(ctx context.Context, courseID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT id, course_id, day_of_week, period, classroom_id FROM course_slots WHERE course_id = $1 ORDER BY day_of_week, period`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, courseID); err != nil {
		return nil, fmt.Errorf("list course slots: %w", err)
	}
	return slots, nil
}

func (r *CourseRepository) attachSlots(ctx context.Context, courses []models.CourseDetail) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	query, args, err := sqlx.In(`SELECT id, course_id, day_of_week, period, classroom_id FROM course_slots WHERE course_id IN (?) ORDER BY day_of_week, period`, ids)
	if err != nil {
		return fmt.Errorf("build slot query: %w", err)
	}
	query = r.db.Rebind(query)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return fmt.Errorf("list course slots: %w", err)
	}
	byCourse := make(map[string][]models.ScheduleSlot, len(courses))
	for _, slot := range slots {
		byCourse[slot.CourseID] = append(byCourse[slot.CourseID], slot)
	}
	for i := range courses {
		courses[i].Slots = byCourse[courses[i].ID]
	}
	return nil
}

// ExistsByClassCode checks class code uniqueness within (subject, semester).
func (r *CourseRepository) ExistsByClassCode(ctx context.Context, subjectID, semesterID, classCode, excludeID string) (bool, error) {
	base := "SELECT 1 FROM courses WHERE subject_id = $1 AND semester_id = $2 AND class_code = $3"
	args := []interface{}{subjectID, semesterID, classCode}
	if excludeID != "" {
		base += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class code: %w", err)
	}
	return true, nil
}

// Create inserts a course with its schedule slots in one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, slots []models.ScheduleSlot) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO courses (id, subject_id, semester_id, teacher_id, class_code, max_students, current_students, attendance_weight, midterm_weight, final_weight, is_active, created_at, updated_at)
        VALUES (:id, :subject_id, :semester_id, :teacher_id, :class_code, :max_students, :current_students, :attendance_weight, :midterm_weight, :final_weight, :is_active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	if err = insertSlots(ctx, tx, course.ID, slots); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create course tx: %w", err)
	}
	return nil
}

// Update modifies a course and replaces its schedule slots.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, slots []models.ScheduleSlot) error {
	course.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE courses SET teacher_id = :teacher_id, class_code = :class_code, max_students = :max_students, attendance_weight = :attendance_weight, midterm_weight = :midterm_weight, final_weight = :final_weight, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}

	if slots != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM course_slots WHERE course_id = $1`, course.ID); err != nil {
			return fmt.Errorf("clear course slots: %w", err)
		}
		if err = insertSlots(ctx, tx, course.ID, slots); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update course tx: %w", err)
	}
	return nil
}

func insertSlots(ctx context.Context, tx *sqlx.Tx, courseID string, slots []models.ScheduleSlot) error {
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		slots[i].CourseID = courseID
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO course_slots (id, course_id, day_of_week, period, classroom_id) VALUES (:id, :course_id, :day_of_week, :period, :classroom_id)`, slots[i]); err != nil {
			return fmt.Errorf("insert course slot: %w", err)
		}
	}
	return nil
}

// RecomputeSeats resets current_students to the count of approved
// registrations. The authoritative value if counters ever drift.
func (r *CourseRepository) RecomputeSeats(ctx context.Context, courseID string) error {
	const query = `UPDATE courses SET current_students = (
        SELECT COUNT(*) FROM registrations WHERE course_id = $1 AND status = 'APPROVED'
    ), updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recompute course seats: %w", err)
	}
	return nil
}

// DeleteCascade removes a course after compensating every approved
// registration: each affected student's credits shrink by the subject's
// credit value before the rows go away. One transaction, no partial state.
func (r *CourseRepository) DeleteCascade(ctx context.Context, courseID string, subjectCredits int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var studentIDs []string
	if err = tx.SelectContext(ctx, &studentIDs, `SELECT student_id FROM registrations WHERE course_id = $1 AND status = 'APPROVED'`, courseID); err != nil {
		return 0, fmt.Errorf("load approved registrations: %w", err)
	}

	now := time.Now().UTC()
	for _, studentID := range studentIDs {
		if _, err = tx.ExecContext(ctx, `UPDATE users SET current_credits = GREATEST(current_credits - $2, 0), updated_at = $3 WHERE id = $1`, studentID, subjectCredits, now); err != nil {
			return 0, fmt.Errorf("release student credits: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM registrations WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("delete course registrations: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM course_slots WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("delete course slots: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("delete course: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete course tx: %w", err)
	}
	return len(studentIDs), nil
}
