package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/unireg-api/internal/models"
)

// Guard failures surfaced by the conditional updates below. The service
// layer maps them to domain errors.
var (
	// ErrStatusGuard means the row's status changed between read and write.
	ErrStatusGuard = errors.New("registration status guard failed")
	// ErrSeatGuard means the seat increment found the course already full.
	ErrSeatGuard = errors.New("course seat guard failed")
	// ErrCreditGuard means the credit increment would exceed the ceiling.
	ErrCreditGuard = errors.New("student credit guard failed")
	// ErrUniqueRegistration means the (student, course, semester) row exists.
	ErrUniqueRegistration = errors.New("registration already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// RegistrationRepository owns the registration rows and every counter
// mutation they imply. Seat and credit deltas always travel in the same
// transaction as the status change.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, student_id, course_id, semester_id, status, priority, is_waitlisted, waitlist_position,
        approved_by, approval_date, rejected_by, rejection_reason,
        rejection_requested, rejection_requested_by, rejection_requested_at, rejection_request_note,
        attendance_total, attendance_attended, midterm_score, final_score, total_score,
        grade_letter, grade_points, is_passing, created_at, updated_at`

const registrationDetailColumns = `r.id, r.student_id, r.course_id, r.semester_id, r.status, r.priority, r.is_waitlisted, r.waitlist_position,
        r.approved_by, r.approval_date, r.rejected_by, r.rejection_reason,
        r.rejection_requested, r.rejection_requested_by, r.rejection_requested_at, r.rejection_request_note,
        r.attendance_total, r.attendance_attended, r.midterm_score, r.final_score, r.total_score,
        r.grade_letter, r.grade_points, r.is_passing, r.created_at, r.updated_at,
        c.class_code, c.subject_id, s.code AS subject_code, s.name AS subject_name, s.credits AS subject_credits,
        u.full_name AS student_name`

const registrationDetailBase = `FROM registrations r
LEFT JOIN courses c ON c.id = r.course_id
LEFT JOIN subjects s ON s.id = c.subject_id
LEFT JOIN users u ON u.id = r.student_id`

// List returns registrations with course and subject context.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("r.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("r.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "r.created_at",
		"status":       "r.status",
		"subject_code": "s.code",
		"student_name": "u.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", registrationDetailColumns, registrationDetailBase+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", registrationDetailBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// FindByID loads a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE id = $1", registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindDetailByID loads a registration with course and subject context.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE r.id = $1", registrationDetailColumns, registrationDetailBase)
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudentAndSemester returns the student's registrations for one
// semester with schedule slots attached. Input for the conflict detector.
func (r *RegistrationRepository) ListByStudentAndSemester(ctx context.Context, studentID, semesterID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE r.student_id = $1 AND r.semester_id = $2", registrationDetailColumns, registrationDetailBase)
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, studentID, semesterID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}

	if len(registrations) == 0 {
		return registrations, nil
	}
	courseIDs := make([]string, len(registrations))
	for i, reg := range registrations {
		courseIDs[i] = reg.CourseID
	}
	slotQuery, args, err := sqlx.In(`SELECT id, course_id, day_of_week, period, classroom_id FROM course_slots WHERE course_id IN (?)`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	slotQuery = r.db.Rebind(slotQuery)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, slotQuery, args...); err != nil {
		return nil, fmt.Errorf("list registration slots: %w", err)
	}
	byCourse := make(map[string][]models.ScheduleSlot)
	for _, slot := range slots {
		byCourse[slot.CourseID] = append(byCourse[slot.CourseID], slot)
	}
	for i := range registrations {
		registrations[i].Slots = byCourse[registrations[i].CourseID]
	}
	return registrations, nil
}

// Create inserts a pending registration. The unique index on
// (student_id, course_id, semester_id) backs the duplicate guard.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusPending
	}

	const query = `INSERT INTO registrations (id, student_id, course_id, semester_id, status, priority, is_waitlisted, waitlist_position, rejection_requested, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :semester_id, :status, :priority, :is_waitlisted, :waitlist_position, :rejection_requested, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueRegistration
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Approve flips a pending registration to approved and books the seat and
// credit deltas in one transaction. Each step is a conditional update; a
// guard matching zero rows aborts the whole unit.
func (r *RegistrationRepository) Approve(ctx context.Context, registrationID, courseID, studentID, approverID string, credits int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE registrations SET status = $2, approved_by = $3, approval_date = $4, updated_at = $4 WHERE id = $1 AND status = $5`,
		registrationID, models.RegistrationStatusApproved, approverID, now, models.RegistrationStatusPending)
	if err != nil {
		return fmt.Errorf("approve registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrStatusGuard
		return err
	}

	res, err = tx.ExecContext(ctx, `UPDATE courses SET current_students = current_students + 1, updated_at = $2 WHERE id = $1 AND current_students < max_students`, courseID, now)
	if err != nil {
		return fmt.Errorf("increment course seats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrSeatGuard
		return err
	}

	res, err = tx.ExecContext(ctx, `UPDATE users SET current_credits = current_credits + $2, updated_at = $3 WHERE id = $1 AND current_credits + $2 <= max_credits`, studentID, credits, now)
	if err != nil {
		return fmt.Errorf("increment student credits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrCreditGuard
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// Withdraw hard-deletes a pending or approved registration. An approved
// drop releases the seat and the credits in the same transaction.
func (r *RegistrationRepository) Withdraw(ctx context.Context, registrationID string, credits int) (*models.Registration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin withdraw tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var deleted models.Registration
	err = tx.GetContext(ctx, &deleted, `DELETE FROM registrations WHERE id = $1 AND status IN ($2, $3) RETURNING id, student_id, course_id, semester_id, status, priority, is_waitlisted, created_at, updated_at`,
		registrationID, models.RegistrationStatusPending, models.RegistrationStatusApproved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStatusGuard
		}
		return nil, err
	}

	if deleted.Status == models.RegistrationStatusApproved {
		if err = releaseSeatAndCredits(ctx, tx, deleted.CourseID, deleted.StudentID, credits); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdraw tx: %w", err)
	}
	return &deleted, nil
}

// Switch replaces one section with another of the same subject: the old
// row is deleted (releasing its seat and credits when approved) and the
// replacement starts over as pending. Counts are never double-booked.
func (r *RegistrationRepository) Switch(ctx context.Context, old *models.Registration, credits int, replacement *models.Registration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin switch tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1 AND status = $2`, old.ID, old.Status)
	if err != nil {
		return fmt.Errorf("delete old registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrStatusGuard
		return err
	}

	if old.Status == models.RegistrationStatusApproved {
		if err = releaseSeatAndCredits(ctx, tx, old.CourseID, old.StudentID, credits); err != nil {
			return err
		}
	}

	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	replacement.Status = models.RegistrationStatusPending
	replacement.CreatedAt = now
	replacement.UpdatedAt = now
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO registrations (id, student_id, course_id, semester_id, status, priority, is_waitlisted, waitlist_position, rejection_requested, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :semester_id, :status, :priority, :is_waitlisted, :waitlist_position, :rejection_requested, :created_at, :updated_at)`, replacement); err != nil {
		if isUniqueViolation(err) {
			err = ErrUniqueRegistration
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit switch tx: %w", err)
	}
	return nil
}

func releaseSeatAndCredits(ctx context.Context, tx *sqlx.Tx, courseID, studentID string, credits int) error {
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE courses SET current_students = GREATEST(current_students - 1, 0), updated_at = $2 WHERE id = $1`, courseID, now); err != nil {
		return fmt.Errorf("release course seat: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET current_credits = GREATEST(current_credits - $2, 0), updated_at = $3 WHERE id = $1`, studentID, credits, now); err != nil {
		return fmt.Errorf("release student credits: %w", err)
	}
	return nil
}

// StageRejection records a teacher's rejection request on a pending row.
func (r *RegistrationRepository) StageRejection(ctx context.Context, registrationID, requesterID, note string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE registrations SET rejection_requested = TRUE, rejection_requested_by = $2, rejection_requested_at = $3, rejection_request_note = $4, updated_at = $3 WHERE id = $1 AND status = $5`,
		registrationID, requesterID, now, note, models.RegistrationStatusPending)
	if err != nil {
		return fmt.Errorf("stage rejection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusGuard
	}
	return nil
}

// FinalizeRejection moves a pending registration to rejected.
func (r *RegistrationRepository) FinalizeRejection(ctx context.Context, registrationID, resolverID, reason string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE registrations SET status = $2, rejected_by = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1 AND status = $6`,
		registrationID, models.RegistrationStatusRejected, resolverID, reason, now, models.RegistrationStatusPending)
	if err != nil {
		return fmt.Errorf("finalize rejection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusGuard
	}
	return nil
}

// UpdateGrade persists grading fields and, when the final grade is set,
// flips an approved registration to completed.
func (r *RegistrationRepository) UpdateGrade(ctx context.Context, registration *models.Registration) error {
	registration.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET status = :status, attendance_total = :attendance_total, attendance_attended = :attendance_attended,
        midterm_score = :midterm_score, final_score = :final_score, total_score = :total_score,
        grade_letter = :grade_letter, grade_points = :grade_points, is_passing = :is_passing, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("update registration grade: %w", err)
	}
	return nil
}

// CountApprovedByCourse returns the approved-registration count, the
// value RecomputeSeats derives current_students from.
func (r *RegistrationRepository) CountApprovedByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registrations WHERE course_id = $1 AND status = $2`, courseID, models.RegistrationStatusApproved); err != nil {
		return 0, fmt.Errorf("count approved registrations: %w", err)
	}
	return count, nil
}
