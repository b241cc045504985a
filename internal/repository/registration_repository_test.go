package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reg := &models.Registration{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"}
	err := repo.Create(context.Background(), reg)
	require.NoError(t, err)
	require.NotEmpty(t, reg.ID)
	require.Equal(t, models.RegistrationStatusPending, reg.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("INSERT INTO registrations").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Registration{StudentID: "s1", CourseID: "c1", SemesterID: "sem1"})
	require.ErrorIs(t, err, ErrUniqueRegistration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, approved_by = $3, approval_date = $4, updated_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("r1", models.RegistrationStatusApproved, "admin", sqlmock.AnyArg(), models.RegistrationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students + 1, updated_at = $2 WHERE id = $1 AND current_students < max_students")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET current_credits = current_credits + $2, updated_at = $3 WHERE id = $1 AND current_credits + $2 <= max_credits")).
		WithArgs("s1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Approve(context.Background(), "r1", "c1", "s1", "admin", 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApproveStatusGuard(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), "r1", "c1", "s1", "admin", 3)
	require.ErrorIs(t, err, ErrStatusGuard)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApproveSeatGuard(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), "r1", "c1", "s1", "admin", 3)
	require.ErrorIs(t, err, ErrSeatGuard)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApproveCreditGuard(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET current_credits = current_credits + $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), "r1", "c1", "s1", "admin", 3)
	require.ErrorIs(t, err, ErrCreditGuard)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryWithdrawApproved(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "semester_id", "status", "priority", "is_waitlisted", "created_at", "updated_at"}).
		AddRow("r1", "s1", "c1", "sem1", models.RegistrationStatusApproved, 0, false, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1 AND status IN ($2, $3) RETURNING")).
		WithArgs("r1", models.RegistrationStatusPending, models.RegistrationStatusApproved).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = GREATEST(current_students - 1, 0)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET current_credits = GREATEST(current_credits - $2, 0)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.Withdraw(context.Background(), "r1", 3)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationStatusApproved, deleted.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryWithdrawPendingSkipsRelease(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "semester_id", "status", "priority", "is_waitlisted", "created_at", "updated_at"}).
		AddRow("r1", "s1", "c1", "sem1", models.RegistrationStatusPending, 0, false, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WillReturnRows(rows)
	mock.ExpectCommit()

	deleted, err := repo.Withdraw(context.Background(), "r1", 3)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationStatusPending, deleted.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryWithdrawGuard(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Withdraw(context.Background(), "r1", 3)
	require.ErrorIs(t, err, ErrStatusGuard)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryStageRejectionGuard(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET rejection_requested = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.StageRejection(context.Background(), "r1", "t1", "full class")
	require.ErrorIs(t, err, ErrStatusGuard)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFinalizeRejection(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, rejected_by = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1 AND status = $6")).
		WithArgs("r1", models.RegistrationStatusRejected, "admin", "full class", sqlmock.AnyArg(), models.RegistrationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.FinalizeRejection(context.Background(), "r1", "admin", "full class")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCountApprovedByCourse(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE course_id = $1 AND status = $2")).
		WithArgs("c1", models.RegistrationStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountApprovedByCourse(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, 12, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
