package service

import (
	"time"

	"github.com/noah-isme/unireg-api/internal/models"
)

// Window predicates for the semester calendar. All comparisons are
// inclusive of the boundary instants.

func registrationOpen(sem *models.Semester, at time.Time) bool {
	return !at.Before(sem.RegistrationStartDate) && !at.After(sem.RegistrationEndDate)
}

func withdrawalAllowed(sem *models.Semester, at time.Time) bool {
	return sem.IsActive && !at.After(sem.WithdrawalDeadline)
}

func semesterInSession(sem *models.Semester, at time.Time) bool {
	return sem.IsActive && !at.Before(sem.StartDate) && !at.After(sem.EndDate)
}
