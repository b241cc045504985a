package service

import (
	"fmt"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

// checkRegistrationConflicts inspects the student's existing registrations
// for the semester against the requested course. Subject-level checks run
// before schedule checks so a same-section duplicate reports as a
// duplicate, not a slot collision.
//
// A non-nil SwitchCandidate with a nil error means the student holds a
// non-approved registration for the same subject in a different section
// and may switch instead of registering fresh.
func checkRegistrationConflicts(existing []models.RegistrationDetail, target *models.CourseDetail) (*models.SwitchCandidate, error) {
	for _, reg := range existing {
		if reg.Status == models.RegistrationStatusRejected {
			continue
		}
		if reg.SubjectID != target.SubjectID {
			continue
		}
		if reg.CourseID == target.ID {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
		}
		if reg.Status == models.RegistrationStatusApproved || reg.Status == models.RegistrationStatusCompleted {
			return nil, appErrors.Clone(appErrors.ErrSubjectAlreadyApproved, "")
		}
		return &models.SwitchCandidate{
			ExistingRegistrationID: reg.ID,
			ExistingCourseID:       reg.CourseID,
			SubjectCode:            reg.SubjectCode,
		}, nil
	}

	for _, reg := range existing {
		if reg.Status == models.RegistrationStatusRejected {
			continue
		}
		for _, held := range reg.Slots {
			for _, wanted := range target.Slots {
				if held.Overlaps(wanted) {
					return nil, appErrors.Clone(appErrors.ErrScheduleConflict, fmt.Sprintf("schedule conflict with %s", reg.SubjectCode))
				}
			}
		}
	}
	return nil, nil
}
