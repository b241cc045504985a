package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/export"
)

// TranscriptFormat selects the export encoding.
type TranscriptFormat string

const (
	TranscriptCSV TranscriptFormat = "csv"
	TranscriptPDF TranscriptFormat = "pdf"
)

// TranscriptDocument is a rendered transcript ready for download.
type TranscriptDocument struct {
	FileName    string
	ContentType string
	Body        []byte
}

type transcriptRegistrationReader interface {
	ListByStudentAndSemester(ctx context.Context, studentID, semesterID string) ([]models.RegistrationDetail, error)
}

// TranscriptService renders a student's semester transcript. Only
// completed registrations carry grades; approved ones appear as in
// progress.
type TranscriptService struct {
	registrations transcriptRegistrationReader
	students      registrationStudentReader
	semesters     semesterReader
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	logger        *zap.Logger
}

// NewTranscriptService constructs TranscriptService.
func NewTranscriptService(registrations transcriptRegistrationReader, students registrationStudentReader, semesters semesterReader, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{
		registrations: registrations,
		students:      students,
		semesters:     semesters,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		logger:        logger,
	}
}

// Export renders the student's transcript for one semester. Students may
// only export their own.
func (s *TranscriptService) Export(ctx context.Context, actor Actor, studentID, semesterID string, format TranscriptFormat) (*TranscriptDocument, error) {
	if actor.Role == models.RoleStudent && actor.ID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "transcript belongs to another student")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}
	registrations, err := s.registrations.ListByStudentAndSemester(ctx, studentID, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}

	headers := []string{"Subject Code", "Subject", "Class", "Credits", "Status", "Total", "Grade", "Points", "Passing"}
	rows := make([]map[string]string, 0, len(registrations))
	totalCredits := 0
	weightedPoints := 0.0
	gradedCredits := 0
	for _, reg := range registrations {
		if reg.Status == models.RegistrationStatusRejected || reg.Status == models.RegistrationStatusPending {
			continue
		}
		row := map[string]string{
			"Subject Code": reg.SubjectCode,
			"Subject":      reg.SubjectName,
			"Class":        reg.ClassCode,
			"Credits":      strconv.Itoa(reg.SubjectCredits),
			"Status":       string(reg.Status),
			"Total":        "",
			"Grade":        "",
			"Points":       "",
			"Passing":      "",
		}
		totalCredits += reg.SubjectCredits
		if reg.Status == models.RegistrationStatusCompleted && reg.GradeLetter != nil {
			if reg.TotalScore != nil {
				row["Total"] = strconv.FormatFloat(*reg.TotalScore, 'f', 2, 64)
			}
			row["Grade"] = *reg.GradeLetter
			if reg.GradePoints != nil {
				row["Points"] = strconv.FormatFloat(*reg.GradePoints, 'f', 1, 64)
				weightedPoints += *reg.GradePoints * float64(reg.SubjectCredits)
				gradedCredits += reg.SubjectCredits
			}
			if reg.IsPassing != nil {
				row["Passing"] = boolString(*reg.IsPassing)
			}
		}
		rows = append(rows, row)
	}

	if gradedCredits > 0 {
		gpa := weightedPoints / float64(gradedCredits)
		rows = append(rows, map[string]string{
			"Subject Code": "",
			"Subject":      "Semester GPA",
			"Class":        "",
			"Credits":      strconv.Itoa(totalCredits),
			"Status":       "",
			"Total":        "",
			"Grade":        "",
			"Points":       strconv.FormatFloat(gpa, 'f', 2, 64),
			"Passing":      "",
		})
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	switch format {
	case TranscriptCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return &TranscriptDocument{
			FileName:    fmt.Sprintf("transcript_%s_%s.csv", student.ID, semester.Code),
			ContentType: "text/csv",
			Body:        body,
		}, nil
	case TranscriptPDF:
		title := fmt.Sprintf("Transcript %s (%s)", student.FullName, semester.Name)
		body, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return &TranscriptDocument{
			FileName:    fmt.Sprintf("transcript_%s_%s.pdf", student.ID, semester.Code),
			ContentType: "application/pdf",
			Body:        body,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
