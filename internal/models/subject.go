package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject represents an academic subject worth a fixed number of credits.
type Subject struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	Name            string         `db:"name" json:"name"`
	Credits         int            `db:"credits" json:"credits"`
	EligibleSchools pq.StringArray `db:"eligible_schools" json:"eligible_schools"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// EligibleFor reports whether students of the given school may take the subject.
// An empty set means the subject is open to all schools.
func (s *Subject) EligibleFor(schoolID string) bool {
	if len(s.EligibleSchools) == 0 {
		return true
	}
	for _, id := range s.EligibleSchools {
		if id == schoolID {
			return true
		}
	}
	return false
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	SchoolID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
