package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockSemesterRepo struct {
	semesters map[string]*models.Semester
	current   *models.Semester
	codes     map[string]bool
	courses   map[string]int

	created   *models.Semester
	activated string
	deleted   []string
}

func (m *mockSemesterRepo) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	var out []models.Semester
	for _, s := range m.semesters {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSemesterRepo) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) FindCurrent(ctx context.Context) (*models.Semester, error) {
	if m.current == nil {
		return nil, sql.ErrNoRows
	}
	return m.current, nil
}

func (m *mockSemesterRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codes[code], nil
}

func (m *mockSemesterRepo) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = "new-sem"
	}
	if m.semesters == nil {
		m.semesters = make(map[string]*models.Semester)
	}
	m.semesters[semester.ID] = semester
	m.created = semester
	return nil
}

func (m *mockSemesterRepo) Update(ctx context.Context, semester *models.Semester) error {
	m.semesters[semester.ID] = semester
	return nil
}

func (m *mockSemesterRepo) SetCurrent(ctx context.Context, id string) error {
	s, ok := m.semesters[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.current != nil {
		m.current.IsCurrent = false
	}
	s.IsCurrent = true
	m.current = s
	m.activated = id
	return nil
}

func (m *mockSemesterRepo) Delete(ctx context.Context, id string) error {
	delete(m.semesters, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSemesterRepo) CountCourses(ctx context.Context, id string) (int, error) {
	return m.courses[id], nil
}

type mockSemesterCache struct {
	cached      *models.Semester
	sets        int
	invalidated int
}

func (m *mockSemesterCache) GetCurrentSemester(ctx context.Context) (*models.Semester, bool) {
	if m.cached == nil {
		return nil, false
	}
	return m.cached, true
}

func (m *mockSemesterCache) SetCurrentSemester(ctx context.Context, semester *models.Semester) {
	m.cached = semester
	m.sets++
}

func (m *mockSemesterCache) InvalidateCurrentSemester(ctx context.Context) {
	m.cached = nil
	m.invalidated++
}

func validSemesterRequest() SemesterRequest {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return SemesterRequest{
		Code:                  "2026-2",
		Name:                  "Fall 2026",
		StartDate:             start,
		EndDate:               start.AddDate(0, 4, 0),
		RegistrationStartDate: start.AddDate(0, 0, -21),
		RegistrationEndDate:   start.AddDate(0, 0, 7),
		WithdrawalDeadline:    start.AddDate(0, 1, 0),
		MinCredits:            12,
		MaxCredits:            24,
	}
}

func TestSemesterServiceCreate(t *testing.T) {
	repo := &mockSemesterRepo{codes: map[string]bool{}}
	svc := NewSemesterService(repo, nil, nil, validator.New(), zap.NewNop())

	semester, err := svc.Create(context.Background(), validSemesterRequest())
	require.NoError(t, err)
	assert.Equal(t, "2026-2", semester.Code)
	assert.False(t, semester.IsCurrent)
	require.NotNil(t, repo.created)
}

func TestSemesterServiceCreateDateInvariants(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *SemesterRequest)
	}{
		{"start after end", func(r *SemesterRequest) { r.StartDate = r.EndDate.AddDate(0, 1, 0) }},
		{"registration window inverted", func(r *SemesterRequest) { r.RegistrationStartDate = r.RegistrationEndDate.AddDate(0, 0, 1) }},
		{"withdrawal past end", func(r *SemesterRequest) { r.WithdrawalDeadline = r.EndDate.AddDate(0, 0, 1) }},
		{"min credits above max", func(r *SemesterRequest) { r.MinCredits = 30 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockSemesterRepo{codes: map[string]bool{}}
			svc := NewSemesterService(repo, nil, nil, validator.New(), zap.NewNop())

			req := validSemesterRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestSemesterServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockSemesterRepo{codes: map[string]bool{"2026-2": true}}
	svc := NewSemesterService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validSemesterRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSemesterServiceActivate(t *testing.T) {
	old := &models.Semester{ID: "sem1", IsCurrent: true}
	next := &models.Semester{ID: "sem2"}
	repo := &mockSemesterRepo{semesters: map[string]*models.Semester{"sem1": old, "sem2": next}, current: old}
	cache := &mockSemesterCache{cached: old}
	recorder := &mockRecorder{}
	svc := NewSemesterService(repo, cache, recorder, validator.New(), zap.NewNop())

	semester, err := svc.Activate(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, "sem2")
	require.NoError(t, err)
	assert.True(t, semester.IsCurrent)
	assert.False(t, old.IsCurrent)
	assert.Equal(t, "sem2", repo.activated)
	assert.Equal(t, 1, cache.invalidated)
	assert.Contains(t, recorder.actions, models.ActivitySemesterActivate)
}

func TestSemesterServiceActivateMissing(t *testing.T) {
	repo := &mockSemesterRepo{semesters: map[string]*models.Semester{}}
	svc := NewSemesterService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.Activate(context.Background(), Actor{ID: "admin", Role: models.RoleAdmin}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSemesterServiceGetCurrentReadsThroughCache(t *testing.T) {
	stored := &models.Semester{ID: "sem1", IsCurrent: true}
	repo := &mockSemesterRepo{semesters: map[string]*models.Semester{"sem1": stored}, current: stored}
	cache := &mockSemesterCache{}
	svc := NewSemesterService(repo, cache, nil, validator.New(), zap.NewNop())

	first, err := svc.GetCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sem1", first.ID)
	assert.Equal(t, 1, cache.sets)

	repo.current = nil
	second, err := svc.GetCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sem1", second.ID)
}

func TestSemesterServiceDeleteWithCourses(t *testing.T) {
	repo := &mockSemesterRepo{
		semesters: map[string]*models.Semester{"sem1": {ID: "sem1"}},
		courses:   map[string]int{"sem1": 4},
	}
	svc := NewSemesterService(repo, nil, nil, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "sem1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}
