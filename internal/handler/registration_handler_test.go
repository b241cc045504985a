package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/middleware"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type registrationServiceMock struct {
	listResp  []models.RegistrationDetail
	detail    *models.RegistrationDetail
	candidate *models.SwitchCandidate
	err       error

	lastActor  service.Actor
	lastFilter models.RegistrationFilter
	withdrawn  bool
}

func (m *registrationServiceMock) List(ctx context.Context, actor service.Actor, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	m.lastActor = actor
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, m.err
}

func (m *registrationServiceMock) Get(ctx context.Context, actor service.Actor, id string) (*models.RegistrationDetail, error) {
	m.lastActor = actor
	return m.detail, m.err
}

func (m *registrationServiceMock) Create(ctx context.Context, studentID string, req service.CreateRegistrationRequest) (*models.RegistrationDetail, *models.SwitchCandidate, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.candidate != nil {
		return nil, m.candidate, nil
	}
	return m.detail, nil, nil
}

func (m *registrationServiceMock) Approve(ctx context.Context, actor service.Actor, id string) (*models.RegistrationDetail, error) {
	m.lastActor = actor
	return m.detail, m.err
}

func (m *registrationServiceMock) Reject(ctx context.Context, actor service.Actor, id string, req service.RejectRegistrationRequest) (*models.RegistrationDetail, error) {
	return m.detail, m.err
}

func (m *registrationServiceMock) Withdraw(ctx context.Context, actor service.Actor, id string) error {
	m.withdrawn = m.err == nil
	return m.err
}

func (m *registrationServiceMock) Switch(ctx context.Context, actor service.Actor, id string, req service.SwitchRegistrationRequest) (*models.RegistrationDetail, error) {
	return m.detail, m.err
}

func (m *registrationServiceMock) Grade(ctx context.Context, actor service.Actor, id string, req service.GradeRegistrationRequest) (*models.RegistrationDetail, error) {
	return m.detail, m.err
}

func registrationTestContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestRegistrationHandlerListScopesActor(t *testing.T) {
	mockSvc := &registrationServiceMock{listResp: []models.RegistrationDetail{}}
	handler := NewRegistrationHandler(mockSvc, nil)

	c, w := registrationTestContext(t, http.MethodGet, "/registrations?semesterId=sem1&status=pending", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastActor.ID)
	assert.Equal(t, "sem1", mockSvc.lastFilter.SemesterID)
	assert.Equal(t, models.RegistrationStatusPending, mockSvc.lastFilter.Status)
}

func TestRegistrationHandlerCreate(t *testing.T) {
	mockSvc := &registrationServiceMock{
		detail: &models.RegistrationDetail{Registration: models.Registration{ID: "r1", Status: models.RegistrationStatusPending}},
	}
	handler := NewRegistrationHandler(mockSvc, nil)

	payload, _ := json.Marshal(service.CreateRegistrationRequest{CourseID: "c1"})
	c, w := registrationTestContext(t, http.MethodPost, "/registrations", payload, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRegistrationHandlerCreateSwitchCandidate(t *testing.T) {
	mockSvc := &registrationServiceMock{
		candidate: &models.SwitchCandidate{ExistingRegistrationID: "r1", ExistingCourseID: "c1", SubjectCode: "MATH101"},
	}
	handler := NewRegistrationHandler(mockSvc, nil)

	payload, _ := json.Marshal(service.CreateRegistrationRequest{CourseID: "c2"})
	c, w := registrationTestContext(t, http.MethodPost, "/registrations", payload, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "existing_registration_id")
	assert.Contains(t, w.Body.String(), "switch")
}

func TestRegistrationHandlerCreateInvalidBody(t *testing.T) {
	handler := NewRegistrationHandler(&registrationServiceMock{}, nil)

	c, w := registrationTestContext(t, http.MethodPost, "/registrations", []byte(`{"course_id":`), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerCreateCourseFull(t *testing.T) {
	mockSvc := &registrationServiceMock{err: appErrors.ErrCourseFull}
	handler := NewRegistrationHandler(mockSvc, nil)

	payload, _ := json.Marshal(service.CreateRegistrationRequest{CourseID: "c1"})
	c, w := registrationTestContext(t, http.MethodPost, "/registrations", payload, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrCourseFull.Code)
}

func TestRegistrationHandlerApprove(t *testing.T) {
	mockSvc := &registrationServiceMock{
		detail: &models.RegistrationDetail{Registration: models.Registration{ID: "r1", Status: models.RegistrationStatusApproved}},
	}
	handler := NewRegistrationHandler(mockSvc, nil)

	c, w := registrationTestContext(t, http.MethodPut, "/registrations/r1/approve", nil, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", mockSvc.lastActor.ID)
}

func TestRegistrationHandlerWithdraw(t *testing.T) {
	mockSvc := &registrationServiceMock{}
	handler := NewRegistrationHandler(mockSvc, nil)

	c, w := registrationTestContext(t, http.MethodDelete, "/registrations/r1", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Withdraw(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.withdrawn)
}

func TestRegistrationHandlerWithdrawClosed(t *testing.T) {
	mockSvc := &registrationServiceMock{err: appErrors.ErrWithdrawalClosed}
	handler := NewRegistrationHandler(mockSvc, nil)

	c, w := registrationTestContext(t, http.MethodDelete, "/registrations/r1", nil, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Withdraw(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
