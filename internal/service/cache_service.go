package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

const (
	cacheKeyCurrentSemester = "unireg:semester:current"
	cacheKeyCoursePrefix    = "unireg:course:detail:"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a read-through cache over catalog payloads that rarely
// change: the current semester and course details. Cache failures degrade
// to database reads and are only logged.
type CacheService struct {
	store       cacheStore
	semesterTTL time.Duration
	courseTTL   time.Duration
	logger      *zap.Logger
}

// NewCacheService constructs the cache service. A nil store disables
// caching entirely.
func NewCacheService(store cacheStore, semesterTTL, courseTTL time.Duration, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if semesterTTL <= 0 {
		semesterTTL = 5 * time.Minute
	}
	if courseTTL <= 0 {
		courseTTL = time.Minute
	}
	return &CacheService{store: store, semesterTTL: semesterTTL, courseTTL: courseTTL, logger: logger}
}

// GetCurrentSemester returns the cached current semester, or false when
// the cache has no usable entry.
func (s *CacheService) GetCurrentSemester(ctx context.Context) (*models.Semester, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	var semester models.Semester
	if err := s.store.Get(ctx, cacheKeyCurrentSemester, &semester); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("semester cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return &semester, true
}

// SetCurrentSemester caches the current semester.
func (s *CacheService) SetCurrentSemester(ctx context.Context, semester *models.Semester) {
	if s == nil || s.store == nil || semester == nil {
		return
	}
	if err := s.store.Set(ctx, cacheKeyCurrentSemester, semester, s.semesterTTL); err != nil {
		s.logger.Warn("semester cache write failed", zap.Error(err))
	}
}

// InvalidateCurrentSemester drops the current-semester entry.
func (s *CacheService) InvalidateCurrentSemester(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, cacheKeyCurrentSemester); err != nil {
		s.logger.Warn("semester cache invalidation failed", zap.Error(err))
	}
}

// GetCourseDetail returns the cached course detail, or false on miss.
func (s *CacheService) GetCourseDetail(ctx context.Context, courseID string) (*models.CourseDetail, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	var detail models.CourseDetail
	if err := s.store.Get(ctx, cacheKeyCoursePrefix+courseID, &detail); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("course cache read failed", zap.String("course_id", courseID), zap.Error(err))
		}
		return nil, false
	}
	return &detail, true
}

// SetCourseDetail caches the course detail payload.
func (s *CacheService) SetCourseDetail(ctx context.Context, detail *models.CourseDetail) {
	if s == nil || s.store == nil || detail == nil {
		return
	}
	if err := s.store.Set(ctx, cacheKeyCoursePrefix+detail.ID, detail, s.courseTTL); err != nil {
		s.logger.Warn("course cache write failed", zap.String("course_id", detail.ID), zap.Error(err))
	}
}

// InvalidateCourse drops the cached payload for one course.
func (s *CacheService) InvalidateCourse(ctx context.Context, courseID string) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, cacheKeyCoursePrefix+courseID); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

// InvalidateAllCourses drops every cached course payload.
func (s *CacheService) InvalidateAllCourses(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.DeleteByPattern(ctx, cacheKeyCoursePrefix+"*"); err != nil {
		s.logger.Warn("course cache sweep failed", zap.Error(err))
	}
}
