package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/jobs"
)

type activityStore interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error)
}

// requestMeta carries transport metadata into activity entries when the
// record originates from an HTTP request.
type requestMetaKey struct{}

// RequestMeta is the transport metadata attached to activity entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta stores request metadata on the context for later
// activity recording.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// ActivityService records and queries the audit trail. Writes are handed
// to an in-memory worker queue so persistence stays off the request path.
type ActivityService struct {
	store  activityStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewActivityService constructs the service. Start must be called before
// any Record.
func NewActivityService(store activityStore, cfg jobs.QueueConfig, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ActivityService{store: store, logger: logger}
	s.queue = jobs.NewQueue("activity-log", s.persist, cfg)
	return s
}

// Start launches the background writers.
func (s *ActivityService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the background writers.
func (s *ActivityService) Stop() {
	s.queue.Stop()
}

// Record enqueues one activity entry. Detail payloads are serialised to
// JSON; failures are logged and dropped rather than surfaced to callers.
func (s *ActivityService) Record(ctx context.Context, userID *string, action, resource, resourceID string, detail interface{}) {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			s.logger.Warn("failed to marshal activity detail", zap.String("action", action), zap.Error(err))
		}
	}
	meta := requestMetaFrom(ctx)
	entry := models.ActivityLog{
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Detail:    payload,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: action, Payload: entry}); err != nil {
		s.logger.Warn("failed to enqueue activity entry", zap.String("action", action), zap.Error(err))
	}
}

func (s *ActivityService) persist(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.ActivityLog)
	if !ok {
		s.logger.Error("unexpected activity payload type", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.Insert(ctx, &entry)
}

// List returns activity entries with pagination metadata.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	entries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return entries, pagination, nil
}
