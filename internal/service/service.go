package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"kgv/backend/internal/repository"
	apperr "kgv/backend/pkg/errors"
	"kgv/backend/pkg/metrics"
	"kgv/backend/pkg/validator"
)

// Service 所有 Service 的聚合入口
type Service struct {
	District    DistrictService
	Plot        PlotService
	Application ApplicationService
	Statistics  StatisticsService
	Export      ExportService
}

// StatisticsCache 统计快照缓存；*redis.Client 实现该接口
type StatisticsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}

// Option 可选依赖
type Option func(*core)

// WithCache enables the statistics snapshot cache.
func WithCache(c StatisticsCache) Option {
	return func(s *core) { s.cache = c }
}

// WithMetrics records use-case outcomes.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *core) { s.metrics = r }
}

// WithClock replaces time.Now, e.g. in tests.
func WithClock(now func() time.Time) Option {
	return func(s *core) { s.now = now }
}

// NewService 创建 Service 聚合
func NewService(store repository.Store, logger *zap.Logger, opts ...Option) *Service {
	c := &core{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.valid = NewValidator(c.clock)

	return &Service{
		District:    &districtService{c},
		Plot:        &plotService{c},
		Application: &applicationService{c},
		Statistics:  &statisticsService{c},
		Export:      &exportService{core: c, applications: &applicationService{c}},
	}
}

// core holds the collaborators every use case shares.
type core struct {
	store   repository.Store
	logger  *zap.Logger
	valid   *validator.Validator
	metrics *metrics.Recorder
	cache   StatisticsCache
	now     func() time.Time
}

func (c *core) clock() time.Time { return c.now().UTC() }

func (c *core) observe(op string, started time.Time, errp *error) {
	c.metrics.Observe(op, started, *errp)
}

// fail converts err at the handler boundary. Failures outside the taxonomy
// are logged once with context and returned as an opaque Unexpected error.
// err must be non-nil.
func (c *core) fail(msg string, err error, fields ...zap.Field) error {
	if apperr.KindOf(err) == apperr.KindUnexpected {
		fields = append(fields, zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn(msg, fields...)
		} else {
			c.logger.Error(msg, fields...)
		}
	}
	return apperr.Internal(err)
}

// notFound replaces the generic repository miss with a specific sentinel.
func notFound(err error, sentinel *apperr.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}

// invalidate drops cached statistics; a cache failure only degrades.
func (c *core) invalidate(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("统计缓存失效失败", zap.Strings("keys", keys), zap.Error(err))
	}
}
