package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/model"
	"kgv/backend/internal/spec"
	"kgv/backend/pkg/redis"
)

// StatisticsService 全局统计：只读，结果为时间点快照
type StatisticsService interface {
	Overview(ctx context.Context) (*dto.OverviewResponse, error)
}

type statisticsService struct {
	*core
}

// Overview computes the parts concurrently. Each part reads through its own
// unit of work; the parts are not transactionally linked.
func (s *statisticsService) Overview(ctx context.Context) (resp *dto.OverviewResponse, err error) {
	defer s.observe("statistics.overview", time.Now(), &err)

	key := redis.Key("overview")
	if s.cache != nil {
		var cached dto.OverviewResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("读取统计缓存失败", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	resp = &dto.OverviewResponse{}
	all := spec.Specification{}
	assigned := spec.New(spec.Equals{Field: "status", Value: model.PlotAssigned})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp.DistrictsByStatus, err = s.store.NewUnitOfWork().Districts().CountGrouped(gctx, all, "status")
		return err
	})
	g.Go(func() error {
		var err error
		resp.PlotsByStatus, err = s.store.NewUnitOfWork().Plots().CountGrouped(gctx, all, "status")
		return err
	})
	g.Go(func() error {
		var err error
		resp.ApplicationsByStatus, err = s.store.NewUnitOfWork().Applications().CountGrouped(gctx, all, "status")
		return err
	})
	g.Go(func() error {
		var err error
		resp.TotalPlotArea, err = s.store.NewUnitOfWork().Plots().SumFloat(gctx, all, "area")
		return err
	})
	g.Go(func() error {
		var err error
		resp.AssignedArea, err = s.store.NewUnitOfWork().Plots().SumFloat(gctx, assigned, "area")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("计算统计失败", err)
	}
	resp.WaitingListSize = resp.ApplicationsByStatus[string(model.ApplicationQueued)]
	resp.GeneratedAt = s.clock()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			s.logger.Warn("写入统计缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}
