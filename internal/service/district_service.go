package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/mapper"
	"kgv/backend/internal/model"
	"kgv/backend/internal/repository"
	"kgv/backend/internal/spec"
	apperr "kgv/backend/pkg/errors"
	"kgv/backend/pkg/redis"
)

// ── 区模块业务错误 ──

var (
	ErrDistrictNotFound   = apperr.NotFound("Bezirk nicht gefunden")
	ErrDistrictNameExists = apperr.Conflict("Ein Bezirk mit diesem Namen existiert bereits")
	ErrDistrictHasPlots   = apperr.Conflict("Dem Bezirk sind Parzellen zugeordnet; zum Archivieren mit force erneut ausführen")
)

// DistrictService 区业务接口
type DistrictService interface {
	Create(ctx context.Context, req *dto.CreateDistrictRequest) (*dto.DistrictResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DistrictResponse, error)
	List(ctx context.Context, req *dto.DistrictListRequest) (*spec.PageResult[dto.DistrictResponse], error)
	// Update 部分更新：仅修改提供的字段；状态经由受控迁移
	Update(ctx context.Context, id string, req *dto.UpdateDistrictRequest) (*dto.DistrictResponse, error)
	ChangeStatus(ctx context.Context, id string, req *dto.ChangeDistrictStatusRequest) (*dto.DistrictResponse, error)
	// Delete 无地块时物理删除；有地块时需 force，且仅归档不删除
	Delete(ctx context.Context, id string, req *dto.DeleteRequest) (*dto.DistrictDeleteResult, error)
	// Statistics 单区统计快照（配置缓存时走 Redis）
	Statistics(ctx context.Context, id string) (*dto.DistrictStatisticsResponse, error)
}

type districtService struct {
	*core
}

var districtSortKeys = spec.SortKeys{
	Columns: map[string]string{
		"name":       "name",
		"sortorder":  "sort_order",
		"sort_order": "sort_order",
		"area":       "total_area",
		"total_area": "total_area",
		"status":     "status",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	Default: "sort_order",
}

// ────────────────────── Create ──────────────────────

func (s *districtService) Create(ctx context.Context, req *dto.CreateDistrictRequest) (resp *dto.DistrictResponse, err error) {
	defer s.observe("district.create", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}
	status := model.DistrictActive
	if req.Status != "" {
		status = model.DistrictStatus(req.Status)
	}
	if status == model.DistrictArchived {
		return nil, model.ErrDistrictBornArchived
	}

	d, err := model.NewDistrict(req.Name)
	if err != nil {
		return nil, err
	}
	d.DisplayName = req.DisplayName
	d.Description = req.Description
	d.SortOrder = req.SortOrder
	d.TotalArea = req.TotalArea
	d.Status = status
	d.StampCreated(req.CreatedBy, s.clock())

	uow := s.store.NewUnitOfWork()
	taken, err := uow.Districts().ExistsSpec(ctx, spec.New(spec.Equals{Field: "name", Value: d.Name}).Unscoped())
	if err != nil {
		return nil, s.fail("查询区名称失败", err, zap.String("name", d.Name))
	}
	if taken {
		return nil, ErrDistrictNameExists
	}

	uow.Districts().Add(d)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("创建区失败", err, zap.String("name", d.Name))
	}

	s.logger.Info("Bezirk angelegt", zap.String("id", d.ID), zap.String("name", d.Name))
	s.invalidate(ctx, redis.Key("overview"))
	out := mapper.ToDistrictResponse(d)
	return &out, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *districtService) GetByID(ctx context.Context, id string) (resp *dto.DistrictResponse, err error) {
	defer s.observe("district.get", time.Now(), &err)

	d, err := s.store.NewUnitOfWork().Districts().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("id", id))
	}
	out := mapper.ToDistrictResponse(d)
	return &out, nil
}

// ────────────────────── List ──────────────────────

func (s *districtService) List(ctx context.Context, req *dto.DistrictListRequest) (page *spec.PageResult[dto.DistrictResponse], err error) {
	defer s.observe("district.list", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	b := spec.Where(
		spec.Contains(req.Search, "name", "display_name", "description"),
		spec.Between("total_area", req.MinArea, req.MaxArea),
	)
	if req.Status != "" {
		b.And(spec.Equals{Field: "status", Value: req.Status})
	}
	if req.IsActive != nil {
		if *req.IsActive {
			b.And(spec.Equals{Field: "status", Value: model.DistrictActive})
		} else {
			b.And(spec.OneOf("status", model.DistrictInactive, model.DistrictArchived))
		}
	}
	q := spec.New(b.Build()).
		OrderBy(districtSortKeys.Resolve(req.SortBy, req.SortDir)).
		Paged(req.PageWindow())

	uow := s.store.NewUnitOfWork()
	result, err := uow.Districts().FindPaged(ctx, q)
	if err != nil {
		return nil, s.fail("列出区失败", err)
	}

	out := spec.MapPage(result, func(d model.District) dto.DistrictResponse {
		return mapper.ToDistrictResponse(&d)
	})
	if req.IncludeStatistics && !result.IsEmpty() {
		if err := s.attachPlotStats(ctx, uow.Plots(), out.Items); err != nil {
			// 统计为附加信息，失败时降级为不附带
			s.logger.Warn("查询区地块统计失败", zap.Error(err))
		}
	}
	return &out, nil
}

// attachPlotStats counts plots for the whole page with two grouped queries
// instead of one per district.
func (s *districtService) attachPlotStats(ctx context.Context, plots repository.Reader[model.Plot], items []dto.DistrictResponse) error {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	byDistrict := spec.OneOf("district_id", ids...)

	total, err := plots.CountGrouped(ctx, spec.New(byDistrict), "district_id")
	if err != nil {
		return err
	}
	assigned, err := plots.CountGrouped(ctx,
		spec.New(spec.Where(byDistrict, spec.Equals{Field: "status", Value: model.PlotAssigned}).Build()),
		"district_id")
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Statistics = &dto.DistrictPlotStats{
			TotalPlots:    total[items[i].ID],
			AssignedPlots: assigned[items[i].ID],
		}
	}
	return nil
}

// ────────────────────── Update ──────────────────────

func (s *districtService) Update(ctx context.Context, id string, req *dto.UpdateDistrictRequest) (resp *dto.DistrictResponse, err error) {
	defer s.observe("district.update", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	d, err := uow.Districts().GetForUpdate(ctx, id)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("id", id))
	}

	now := s.clock()
	// 只写本次请求涉及的列，plot_count 由地块操作原子维护
	fields := map[string]any{}
	if req.Name != nil {
		name := model.NormalizeDistrictName(*req.Name)
		if err := model.ValidateDistrictName(name); err != nil {
			return nil, err
		}
		if name != d.Name {
			taken, err := uow.Districts().ExistsSpec(ctx, spec.New(spec.Equals{Field: "name", Value: name}).Unscoped())
			if err != nil {
				return nil, s.fail("查询区名称失败", err, zap.String("name", name))
			}
			if taken {
				return nil, ErrDistrictNameExists
			}
			d.Name = name
			fields["name"] = name
		}
	}
	if req.DisplayName != nil {
		d.DisplayName = *req.DisplayName
		fields["display_name"] = d.DisplayName
	}
	if req.Description != nil {
		d.Description = *req.Description
		fields["description"] = d.Description
	}
	if req.SortOrder != nil {
		d.SortOrder = *req.SortOrder
		fields["sort_order"] = d.SortOrder
	}
	if req.TotalArea != nil {
		d.TotalArea = *req.TotalArea
		fields["total_area"] = d.TotalArea
	}
	if req.Status != nil {
		if err := d.TransitionTo(model.DistrictStatus(*req.Status), req.UpdatedBy, now); err != nil {
			return nil, err
		}
		fields["status"] = string(d.Status)
	}
	d.StampUpdated(req.UpdatedBy, now)
	stampFields(fields, d.UpdatedAt, d.UpdatedBy)

	uow.Districts().UpdateFields(id, fields)
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail("更新区失败", err, zap.String("id", id))
	}

	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", id))
	out := mapper.ToDistrictResponse(d)
	return &out, nil
}

// ────────────────────── ChangeStatus ──────────────────────

func (s *districtService) ChangeStatus(ctx context.Context, id string, req *dto.ChangeDistrictStatusRequest) (resp *dto.DistrictResponse, err error) {
	defer s.observe("district.change_status", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	d, err := uow.Districts().GetForUpdate(ctx, id)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("id", id))
	}
	prev := d.Status
	if err := d.TransitionTo(model.DistrictStatus(req.Status), req.ChangedBy, s.clock()); err != nil {
		return nil, err
	}
	if d.Status != prev {
		uow.Districts().UpdateFields(id, stampFields(
			map[string]any{"status": string(d.Status)}, d.UpdatedAt, d.UpdatedBy))
		if err := uow.Commit(ctx); err != nil {
			return nil, s.fail("变更区状态失败", err, zap.String("id", id))
		}
		s.logger.Info("Bezirksstatus geändert",
			zap.String("id", id), zap.String("from", string(prev)), zap.String("to", string(d.Status)))
		s.invalidate(ctx, redis.Key("overview"), redis.Key("district", id))
	}
	out := mapper.ToDistrictResponse(d)
	return &out, nil
}

// ────────────────────── Delete ──────────────────────

func (s *districtService) Delete(ctx context.Context, id string, req *dto.DeleteRequest) (result *dto.DistrictDeleteResult, err error) {
	defer s.observe("district.delete", time.Now(), &err)

	if req == nil {
		req = &dto.DeleteRequest{}
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	d, err := uow.Districts().GetForUpdate(ctx, id)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("id", id))
	}

	// 软删除的地块同样视为引用
	plots, err := uow.Plots().CountSpec(ctx, spec.New(spec.Equals{Field: "district_id", Value: id}).Unscoped())
	if err != nil {
		return nil, s.fail("统计区地块失败", err, zap.String("id", id))
	}

	result = &dto.DistrictDeleteResult{ID: id}
	switch {
	case plots == 0:
		uow.Districts().DeleteByID(id)
		result.Deleted = true
	case !req.Force:
		return nil, ErrDistrictHasPlots
	default:
		if err := d.Archive(req.DeletedBy, s.clock()); err != nil {
			return nil, err
		}
		uow.Districts().UpdateFields(id, stampFields(
			map[string]any{"status": string(d.Status)}, d.UpdatedAt, d.UpdatedBy))
		result.Archived = true
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail("删除区失败", err, zap.String("id", id))
	}

	s.logger.Info("Bezirk gelöscht",
		zap.String("id", id), zap.Bool("archived", result.Archived), zap.Int64("plots", plots))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", id))
	return result, nil
}

// ────────────────────── Statistics ──────────────────────

func (s *districtService) Statistics(ctx context.Context, id string) (resp *dto.DistrictStatisticsResponse, err error) {
	defer s.observe("district.statistics", time.Now(), &err)

	key := redis.Key("district", id)
	if s.cache != nil {
		var cached dto.DistrictStatisticsResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("读取统计缓存失败", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	uow := s.store.NewUnitOfWork()
	d, err := uow.Districts().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("id", id))
	}

	inDistrict := spec.Equals{Field: "district_id", Value: id}
	byStatus, err := uow.Plots().CountGrouped(ctx, spec.New(inDistrict), "status")
	if err != nil {
		return nil, s.fail("统计区地块失败", err, zap.String("id", id))
	}
	totalArea, err := uow.Plots().SumFloat(ctx, spec.New(inDistrict), "area")
	if err != nil {
		return nil, s.fail("统计区面积失败", err, zap.String("id", id))
	}
	assignedArea, err := uow.Plots().SumFloat(ctx,
		spec.New(spec.Where(inDistrict, spec.Equals{Field: "status", Value: model.PlotAssigned}).Build()), "area")
	if err != nil {
		return nil, s.fail("统计区面积失败", err, zap.String("id", id))
	}
	waiting, err := uow.Applications().Count(ctx,
		spec.Where(inDistrict, spec.Equals{Field: "status", Value: model.ApplicationQueued}).Build())
	if err != nil {
		return nil, s.fail("统计等候名单失败", err, zap.String("id", id))
	}

	var total int64
	for _, n := range byStatus {
		total += n
	}
	resp = &dto.DistrictStatisticsResponse{
		DistrictID:          d.ID,
		Name:                d.Label(),
		TotalPlots:          total,
		PlotsByStatus:       byStatus,
		TotalPlotArea:       totalArea,
		AssignedArea:        assignedArea,
		WaitingApplications: waiting,
		GeneratedAt:         s.clock(),
	}
	if total > 0 {
		resp.OccupancyRate = float64(byStatus[string(model.PlotAssigned)]) / float64(total)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			s.logger.Warn("写入统计缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// stampFields adds the update audit pair to a column-scoped write.
func stampFields(fields map[string]any, at time.Time, by *string) map[string]any {
	fields["updated_at"] = at
	fields["updated_by"] = by
	return fields
}
