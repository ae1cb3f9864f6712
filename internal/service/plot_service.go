package service

import (
	"context"
	"strings"
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

// ── 地块模块业务错误 ──

var (
	ErrPlotNotFound         = apperr.NotFound("Parzelle nicht gefunden")
	ErrPlotNumberExists     = apperr.Conflict("Die Parzellennummer ist in diesem Bezirk bereits vergeben")
	ErrPlotDistrictInactive = apperr.Conflict("Im Bezirk können keine Parzellen angelegt werden, da er nicht aktiv ist")
	ErrPlotAssignedNoForce  = apperr.Conflict("Die Parzelle ist zugewiesen; zum Löschen mit force erneut ausführen")
	ErrApplicantNotFound    = apperr.NotFound("Kein offener Antrag für die angegebene Person gefunden")
	ErrApplicationClosed    = apperr.Conflict("Der Antrag ist abgeschlossen und kann keine Parzelle erhalten")
	ErrApplicationHasPlot   = apperr.Conflict("Dem Antrag ist bereits eine andere Parzelle zugewiesen")
)

// PlotService 地块业务接口
type PlotService interface {
	Create(ctx context.Context, req *dto.CreatePlotRequest) (*dto.PlotResponse, error)
	GetByID(ctx context.Context, id string) (*dto.PlotResponse, error)
	List(ctx context.Context, req *dto.PlotListRequest) (*spec.PageResult[dto.PlotResponse], error)
	Update(ctx context.Context, id string, req *dto.UpdatePlotRequest) (*dto.PlotResponse, error)
	Reserve(ctx context.Context, id, by string) (*dto.PlotResponse, error)
	// Assign 分配地块：计划与申请在同一事务中更新
	Assign(ctx context.Context, req *dto.AssignPlotRequest) (*dto.PlotAssignmentResponse, error)
	Release(ctx context.Context, id, by string) (*dto.PlotResponse, error)
	ChangeStatus(ctx context.Context, id string, req *dto.ChangePlotStatusRequest) (*dto.PlotResponse, error)
	// Delete 物理删除；已分配的地块需 force，force 时清除申请上的引用
	Delete(ctx context.Context, id string, req *dto.DeleteRequest) error
}

type plotService struct {
	*core
}

var plotSortKeys = spec.SortKeys{
	Columns: map[string]string{
		"number":     "number_key",
		"area":       "area",
		"price":      "price",
		"priority":   "priority",
		"status":     "status",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	Default: "priority",
}

// ────────────────────── Create ──────────────────────

func (s *plotService) Create(ctx context.Context, req *dto.CreatePlotRequest) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.create", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}
	p, err := model.NewPlot(req.DistrictID, req.Number)
	if err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	// 锁定区行：状态检查与插入在同一事务内，并发的归档/停用需等待
	d, err := uow.Districts().GetForUpdate(ctx, req.DistrictID)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("district_id", req.DistrictID))
	}
	if !d.CanAcceptPlots() {
		return nil, ErrPlotDistrictInactive
	}
	if err := s.checkNumberFree(ctx, uow.Plots(), p); err != nil {
		return nil, err
	}

	now := s.clock()
	p.Area = req.Area
	p.Price = req.Price
	p.HasWater = req.HasWater
	p.HasElectricity = req.HasElectricity
	p.Priority = req.Priority
	p.Description = req.Description
	p.Gemarkung = req.Gemarkung
	p.Flur = req.Flur
	p.StampCreated(req.CreatedBy, now)

	d.PlotCount++
	d.StampUpdated(req.CreatedBy, now)

	uow.Plots().Add(p)
	uow.Districts().UpdateFields(d.ID, stampFields(
		map[string]any{"plot_count": repository.Increment{By: 1}}, d.UpdatedAt, d.UpdatedBy))
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail("创建地块失败", err, zap.String("district_id", d.ID), zap.String("number", p.Number))
	}

	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", d.ID))
	p.District = d
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

// checkNumberFree enforces case-insensitive uniqueness per district,
// counting soft-deleted plots as well.
func (s *plotService) checkNumberFree(ctx context.Context, plots repository.Reader[model.Plot], p *model.Plot) error {
	same := spec.New(spec.Where(
		spec.Equals{Field: "district_id", Value: p.DistrictID},
		spec.Equals{Field: "number_key", Value: p.NumberKey},
	).Build()).Unscoped()
	matches, err := plots.Find(ctx, same)
	if err != nil {
		return s.fail("查询地块编号失败", err, zap.String("number", p.Number))
	}
	for i := range matches {
		if matches[i].ID != p.ID {
			return ErrPlotNumberExists
		}
	}
	return nil
}

// ────────────────────── GetByID ──────────────────────

func (s *plotService) GetByID(ctx context.Context, id string) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.get", time.Now(), &err)

	p, err := s.store.NewUnitOfWork().Plots().GetByID(ctx, id, "District")
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

// ────────────────────── List ──────────────────────

func (s *plotService) List(ctx context.Context, req *dto.PlotListRequest) (page *spec.PageResult[dto.PlotResponse], err error) {
	defer s.observe("plot.list", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	b := spec.Where(
		spec.Contains(req.Search, "number", "description", "gemarkung", "flur"),
		spec.Between("area", req.MinArea, req.MaxArea),
		spec.Eq("has_water", req.HasWater),
		spec.Eq("has_electricity", req.HasElectricity),
	)
	if req.DistrictID != "" {
		b.And(spec.Equals{Field: "district_id", Value: req.DistrictID})
	}
	if req.Status != "" {
		b.And(spec.Equals{Field: "status", Value: req.Status})
	}
	q := spec.New(b.Build()).
		OrderBy(plotSortKeys.Resolve(req.SortBy, req.SortDir)).
		Paged(req.PageWindow()).
		WithPreload("District")

	result, err := s.store.NewUnitOfWork().Plots().FindPaged(ctx, q)
	if err != nil {
		return nil, s.fail("列出地块失败", err)
	}
	out := spec.MapPage(result, func(p model.Plot) dto.PlotResponse {
		return mapper.ToPlotResponse(&p)
	})
	return &out, nil
}

// ────────────────────── Update ──────────────────────

func (s *plotService) Update(ctx context.Context, id string, req *dto.UpdatePlotRequest) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.update", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	p, err := uow.Plots().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}

	if req.Number != nil {
		oldKey := p.NumberKey
		if err := p.Renumber(*req.Number); err != nil {
			return nil, err
		}
		if p.NumberKey != oldKey {
			if err := s.checkNumberFree(ctx, uow.Plots(), p); err != nil {
				return nil, err
			}
		}
	}
	if req.Area != nil {
		p.Area = *req.Area
	}
	if req.Price != nil {
		p.Price = req.Price
	}
	if req.HasWater != nil {
		p.HasWater = *req.HasWater
	}
	if req.HasElectricity != nil {
		p.HasElectricity = *req.HasElectricity
	}
	if req.Priority != nil {
		p.Priority = *req.Priority
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Gemarkung != nil {
		p.Gemarkung = *req.Gemarkung
	}
	if req.Flur != nil {
		p.Flur = *req.Flur
	}
	p.StampUpdated(req.UpdatedBy, s.clock())

	uow.Plots().Update(p)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("更新地块失败", err, zap.String("id", id))
	}
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

// ────────────────────── Reserve ──────────────────────

func (s *plotService) Reserve(ctx context.Context, id, by string) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.reserve", time.Now(), &err)

	uow := s.store.NewUnitOfWork()
	p, err := uow.Plots().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}
	if err := p.Reserve(by, s.clock()); err != nil {
		return nil, err
	}
	uow.Plots().Update(p)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("预留地块失败", err, zap.String("id", id))
	}
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

// ═══════════════════════════════════════════════════════════
// Assign — 分配地块
// ═══════════════════════════════════════════════════════════
//
// 1. 请求校验（任何存储访问之前）
// 2. 开启事务，加载地块与申请
// 3. Plot.Assign：非 force 时要求可分配状态
// 4. 设置申请的 assigned_plot_id，追加 contract_created 历史记录
// 5. 一次提交

func (s *plotService) Assign(ctx context.Context, req *dto.AssignPlotRequest) (resp *dto.PlotAssignmentResponse, err error) {
	defer s.observe("plot.assign", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}
	now := s.clock()
	at := now
	if req.AssignmentDate != nil {
		at = req.AssignmentDate.UTC()
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	p, err := uow.Plots().GetForUpdate(ctx, req.PlotID)
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("plot_id", req.PlotID))
	}
	app, err := s.resolveApplication(ctx, uow.Applications(), req)
	if err != nil {
		return nil, err
	}
	if app.AssignedPlotID != nil && *app.AssignedPlotID != p.ID {
		return nil, ErrApplicationHasPlot
	}

	prevStatus := p.Status
	if err := p.Assign(model.AssignOptions{
		At:       at,
		Notes:    req.Notes,
		Priority: req.Priority,
		Force:    req.Force,
		Reason:   req.Reason,
		By:       req.AssignedBy,
	}); err != nil {
		return nil, err
	}
	p.StampUpdated(req.AssignedBy, now)

	// force 覆盖他人已分配的地块时，旧申请上的引用一并清除
	holders, err := s.holders(ctx, uow.Applications(), p.ID)
	if err != nil {
		return nil, err
	}
	for _, h := range holders {
		if h.ID != app.ID {
			h.ClearPlot(req.AssignedBy, now)
			uow.Applications().Update(h)
		}
	}
	app.AssignPlot(p.ID, req.AssignedBy, now)

	seq, err := nextSequence(ctx, uow.History(), app.ID)
	if err != nil {
		return nil, s.fail("查询历史序号失败", err, zap.String("application_id", app.ID))
	}
	entry := model.NewHistoryEntry(app.ID, model.HistoryContractCreated, at).WithPlotLocation(p)
	entry.Sequence = seq
	entry.CaseWorker = req.AssignedBy
	entry.Note = strings.TrimSpace(req.Notes)
	if req.Force {
		entry.Comment = "Erzwungene Zuweisung: " + strings.TrimSpace(req.Reason)
	}
	entry.StampCreated(req.AssignedBy, now)

	uow.Plots().Update(p)
	uow.Applications().Update(app)
	uow.History().Add(entry)
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail("分配地块失败", err, zap.String("plot_id", p.ID), zap.String("application_id", app.ID))
	}

	if req.Force {
		s.logger.Warn("Erzwungene Parzellenzuweisung",
			zap.String("plot_id", p.ID),
			zap.String("number", p.Number),
			zap.String("previous_status", string(prevStatus)),
			zap.String("reason", req.Reason),
			zap.String("by", req.AssignedBy),
		)
	} else {
		s.logger.Info("Parzelle zugewiesen", zap.String("plot_id", p.ID), zap.String("application_id", app.ID))
	}
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))

	return &dto.PlotAssignmentResponse{
		Plot:          mapper.ToPlotResponse(p),
		ApplicationID: app.ID,
		Forced:        req.Force,
	}, nil
}

// resolveApplication finds the application the plot goes to: the given
// application, or the newest open application of the given person.
func (s *plotService) resolveApplication(ctx context.Context, apps repository.Reader[model.Application], req *dto.AssignPlotRequest) (*model.Application, error) {
	if req.ApplicationID != "" {
		app, err := apps.GetByID(ctx, req.ApplicationID)
		if err != nil {
			return nil, s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("application_id", req.ApplicationID))
		}
		if app.Status.IsClosed() {
			return nil, ErrApplicationClosed
		}
		return app, nil
	}

	candidates, err := apps.Find(ctx, spec.New(spec.Where(
		spec.Equals{Field: "person_id", Value: req.PersonID},
		spec.OneOf("status", openApplicationStatuses()...),
	).Build()).OrderBy(spec.Desc("application_date"), spec.Desc("created_at")))
	if err != nil {
		return nil, s.fail("查询申请失败", err, zap.String("person_id", req.PersonID))
	}
	if len(candidates) == 0 {
		return nil, ErrApplicantNotFound
	}
	return &candidates[0], nil
}

func openApplicationStatuses() []model.ApplicationStatus {
	var open []model.ApplicationStatus
	for _, st := range model.AllApplicationStatuses() {
		if !st.IsClosed() {
			open = append(open, st)
		}
	}
	return open
}

// holders lists applications currently referencing the plot.
func (s *plotService) holders(ctx context.Context, apps repository.Reader[model.Application], plotID string) ([]*model.Application, error) {
	found, err := apps.GetAll(ctx, spec.Equals{Field: "assigned_plot_id", Value: plotID}, nil)
	if err != nil {
		return nil, s.fail("查询地块申请失败", err, zap.String("plot_id", plotID))
	}
	out := make([]*model.Application, len(found))
	for i := range found {
		out[i] = &found[i]
	}
	return out, nil
}

// ────────────────────── Release ──────────────────────

func (s *plotService) Release(ctx context.Context, id, by string) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.release", time.Now(), &err)

	uow := s.store.NewUnitOfWork()
	p, err := uow.Plots().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}
	now := s.clock()
	if err := p.Release(by, now); err != nil {
		return nil, err
	}
	if err := s.clearHolders(ctx, uow, p.ID, by, now); err != nil {
		return nil, err
	}
	uow.Plots().Update(p)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("释放地块失败", err, zap.String("id", id))
	}
	s.logger.Info("Parzelle freigegeben", zap.String("plot_id", p.ID))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

func (s *plotService) clearHolders(ctx context.Context, uow repository.UnitOfWork, plotID, by string, at time.Time) error {
	holders, err := s.holders(ctx, uow.Applications(), plotID)
	if err != nil {
		return err
	}
	for _, h := range holders {
		h.ClearPlot(by, at)
	}
	if len(holders) > 0 {
		uow.Applications().UpdateRange(holders)
	}
	return nil
}

// ────────────────────── ChangeStatus ──────────────────────

func (s *plotService) ChangeStatus(ctx context.Context, id string, req *dto.ChangePlotStatusRequest) (resp *dto.PlotResponse, err error) {
	defer s.observe("plot.change_status", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	p, err := uow.Plots().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}
	prev := p.Status
	now := s.clock()
	if err := p.TransitionTo(model.PlotStatus(req.Status), req.ChangedBy, now); err != nil {
		return nil, err
	}
	if p.Status == prev {
		out := mapper.ToPlotResponse(p)
		return &out, nil
	}
	if prev == model.PlotAssigned {
		if err := s.clearHolders(ctx, uow, p.ID, req.ChangedBy, now); err != nil {
			return nil, err
		}
	}
	uow.Plots().Update(p)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("变更地块状态失败", err, zap.String("id", id))
	}
	s.logger.Info("Parzellenstatus geändert",
		zap.String("id", id), zap.String("from", string(prev)), zap.String("to", string(p.Status)))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))
	out := mapper.ToPlotResponse(p)
	return &out, nil
}

// ────────────────────── Delete ──────────────────────

func (s *plotService) Delete(ctx context.Context, id string, req *dto.DeleteRequest) (err error) {
	defer s.observe("plot.delete", time.Now(), &err)

	if req == nil {
		req = &dto.DeleteRequest{}
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	p, err := uow.Plots().GetForUpdate(ctx, id)
	if err != nil {
		return s.fail("查询地块失败", notFound(err, ErrPlotNotFound), zap.String("id", id))
	}
	if p.Status == model.PlotAssigned && !req.Force {
		return ErrPlotAssignedNoForce
	}

	now := s.clock()
	if err := s.clearHolders(ctx, uow, p.ID, req.DeletedBy, now); err != nil {
		return err
	}
	d, err := uow.Districts().GetForUpdate(ctx, p.DistrictID)
	switch {
	case err == nil:
		fields := map[string]any{}
		if d.PlotCount > 0 {
			fields["plot_count"] = repository.Increment{By: -1}
		}
		d.StampUpdated(req.DeletedBy, now)
		uow.Districts().UpdateFields(d.ID, stampFields(fields, d.UpdatedAt, d.UpdatedBy))
	case apperr.IsKind(err, apperr.KindNotFound):
		s.logger.Warn("地块所属区不存在", zap.String("plot_id", id), zap.String("district_id", p.DistrictID))
	default:
		return s.fail("查询区失败", err, zap.String("district_id", p.DistrictID))
	}
	uow.Plots().DeleteByID(id)

	if err := uow.Commit(ctx); err != nil {
		return s.fail("删除地块失败", err, zap.String("id", id))
	}
	s.logger.Info("Parzelle gelöscht",
		zap.String("id", id), zap.String("status", string(p.Status)), zap.Bool("force", req.Force))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", p.DistrictID))
	return nil
}
