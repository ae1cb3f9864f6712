package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/mapper"
	"kgv/backend/internal/model"
	"kgv/backend/internal/repository"
	"kgv/backend/internal/spec"
	apperr "kgv/backend/pkg/errors"
	"kgv/backend/pkg/redis"
)

// ── 申请模块业务错误 ──

var (
	ErrApplicationNotFound = apperr.NotFound("Antrag nicht gefunden")
	ErrDistrictArchived    = apperr.Conflict("Für einen archivierten Bezirk können keine Anträge angelegt werden")
	ErrPersonIDInvalid     = apperr.Validation("person_id ist keine gültige ID")
)

// ApplicationService 申请业务接口
type ApplicationService interface {
	// Create 创建申请：分配 Eingangsnummer 与 Aktenzeichen，写入首条历史记录
	Create(ctx context.Context, req *dto.CreateApplicationRequest) (*dto.ApplicationResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ApplicationResponse, error)
	List(ctx context.Context, req *dto.ApplicationListRequest) (*spec.PageResult[dto.ApplicationResponse], error)
	Update(ctx context.Context, id string, req *dto.UpdateApplicationRequest) (*dto.ApplicationResponse, error)
	// ChangeStatus 受控状态迁移，并追加对应的历史记录
	ChangeStatus(ctx context.Context, id string, req *dto.ChangeApplicationStatusRequest) (*dto.ApplicationResponse, error)
	AddHistoryEntry(ctx context.Context, id string, req *dto.AddHistoryEntryRequest) (*dto.HistoryEntryResponse, error)
	// History 按写入顺序返回历史记录
	History(ctx context.Context, id string) ([]dto.HistoryEntryResponse, error)
	// WaitingList 区内排队中的申请，按申请日期排序，位置从 1 开始
	WaitingList(ctx context.Context, districtID string) ([]dto.WaitingListEntry, error)
	// Delete 软删除（Löschdatum）
	Delete(ctx context.Context, id, by string) error
	Restore(ctx context.Context, id string) error
}

type applicationService struct {
	*core
}

var applicationSortKeys = spec.SortKeys{
	Columns: map[string]string{
		"application_date": "application_date",
		"date":             "application_date",
		"name":             "applicant_last_name",
		"status":           "status",
		"entry_number":     "entry_number",
		"file_reference":   "file_reference",
		"created_at":       "created_at",
		"updated_at":       "updated_at",
	},
	Default: "application_date",
}

// ────────────────────── Create ──────────────────────

func (s *applicationService) Create(ctx context.Context, req *dto.CreateApplicationRequest) (resp *dto.ApplicationResponse, err error) {
	defer s.observe("application.create", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}
	app, err := s.buildApplication(req)
	if err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, s.fail("开启事务失败", err)
	}
	defer uow.Rollback()

	d, err := uow.Districts().GetByID(ctx, req.DistrictID)
	if err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("district_id", req.DistrictID))
	}
	if d.Status == model.DistrictArchived {
		return nil, ErrDistrictArchived
	}

	year := app.ApplicationDate.Year()
	entryNo, err := s.issueNumber(ctx, uow.FileNumbers(), model.EntryNumberKind, d.Name, year, app.ID)
	if err != nil {
		return nil, err
	}
	fileRef, err := s.issueNumber(ctx, uow.FileNumbers(), model.FileReferenceKind, d.Name, year, app.ID)
	if err != nil {
		return nil, err
	}
	app.EntryNumber = entryNo.String()
	app.FileReference = fileRef.String()

	received := model.NewHistoryEntry(app.ID, model.HistoryApplicationReceived, app.ApplicationDate)
	received.Sequence = 1
	received.StampCreated(req.CreatedBy, app.CreatedAt)

	uow.Applications().Add(app)
	uow.FileNumbers().AddRange([]*model.FileNumber{entryNo, fileRef})
	uow.History().Add(received)
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail("创建申请失败", err, zap.String("district_id", d.ID))
	}

	s.logger.Info("Antrag angelegt",
		zap.String("id", app.ID), zap.String("entry_number", app.EntryNumber), zap.String("file_reference", app.FileReference))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", d.ID))
	out := mapper.ToApplicationResponse(app)
	return &out, nil
}

// buildApplication validates the value objects of a new application.
func (s *applicationService) buildApplication(req *dto.CreateApplicationRequest) (*model.Application, error) {
	personID := strings.TrimSpace(req.PersonID)
	if personID == "" {
		personID = uuid.NewString()
	} else if _, err := uuid.Parse(personID); err != nil {
		return nil, ErrPersonIDInvalid
	}

	applicant, err := mapper.ToPersonName(req.Applicant)
	if err != nil {
		return nil, err
	}
	var co model.PersonName
	if req.CoApplicant != nil {
		if co, err = mapper.ToPersonName(*req.CoApplicant); err != nil {
			return nil, err
		}
	}
	addr, err := model.NewAddress(req.Street, req.PostalCode, req.City)
	if err != nil {
		return nil, err
	}
	contact, err := model.NewContact(req.Phone, req.MobilePhone, req.MobilePhone2, req.BusinessPhone, req.Email)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	appDate := now
	if req.ApplicationDate != nil {
		appDate = req.ApplicationDate.UTC()
	}
	app := &model.Application{
		PersonID:            personID,
		DistrictID:          req.DistrictID,
		WaitingListNumber32: strings.TrimSpace(req.WaitingListNumber32),
		WaitingListNumber33: strings.TrimSpace(req.WaitingListNumber33),
		Applicant:           applicant,
		CoApplicant:         co,
		LetterSalutation:    strings.TrimSpace(req.LetterSalutation),
		Address:             addr,
		Contact:             contact,
		ApplicationDate:     appDate,
		Preferences:         req.Preferences,
		Remarks:             req.Remarks,
		Status:              model.ApplicationReceived,
	}
	app.EnsureID()
	app.StampCreated(req.CreatedBy, now)
	return app, nil
}

// issueNumber allocates the next number of a (kind, district, year)
// sequence. The unique index on file_numbers rejects a concurrent duplicate.
func (s *applicationService) issueNumber(ctx context.Context, numbers repository.Reader[model.FileNumber], kind model.FileNumberKind, code string, year int, appID string) (*model.FileNumber, error) {
	last, err := numbers.MaxInt(ctx, spec.New(spec.Where(
		spec.Equals{Field: "kind", Value: kind},
		spec.Equals{Field: "district_code", Value: code},
		spec.Equals{Field: "year", Value: year},
	).Build()), "number")
	if err != nil {
		return nil, s.fail("查询编号序列失败", err, zap.String("kind", string(kind)), zap.String("district", code))
	}
	n, err := model.NewFileNumber(kind, code, int(last)+1, year)
	if err != nil {
		return nil, err
	}
	n.ApplicationID = &appID
	return n, nil
}

// nextSequence is the sequence number for the next history entry.
func nextSequence(ctx context.Context, history repository.Reader[model.HistoryEntry], appID string) (int, error) {
	last, err := history.MaxInt(ctx, spec.New(spec.Equals{Field: "application_id", Value: appID}), "sequence")
	if err != nil {
		return 0, err
	}
	return int(last) + 1, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *applicationService) GetByID(ctx context.Context, id string) (resp *dto.ApplicationResponse, err error) {
	defer s.observe("application.get", time.Now(), &err)

	app, err := s.store.NewUnitOfWork().Applications().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}
	out := mapper.ToApplicationResponse(app)
	return &out, nil
}

// ────────────────────── List ──────────────────────

func (s *applicationService) List(ctx context.Context, req *dto.ApplicationListRequest) (page *spec.PageResult[dto.ApplicationResponse], err error) {
	defer s.observe("application.list", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	b := spec.Where(spec.Contains(req.Search,
		"applicant_last_name", "applicant_first_name", "co_applicant_last_name",
		"entry_number", "file_reference", "address_city"))
	if req.Status != "" {
		b.And(spec.Equals{Field: "status", Value: req.Status})
	}
	if req.DistrictID != "" {
		b.And(spec.Equals{Field: "district_id", Value: req.DistrictID})
	}
	if req.PersonID != "" {
		b.And(spec.Equals{Field: "person_id", Value: req.PersonID})
	}
	q := spec.New(b.Build()).
		OrderBy(applicationSortKeys.Resolve(req.SortBy, req.SortDir)).
		Paged(req.PageWindow())
	if req.IncludeDeleted {
		q = q.Unscoped()
	}

	result, err := s.store.NewUnitOfWork().Applications().FindPaged(ctx, q)
	if err != nil {
		return nil, s.fail("列出申请失败", err)
	}
	out := spec.MapPage(result, func(a model.Application) dto.ApplicationResponse {
		return mapper.ToApplicationResponse(&a)
	})
	return &out, nil
}

// ────────────────────── Update ──────────────────────

func (s *applicationService) Update(ctx context.Context, id string, req *dto.UpdateApplicationRequest) (resp *dto.ApplicationResponse, err error) {
	defer s.observe("application.update", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	app, err := uow.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}

	// 值对象整体替换：先合并，再经构造函数校验
	addr, err := model.NewAddress(
		pick(req.Street, app.Address.Street),
		pick(req.PostalCode, app.Address.PostalCode),
		pick(req.City, app.Address.City),
	)
	if err != nil {
		return nil, err
	}
	contact, err := model.NewContact(
		pick(req.Phone, string(app.Contact.Phone)),
		pick(req.MobilePhone, string(app.Contact.MobilePhone)),
		pick(req.MobilePhone2, string(app.Contact.MobilePhone2)),
		pick(req.BusinessPhone, string(app.Contact.BusinessPhone)),
		pick(req.Email, string(app.Contact.Email)),
	)
	if err != nil {
		return nil, err
	}
	app.Address = addr
	app.Contact = contact
	app.LetterSalutation = strings.TrimSpace(pick(req.LetterSalutation, app.LetterSalutation))
	app.WaitingListNumber32 = strings.TrimSpace(pick(req.WaitingListNumber32, app.WaitingListNumber32))
	app.WaitingListNumber33 = strings.TrimSpace(pick(req.WaitingListNumber33, app.WaitingListNumber33))
	app.Preferences = pick(req.Preferences, app.Preferences)
	app.Remarks = pick(req.Remarks, app.Remarks)
	app.StampUpdated(req.UpdatedBy, s.clock())

	uow.Applications().Update(app)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("更新申请失败", err, zap.String("id", id))
	}
	out := mapper.ToApplicationResponse(app)
	return &out, nil
}

func pick(v *string, current string) string {
	if v == nil {
		return current
	}
	return *v
}

// ────────────────────── ChangeStatus ──────────────────────

func (s *applicationService) ChangeStatus(ctx context.Context, id string, req *dto.ChangeApplicationStatusRequest) (resp *dto.ApplicationResponse, err error) {
	defer s.observe("application.change_status", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	app, err := uow.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}
	prev := app.Status
	next := model.ApplicationStatus(req.Status)
	now := s.clock()
	if err := app.TransitionTo(next, req.ChangedBy, now); err != nil {
		return nil, err
	}
	if prev == next {
		out := mapper.ToApplicationResponse(app)
		return &out, nil
	}

	seq, err := nextSequence(ctx, uow.History(), app.ID)
	if err != nil {
		return nil, s.fail("查询历史序号失败", err, zap.String("id", id))
	}
	entry := model.NewHistoryEntry(app.ID, model.HistoryKindForTransition(prev, next), now)
	entry.Sequence = seq
	entry.CaseWorker = req.CaseWorker
	entry.Note = strings.TrimSpace(req.Note)
	if entry.Note == "" {
		entry.Note = fmt.Sprintf("Status: %s → %s",
			mapper.ApplicationStatusText(prev), mapper.ApplicationStatusText(next))
	}
	entry.StampCreated(req.ChangedBy, now)

	uow.Applications().Update(app)
	uow.History().Add(entry)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("变更申请状态失败", err, zap.String("id", id))
	}

	s.logger.Info("Antragsstatus geändert",
		zap.String("id", id), zap.String("from", string(prev)), zap.String("to", string(next)))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", app.DistrictID))
	out := mapper.ToApplicationResponse(app)
	return &out, nil
}

// ────────────────────── History ──────────────────────

func (s *applicationService) AddHistoryEntry(ctx context.Context, id string, req *dto.AddHistoryEntryRequest) (resp *dto.HistoryEntryResponse, err error) {
	defer s.observe("application.add_history", time.Now(), &err)

	if err := s.valid.Struct(req); err != nil {
		return nil, err
	}

	uow := s.store.NewUnitOfWork()
	if _, err := uow.Applications().GetByID(ctx, id); err != nil {
		return nil, s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}
	seq, err := nextSequence(ctx, uow.History(), id)
	if err != nil {
		return nil, s.fail("查询历史序号失败", err, zap.String("id", id))
	}

	now := s.clock()
	at := now
	if req.OccurredAt != nil {
		at = req.OccurredAt.UTC()
	}
	entry := model.NewHistoryEntry(id, model.HistoryKind(req.Kind), at)
	entry.Sequence = seq
	entry.Gemarkung = req.Gemarkung
	entry.Flur = req.Flur
	entry.Parcel = req.Parcel
	entry.SizeInfo = req.SizeInfo
	entry.CaseWorker = req.CaseWorker
	entry.Note = req.Note
	entry.Comment = req.Comment
	entry.StampCreated(req.CreatedBy, now)

	uow.History().Add(entry)
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, s.fail("追加历史记录失败", err, zap.String("id", id))
	}
	out := mapper.ToHistoryEntryResponse(entry)
	return &out, nil
}

func (s *applicationService) History(ctx context.Context, id string) (list []dto.HistoryEntryResponse, err error) {
	defer s.observe("application.history", time.Now(), &err)

	if !repository.ValidID(id) {
		return nil, ErrApplicationNotFound
	}
	uow := s.store.NewUnitOfWork()
	exists, err := uow.Applications().ExistsSpec(ctx, spec.New(spec.Equals{Field: "id", Value: id}).Unscoped())
	if err != nil {
		return nil, s.fail("查询申请失败", err, zap.String("id", id))
	}
	if !exists {
		return nil, ErrApplicationNotFound
	}

	entries, err := uow.History().GetAll(ctx,
		spec.Equals{Field: "application_id", Value: id},
		[]spec.Sort{spec.Asc("sequence")})
	if err != nil {
		return nil, s.fail("查询历史记录失败", err, zap.String("id", id))
	}
	list = make([]dto.HistoryEntryResponse, len(entries))
	for i := range entries {
		list[i] = mapper.ToHistoryEntryResponse(&entries[i])
	}
	return list, nil
}

// ────────────────────── WaitingList ──────────────────────

func (s *applicationService) WaitingList(ctx context.Context, districtID string) (list []dto.WaitingListEntry, err error) {
	defer s.observe("application.waiting_list", time.Now(), &err)

	apps, err := s.waiting(ctx, districtID)
	if err != nil {
		return nil, err
	}
	list = make([]dto.WaitingListEntry, len(apps))
	for i := range apps {
		list[i] = mapper.ToWaitingListEntry(i+1, &apps[i])
	}
	return list, nil
}

// waiting loads the queued applications of a district in waiting-list order.
func (s *applicationService) waiting(ctx context.Context, districtID string) ([]model.Application, error) {
	uow := s.store.NewUnitOfWork()
	if _, err := uow.Districts().GetByID(ctx, districtID); err != nil {
		return nil, s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("district_id", districtID))
	}
	apps, err := uow.Applications().GetAll(ctx,
		spec.Where(
			spec.Equals{Field: "district_id", Value: districtID},
			spec.Equals{Field: "status", Value: model.ApplicationQueued},
		).Build(),
		[]spec.Sort{spec.Asc("application_date"), spec.Asc("created_at")})
	if err != nil {
		return nil, s.fail("查询等候名单失败", err, zap.String("district_id", districtID))
	}
	return apps, nil
}

// ────────────────────── Delete / Restore ──────────────────────

func (s *applicationService) Delete(ctx context.Context, id, by string) (err error) {
	defer s.observe("application.delete", time.Now(), &err)

	uow := s.store.NewUnitOfWork()
	app, err := uow.Applications().GetByID(ctx, id)
	if err != nil {
		return s.fail("查询申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}
	uow.Applications().SoftDelete(id, by, s.clock())
	if err := uow.SaveChanges(ctx); err != nil {
		return s.fail("删除申请失败", err, zap.String("id", id))
	}
	s.logger.Info("Antrag gelöscht", zap.String("id", id), zap.String("by", by))
	s.invalidate(ctx, redis.Key("overview"), redis.Key("district", app.DistrictID))
	return nil
}

func (s *applicationService) Restore(ctx context.Context, id string) (err error) {
	defer s.observe("application.restore", time.Now(), &err)

	uow := s.store.NewUnitOfWork()
	uow.Applications().Restore(id)
	if err := uow.SaveChanges(ctx); err != nil {
		return s.fail("恢复申请失败", notFound(err, ErrApplicationNotFound), zap.String("id", id))
	}
	s.invalidate(ctx, redis.Key("overview"))
	return nil
}
