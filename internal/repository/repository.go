package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kgv/backend/internal/model"
	"kgv/backend/internal/spec"
)

// Reader 只读访问：无副作用，读取已提交状态或当前事务
type Reader[T model.Entity] interface {
	GetByID(ctx context.Context, id string, preload ...string) (*T, error)
	GetAll(ctx context.Context, filter spec.Predicate, sorts []spec.Sort, preload ...string) ([]T, error)
	GetPaged(ctx context.Context, filter spec.Predicate, sorts []spec.Sort, page spec.Page) (spec.PageResult[T], error)
	Count(ctx context.Context, filter spec.Predicate) (int64, error)
	Exists(ctx context.Context, filter spec.Predicate) (bool, error)

	Find(ctx context.Context, s spec.Specification) ([]T, error)
	FindPaged(ctx context.Context, s spec.Specification) (spec.PageResult[T], error)
	CountSpec(ctx context.Context, s spec.Specification) (int64, error)
	ExistsSpec(ctx context.Context, s spec.Specification) (bool, error)

	// CountGrouped counts matching rows per distinct value of column.
	CountGrouped(ctx context.Context, s spec.Specification, column string) (map[string]int64, error)
	// MaxInt returns the largest value of an integer column, 0 for no rows.
	MaxInt(ctx context.Context, s spec.Specification, column string) (int64, error)
	// SumFloat sums a numeric column, 0 for no rows.
	SumFloat(ctx context.Context, s spec.Specification, column string) (float64, error)
}

// AppendOnly is a Reader that can only add rows.
type AppendOnly[T model.Entity] interface {
	Reader[T]
	Add(entity *T)
}

// Repository 通用仓储：写操作仅暂存，SaveChanges / Commit 时才生效
type Repository[T model.Entity] interface {
	Reader[T]
	Add(entity *T)
	AddRange(entities []*T)
	Update(entity *T)
	UpdateRange(entities []*T)
	// UpdateFields writes only the named columns; an Increment value is
	// added to the stored value instead of overwriting it.
	UpdateFields(id string, fields map[string]any)
	// GetForUpdate reads a row and locks it until the open transaction ends.
	GetForUpdate(ctx context.Context, id string) (*T, error)
	Delete(entity *T)
	DeleteByID(id string)
	SoftDelete(id, by string, at time.Time)
	Restore(id string)
}

// Increment 原子增量：UpdateFields 中作为列值使用
type Increment struct{ By int }

// ValidID reports whether id can name a row; all keys are UUIDs.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// gormRepository is the single GORM implementation shared by all entities.
type gormRepository[T model.Entity] struct {
	uow *unitOfWork
}

func newGormRepository[T model.Entity](uow *unitOfWork) *gormRepository[T] {
	return &gormRepository[T]{uow: uow}
}

func (r *gormRepository[T]) base(ctx context.Context, includeDeleted bool) *gorm.DB {
	var zero T
	db := r.uow.conn().WithContext(ctx).Model(&zero)
	if includeDeleted {
		db = db.Unscoped()
	}
	return db
}

// filtered applies the predicate and soft-delete scope, without order or paging.
func (r *gormRepository[T]) filtered(ctx context.Context, s spec.Specification) (*gorm.DB, error) {
	return applyWhere(r.base(ctx, s.IncludeDeleted), s.Where)
}

// ── Reads ──

func (r *gormRepository[T]) GetByID(ctx context.Context, id string, preload ...string) (*T, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	db := r.base(ctx, false)
	for _, assoc := range preload {
		db = db.Preload(assoc)
	}
	var entity T
	if err := db.Where("id = ?", id).Take(&entity).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r *gormRepository[T]) GetForUpdate(ctx context.Context, id string) (*T, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	var entity T
	err := r.base(ctx, false).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&entity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r *gormRepository[T]) GetAll(ctx context.Context, filter spec.Predicate, sorts []spec.Sort, preload ...string) ([]T, error) {
	return r.Find(ctx, spec.Specification{Where: filter, Sorts: sorts, Preload: preload})
}

func (r *gormRepository[T]) GetPaged(ctx context.Context, filter spec.Predicate, sorts []spec.Sort, page spec.Page) (spec.PageResult[T], error) {
	return r.FindPaged(ctx, spec.Specification{Where: filter, Sorts: sorts, Page: &page})
}

func (r *gormRepository[T]) Count(ctx context.Context, filter spec.Predicate) (int64, error) {
	return r.CountSpec(ctx, spec.New(filter))
}

func (r *gormRepository[T]) Exists(ctx context.Context, filter spec.Predicate) (bool, error) {
	return r.ExistsSpec(ctx, spec.New(filter))
}

func (r *gormRepository[T]) Find(ctx context.Context, s spec.Specification) ([]T, error) {
	db, err := r.filtered(ctx, s)
	if err != nil {
		return nil, err
	}
	if db, err = applyOrder(db, s.Sorts); err != nil {
		return nil, err
	}
	for _, assoc := range s.Preload {
		db = db.Preload(assoc)
	}
	if s.Page != nil {
		db = db.Offset(s.Page.Offset()).Limit(s.Page.Size)
	}
	items := make([]T, 0)
	if err := db.Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (r *gormRepository[T]) FindPaged(ctx context.Context, s spec.Specification) (spec.PageResult[T], error) {
	page := spec.NewPage(1, spec.DefaultPageSize)
	if s.Page != nil {
		page = spec.NewPage(s.Page.Number, s.Page.Size)
	}
	s.Page = &page

	total, err := r.CountSpec(ctx, s)
	if err != nil {
		return spec.PageResult[T]{}, err
	}
	if total == 0 || int64(page.Offset()) >= total {
		return spec.NewPageResult[T](nil, total, page), nil
	}
	items, err := r.Find(ctx, s)
	if err != nil {
		return spec.PageResult[T]{}, err
	}
	return spec.NewPageResult(items, total, page), nil
}

func (r *gormRepository[T]) CountSpec(ctx context.Context, s spec.Specification) (int64, error) {
	db, err := r.filtered(ctx, s)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *gormRepository[T]) ExistsSpec(ctx context.Context, s spec.Specification) (bool, error) {
	n, err := r.CountSpec(ctx, s)
	return n > 0, err
}

func (r *gormRepository[T]) CountGrouped(ctx context.Context, s spec.Specification, column string) (map[string]int64, error) {
	if !spec.ValidField(column) {
		return nil, fmt.Errorf("repository: invalid group column %q", column)
	}
	db, err := r.filtered(ctx, s)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Grp *string
		Cnt int64
	}
	if err := db.Select(column + " AS grp, COUNT(*) AS cnt").Group(column).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		key := ""
		if row.Grp != nil {
			key = *row.Grp
		}
		out[key] += row.Cnt
	}
	return out, nil
}

func (r *gormRepository[T]) MaxInt(ctx context.Context, s spec.Specification, column string) (int64, error) {
	if !spec.ValidField(column) {
		return 0, fmt.Errorf("repository: invalid column %q", column)
	}
	db, err := r.filtered(ctx, s)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Select("COALESCE(MAX(" + column + "), 0)").Scan(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *gormRepository[T]) SumFloat(ctx context.Context, s spec.Specification, column string) (float64, error) {
	if !spec.ValidField(column) {
		return 0, fmt.Errorf("repository: invalid column %q", column)
	}
	db, err := r.filtered(ctx, s)
	if err != nil {
		return 0, err
	}
	var sum float64
	if err := db.Select("COALESCE(SUM(" + column + "), 0)").Scan(&sum).Error; err != nil {
		return 0, translate(err)
	}
	return sum, nil
}

// ── Staged writes ──

type identifiable interface{ EnsureID() }

func ensureID[T any](entity *T) {
	if e, ok := any(entity).(identifiable); ok {
		e.EnsureID()
	}
}

func (r *gormRepository[T]) Add(entity *T) {
	ensureID(entity)
	r.uow.stage(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(entity).Error
	})
}

func (r *gormRepository[T]) AddRange(entities []*T) {
	if len(entities) == 0 {
		return
	}
	for _, e := range entities {
		ensureID(e)
	}
	r.uow.stage(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(entities).Error
	})
}

func (r *gormRepository[T]) Update(entity *T) {
	r.uow.stage(func(tx *gorm.DB) error {
		return r.update(tx, entity)
	})
}

func (r *gormRepository[T]) UpdateRange(entities []*T) {
	r.uow.stage(func(tx *gorm.DB) error {
		for _, e := range entities {
			if err := r.update(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// update writes every column except identity, creation audit and the
// soft-delete marker, which have their own operations.
func (r *gormRepository[T]) update(tx *gorm.DB, entity *T) error {
	res := tx.Model(entity).
		Select("*").
		Omit("id", "created_at", "created_by", "deleted_at", "deleted_by", clause.Associations).
		Updates(entity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository[T]) UpdateFields(id string, fields map[string]any) {
	r.uow.stage(func(tx *gorm.DB) error {
		if !ValidID(id) {
			return ErrNotFound
		}
		if len(fields) == 0 {
			return r.existsUnscoped(tx, id)
		}
		values := make(map[string]any, len(fields))
		for col, v := range fields {
			if !spec.ValidField(col) {
				return fmt.Errorf("repository: invalid update column %q", col)
			}
			if inc, ok := v.(Increment); ok {
				v = gorm.Expr(col+" + ?", inc.By)
			}
			values[col] = v
		}
		var zero T
		res := tx.Model(&zero).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormRepository[T]) Delete(entity *T) {
	r.DeleteByID((*entity).EntityID())
}

func (r *gormRepository[T]) DeleteByID(id string) {
	r.uow.stage(func(tx *gorm.DB) error {
		if !ValidID(id) {
			return ErrNotFound
		}
		var zero T
		res := tx.Unscoped().Where("id = ?", id).Delete(&zero)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormRepository[T]) SoftDelete(id, by string, at time.Time) {
	r.uow.stage(func(tx *gorm.DB) error {
		if !ValidID(id) {
			return ErrNotFound
		}
		var zero T
		if _, ok := any(&zero).(model.SoftDeletable); !ok {
			return ErrSoftDeleteUnsupported
		}
		var deletedBy *string
		if by != "" {
			deletedBy = &by
		}
		res := tx.Model(&zero).Where("id = ?", id).
			Updates(map[string]any{"deleted_at": at, "deleted_by": deletedBy})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.existsUnscoped(tx, id)
		}
		return nil
	})
}

func (r *gormRepository[T]) Restore(id string) {
	r.uow.stage(func(tx *gorm.DB) error {
		if !ValidID(id) {
			return ErrNotFound
		}
		var zero T
		if _, ok := any(&zero).(model.SoftDeletable); !ok {
			return ErrSoftDeleteUnsupported
		}
		res := tx.Unscoped().Model(&zero).Where("id = ?", id).
			Updates(map[string]any{"deleted_at": nil, "deleted_by": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// existsUnscoped returns nil when the row exists (deleted or not).
func (r *gormRepository[T]) existsUnscoped(tx *gorm.DB, id string) error {
	var zero T
	var n int64
	if err := tx.Unscoped().Model(&zero).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
