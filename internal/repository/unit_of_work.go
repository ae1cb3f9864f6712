package repository

import (
	"context"

	"gorm.io/gorm"

	"kgv/backend/internal/model"
)

// UnitOfWork groups staged repository writes into atomic commits. It is not
// safe for concurrent use; create one per operation.
type UnitOfWork interface {
	Districts() Repository[model.District]
	Plots() Repository[model.Plot]
	Applications() Repository[model.Application]
	History() AppendOnly[model.HistoryEntry]
	FileNumbers() Repository[model.FileNumber]

	// SaveChanges flushes every staged write in one storage transaction (the
	// explicit one when open). On failure nothing is persisted, the explicit
	// transaction is rolled back and the staged writes are discarded.
	SaveChanges(ctx context.Context) error
	// BeginTransaction opens an explicit transaction; nesting is an error.
	BeginTransaction(ctx context.Context) error
	// Commit flushes staged writes and commits the explicit transaction.
	Commit(ctx context.Context) error
	// Rollback discards staged writes and the explicit transaction, if any.
	// Safe to defer after Commit.
	Rollback() error
	InTransaction() bool
}

// Store creates units of work.
type Store interface {
	NewUnitOfWork() UnitOfWork
}

type gormStore struct {
	db *gorm.DB
}

// NewStore 创建基于 GORM 的 Store
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) NewUnitOfWork() UnitOfWork {
	u := &unitOfWork{db: s.db}
	u.districts = newGormRepository[model.District](u)
	u.plots = newGormRepository[model.Plot](u)
	u.applications = newGormRepository[model.Application](u)
	u.history = newGormRepository[model.HistoryEntry](u)
	u.fileNumbers = newGormRepository[model.FileNumber](u)
	return u
}

type unitOfWork struct {
	db      *gorm.DB
	tx      *gorm.DB
	pending []func(tx *gorm.DB) error

	districts    *gormRepository[model.District]
	plots        *gormRepository[model.Plot]
	applications *gormRepository[model.Application]
	history      *gormRepository[model.HistoryEntry]
	fileNumbers  *gormRepository[model.FileNumber]
}

func (u *unitOfWork) Districts() Repository[model.District]       { return u.districts }
func (u *unitOfWork) Plots() Repository[model.Plot]               { return u.plots }
func (u *unitOfWork) Applications() Repository[model.Application] { return u.applications }
func (u *unitOfWork) History() AppendOnly[model.HistoryEntry]     { return u.history }
func (u *unitOfWork) FileNumbers() Repository[model.FileNumber]   { return u.fileNumbers }

func (u *unitOfWork) InTransaction() bool { return u.tx != nil }

// conn is the handle reads go through: the open transaction, else the pool.
func (u *unitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *unitOfWork) stage(op func(tx *gorm.DB) error) {
	u.pending = append(u.pending, op)
}

func (u *unitOfWork) SaveChanges(ctx context.Context) error {
	ops := u.pending
	u.pending = nil
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		u.abort()
		return err
	}

	if u.tx == nil {
		return translate(u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return flush(tx, ops)
		}))
	}
	if err := flush(u.tx.WithContext(ctx), ops); err != nil {
		u.abort()
		return translate(err)
	}
	return nil
}

func flush(tx *gorm.DB, ops []func(tx *gorm.DB) error) error {
	for _, op := range ops {
		if err := op(tx); err != nil {
			return err
		}
	}
	return nil
}

// abort rolls back the explicit transaction, if any.
func (u *unitOfWork) abort() {
	if u.tx != nil {
		u.tx.Rollback()
		u.tx = nil
	}
}

func (u *unitOfWork) BeginTransaction(ctx context.Context) error {
	if u.tx != nil {
		return ErrTransactionActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	if err := u.SaveChanges(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		u.abort()
		return err
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *unitOfWork) Rollback() error {
	u.pending = nil
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}
