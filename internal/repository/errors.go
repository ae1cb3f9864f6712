package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperr "kgv/backend/pkg/errors"
)

var (
	// ErrNotFound is returned for a missing row on read, hard delete and update.
	ErrNotFound = apperr.NotFound("Datensatz nicht gefunden")
	// ErrDuplicate wraps unique-constraint violations.
	ErrDuplicate = apperr.Conflict("Datensatz existiert bereits")
	// ErrReferenced wraps foreign-key violations.
	ErrReferenced = apperr.Conflict("Datensatz wird noch referenziert")

	ErrTransactionActive     = errors.New("repository: transaction already active")
	ErrNoTransaction         = errors.New("repository: no active transaction")
	ErrSoftDeleteUnsupported = errors.New("repository: entity does not support soft delete")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translate maps driver errors onto the failure taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(ErrDuplicate, err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.Wrap(ErrReferenced, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(ErrDuplicate, err)
		case pgForeignKeyViolation:
			return apperr.Wrap(ErrReferenced, err)
		}
	}
	return err
}
