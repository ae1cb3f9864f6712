// Package repotest provides an in-memory SQLite database with the KGV schema
// for repository and service tests.
package repotest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kgv/backend/internal/model"
	"kgv/backend/internal/repository"
)

// NewDB opens a private in-memory database migrated from the models. The
// pool holds a single connection so the database lives as long as the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

// NewStore returns a Store over a fresh database together with the handle.
func NewStore(t testing.TB) (repository.Store, *gorm.DB) {
	t.Helper()
	db := NewDB(t)
	return repository.NewStore(db), db
}
