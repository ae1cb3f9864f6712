package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgv/backend/internal/model"
	"kgv/backend/internal/repository"
	"kgv/backend/internal/repository/repotest"
	"kgv/backend/internal/spec"
	apperr "kgv/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Predicate compilation
// ═══════════════════════════════════════════════════════════

func TestToSQL(t *testing.T) {
	cases := []struct {
		name     string
		pred     spec.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{"nil", nil, "", nil},
		{"equals", spec.Equals{Field: "status", Value: "active"}, "status = ?", []any{"active"}},
		{"in", spec.OneOf("district_id", "d1", "d2"), "district_id IN (?,?)", []any{"d1", "d2"}},
		{"empty in", spec.In{Field: "district_id"}, "(1=0)", nil},
		{"range", spec.Range{Field: "area", Min: 10.0, Max: 20.0}, "(area >= ? AND area <= ?)", []any{10.0, 20.0}},
		{"open range", spec.Range{Field: "area", Max: 20.0}, "(area <= ?)", []any{20.0}},
		{
			"contains escapes wildcards",
			spec.TextContains{Fields: []string{"name"}, Term: "50%_A"},
			`(LOWER(name) LIKE ? ESCAPE '\')`,
			[]any{`%50\%\_a%`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args, err := repository.ToSQL(tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, sql)
			if tc.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tc.wantArgs, args)
			}
		})
	}
}

func TestToSQL_And(t *testing.T) {
	p := spec.Where(
		spec.Contains("nord", "name", "display_name"),
		spec.Equals{Field: "status", Value: "active"},
	).Build()

	sql, args, err := repository.ToSQL(p)
	require.NoError(t, err)
	assert.Equal(t, `((LOWER(name) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\') AND status = ?)`, sql)
	assert.Equal(t, []any{"%nord%", "%nord%", "active"}, args)
}

func TestToSQL_RejectsUnsafeField(t *testing.T) {
	_, _, err := repository.ToSQL(spec.Equals{Field: "status = 'x' OR 1=1 --", Value: 1})
	assert.Error(t, err)
}

// ═══════════════════════════════════════════════════════════
// GORM repository over SQLite
// ═══════════════════════════════════════════════════════════

func newDistrict(t *testing.T, name string) *model.District {
	t.Helper()
	d, err := model.NewDistrict(name)
	require.NoError(t, err)
	return d
}

func seedDistricts(t *testing.T, store repository.Store, names ...string) []*model.District {
	t.Helper()
	uow := store.NewUnitOfWork()
	out := make([]*model.District, 0, len(names))
	for i, n := range names {
		d := newDistrict(t, n)
		d.SortOrder = i
		uow.Districts().Add(d)
		out = append(out, d)
	}
	require.NoError(t, uow.SaveChanges(context.Background()))
	return out
}

func TestRepository_WritesAreStagedUntilSave(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	uow := store.NewUnitOfWork()

	d := newDistrict(t, "M")
	uow.Districts().Add(d)
	require.NotEmpty(t, d.ID, "Add assigns the id immediately")

	_, err := uow.Districts().GetByID(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, uow.SaveChanges(ctx))
	got, err := store.NewUnitOfWork().Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "M", got.Name)
	assert.Equal(t, model.DistrictActive, got.Status)
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	uow := store.NewUnitOfWork()
	loaded, err := uow.Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	loaded.TotalArea = 750
	loaded.StampUpdated("u1", time.Now().Add(time.Minute))
	uow.Districts().Update(loaded)
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := store.NewUnitOfWork().Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, got.TotalArea)
	assert.Equal(t, "M", got.Name)
	require.NotNil(t, got.UpdatedBy)
	assert.Equal(t, "u1", *got.UpdatedBy)
}

func TestRepository_UpdateMissingIsNotFound(t *testing.T) {
	store, _ := repotest.NewStore(t)
	uow := store.NewUnitOfWork()
	ghost := newDistrict(t, "X")
	uow.Districts().Update(ghost)
	err := uow.SaveChanges(context.Background())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestRepository_UpdateFieldsKeepsOtherColumns(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	// 旧快照在另一写入之后才落库：定向写不得覆盖别的列
	stale, err := store.NewUnitOfWork().Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		uow := store.NewUnitOfWork()
		uow.Districts().UpdateFields(d.ID, map[string]any{"plot_count": repository.Increment{By: 1}})
		require.NoError(t, uow.SaveChanges(ctx))
	}

	uow := store.NewUnitOfWork()
	uow.Districts().UpdateFields(stale.ID, map[string]any{
		"status":     string(model.DistrictInactive),
		"updated_by": "u1",
	})
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := store.NewUnitOfWork().Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PlotCount)
	assert.Equal(t, model.DistrictInactive, got.Status)
	assert.Equal(t, "M", got.Name)

	uow = store.NewUnitOfWork()
	uow.Districts().UpdateFields(d.ID, map[string]any{"plot_count": repository.Increment{By: -1}})
	require.NoError(t, uow.SaveChanges(ctx))
	got, err = store.NewUnitOfWork().Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PlotCount)
}

func TestRepository_UpdateFieldsRejects(t *testing.T) {
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	cases := []struct {
		name   string
		id     string
		fields map[string]any
		kind   apperr.Kind
	}{
		{"unknown id", newDistrict(t, "X").ID, map[string]any{"name": "Y"}, apperr.KindNotFound},
		{"malformed id", "kein-schlüssel", map[string]any{"name": "Y"}, apperr.KindNotFound},
		{"unsafe column", d.ID, map[string]any{"name; drop": "Y"}, apperr.KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uow := store.NewUnitOfWork()
			uow.Districts().UpdateFields(tc.id, tc.fields)
			err := uow.SaveChanges(context.Background())
			assert.True(t, apperr.IsKind(err, tc.kind), "got %v", err)
		})
	}
}

func TestRepository_GetForUpdate(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.BeginTransaction(ctx))
	defer uow.Rollback()

	got, err := uow.Districts().GetForUpdate(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "M", got.Name)

	_, err = uow.Districts().GetForUpdate(ctx, newDistrict(t, "X").ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, uow.Commit(ctx))
}

func TestRepository_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	uow := store.NewUnitOfWork()

	_, err := uow.Districts().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	uow.Districts().DeleteByID("missing")
	err = uow.SaveChanges(ctx)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestRepository_HardDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	uow := store.NewUnitOfWork()
	uow.Districts().DeleteByID(d.ID)
	require.NoError(t, uow.SaveChanges(ctx))

	n, err := uow.Districts().CountSpec(ctx, spec.Specification{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Zero(t, n, "hard delete must remove the row physically")

	uow.Districts().DeleteByID(d.ID)
	assert.ErrorIs(t, uow.SaveChanges(ctx), repository.ErrNotFound)
}

func TestRepository_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M", "N")[0]
	repo := store.NewUnitOfWork()

	uow := store.NewUnitOfWork()
	uow.Districts().SoftDelete(d.ID, "u1", time.Now())
	require.NoError(t, uow.SaveChanges(ctx))

	_, err := repo.Districts().GetByID(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	visible, _ := repo.Districts().Count(ctx, nil)
	all, _ := repo.Districts().CountSpec(ctx, spec.Specification{IncludeDeleted: true})
	assert.Equal(t, int64(1), visible)
	assert.Equal(t, int64(2), all)

	// Soft-deleting twice is a no-op.
	uow.Districts().SoftDelete(d.ID, "u1", time.Now())
	require.NoError(t, uow.SaveChanges(ctx))

	for i := 0; i < 2; i++ {
		uow.Districts().Restore(d.ID)
		require.NoError(t, uow.SaveChanges(ctx), "restore #%d", i+1)
	}
	got, err := repo.Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())

	uow.Districts().Restore("does-not-exist")
	assert.ErrorIs(t, uow.SaveChanges(ctx), repository.ErrNotFound)
}

func TestRepository_PagedEmpty(t *testing.T) {
	store, _ := repotest.NewStore(t)
	page, err := store.NewUnitOfWork().Districts().GetPaged(context.Background(), nil, nil, spec.NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.TotalCount)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestRepository_PagedSortedFiltered(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	names := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		names = append(names, fmt.Sprintf("B%02d", i))
	}
	seedDistricts(t, store, names...)
	repo := store.NewUnitOfWork().Districts()

	page, err := repo.GetPaged(ctx, nil, []spec.Sort{spec.Desc("name")}, spec.NewPage(2, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "B14", page.Items[0].Name)

	past, err := repo.GetPaged(ctx, nil, nil, spec.NewPage(9, 10))
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.Equal(t, int64(25), past.TotalCount)

	lo, hi := 3, 5
	filtered, err := repo.GetAll(ctx, spec.Where(spec.Contains("b0", "name"), spec.Between("sort_order", &lo, &hi)).Build(), []spec.Sort{spec.Asc("sort_order")})
	require.NoError(t, err)
	require.Len(t, filtered, 3)
	assert.Equal(t, []string{"B03", "B04", "B05"}, []string{filtered[0].Name, filtered[1].Name, filtered[2].Name})
}

func TestRepository_TextSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	ds := seedDistricts(t, store, "A", "B")
	uow := store.NewUnitOfWork()
	ds[0].DisplayName = "50% Garten"
	ds[1].DisplayName = "500 Garten"
	uow.Districts().UpdateRange(ds)
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := uow.Districts().GetAll(ctx, spec.Contains("50%", "display_name"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)

	exists, err := uow.Districts().Exists(ctx, spec.Contains("GARTEN", "display_name"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_CountGroupedAndMax(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	ds := seedDistricts(t, store, "A", "B")

	uow := store.NewUnitOfWork()
	for i, num := range []string{"1", "2", "3"} {
		p, err := model.NewPlot(ds[i%2].ID, num)
		require.NoError(t, err)
		p.Priority = i * 10
		uow.Plots().Add(p)
	}
	require.NoError(t, uow.SaveChanges(ctx))

	counts, err := uow.Plots().CountGrouped(ctx, spec.New(spec.OneOf("district_id", ds[0].ID, ds[1].ID)), "district_id")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{ds[0].ID: 2, ds[1].ID: 1}, counts)

	top, err := uow.Plots().MaxInt(ctx, spec.New(spec.Equals{Field: "district_id", Value: ds[0].ID}), "priority")
	require.NoError(t, err)
	assert.Equal(t, int64(20), top)

	area, err := uow.Plots().SumFloat(ctx, spec.Specification{}, "priority")
	require.NoError(t, err)
	assert.Equal(t, 30.0, area)

	none, err := uow.FileNumbers().MaxInt(ctx, spec.Specification{}, "number")
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestRepository_PreloadDistrict(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	d := seedDistricts(t, store, "M")[0]

	uow := store.NewUnitOfWork()
	p, _ := model.NewPlot(d.ID, "P01")
	uow.Plots().Add(p)
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := uow.Plots().GetByID(ctx, p.ID, "District")
	require.NoError(t, err)
	require.NotNil(t, got.District)
	assert.Equal(t, "M", got.District.Name)
}

// ═══════════════════════════════════════════════════════════
// Unit of work
// ═══════════════════════════════════════════════════════════

func TestUnitOfWork_DuplicateIsConflictAndAtomic(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	seedDistricts(t, store, "M")

	uow := store.NewUnitOfWork()
	uow.Districts().Add(newDistrict(t, "N"))
	uow.Districts().Add(newDistrict(t, "M"))
	err := uow.SaveChanges(ctx)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	n, err := uow.Districts().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "no partial state after a failed SaveChanges")

	// Staged writes were discarded.
	require.NoError(t, uow.SaveChanges(ctx))
}

func TestUnitOfWork_Transactions(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	uow := store.NewUnitOfWork()

	assert.ErrorIs(t, uow.Commit(ctx), repository.ErrNoTransaction)
	assert.NoError(t, uow.Rollback())

	require.NoError(t, uow.BeginTransaction(ctx))
	assert.True(t, uow.InTransaction())
	assert.ErrorIs(t, uow.BeginTransaction(ctx), repository.ErrTransactionActive)

	d := newDistrict(t, "M")
	uow.Districts().Add(d)
	require.NoError(t, uow.SaveChanges(ctx))

	// Visible inside the transaction.
	_, err := uow.Districts().GetByID(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, uow.Rollback())
	assert.False(t, uow.InTransaction())
	_, err = uow.Districts().GetByID(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, uow.BeginTransaction(ctx))
	uow.Districts().Add(newDistrict(t, "N"))
	require.NoError(t, uow.Commit(ctx))
	assert.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

	n, _ := uow.Districts().Count(ctx, nil)
	assert.Equal(t, int64(1), n)
}

func TestUnitOfWork_FailedSaveRollsBackTransaction(t *testing.T) {
	ctx := context.Background()
	store, _ := repotest.NewStore(t)
	seedDistricts(t, store, "M")

	uow := store.NewUnitOfWork()
	require.NoError(t, uow.BeginTransaction(ctx))
	uow.Districts().Add(newDistrict(t, "A"))
	require.NoError(t, uow.SaveChanges(ctx))

	uow.Districts().Add(newDistrict(t, "M"))
	require.Error(t, uow.SaveChanges(ctx))
	assert.False(t, uow.InTransaction())

	n, _ := uow.Districts().Count(ctx, nil)
	assert.Equal(t, int64(1), n, "earlier flush inside the transaction is rolled back too")
}

func TestUnitOfWork_CancelledContext(t *testing.T) {
	store, _ := repotest.NewStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uow := store.NewUnitOfWork()
	uow.Districts().Add(newDistrict(t, "M"))
	err := uow.SaveChanges(ctx)
	assert.True(t, errors.Is(err, context.Canceled))

	n, _ := uow.Districts().Count(context.Background(), nil)
	assert.Zero(t, n)
}
