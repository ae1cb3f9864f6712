package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/repository/repotest"
)

// ── 测试辅助 ──

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memCache is an in-process StatisticsCache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	hits    int
	deletes int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

type testEnv struct {
	svc   *Service
	db    *gorm.DB
	clock *fakeClock
	ctx   context.Context
}

func setupTestService(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store, db := repotest.NewStore(t)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &testEnv{
		svc:   NewService(store, zap.NewNop(), opts...),
		db:    db,
		clock: clock,
		ctx:   context.Background(),
	}
}

func (e *testEnv) district(t *testing.T, name string) *dto.DistrictResponse {
	t.Helper()
	d, err := e.svc.District.Create(e.ctx, &dto.CreateDistrictRequest{Name: name, TotalArea: 500, CreatedBy: "admin"})
	require.NoError(t, err, "创建区 %s 应成功", name)
	return d
}

func (e *testEnv) plot(t *testing.T, districtID, number string) *dto.PlotResponse {
	t.Helper()
	p, err := e.svc.Plot.Create(e.ctx, &dto.CreatePlotRequest{
		DistrictID: districtID,
		Number:     number,
		Area:       300,
		Gemarkung:  "Musterau",
		Flur:       "7",
		CreatedBy:  "admin",
	})
	require.NoError(t, err, "创建地块 %s 应成功", number)
	return p
}

func (e *testEnv) application(t *testing.T, districtID, personID, lastName string) *dto.ApplicationResponse {
	t.Helper()
	a, err := e.svc.Application.Create(e.ctx, &dto.CreateApplicationRequest{
		PersonID:   personID,
		DistrictID: districtID,
		Applicant:  dto.PersonNameInput{Salutation: "frau", FirstName: "Erika", LastName: lastName},
		Street:     "Gartenweg 1",
		PostalCode: "12345",
		City:       "Musterstadt",
		CreatedBy:  "admin",
	})
	require.NoError(t, err, "创建申请应成功")
	return a
}

// afterFirstRead runs stmt once, on the same connection, right after the next
// query against table. It stands in for a writer that commits between a
// service's read and its write.
func (e *testEnv) afterFirstRead(t *testing.T, table, stmt string, args ...any) {
	t.Helper()
	var once sync.Once
	err := e.db.Callback().Query().After("gorm:query").Register("test:after_first_read", func(db *gorm.DB) {
		if db.Statement.Table != table || db.Error != nil {
			return
		}
		once.Do(func() {
			db.Session(&gorm.Session{NewDB: true}).Exec(stmt, args...)
		})
	})
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }
