package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/model"
	"kgv/backend/internal/repository/repotest"
	apperr "kgv/backend/pkg/errors"
)

// ── Create 测试 ──

func TestPlotService_Create_IncrementsPlotCount(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")

	p := env.plot(t, d.ID, "P01")
	assert.Equal(t, string(model.PlotAvailable), p.Status)
	assert.Equal(t, "M", p.DistrictName)

	got, err := env.svc.District.GetByID(env.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlotCount)
}

func TestPlotService_Create_NumberUniqueCaseInsensitive(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	env.plot(t, d.ID, "a1")

	_, err := env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: d.ID, Number: "A1"})
	if !errors.Is(err, ErrPlotNumberExists) {
		t.Fatalf("期望 ErrPlotNumberExists，实际: %v", err)
	}
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// 其他区可使用相同编号
	n := env.district(t, "N")
	env.plot(t, n.ID, "A1")

	got, err := env.svc.District.GetByID(env.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlotCount, "失败的创建不应改变计数")
}

func TestPlotService_Create_DistrictMustBeActive(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	_, err := env.svc.District.ChangeStatus(env.ctx, d.ID, &dto.ChangeDistrictStatusRequest{Status: "inactive"})
	require.NoError(t, err)

	_, err = env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: d.ID, Number: "1"})
	if !errors.Is(err, ErrPlotDistrictInactive) {
		t.Fatalf("期望 ErrPlotDistrictInactive，实际: %v", err)
	}

	for _, id := range []string{"missing", uuid.NewString()} {
		_, err = env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: id, Number: "1"})
		if !errors.Is(err, ErrDistrictNotFound) {
			t.Fatalf("期望 ErrDistrictNotFound，实际: %v", err)
		}
	}
}

func TestPlotService_Create_CountsAgainstCurrentRow(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	env.plot(t, d.ID, "P01")

	// 读取区之后另一请求已提交一块地块
	env.afterFirstRead(t, "districts",
		"UPDATE districts SET plot_count = plot_count + 1 WHERE id = ?", d.ID)
	env.plot(t, d.ID, "P02")

	var count int
	require.NoError(t, env.db.Model(&model.District{}).Select("plot_count").
		Where("id = ?", d.ID).Scan(&count).Error)
	assert.Equal(t, 3, count)
}

func TestPlotService_Delete_DecrementsInPlace(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	env.plot(t, d.ID, "P02")
	_, err := env.svc.District.Update(env.ctx, d.ID, &dto.UpdateDistrictRequest{Description: ptr("Süd")})
	require.NoError(t, err)

	require.NoError(t, env.svc.Plot.Delete(env.ctx, p.ID, nil))

	got, err := env.svc.District.GetByID(env.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlotCount)
	assert.Equal(t, "Süd", got.Description)
}

// ── List / Update 测试 ──

func TestPlotService_List_Filters(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	_, err := env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: d.ID, Number: "1", Area: 200, HasWater: true, Priority: 1})
	require.NoError(t, err)
	_, err = env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: d.ID, Number: "2", Area: 400, HasWater: true, Priority: 3})
	require.NoError(t, err)
	_, err = env.svc.Plot.Create(env.ctx, &dto.CreatePlotRequest{DistrictID: d.ID, Number: "3", Area: 600, Priority: 2})
	require.NoError(t, err)

	page, err := env.svc.Plot.List(env.ctx, &dto.PlotListRequest{
		PaginationRequest: dto.PaginationRequest{SortBy: "priority", SortDir: "desc"},
		DistrictID:        d.ID,
		HasWater:          ptr(true),
		MinArea:           ptr(300.0),
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2", page.Items[0].Number)
	assert.Equal(t, "M", page.Items[0].DistrictName)

	page, err = env.svc.Plot.List(env.ctx, &dto.PlotListRequest{
		PaginationRequest: dto.PaginationRequest{SortBy: "priority", SortDir: "desc"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{page.Items[0].Number, page.Items[1].Number, page.Items[2].Number})

	_, err = env.svc.Plot.List(env.ctx, &dto.PlotListRequest{DistrictID: "M"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "district_id 须为 UUID，实际: %v", err)
}

func TestPlotService_Update_RenumberChecksUniqueness(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	env.plot(t, d.ID, "A1")
	p := env.plot(t, d.ID, "B1")

	_, err := env.svc.Plot.Update(env.ctx, p.ID, &dto.UpdatePlotRequest{Number: ptr("a1")})
	if !errors.Is(err, ErrPlotNumberExists) {
		t.Fatalf("期望 ErrPlotNumberExists，实际: %v", err)
	}

	// 仅大小写变化不与自身冲突
	got, err := env.svc.Plot.Update(env.ctx, p.ID, &dto.UpdatePlotRequest{Number: ptr("b1"), Area: ptr(420.0)})
	require.NoError(t, err)
	assert.Equal(t, "b1", got.Number)
	assert.Equal(t, 420.0, got.Area)
	assert.Equal(t, "Musterau", got.Gemarkung, "未提供的字段保持不变")
}

// ═══════════════════════════════════════════════════════════
// Assign 测试
// ═══════════════════════════════════════════════════════════

func TestPlotService_Assign_ByPersonID(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	personX := "7d3f1c2a-5b6e-4f70-8a91-b2c3d4e5f601"
	a := env.application(t, d.ID, personX, "Muster")

	res, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, PersonID: personX, AssignedBy: "sachbearbeiter"})
	require.NoError(t, err)
	assert.Equal(t, string(model.PlotAssigned), res.Plot.Status)
	assert.Equal(t, a.ID, res.ApplicationID)
	assert.False(t, res.Forced)

	// 提交后同一次读取中两者均可见
	gotPlot, err := env.svc.Plot.GetByID(env.ctx, p.ID)
	require.NoError(t, err)
	gotApp, err := env.svc.Application.GetByID(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.PlotAssigned), gotPlot.Status)
	assert.Equal(t, p.ID, gotApp.AssignedPlotID)
	require.NotNil(t, gotPlot.AssignedAt)

	history, err := env.svc.Application.History(env.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	last := history[1]
	assert.Equal(t, 2, last.Sequence)
	assert.Equal(t, string(model.HistoryContractCreated), last.Kind)
	assert.Equal(t, "P01", last.Parcel)
	assert.Equal(t, "Musterau", last.Gemarkung)
	assert.Equal(t, "7", last.Flur)
	assert.Equal(t, "300 m²", last.SizeInfo)
	assert.Empty(t, last.Comment)
}

func TestPlotService_Assign_PersonPicksNewestOpenApplication(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	person := "7d3f1c2a-5b6e-4f70-8a91-b2c3d4e5f602"

	older := env.application(t, d.ID, person, "Muster")
	env.clock.Advance(24 * time.Hour)
	newer := env.application(t, d.ID, person, "Muster")
	env.clock.Advance(24 * time.Hour)
	closed := env.application(t, d.ID, person, "Muster")
	_, err := env.svc.Application.ChangeStatus(env.ctx, closed.ID, &dto.ChangeApplicationStatusRequest{Status: "cancelled"})
	require.NoError(t, err)

	res, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, PersonID: person})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, res.ApplicationID)
	assert.NotEqual(t, older.ID, res.ApplicationID)
}

func TestPlotService_Assign_RequestValidation(t *testing.T) {
	env := setupTestService(t)
	now := env.clock.Now()
	p, x, y := uuid.NewString(), uuid.NewString(), uuid.NewString()

	cases := []struct {
		name string
		req  dto.AssignPlotRequest
	}{
		{"无申请人", dto.AssignPlotRequest{PlotID: p}},
		{"两者都提供", dto.AssignPlotRequest{PlotID: p, PersonID: x, ApplicationID: y}},
		{"缺少地块", dto.AssignPlotRequest{PersonID: x}},
		{"person_id 非 UUID", dto.AssignPlotRequest{PlotID: p, PersonID: "no-such-person"}},
		{"force 无理由", dto.AssignPlotRequest{PlotID: p, PersonID: x, Force: true, Reason: "  "}},
		{"日期过早", dto.AssignPlotRequest{PlotID: p, PersonID: x, AssignmentDate: ptr(now.AddDate(-1, 0, -1))}},
		{"日期过晚", dto.AssignPlotRequest{PlotID: p, PersonID: x, AssignmentDate: ptr(now.AddDate(0, 0, 31))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Plot.Assign(env.ctx, &tc.req)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "期望校验错误，实际: %v", err)
		})
	}
}

func TestPlotService_Assign_WindowBoundsAccepted(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	now := env.clock.Now()

	for i, at := range []time.Time{now.AddDate(-1, 0, 0), now.AddDate(0, 0, 30)} {
		p := env.plot(t, d.ID, string(rune('A'+i)))
		a := env.application(t, d.ID, "", "Muster")
		_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: a.ID, AssignmentDate: &at})
		require.NoError(t, err, "边界日期 %s 应被接受", at)
	}
}

func TestPlotService_Assign_ForceWithoutReasonAlwaysFails(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	a := env.application(t, d.ID, "", "Muster")

	for i, status := range []string{"", "reserved", "unavailable", "decommissioned"} {
		p := env.plot(t, d.ID, string(rune('A'+i)))
		if status == "reserved" {
			_, err := env.svc.Plot.Reserve(env.ctx, p.ID, "")
			require.NoError(t, err)
		} else if status != "" {
			_, err := env.svc.Plot.ChangeStatus(env.ctx, p.ID, &dto.ChangePlotStatusRequest{Status: status})
			require.NoError(t, err)
		}
		_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: a.ID, Force: true})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "状态 %q: 期望校验错误，实际: %v", status, err)
	}
}

func TestPlotService_Assign_StatusRules(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")

	setup := map[string]func(id string){
		"available": func(string) {},
		"reserved": func(id string) {
			_, err := env.svc.Plot.Reserve(env.ctx, id, "")
			require.NoError(t, err)
		},
		"assigned": func(id string) {
			other := env.application(t, d.ID, "", "Vorher")
			_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: id, ApplicationID: other.ID})
			require.NoError(t, err)
		},
		"unavailable": func(id string) {
			_, err := env.svc.Plot.ChangeStatus(env.ctx, id, &dto.ChangePlotStatusRequest{Status: "unavailable"})
			require.NoError(t, err)
		},
		"decommissioned": func(id string) {
			_, err := env.svc.Plot.ChangeStatus(env.ctx, id, &dto.ChangePlotStatusRequest{Status: "decommissioned"})
			require.NoError(t, err)
		},
	}
	want := map[string]bool{"available": true, "reserved": true, "assigned": false, "unavailable": false, "decommissioned": false}

	for status, ok := range want {
		p := env.plot(t, d.ID, "P-"+status)
		setup[status](p.ID)
		a := env.application(t, d.ID, "", "Muster")

		res, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: a.ID})
		if ok {
			require.NoError(t, err, "状态 %s 应可分配", status)
			assert.Equal(t, string(model.PlotAssigned), res.Plot.Status)
			continue
		}
		assert.True(t, apperr.IsKind(err, apperr.KindConflict), "状态 %s: 期望冲突，实际: %v", status, err)
		got, err := env.svc.Plot.GetByID(env.ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status, "失败的分配不应修改地块")
		app, err := env.svc.Application.GetByID(env.ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, app.AssignedPlotID, "失败的分配不应修改申请")
	}
}

func TestPlotService_Assign_ForcedOverridesAndLogs(t *testing.T) {
	store, _ := repotest.NewStore(t)
	core, logs := observer.New(zapcore.InfoLevel)
	clock := newFakeClock()
	svc := NewService(store, zap.New(core), WithClock(clock.Now))
	env := &testEnv{svc: svc, clock: clock, ctx: t.Context()}

	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	first := env.application(t, d.ID, "", "Erster")
	second := env.application(t, d.ID, "", "Zweiter")
	_, err := svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: first.ID})
	require.NoError(t, err)

	res, err := svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{
		PlotID:        p.ID,
		ApplicationID: second.ID,
		Force:         true,
		Reason:        "Tausch nach Vorstandsbeschluss",
		AssignedBy:    "vorstand",
	})
	require.NoError(t, err)
	assert.True(t, res.Forced)

	gotFirst, err := svc.Application.GetByID(env.ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, gotFirst.AssignedPlotID, "被覆盖的申请引用应清除")
	gotSecond, err := svc.Application.GetByID(env.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, gotSecond.AssignedPlotID)

	history, err := svc.Application.History(env.ctx, second.ID)
	require.NoError(t, err)
	assert.Contains(t, history[len(history)-1].Comment, "Tausch nach Vorstandsbeschluss")

	warns := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("Erzwungene Parzellenzuweisung").All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.Equal(t, "Tausch nach Vorstandsbeschluss", fields["reason"])
	assert.Equal(t, "vorstand", fields["by"])
	assert.Equal(t, "assigned", fields["previous_status"])
}

func TestPlotService_Assign_NotFound(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	a := env.application(t, d.ID, "", "Muster")

	_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: "missing", ApplicationID: a.ID})
	if !errors.Is(err, ErrPlotNotFound) {
		t.Fatalf("期望 ErrPlotNotFound，实际: %v", err)
	}
	_, err = env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: "missing"})
	if !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("期望 ErrApplicationNotFound，实际: %v", err)
	}
	_, err = env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, PersonID: uuid.NewString()})
	if !errors.Is(err, ErrApplicantNotFound) {
		t.Fatalf("期望 ErrApplicantNotFound，实际: %v", err)
	}
}

// ── Release / ChangeStatus / Delete 测试 ──

func TestPlotService_Release_ClearsApplication(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	a := env.application(t, d.ID, "", "Muster")
	_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: a.ID})
	require.NoError(t, err)

	released, err := env.svc.Plot.Release(env.ctx, p.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, string(model.PlotAvailable), released.Status)
	assert.Nil(t, released.AssignedAt)

	app, err := env.svc.Application.GetByID(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, app.AssignedPlotID)

	_, err = env.svc.Plot.Release(env.ctx, p.ID, "admin")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "空闲地块不可释放")
}

func TestPlotService_Reserve(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")

	got, err := env.svc.Plot.Reserve(env.ctx, p.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, string(model.PlotReserved), got.Status)

	_, err = env.svc.Plot.Reserve(env.ctx, p.ID, "admin")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestPlotService_ChangeStatus_Guarded(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")

	_, err := env.svc.Plot.ChangeStatus(env.ctx, p.ID, &dto.ChangePlotStatusRequest{Status: "decommissioned"})
	require.NoError(t, err)
	_, err = env.svc.Plot.ChangeStatus(env.ctx, p.ID, &dto.ChangePlotStatusRequest{Status: "available"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "decommissioned 为终态")

	_, err = env.svc.Plot.ChangeStatus(env.ctx, p.ID, &dto.ChangePlotStatusRequest{Status: "assigned"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "assigned 只能经由 Assign")
}

func TestPlotService_Delete(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	free := env.plot(t, d.ID, "P01")
	taken := env.plot(t, d.ID, "P02")
	a := env.application(t, d.ID, "", "Muster")
	_, err := env.svc.Plot.Assign(env.ctx, &dto.AssignPlotRequest{PlotID: taken.ID, ApplicationID: a.ID})
	require.NoError(t, err)

	require.NoError(t, env.svc.Plot.Delete(env.ctx, free.ID, nil))
	_, err = env.svc.Plot.GetByID(env.ctx, free.ID)
	assert.True(t, errors.Is(err, ErrPlotNotFound))

	err = env.svc.Plot.Delete(env.ctx, taken.ID, &dto.DeleteRequest{})
	if !errors.Is(err, ErrPlotAssignedNoForce) {
		t.Fatalf("期望 ErrPlotAssignedNoForce，实际: %v", err)
	}

	require.NoError(t, env.svc.Plot.Delete(env.ctx, taken.ID, &dto.DeleteRequest{Force: true, DeletedBy: "admin"}))
	app, err := env.svc.Application.GetByID(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, app.AssignedPlotID, "force 删除应清除申请引用")

	got, err := env.svc.District.GetByID(env.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PlotCount)

	err = env.svc.Plot.Delete(env.ctx, "missing", nil)
	assert.True(t, errors.Is(err, ErrPlotNotFound))
}

func TestPlotService_Assign_CancelledContextLeavesNoTrace(t *testing.T) {
	env := setupTestService(t)
	d := env.district(t, "M")
	p := env.plot(t, d.ID, "P01")
	a := env.application(t, d.ID, "", "Muster")

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()
	_, err := env.svc.Plot.Assign(ctx, &dto.AssignPlotRequest{PlotID: p.ID, ApplicationID: a.ID})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnexpected))

	got, err := env.svc.Plot.GetByID(env.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.PlotAvailable), got.Status)
	history, err := env.svc.Application.History(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
