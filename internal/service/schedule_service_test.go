package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/model"
)

// ── 测试辅助 ──

type scheduleFixture struct {
	svc   *scheduleService
	m     *mockRepos
	cache *memoryCache
	clock time.Time
}

func setupTestScheduleService() *scheduleFixture {
	repo, m := newMockRepos()
	cache := newMemoryCache()
	f := &scheduleFixture{m: m, cache: cache, clock: baseNow}
	f.svc = NewScheduleService(repo, ScheduleServiceOptions{
		Cache:       cache,
		CacheTTL:    time.Minute,
		Invalidator: NewScheduleInvalidator(cache, zap.NewNop()),
		BaseURL:     "https://gate.example.com/",
		Location:    time.UTC,
	}, zap.NewNop()).(*scheduleService)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *scheduleFixture) addSchedule(vt model.VisitorType, exit *time.Time) (string, string) {
	ctx := context.Background()
	s := &model.VisitSchedule{
		ResidentID:  "resident-1",
		VisitorType: vt,
		Status:      model.ScheduleStatusActive,
		EntryDate:   baseNow.Add(-time.Hour),
		ExitDate:    exit,
	}
	_ = f.m.schedules.Create(ctx, s)
	v := &model.Visitor{ScheduleID: s.ScheduleID, FirstName: "Grace", LastName: "Hopper"}
	_ = f.m.visitors.Create(ctx, v)
	return s.ScheduleID, v.VisitorID
}

// ── GetDetail ──

func TestGetDetail_AccessControl(t *testing.T) {
	f := setupTestScheduleService()
	sid, _ := f.addSchedule(model.VisitorTypeOneTime, future())
	ctx := context.Background()

	for _, caller := range []*dto.Caller{adminCaller, guardCaller, residentCaller} {
		if _, err := f.svc.GetDetail(ctx, caller, sid); err != nil {
			t.Errorf("caller=%s 应可查看: %v", caller.Role, err)
		}
	}

	other := &dto.Caller{UserID: "resident-2", Role: model.RoleResident}
	if _, err := f.svc.GetDetail(ctx, other, sid); !errors.Is(err, ErrForbidden) {
		t.Errorf("其他住户期望 ErrForbidden，实际: %v", err)
	}
	if _, err := f.svc.GetDetail(ctx, adminCaller, "missing"); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}

func TestMalformedIDs_NotFoundWithoutStorage(t *testing.T) {
	f := setupTestScheduleService()
	sid, _ := f.addSchedule(model.VisitorTypeRecurring, future())
	ctx := context.Background()

	for _, id := range []string{"123", "abc", ""} {
		before := f.m.storageCalls()
		if _, err := f.svc.GetDetail(ctx, adminCaller, id); !errors.Is(err, ErrScheduleNotFound) {
			t.Errorf("GetDetail(%q) 期望 ErrScheduleNotFound，实际: %v", id, err)
		}
		if _, _, err := f.svc.ListEntryLogs(ctx, id, &dto.EntryLogListRequest{}); !errors.Is(err, ErrScheduleNotFound) {
			t.Errorf("ListEntryLogs(%q) 期望 ErrScheduleNotFound，实际: %v", id, err)
		}
		if _, err := f.svc.CalendarICS(ctx, adminCaller, id); !errors.Is(err, ErrScheduleNotFound) {
			t.Errorf("CalendarICS(%q) 期望 ErrScheduleNotFound，实际: %v", id, err)
		}
		if f.m.storageCalls() != before {
			t.Errorf("id=%q 不应访问存储", id)
		}
	}

	if _, err := f.svc.VisitorQRCode(ctx, adminCaller, sid, "7"); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("期望 ErrVisitorNotFound，实际: %v", err)
	}
}

func TestGetDetail_CachesAndInvalidates(t *testing.T) {
	f := setupTestScheduleService()
	sid, _ := f.addSchedule(model.VisitorTypeRecurring, future())
	ctx := context.Background()

	first, err := f.svc.GetDetail(ctx, guardCaller, sid)
	if err != nil {
		t.Fatalf("GetDetail 失败: %v", err)
	}
	if len(first.Visitors) != 1 || first.Visitors[0].FirstName != "Grace" {
		t.Errorf("详情应包含访客: %+v", first.Visitors)
	}
	if _, ok := f.cache.data[ScheduleDetailCacheKey(sid)]; !ok {
		t.Fatal("详情应写入缓存")
	}

	// 命中缓存时不访问存储
	calls := f.m.schedules.count()
	if _, err := f.svc.GetDetail(ctx, guardCaller, sid); err != nil {
		t.Fatalf("GetDetail 失败: %v", err)
	}
	if f.m.schedules.count() != calls {
		t.Error("命中缓存时不应查询排期")
	}

	// 缓存中的归属信息同样用于鉴权
	other := &dto.Caller{UserID: "resident-2", Role: model.RoleResident}
	if _, err := f.svc.GetDetail(ctx, other, sid); !errors.Is(err, ErrForbidden) {
		t.Errorf("缓存命中时期望 ErrForbidden，实际: %v", err)
	}

	NewScheduleInvalidator(f.cache, zap.NewNop()).Invalidate(ctx, sid)
	if _, ok := f.cache.data[ScheduleDetailCacheKey(sid)]; ok {
		t.Error("失效信号应清除缓存")
	}
	if len(f.cache.published) != 1 || f.cache.published[0] != ScheduleDetailPath(sid) {
		t.Errorf("应发布排期变更事件: %v", f.cache.published)
	}
}

func TestGetDetail_ExpiredSelfHeals(t *testing.T) {
	f := setupTestScheduleService()
	exit := baseNow.Add(time.Hour)
	sid, _ := f.addSchedule(model.VisitorTypeRecurring, &exit)
	ctx := context.Background()

	got, err := f.svc.GetDetail(ctx, guardCaller, sid)
	if err != nil || got.Status != string(model.ScheduleStatusActive) {
		t.Fatalf("过期前应为 active: %+v %v", got, err)
	}

	// 时间越过 exit_date，缓存中的 active 视为过期
	f.clock = exit.Add(time.Minute)
	got, err = f.svc.GetDetail(ctx, guardCaller, sid)
	if err != nil {
		t.Fatalf("GetDetail 失败: %v", err)
	}
	if got.Status != string(model.ScheduleStatusInactive) {
		t.Errorf("期望返回 inactive，实际 %s", got.Status)
	}
	if f.m.schedules.schedules[sid].Status != model.ScheduleStatusInactive {
		t.Error("过期状态应被持久化")
	}
}

// ── ListEntryLogs ──

func TestListEntryLogs_Paginates(t *testing.T) {
	f := setupTestScheduleService()
	sid, vid := f.addSchedule(model.VisitorTypeRecurring, future())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		at := baseNow.Add(time.Duration(i) * time.Hour)
		out := at.Add(30 * time.Minute)
		_ = f.m.logs.Create(ctx, &model.EntryLog{ScheduleID: sid, VisitorID: vid, SecurityID: "guard-1", EntryTime: &at, ExitTime: &out, UpdatedAt: out})
	}

	list, total, err := f.svc.ListEntryLogs(ctx, sid, &dto.EntryLogListRequest{PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2}})
	if err != nil {
		t.Fatalf("ListEntryLogs 失败: %v", err)
	}
	if total != 3 || len(list) != 1 {
		t.Errorf("期望 total=3 len=1，实际 total=%d len=%d", total, len(list))
	}

	if _, _, err := f.svc.ListEntryLogs(ctx, "missing", &dto.EntryLogListRequest{}); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}

// ── CalendarICS ──

func TestCalendarICS(t *testing.T) {
	f := setupTestScheduleService()
	sid, _ := f.addSchedule(model.VisitorTypeOneTime, future())

	data, err := f.svc.CalendarICS(context.Background(), residentCaller, sid)
	if err != nil {
		t.Fatalf("CalendarICS 失败: %v", err)
	}
	body := string(data)
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "Grace Hopper", sid + "@visitor-gate"} {
		if !strings.Contains(body, want) {
			t.Errorf("日历内容缺少 %q", want)
		}
	}
}

// ── VisitorQRCode ──

func TestVisitorQRCode(t *testing.T) {
	f := setupTestScheduleService()
	sid, vid := f.addSchedule(model.VisitorTypeOneTime, future())
	ctx := context.Background()

	img, err := f.svc.VisitorQRCode(ctx, residentCaller, sid, vid)
	if err != nil {
		t.Fatalf("VisitorQRCode 失败: %v", err)
	}
	// JPEG SOI 标记
	if !bytes.HasPrefix(img, []byte{0xFF, 0xD8}) {
		t.Error("应输出 JPEG 图片")
	}
	meta := f.m.schedules.schedules[sid].Meta
	if meta["qr_generated_at"] != baseNow.Format(time.RFC3339) || meta["qr_generated_by"] != residentCaller.UserID {
		t.Errorf("meta 应记录生成信息: %v", meta)
	}
}

func TestVisitorQRCode_KeepsOtherMetaKeys(t *testing.T) {
	f := setupTestScheduleService()
	sid, vid := f.addSchedule(model.VisitorTypeRecurring, future())
	f.m.schedules.schedules[sid].Meta = datatypes.JSONMap{"gate": "north", "qr_generated_by": "someone-else"}

	if _, err := f.svc.VisitorQRCode(context.Background(), adminCaller, sid, vid); err != nil {
		t.Fatalf("VisitorQRCode 失败: %v", err)
	}
	meta := f.m.schedules.schedules[sid].Meta
	if meta["gate"] != "north" {
		t.Errorf("已有的键不应丢失: %v", meta)
	}
	if meta["qr_generated_by"] != adminCaller.UserID {
		t.Errorf("生成信息应被覆盖为本次调用者: %v", meta)
	}
}

func TestVisitorQRCode_Rejections(t *testing.T) {
	f := setupTestScheduleService()
	sid, vid := f.addSchedule(model.VisitorTypeOneTime, future())
	expiredSID, expiredVID := f.addSchedule(model.VisitorTypeOneTime, past())
	ctx := context.Background()

	if _, err := f.svc.VisitorQRCode(ctx, guardCaller, sid, vid); !errors.Is(err, ErrForbidden) {
		t.Errorf("保安期望 ErrForbidden，实际: %v", err)
	}
	if _, err := f.svc.VisitorQRCode(ctx, adminCaller, sid, "nobody"); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("期望 ErrVisitorNotFound，实际: %v", err)
	}
	if _, err := f.svc.VisitorQRCode(ctx, adminCaller, expiredSID, expiredVID); !errors.Is(err, ErrScheduleInactive) {
		t.Errorf("期望 ErrScheduleInactive，实际: %v", err)
	}
	if f.m.schedules.schedules[expiredSID].Status != model.ScheduleStatusInactive {
		t.Error("过期排期应被持久化为 inactive")
	}
}

// ── DeactivateExpired ──

func TestDeactivateExpired(t *testing.T) {
	f := setupTestScheduleService()
	expired1, _ := f.addSchedule(model.VisitorTypeRecurring, past())
	expired2, _ := f.addSchedule(model.VisitorTypeOneTime, past())
	open, _ := f.addSchedule(model.VisitorTypeRecurring, nil)
	live, _ := f.addSchedule(model.VisitorTypeRecurring, future())

	n, err := f.svc.DeactivateExpired(context.Background())
	if err != nil {
		t.Fatalf("DeactivateExpired 失败: %v", err)
	}
	if n != 2 {
		t.Errorf("期望处理 2 个排期，实际 %d", n)
	}
	for _, id := range []string{expired1, expired2} {
		if f.m.schedules.schedules[id].Status != model.ScheduleStatusInactive {
			t.Errorf("%s 应为 inactive", id)
		}
	}
	for _, id := range []string{open, live} {
		if f.m.schedules.schedules[id].Status != model.ScheduleStatusActive {
			t.Errorf("%s 应保持 active", id)
		}
	}
	if len(f.cache.published) != 2 {
		t.Errorf("每个失效排期都应发出变更事件，实际 %d", len(f.cache.published))
	}
}

func TestExpirySweeper_RunOnceAndDisabled(t *testing.T) {
	f := setupTestScheduleService()
	sid, _ := f.addSchedule(model.VisitorTypeRecurring, past())

	sweeper := NewExpirySweeper(f.svc, 0, zap.NewNop())
	if err := sweeper.Start(); err != nil {
		t.Fatalf("interval=0 时 Start 应直接返回: %v", err)
	}
	if err := sweeper.Stop(); err != nil {
		t.Fatalf("Stop 失败: %v", err)
	}

	sweeper.RunOnce()
	if f.m.schedules.schedules[sid].Status != model.ScheduleStatusInactive {
		t.Error("RunOnce 应使过期排期失效")
	}
}
