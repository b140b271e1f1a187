package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	qrcode "github.com/yeqown/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/model"
	"visitor-gate/internal/repository"
)

// ── 排期模块业务错误 ──

var (
	ErrScheduleNotFound = errors.New("排期不存在")
	ErrVisitorNotFound  = errors.New("访客不属于该排期")
	ErrScheduleInactive = errors.New("排期已过期或失效")
	ErrForbidden        = errors.New("无权访问该排期")
	ErrQRCodeGenerate   = errors.New("生成二维码失败")
)

// sweepBatchSize 过期巡检单批处理的排期数
const sweepBatchSize = 500

// ScheduleService 访客排期查询与周边能力
type ScheduleService interface {
	// GetDetail 查询详情，顺带执行过期自愈；结果缓存在 Redis
	GetDetail(ctx context.Context, caller *dto.Caller, scheduleID string) (*dto.ScheduleDetailResponse, error)
	ListEntryLogs(ctx context.Context, scheduleID string, req *dto.EntryLogListRequest) ([]dto.EntryLogResponse, int64, error)
	// CalendarICS 生成访问时段的日历邀请（.ics）
	CalendarICS(ctx context.Context, caller *dto.Caller, scheduleID string) ([]byte, error)
	// VisitorQRCode 生成访客通行二维码（JPEG），并在排期 meta 中记录生成时间
	VisitorQRCode(ctx context.Context, caller *dto.Caller, scheduleID, visitorID string) ([]byte, error)
	// DeactivateExpired 将已过期的 active 排期批量置为 inactive，返回处理数量
	DeactivateExpired(ctx context.Context) (int, error)
}

type scheduleService struct {
	repo        *repository.Repository
	cache       CacheStore
	cacheTTL    time.Duration
	invalidator ScheduleInvalidator
	baseURL     string
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// ScheduleServiceOptions 构造参数
type ScheduleServiceOptions struct {
	Cache       CacheStore // 可为 nil，表示不缓存
	CacheTTL    time.Duration
	Invalidator ScheduleInvalidator
	BaseURL     string
	Location    *time.Location
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, opts ScheduleServiceOptions, logger *zap.Logger) ScheduleService {
	if opts.Invalidator == nil {
		opts.Invalidator = noopInvalidator{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &scheduleService{
		repo:        repo,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		invalidator: opts.Invalidator,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		loc:         opts.Location,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// canViewSchedule 管理员、保安与排期所属住户可查看
func canViewSchedule(caller *dto.Caller, residentID string) bool {
	if caller == nil {
		return false
	}
	return CanLogVisits(caller.Role) || caller.UserID == residentID
}

// ────────────────────── GetDetail ──────────────────────

// cachedDetail 缓存内容，额外保留 exit_date 用于命中时判断过期
type cachedDetail struct {
	Detail   dto.ScheduleDetailResponse `json:"detail"`
	ExitDate *time.Time                 `json:"exit_date,omitempty"`
}

func (s *scheduleService) GetDetail(ctx context.Context, caller *dto.Caller, scheduleID string) (*dto.ScheduleDetailResponse, error) {
	scheduleID, ok := parseID(scheduleID)
	if !ok {
		return nil, ErrScheduleNotFound
	}
	now := s.now()

	if cached, ok := s.readCache(ctx, scheduleID); ok {
		stale := cached.Detail.Status == string(model.ScheduleStatusActive) &&
			cached.ExitDate != nil && cached.ExitDate.Before(now)
		if !stale {
			if !canViewSchedule(caller, cached.Detail.ResidentID) {
				return nil, ErrForbidden
			}
			return &cached.Detail, nil
		}
	}

	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !canViewSchedule(caller, schedule.ResidentID) {
		return nil, ErrForbidden
	}

	if err := s.selfHeal(ctx, schedule, now); err != nil {
		return nil, err
	}

	detail := toScheduleDetailResponse(schedule, s.loc)
	s.writeCache(ctx, scheduleID, &cachedDetail{Detail: *detail, ExitDate: schedule.ExitDate})
	return detail, nil
}

// selfHeal 读取时顺带持久化过期状态
func (s *scheduleService) selfHeal(ctx context.Context, schedule *model.VisitSchedule, now time.Time) error {
	v := checkValidity(schedule, now)
	if !v.shouldDeactivate {
		return nil
	}
	if err := s.repo.Schedule.UpdateStatus(ctx, schedule.ScheduleID, model.ScheduleStatusInactive); err != nil {
		s.logger.Error("置排期失效失败", zap.String("schedule_id", schedule.ScheduleID), zap.Error(err))
		return err
	}
	schedule.Status = model.ScheduleStatusInactive
	s.invalidator.Invalidate(ctx, schedule.ScheduleID)
	return nil
}

func (s *scheduleService) readCache(ctx context.Context, scheduleID string) (*cachedDetail, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.GetBytes(ctx, ScheduleDetailCacheKey(scheduleID))
	if err != nil {
		s.logger.Warn("读取排期缓存失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cd cachedDetail
	if err := json.Unmarshal(raw, &cd); err != nil {
		s.logger.Warn("排期缓存内容损坏", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, false
	}
	return &cd, true
}

func (s *scheduleService) writeCache(ctx context.Context, scheduleID string, cd *cachedDetail) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cd)
	if err != nil {
		return
	}
	if err := s.cache.SetBytes(ctx, ScheduleDetailCacheKey(scheduleID), raw, s.cacheTTL); err != nil {
		s.logger.Warn("写入排期缓存失败", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

// ────────────────────── ListEntryLogs ──────────────────────

func (s *scheduleService) ListEntryLogs(ctx context.Context, scheduleID string, req *dto.EntryLogListRequest) ([]dto.EntryLogResponse, int64, error) {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, 0, err
	}
	scheduleID = schedule.ScheduleID

	logs, total, err := s.repo.EntryLog.ListBySchedule(ctx, scheduleID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询出入记录失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.EntryLogResponse, 0, len(logs))
	for i := range logs {
		list = append(list, *toEntryLogResponse(&logs[i], nil, s.loc))
	}
	return list, total, nil
}

// ────────────────────── CalendarICS ──────────────────────

func (s *scheduleService) CalendarICS(ctx context.Context, caller *dto.Caller, scheduleID string) ([]byte, error) {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !canViewSchedule(caller, schedule.ResidentID) {
		return nil, ErrForbidden
	}

	names := make([]string, 0, len(schedule.Visitors))
	for i := range schedule.Visitors {
		names = append(names, schedule.Visitors[i].FullName())
	}

	start := schedule.EntryDate
	end := start.Add(time.Hour)
	desc := fmt.Sprintf("Visitor type: %s", schedule.VisitorType)
	if schedule.ExitDate != nil {
		end = *schedule.ExitDate
	} else {
		desc += "\nNo fixed expiry."
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//visitor-gate//visit schedule//EN")

	event := cal.AddEvent(schedule.ScheduleID + "@visitor-gate")
	event.SetDtStampTime(s.now())
	event.SetStartAt(start.UTC())
	event.SetEndAt(end.UTC())
	event.SetSummary("Visit: " + strings.Join(names, ", "))
	event.SetDescription(desc)
	if s.baseURL != "" {
		event.SetURL(s.baseURL + "/api/v1" + ScheduleDetailPath(schedule.ScheduleID))
	}

	return []byte(cal.Serialize()), nil
}

// ────────────────────── VisitorQRCode ──────────────────────

func (s *scheduleService) VisitorQRCode(ctx context.Context, caller *dto.Caller, scheduleID, visitorID string) ([]byte, error) {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	// 保安只负责登记，不签发通行码
	if caller == nil || (caller.Role != model.RoleAdmin && caller.UserID != schedule.ResidentID) {
		return nil, ErrForbidden
	}
	scheduleID = schedule.ScheduleID

	now := s.now()
	if err := s.selfHeal(ctx, schedule, now); err != nil {
		return nil, err
	}
	if !checkValidity(schedule, now).valid {
		return nil, ErrScheduleInactive
	}

	visitorID, ok := parseID(visitorID)
	if !ok {
		return nil, ErrVisitorNotFound
	}
	if _, err := s.repo.Visitor.GetByIDAndSchedule(ctx, visitorID, scheduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitorNotFound
		}
		s.logger.Error("查询访客失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, err
	}

	qrc, err := qrcode.New(s.passPayload(scheduleID, visitorID))
	if err != nil {
		s.logger.Error("生成二维码失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, ErrQRCodeGenerate
	}
	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		s.logger.Error("编码二维码失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, ErrQRCodeGenerate
	}

	// 只写入本次的键，由存储层合并，避免覆盖并发写入的其他键
	patch := datatypes.JSONMap{
		"qr_generated_at": now.Format(time.RFC3339),
		"qr_generated_by": caller.UserID,
	}
	if err := s.repo.Schedule.MergeMeta(ctx, scheduleID, patch); err != nil {
		s.logger.Error("更新排期 meta 失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}
	s.invalidator.Invalidate(ctx, scheduleID)

	return buf.Bytes(), nil
}

// passPayload 二维码内容：保安扫码后打开的登记地址
func (s *scheduleService) passPayload(scheduleID, visitorID string) string {
	return fmt.Sprintf("%s/api/v1/schedules/%s/visitors/%s", s.baseURL, scheduleID, visitorID)
}

// ────────────────────── DeactivateExpired ──────────────────────

func (s *scheduleService) DeactivateExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := s.repo.Schedule.ListExpiredActiveIDs(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return total, fmt.Errorf("查询过期排期失败: %w", err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		n, err := s.repo.Schedule.DeactivateByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("批量置排期失效失败: %w", err)
		}
		total += int(n)
		for _, id := range ids {
			s.invalidator.Invalidate(ctx, id)
		}

		if n == 0 || len(ids) < sweepBatchSize {
			return total, nil
		}
	}
}

// ── 内部辅助方法 ──

// loadSchedule 非 uuid 的 id 不访问存储，直接视为不存在
func (s *scheduleService) loadSchedule(ctx context.Context, scheduleID string) (*model.VisitSchedule, error) {
	scheduleID, ok := parseID(scheduleID)
	if !ok {
		return nil, ErrScheduleNotFound
	}
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排期失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}
	return schedule, nil
}
