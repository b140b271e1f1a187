package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/model"
	"visitor-gate/internal/repository"
)

// VisitAction 出入登记动作
type VisitAction int

const (
	ActionUnknown VisitAction = iota
	ActionUpdateOneTime
	ActionLogEntry
	ActionLogExit
)

// ParseVisitAction 未识别的动作返回 ActionUnknown，由类型/动作矩阵拒绝
func ParseVisitAction(s string) VisitAction {
	switch s {
	case "updateOneTime":
		return ActionUpdateOneTime
	case "logEntry":
		return ActionLogEntry
	case "logExit":
		return ActionLogExit
	default:
		return ActionUnknown
	}
}

func (a VisitAction) String() string {
	switch a {
	case ActionUpdateOneTime:
		return "updateOneTime"
	case ActionLogEntry:
		return "logEntry"
	case ActionLogExit:
		return "logExit"
	default:
		return "unknown"
	}
}

// 返回给客户端的消息
const (
	MsgUnauthorized           = "Unauthorized"
	MsgForbidden              = "Forbidden"
	MsgMissingFields          = "Missing required fields."
	MsgScheduleNotFound       = "Schedule not found."
	MsgScheduleInactive       = "Schedule is expired or inactive."
	MsgVisitorNotFound        = "Visitor not found for this schedule."
	MsgInvalidOneTimeAction   = "Invalid action for one-time visitor."
	MsgInvalidRecurringAction = "Invalid action for recurring visitor."
	MsgUnknownVisitorType     = "Unknown visitor type."
	MsgOneTimeUpdated         = "One-time visitor status updated successfully."
	MsgNoChanges              = "No changes requested."
	MsgRecurringEntryLogged   = "Recurring visitor entry logged."
	MsgRecurringExitLogged    = "Recurring visitor exit logged."
	MsgAlreadyLoggedIn        = "Visitor is already logged in."
	MsgNoActiveEntry          = "No active entry log found for this visitor."
	MsgInternalError          = "Internal server error."
	MsgOfficerNotFound        = "Security officer not found."
)

// VisitService 访客出入登记
type VisitService interface {
	// HandleAction 所有结果（含失败）均以 ActionResult 返回，不返回 error
	HandleAction(ctx context.Context, caller *dto.Caller, req *dto.VisitActionRequest) *dto.ActionResult
}

type visitService struct {
	repo        *repository.Repository
	invalidator ScheduleInvalidator
	notifier    VisitNotifier
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewVisitService 创建 VisitService 实例
func NewVisitService(
	repo *repository.Repository,
	invalidator ScheduleInvalidator,
	notifier VisitNotifier,
	loc *time.Location,
	logger *zap.Logger,
) VisitService {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &visitService{
		repo:        repo,
		invalidator: invalidator,
		notifier:    notifier,
		loc:         loc,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CanLogVisits 仅管理员与保安可登记出入
func CanLogVisits(role string) bool {
	return role == model.RoleAdmin || role == model.RoleSecurity
}

// ════════════════════════════════════════════════════════════
// HandleAction
// ════════════════════════════════════════════════════════════
//
// 1. 鉴权（不访问存储）
// 2. 必填字段；排期 id 非 uuid 直接 404
// 3. 事务内：锁定排期 → 有效性校验（失效则持久化 inactive 并提交）
//    → 访客归属 → 登记人 → 类型/动作矩阵 → 状态迁移
// 4. 提交后：失效信号、出入通知

// visitOutcome 事务内产出的结果
type visitOutcome struct {
	result *dto.ActionResult
	event  *VisitEvent
}

func (s *visitService) HandleAction(ctx context.Context, caller *dto.Caller, req *dto.VisitActionRequest) *dto.ActionResult {
	if caller == nil {
		return actionFail(http.StatusUnauthorized, MsgUnauthorized)
	}
	if !CanLogVisits(caller.Role) {
		return actionFail(http.StatusForbidden, MsgForbidden)
	}

	if req == nil || req.ScheduleID.Empty() {
		return actionFail(http.StatusBadRequest, MsgMissingFields)
	}
	scheduleID := req.ScheduleID.String()
	// 无论结果如何，都通知该排期的详情视图刷新
	defer func() { s.invalidator.Invalidate(ctx, scheduleID) }()

	if req.VisitorID.Empty() {
		return actionFail(http.StatusBadRequest, MsgMissingFields)
	}

	canonicalID, ok := parseID(scheduleID)
	if !ok {
		return actionFail(http.StatusNotFound, MsgScheduleNotFound)
	}
	scheduleID = canonicalID

	action := ParseVisitAction(req.Action)
	now := s.now()

	var out visitOutcome
	err := runInTx(ctx, s.repo, func(txRepo *repository.Repository) error {
		var err error
		out, err = s.dispatch(ctx, txRepo, caller, req, scheduleID, action, now)
		return err
	})
	if err != nil {
		s.logger.Error("处理出入登记失败",
			zap.String("schedule_id", scheduleID),
			zap.String("visitor_id", req.VisitorID.String()),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return actionFail(http.StatusInternalServerError, MsgInternalError)
	}

	if out.event != nil {
		s.notifier.Notify(*out.event)
	}
	return out.result
}

// dispatch 在事务内执行；返回 error 即回滚，业务失败以 result 形式返回并提交
func (s *visitService) dispatch(
	ctx context.Context,
	txRepo *repository.Repository,
	caller *dto.Caller,
	req *dto.VisitActionRequest,
	scheduleID string,
	action VisitAction,
	now time.Time,
) (visitOutcome, error) {
	schedule, err := txRepo.Schedule.GetByIDForUpdate(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failOutcome(http.StatusNotFound, MsgScheduleNotFound), nil
		}
		return visitOutcome{}, fmt.Errorf("查询排期失败: %w", err)
	}

	if v := checkValidity(schedule, now); !v.valid {
		if v.shouldDeactivate {
			if err := txRepo.Schedule.UpdateStatus(ctx, scheduleID, model.ScheduleStatusInactive); err != nil {
				return visitOutcome{}, fmt.Errorf("置排期失效失败: %w", err)
			}
			s.logger.Info("排期已过期，置为 inactive", zap.String("schedule_id", scheduleID))
		}
		return failOutcome(http.StatusForbidden, MsgScheduleInactive), nil
	}

	visitorID, ok := parseID(req.VisitorID.String())
	if !ok {
		return failOutcome(http.StatusNotFound, MsgVisitorNotFound), nil
	}
	visitor, err := txRepo.Visitor.GetByIDAndSchedule(ctx, visitorID, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failOutcome(http.StatusNotFound, MsgVisitorNotFound), nil
		}
		return visitOutcome{}, fmt.Errorf("查询访客失败: %w", err)
	}

	securityID, ok, err := s.resolveOfficer(ctx, txRepo, caller, req.SecurityID.String())
	if err != nil {
		return visitOutcome{}, err
	}
	if !ok {
		return failOutcome(http.StatusBadRequest, MsgOfficerNotFound), nil
	}

	st := &visitState{
		repo:       txRepo,
		schedule:   schedule,
		visitor:    visitor,
		securityID: securityID,
		now:        now,
		loc:        s.loc,
	}

	switch schedule.VisitorType {
	case model.VisitorTypeOneTime:
		if action != ActionUpdateOneTime {
			return failOutcome(http.StatusBadRequest, MsgInvalidOneTimeAction), nil
		}
		return st.updateOneTime(ctx, req.EntryChecked, req.ExitChecked)

	case model.VisitorTypeRecurring:
		switch action {
		case ActionLogEntry:
			return st.logEntry(ctx)
		case ActionLogExit:
			return st.logExit(ctx)
		default:
			return failOutcome(http.StatusBadRequest, MsgInvalidRecurringAction), nil
		}

	default:
		return failOutcome(http.StatusBadRequest, MsgUnknownVisitorType), nil
	}
}

// resolveOfficer 确定出入记录上的登记人
// 保安一律记为本人；管理员可代登记，所指定的人必须是保安或管理员
// securityId 为空时记为调用者本人
func (s *visitService) resolveOfficer(ctx context.Context, txRepo *repository.Repository, caller *dto.Caller, raw string) (string, bool, error) {
	if raw == "" {
		return caller.UserID, true, nil
	}

	officerID, ok := parseID(raw)
	if caller.Role != model.RoleAdmin {
		if !ok || officerID != caller.UserID {
			s.logger.Warn("保安不能代他人登记，忽略请求中的 securityId",
				zap.String("caller_id", caller.UserID),
				zap.String("security_id", raw),
			)
		}
		return caller.UserID, true, nil
	}
	if !ok {
		return "", false, nil
	}

	officer, err := txRepo.User.GetByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("查询登记人失败: %w", err)
	}
	if !CanLogVisits(officer.Role) {
		return "", false, nil
	}
	return officer.UserID, true, nil
}

// ── 状态迁移分支 ──

// visitState 单次登记的上下文（全部在同一事务内）
type visitState struct {
	repo       *repository.Repository
	schedule   *model.VisitSchedule
	visitor    *model.Visitor
	securityID string
	now        time.Time
	loc        *time.Location
}

func (st *visitState) updateOneTime(ctx context.Context, entryChecked, exitChecked bool) (visitOutcome, error) {
	slot, err := st.repo.EntryLog.FindMostRecent(ctx, st.schedule.ScheduleID, st.visitor.VisitorID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return visitOutcome{}, fmt.Errorf("查询出入记录失败: %w", err)
		}
		slot = nil
	}

	m := decideOneTime(slot, entryChecked, exitChecked)
	if m.noop() {
		return okOutcome(MsgNoChanges, nil), nil
	}

	if m.create {
		slot = &model.EntryLog{
			ScheduleID: st.schedule.ScheduleID,
			VisitorID:  st.visitor.VisitorID,
			SecurityID: st.securityID,
			Version:    1,
			CreatedAt:  st.now,
		}
		m.applyTo(slot, st.now)
		if err := st.repo.EntryLog.Create(ctx, slot); err != nil {
			return visitOutcome{}, fmt.Errorf("创建出入记录失败: %w", err)
		}
	} else {
		if err := st.repo.EntryLog.Update(ctx, slot, m.fields(st.now)); err != nil {
			return visitOutcome{}, fmt.Errorf("更新出入记录失败: %w", err)
		}
		m.applyTo(slot, st.now)
	}

	if m.deactivate {
		if err := st.repo.Schedule.UpdateStatus(ctx, st.schedule.ScheduleID, model.ScheduleStatusInactive); err != nil {
			return visitOutcome{}, fmt.Errorf("置排期失效失败: %w", err)
		}
	}

	out := okOutcome(MsgOneTimeUpdated, toEntryLogResponse(slot, st.visitor, st.loc))
	switch {
	case m.setExit:
		out.event = st.event(VisitEventExited)
	case m.setEntry:
		out.event = st.event(VisitEventEntered)
	}
	return out, nil
}

func (st *visitState) logEntry(ctx context.Context) (visitOutcome, error) {
	open, err := st.findOpen(ctx)
	if err != nil {
		return visitOutcome{}, err
	}
	if open != nil {
		return failOutcome(http.StatusBadRequest, MsgAlreadyLoggedIn), nil
	}

	entry := st.now
	log := &model.EntryLog{
		ScheduleID: st.schedule.ScheduleID,
		VisitorID:  st.visitor.VisitorID,
		SecurityID: st.securityID,
		EntryTime:  &entry,
		Version:    1,
		CreatedAt:  st.now,
		UpdatedAt:  st.now,
	}
	if err := st.repo.EntryLog.Create(ctx, log); err != nil {
		return visitOutcome{}, fmt.Errorf("创建出入记录失败: %w", err)
	}

	out := okOutcome(MsgRecurringEntryLogged, toEntryLogResponse(log, st.visitor, st.loc))
	out.event = st.event(VisitEventEntered)
	return out, nil
}

func (st *visitState) logExit(ctx context.Context) (visitOutcome, error) {
	open, err := st.findOpen(ctx)
	if err != nil {
		return visitOutcome{}, err
	}
	if open == nil {
		return failOutcome(http.StatusBadRequest, MsgNoActiveEntry), nil
	}

	fields := map[string]interface{}{"exit_time": st.now, "updated_at": st.now}
	if err := st.repo.EntryLog.Update(ctx, open, fields); err != nil {
		return visitOutcome{}, fmt.Errorf("登记离场失败: %w", err)
	}
	exit := st.now
	open.ExitTime = &exit
	open.UpdatedAt = st.now

	out := okOutcome(MsgRecurringExitLogged, toEntryLogResponse(open, st.visitor, st.loc))
	out.event = st.event(VisitEventExited)
	return out, nil
}

// findOpen 未找到返回 (nil, nil)
func (st *visitState) findOpen(ctx context.Context) (*model.EntryLog, error) {
	open, err := st.repo.EntryLog.FindOpen(ctx, st.schedule.ScheduleID, st.visitor.VisitorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询未离场记录失败: %w", err)
	}
	return open, nil
}

func (st *visitState) event(kind VisitEventKind) *VisitEvent {
	return &VisitEvent{
		Kind:        kind,
		ScheduleID:  st.schedule.ScheduleID,
		ResidentID:  st.schedule.ResidentID,
		VisitorName: st.visitor.FullName(),
		At:          st.now,
	}
}

// ── 结果构造 ──

func actionOK(message string, data interface{}) *dto.ActionResult {
	return &dto.ActionResult{Success: true, Code: http.StatusOK, Message: message, Data: data}
}

func actionFail(code int, message string) *dto.ActionResult {
	return &dto.ActionResult{Success: false, Code: code, Message: message}
}

func okOutcome(message string, data interface{}) visitOutcome {
	return visitOutcome{result: actionOK(message, data)}
}

func failOutcome(code int, message string) visitOutcome {
	return visitOutcome{result: actionFail(code, message)}
}
