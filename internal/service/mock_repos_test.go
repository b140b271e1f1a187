package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"visitor-gate/internal/model"
	"visitor-gate/internal/repository"
	pkgerrors "visitor-gate/pkg/errors"
)

// errStorage 模拟存储层故障
var errStorage = errors.New("storage unavailable")

// callCounter 统计对存储层的访问次数
type callCounter struct {
	mu    sync.Mutex
	calls int
}

func (c *callCounter) hit() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *callCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	callCounter
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.hit()
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.hit()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.hit()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock VisitScheduleRepository ──

type mockScheduleRepo struct {
	callCounter
	schedules map[string]*model.VisitSchedule
	visitors  *mockVisitorRepo // 用于 GetByID 预加载访客
	failGet   bool
	// statusWrites 记录 UpdateStatus 调用
	statusWrites []string
}

func newMockScheduleRepo(visitors *mockVisitorRepo) *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.VisitSchedule), visitors: visitors}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *model.VisitSchedule) error {
	m.hit()
	if s.ScheduleID == "" {
		s.ScheduleID = uuid.NewString()
	}
	m.schedules[s.ScheduleID] = s
	return nil
}

func (m *mockScheduleRepo) get(id string) (*model.VisitSchedule, error) {
	m.hit()
	if m.failGet {
		return nil, errStorage
	}
	s, ok := m.schedules[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.VisitSchedule, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if m.visitors != nil {
		s.Visitors, _ = m.visitors.ListBySchedule(context.Background(), id)
	}
	return s, nil
}

func (m *mockScheduleRepo) GetByIDForUpdate(_ context.Context, id string) (*model.VisitSchedule, error) {
	return m.get(id)
}

func (m *mockScheduleRepo) UpdateStatus(_ context.Context, id string, status model.ScheduleStatus) error {
	m.hit()
	s, ok := m.schedules[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	m.statusWrites = append(m.statusWrites, id)
	return nil
}

func (m *mockScheduleRepo) MergeMeta(_ context.Context, id string, patch datatypes.JSONMap) error {
	m.hit()
	s, ok := m.schedules[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if s.Meta == nil {
		s.Meta = datatypes.JSONMap{}
	}
	for k, v := range patch {
		s.Meta[k] = v
	}
	return nil
}

func (m *mockScheduleRepo) ListExpiredActiveIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.hit()
	var ids []string
	for id, s := range m.schedules {
		if s.Status == model.ScheduleStatusActive && s.ExpiredAt(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *mockScheduleRepo) DeactivateByIDs(_ context.Context, ids []string) (int64, error) {
	m.hit()
	var n int64
	for _, id := range ids {
		if s, ok := m.schedules[id]; ok && s.Status == model.ScheduleStatusActive {
			s.Status = model.ScheduleStatusInactive
			n++
		}
	}
	return n, nil
}

// ── Mock VisitorRepository ──

type mockVisitorRepo struct {
	callCounter
	visitors map[string]*model.Visitor
}

func newMockVisitorRepo() *mockVisitorRepo {
	return &mockVisitorRepo{visitors: make(map[string]*model.Visitor)}
}

func (m *mockVisitorRepo) Create(_ context.Context, v *model.Visitor) error {
	m.hit()
	if v.VisitorID == "" {
		v.VisitorID = uuid.NewString()
	}
	m.visitors[v.VisitorID] = v
	return nil
}

func (m *mockVisitorRepo) GetByIDAndSchedule(_ context.Context, visitorID, scheduleID string) (*model.Visitor, error) {
	m.hit()
	if v, ok := m.visitors[visitorID]; ok && v.ScheduleID == scheduleID {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitorRepo) ListBySchedule(_ context.Context, scheduleID string) ([]model.Visitor, error) {
	m.hit()
	var result []model.Visitor
	for _, v := range m.visitors {
		if v.ScheduleID == scheduleID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VisitorID < result[j].VisitorID })
	return result, nil
}

// ── Mock EntryLogRepository ──

type mockEntryLogRepo struct {
	callCounter
	logs       []*model.EntryLog
	seq        int
	failCreate bool
}

func newMockEntryLogRepo() *mockEntryLogRepo {
	return &mockEntryLogRepo{}
}

// Create 与 uk_entry_logs_open 一致：同一访客最多一条未离场记录
func (m *mockEntryLogRepo) Create(_ context.Context, log *model.EntryLog) error {
	m.hit()
	if m.failCreate {
		return errStorage
	}
	if log.IsOpen() {
		for _, l := range m.logs {
			if l.ScheduleID == log.ScheduleID && l.VisitorID == log.VisitorID && l.IsOpen() {
				return errors.New("duplicate key value violates unique constraint \"uk_entry_logs_open\"")
			}
		}
	}
	m.seq++
	log.EntryLogID = fmt.Sprintf("log-%d", m.seq)
	if log.Version == 0 {
		log.Version = 1
	}
	cp := *log
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *mockEntryLogRepo) FindMostRecent(_ context.Context, scheduleID, visitorID string) (*model.EntryLog, error) {
	m.hit()
	var best *model.EntryLog
	for _, l := range m.logs {
		if l.ScheduleID != scheduleID || l.VisitorID != visitorID {
			continue
		}
		if best == nil || l.UpdatedAt.After(best.UpdatedAt) {
			best = l
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockEntryLogRepo) FindOpen(_ context.Context, scheduleID, visitorID string) (*model.EntryLog, error) {
	m.hit()
	for _, l := range m.logs {
		if l.ScheduleID == scheduleID && l.VisitorID == visitorID && l.IsOpen() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEntryLogRepo) Update(_ context.Context, log *model.EntryLog, fields map[string]interface{}) error {
	m.hit()
	var stored *model.EntryLog
	for _, l := range m.logs {
		if l.EntryLogID == log.EntryLogID {
			stored = l
		}
	}
	if stored == nil || stored.Version != log.Version {
		return pkgerrors.ErrOptimisticLock
	}
	for k, v := range fields {
		var tp *time.Time
		if t, ok := v.(time.Time); ok {
			tp = &t
		}
		switch k {
		case "entry_time":
			stored.EntryTime = tp
		case "exit_time":
			stored.ExitTime = tp
		case "updated_at":
			stored.UpdatedAt = *tp
		}
	}
	stored.Version++
	log.Version = stored.Version
	return nil
}

func (m *mockEntryLogRepo) ListBySchedule(_ context.Context, scheduleID string, offset, limit int) ([]model.EntryLog, int64, error) {
	m.hit()
	all, _ := m.ListAllBySchedule(context.Background(), scheduleID)
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockEntryLogRepo) ListAllBySchedule(_ context.Context, scheduleID string) ([]model.EntryLog, error) {
	var result []model.EntryLog
	for _, l := range m.logs {
		if l.ScheduleID == scheduleID {
			result = append(result, *l)
		}
	}
	return result, nil
}

// forPair 返回某 (排期, 访客) 的全部记录
func (m *mockEntryLogRepo) forPair(scheduleID, visitorID string) []*model.EntryLog {
	var result []*model.EntryLog
	for _, l := range m.logs {
		if l.ScheduleID == scheduleID && l.VisitorID == visitorID {
			result = append(result, l)
		}
	}
	return result
}

// ── Mock 聚合 ──

type mockRepos struct {
	users     *mockUserRepo
	schedules *mockScheduleRepo
	visitors  *mockVisitorRepo
	logs      *mockEntryLogRepo
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	visitors := newMockVisitorRepo()
	m := &mockRepos{
		users:     newMockUserRepo(),
		schedules: newMockScheduleRepo(visitors),
		visitors:  visitors,
		logs:      newMockEntryLogRepo(),
	}
	repo := &repository.Repository{
		User:     m.users,
		Schedule: m.schedules,
		Visitor:  m.visitors,
		EntryLog: m.logs,
	}
	return repo, m
}

// storageCalls 所有 mock 的访问总数
func (m *mockRepos) storageCalls() int {
	return m.users.count() + m.schedules.count() + m.visitors.count() + m.logs.count()
}

// ── 其他依赖的替身 ──

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, scheduleID string) {
	r.mu.Lock()
	r.ids = append(r.ids, scheduleID)
	r.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []VisitEvent
}

func (r *recordingNotifier) Notify(e VisitEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// memoryCache CacheStore 的内存实现
type memoryCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	published []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memoryCache) Publish(_ context.Context, _ string, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message)
	return nil
}
