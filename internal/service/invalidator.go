package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleChangedChannel 排期变更事件频道，消息体为排期详情路径
const ScheduleChangedChannel = "visitor-gate:schedule-changed"

// CacheStore 缓存与事件发布能力，由 pkg/redis.Client 实现
type CacheStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel, message string) error
}

// ScheduleDetailCacheKey 排期详情缓存键
func ScheduleDetailCacheKey(scheduleID string) string {
	return "schedule:detail:" + scheduleID
}

// ScheduleDetailPath 排期详情视图路径（失效信号的作用域）
func ScheduleDetailPath(scheduleID string) string {
	return "/schedules/" + scheduleID
}

// ScheduleInvalidator 排期变更信号：清除详情缓存并广播 "schedule changed"
// 失败只记录日志，从不影响调用方结果
type ScheduleInvalidator interface {
	Invalidate(ctx context.Context, scheduleID string)
}

type cacheInvalidator struct {
	store  CacheStore
	logger *zap.Logger
}

// NewScheduleInvalidator 创建失效器；store 为 nil 时不做任何事
func NewScheduleInvalidator(store CacheStore, logger *zap.Logger) ScheduleInvalidator {
	if store == nil {
		return noopInvalidator{}
	}
	return &cacheInvalidator{store: store, logger: logger}
}

func (i *cacheInvalidator) Invalidate(ctx context.Context, scheduleID string) {
	if scheduleID == "" {
		return
	}
	// 请求可能已结束，使用独立的短超时
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := i.store.Delete(ctx, ScheduleDetailCacheKey(scheduleID)); err != nil {
		i.logger.Warn("清除排期缓存失败", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
	if err := i.store.Publish(ctx, ScheduleChangedChannel, ScheduleDetailPath(scheduleID)); err != nil {
		i.logger.Warn("发布排期变更事件失败", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) {}
