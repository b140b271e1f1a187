package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ExpirySweeper 定时将已过期的 active 排期置为 inactive
// 与请求路径上的自愈互补：没人访问的排期也会及时失效
type ExpirySweeper struct {
	schedules ScheduleService
	interval  time.Duration
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// NewExpirySweeper interval <= 0 时 Start 不启动任何任务
func NewExpirySweeper(schedules ScheduleService, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{schedules: schedules, interval: interval, logger: logger}
}

// Start 启动定时任务
func (w *ExpirySweeper) Start() error {
	if w.interval <= 0 {
		w.logger.Info("过期排期巡检已关闭")
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.RunOnce),
		gocron.WithName("schedule-expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}

	s.Start()
	w.scheduler = s
	w.logger.Info("过期排期巡检已启动", zap.Duration("interval", w.interval))
	return nil
}

// RunOnce 执行一次巡检
func (w *ExpirySweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := w.schedules.DeactivateExpired(ctx)
	if err != nil {
		w.logger.Error("过期排期巡检失败", zap.Int("deactivated", n), zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("过期排期已置为 inactive", zap.Int("count", n))
	}
}

// Stop 停止定时任务
func (w *ExpirySweeper) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}
