package repository

import (
	"context"

	"gorm.io/gorm"

	"visitor-gate/internal/model"
	pkgerrors "visitor-gate/pkg/errors"
)

// EntryLogRepository 出入记录数据访问接口
type EntryLogRepository interface {
	Create(ctx context.Context, log *model.EntryLog) error
	// FindMostRecent 按 updated_at 倒序取最近一条（一次性访客的唯一槽位）
	FindMostRecent(ctx context.Context, scheduleID, visitorID string) (*model.EntryLog, error)
	// FindOpen 取已入场未离场的记录（循环访客）
	FindOpen(ctx context.Context, scheduleID, visitorID string) (*model.EntryLog, error)
	// Update 基于 version 的乐观锁更新，fields 中的 nil 值会写入 NULL
	Update(ctx context.Context, log *model.EntryLog, fields map[string]interface{}) error
	ListBySchedule(ctx context.Context, scheduleID string, offset, limit int) ([]model.EntryLog, int64, error)
	ListAllBySchedule(ctx context.Context, scheduleID string) ([]model.EntryLog, error)
}

type entryLogRepo struct {
	db *gorm.DB
}

// NewEntryLogRepo 创建 EntryLogRepository 实例
func NewEntryLogRepo(db *gorm.DB) EntryLogRepository {
	return &entryLogRepo{db: db}
}

func (r *entryLogRepo) Create(ctx context.Context, log *model.EntryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *entryLogRepo) FindMostRecent(ctx context.Context, scheduleID, visitorID string) (*model.EntryLog, error) {
	var log model.EntryLog
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND visitor_id = ?", scheduleID, visitorID).
		Order("updated_at DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *entryLogRepo) FindOpen(ctx context.Context, scheduleID, visitorID string) (*model.EntryLog, error) {
	var log model.EntryLog
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND visitor_id = ? AND entry_time IS NOT NULL AND exit_time IS NULL", scheduleID, visitorID).
		Order("entry_time DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *entryLogRepo) Update(ctx context.Context, log *model.EntryLog, fields map[string]interface{}) error {
	oldVersion := log.Version
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = oldVersion + 1

	result := r.db.WithContext(ctx).
		Model(&model.EntryLog{}).
		Where("entry_log_id = ? AND version = ?", log.EntryLogID, oldVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	log.Version = oldVersion + 1
	return nil
}

func (r *entryLogRepo) ListBySchedule(ctx context.Context, scheduleID string, offset, limit int) ([]model.EntryLog, int64, error) {
	var logs []model.EntryLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.EntryLog{}).Where("schedule_id = ?", scheduleID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Preload("Visitor").
		Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, total, err
}

func (r *entryLogRepo) ListAllBySchedule(ctx context.Context, scheduleID string) ([]model.EntryLog, error) {
	var logs []model.EntryLog
	err := r.db.WithContext(ctx).
		Preload("Visitor").
		Preload("Security").
		Where("schedule_id = ?", scheduleID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
