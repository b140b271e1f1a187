package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"visitor-gate/internal/model"
)

// VisitScheduleRepository 访客排期数据访问接口
type VisitScheduleRepository interface {
	Create(ctx context.Context, schedule *model.VisitSchedule) error
	GetByID(ctx context.Context, id string) (*model.VisitSchedule, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定排期行，需在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.VisitSchedule, error)
	UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus) error
	// MergeMeta 将 patch 合并进 meta（jsonb ||），未涉及的键保持不变
	MergeMeta(ctx context.Context, id string, patch datatypes.JSONMap) error
	// ListExpiredActiveIDs 查询 exit_date 已过但仍为 active 的排期
	ListExpiredActiveIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	DeactivateByIDs(ctx context.Context, ids []string) (int64, error)
}

type visitScheduleRepo struct {
	db *gorm.DB
}

// NewVisitScheduleRepo 创建 VisitScheduleRepository 实例
func NewVisitScheduleRepo(db *gorm.DB) VisitScheduleRepository {
	return &visitScheduleRepo{db: db}
}

func (r *visitScheduleRepo) Create(ctx context.Context, schedule *model.VisitSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *visitScheduleRepo) GetByID(ctx context.Context, id string) (*model.VisitSchedule, error) {
	var schedule model.VisitSchedule
	err := r.db.WithContext(ctx).
		Preload("Visitors", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *visitScheduleRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.VisitSchedule, error) {
	var schedule model.VisitSchedule
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// UpdateStatus 幂等，重复置为相同状态无副作用
func (r *visitScheduleRepo) UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.VisitSchedule{}).
		Where("schedule_id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MergeMeta 合并在单条 UPDATE 内完成，并发写入不同的键不会互相覆盖
func (r *visitScheduleRepo) MergeMeta(ctx context.Context, id string, patch datatypes.JSONMap) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&model.VisitSchedule{}).
		Where("schedule_id = ?", id).
		Update("meta", gorm.Expr("COALESCE(meta, '{}'::jsonb) || ?::jsonb", string(raw)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *visitScheduleRepo) ListExpiredActiveIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.VisitSchedule{}).
		Where("status = ? AND exit_date IS NOT NULL AND exit_date < ?", model.ScheduleStatusActive, now).
		Order("exit_date ASC").
		Limit(limit).
		Pluck("schedule_id", &ids).Error
	return ids, err
}

func (r *visitScheduleRepo) DeactivateByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.VisitSchedule{}).
		Where("schedule_id IN ? AND status = ?", ids, model.ScheduleStatusActive).
		Update("status", model.ScheduleStatusInactive)
	return result.RowsAffected, result.Error
}
