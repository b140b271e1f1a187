package repository

import (
	"context"

	"gorm.io/gorm"

	"visitor-gate/internal/model"
)

// VisitorRepository 访客数据访问接口
type VisitorRepository interface {
	Create(ctx context.Context, visitor *model.Visitor) error
	// GetByIDAndSchedule 仅当访客隶属于该排期时返回
	GetByIDAndSchedule(ctx context.Context, visitorID, scheduleID string) (*model.Visitor, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]model.Visitor, error)
}

type visitorRepo struct {
	db *gorm.DB
}

// NewVisitorRepo 创建 VisitorRepository 实例
func NewVisitorRepo(db *gorm.DB) VisitorRepository {
	return &visitorRepo{db: db}
}

func (r *visitorRepo) Create(ctx context.Context, visitor *model.Visitor) error {
	return r.db.WithContext(ctx).Create(visitor).Error
}

func (r *visitorRepo) GetByIDAndSchedule(ctx context.Context, visitorID, scheduleID string) (*model.Visitor, error) {
	var visitor model.Visitor
	err := r.db.WithContext(ctx).
		Where("visitor_id = ? AND schedule_id = ?", visitorID, scheduleID).
		First(&visitor).Error
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}

func (r *visitorRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]model.Visitor, error) {
	var visitors []model.Visitor
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("created_at ASC").
		Find(&visitors).Error
	return visitors, err
}
