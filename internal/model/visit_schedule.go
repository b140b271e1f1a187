package model

import (
	"time"

	"gorm.io/datatypes"
)

// VisitorType 访客类型
type VisitorType string

const (
	VisitorTypeOneTime   VisitorType = "one-time"
	VisitorTypeRecurring VisitorType = "recurring"
)

// ScheduleStatus 排期汇总状态（缓存值，过期或一次性访客离场后置为 inactive）
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusInactive ScheduleStatus = "inactive"
)

// VisitSchedule 访客排期表 — 对应 visit_schedules
type VisitSchedule struct {
	ScheduleID   string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	ResidentID   string            `gorm:"type:uuid;not null"                             json:"resident_id"`
	VisitorType  VisitorType       `gorm:"type:varchar(20);not null"                      json:"visitor_type"`
	Status       ScheduleStatus    `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	EntryDate    time.Time         `gorm:"not null"                                       json:"entry_date"`
	ExitDate     *time.Time        `json:"exit_date,omitempty"` // 为空表示无固定过期时间
	VisitorPhone string            `gorm:"type:varchar(32)"                               json:"visitor_phone,omitempty"`
	VisitorEmail string            `gorm:"type:varchar(255)"                              json:"visitor_email,omitempty"`
	Meta         datatypes.JSONMap `gorm:"type:jsonb"                                     json:"meta,omitempty"`
	BaseModel

	// 关联
	Resident *User    `gorm:"foreignKey:ResidentID;references:UserID"   json:"resident,omitempty"`
	Visitors []Visitor `gorm:"foreignKey:ScheduleID;references:ScheduleID" json:"visitors,omitempty"`
}

// TableName 指定表名
func (VisitSchedule) TableName() string { return "visit_schedules" }

// IsInactive 是否已标记为失效
func (s *VisitSchedule) IsInactive() bool {
	return s.Status == ScheduleStatusInactive
}

// ExpiredAt 判断在 now 时刻是否已过期；ExitDate 为空时永不过期
func (s *VisitSchedule) ExpiredAt(now time.Time) bool {
	return s.ExitDate != nil && s.ExitDate.Before(now)
}
