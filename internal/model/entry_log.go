package model

import "time"

// EntryLog 出入记录表 — 对应 entry_logs
// 一次性访客：每个 (排期, 访客) 仅一行，原地修改
// 循环访客：可累积多行，但同一时刻最多一行未离场
type EntryLog struct {
	EntryLogID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_log_id"`
	ScheduleID string     `gorm:"type:uuid;not null"                             json:"schedule_id"`
	VisitorID  string     `gorm:"type:uuid;not null"                             json:"visitor_id"`
	SecurityID string     `gorm:"type:uuid;not null"                             json:"security_id"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	Version    int        `gorm:"not null;default:1"                             json:"version"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	// 关联
	Visitor  *Visitor `gorm:"foreignKey:VisitorID;references:VisitorID" json:"visitor,omitempty"`
	Security *User    `gorm:"foreignKey:SecurityID;references:UserID"   json:"security,omitempty"`
}

// TableName 指定表名
func (EntryLog) TableName() string { return "entry_logs" }

// IsOpen 已入场未离场
func (l *EntryLog) IsOpen() bool {
	return l.EntryTime != nil && l.ExitTime == nil
}

// IsClosed 入场与离场均已记录
func (l *EntryLog) IsClosed() bool {
	return l.EntryTime != nil && l.ExitTime != nil
}
