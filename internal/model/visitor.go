package model

// Visitor 访客表 — 对应 visitors，隶属于某个排期
type Visitor struct {
	VisitorID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"visitor_id"`
	ScheduleID string `gorm:"type:uuid;not null"                             json:"schedule_id"`
	FirstName  string `gorm:"type:varchar(100);not null"                     json:"first_name"`
	LastName   string `gorm:"type:varchar(100);not null"                     json:"last_name"`
	IDType     string `gorm:"type:varchar(30)"                               json:"id_type,omitempty"`
	IDNumber   string `gorm:"type:varchar(64)"                               json:"id_number,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Visitor) TableName() string { return "visitors" }

// FullName 访客姓名
func (v *Visitor) FullName() string {
	if v.LastName == "" {
		return v.FirstName
	}
	return v.FirstName + " " + v.LastName
}
