package dto

// ── 访客排期响应 ──

// ScheduleDetailResponse 排期详情
type ScheduleDetailResponse struct {
	ID           string            `json:"id"`
	ResidentID   string            `json:"resident_id"`
	VisitorType  string            `json:"visitor_type"`
	Status       string            `json:"status"`
	EntryDate    string            `json:"entry_date"`
	ExitDate     *string           `json:"exit_date,omitempty"`
	VisitorPhone string            `json:"visitor_phone,omitempty"`
	VisitorEmail string            `json:"visitor_email,omitempty"`
	Visitors     []VisitorResponse `json:"visitors"`
	UpdatedAt    string            `json:"updated_at"`
}

// VisitorResponse 访客信息
type VisitorResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IDType    string `json:"id_type,omitempty"`
}

// EntryLogListRequest 出入记录列表查询参数
type EntryLogListRequest struct {
	PaginationRequest
}

// EntryLogResponse 出入记录
type EntryLogResponse struct {
	ID          string  `json:"id"`
	ScheduleID  string  `json:"schedule_id"`
	VisitorID   string  `json:"visitor_id"`
	VisitorName string  `json:"visitor_name,omitempty"`
	SecurityID  string  `json:"security_id"`
	EntryTime   *string `json:"entry_time,omitempty"`
	ExitTime    *string `json:"exit_time,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}
