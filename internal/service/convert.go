package service

import (
	"time"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/model"
)

// ── 模型 → DTO 转换 ──

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

func formatTimePtr(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t, loc)
	return &s
}

func toEntryLogResponse(log *model.EntryLog, visitor *model.Visitor, loc *time.Location) *dto.EntryLogResponse {
	resp := &dto.EntryLogResponse{
		ID:         log.EntryLogID,
		ScheduleID: log.ScheduleID,
		VisitorID:  log.VisitorID,
		SecurityID: log.SecurityID,
		EntryTime:  formatTimePtr(log.EntryTime, loc),
		ExitTime:   formatTimePtr(log.ExitTime, loc),
		UpdatedAt:  formatTime(log.UpdatedAt, loc),
	}
	if visitor == nil {
		visitor = log.Visitor
	}
	if visitor != nil {
		resp.VisitorName = visitor.FullName()
	}
	return resp
}

func toScheduleDetailResponse(s *model.VisitSchedule, loc *time.Location) *dto.ScheduleDetailResponse {
	visitors := make([]dto.VisitorResponse, 0, len(s.Visitors))
	for _, v := range s.Visitors {
		visitors = append(visitors, dto.VisitorResponse{
			ID:        v.VisitorID,
			FirstName: v.FirstName,
			LastName:  v.LastName,
			IDType:    v.IDType,
		})
	}
	return &dto.ScheduleDetailResponse{
		ID:           s.ScheduleID,
		ResidentID:   s.ResidentID,
		VisitorType:  string(s.VisitorType),
		Status:       string(s.Status),
		EntryDate:    formatTime(s.EntryDate, loc),
		ExitDate:     formatTimePtr(s.ExitDate, loc),
		VisitorPhone: s.VisitorPhone,
		VisitorEmail: s.VisitorEmail,
		Visitors:     visitors,
		UpdatedAt:    formatTime(s.UpdatedAt, loc),
	}
}
