package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/service"
	"visitor-gate/pkg/response"
)

// ScheduleHandler 访客排期 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// GetDetail 获取排期详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) GetDetail(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	detail, err := h.scheduleSvc.GetDetail(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, detail)
}

// ListEntryLogs 分页查询出入记录
// GET /api/v1/schedules/:id/entry-logs
func (h *ScheduleHandler) ListEntryLogs(c *gin.Context) {
	var req dto.EntryLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.InvalidParams(c)
		return
	}

	list, total, err := h.scheduleSvc.ListEntryLogs(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// CalendarICS 下载访问时段日历
// GET /api/v1/schedules/:id/calendar.ics
func (h *ScheduleHandler) CalendarICS(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	id := c.Param("id")
	data, err := h.scheduleSvc.CalendarICS(c.Request.Context(), caller, id)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="visit-`+id+`.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// VisitorQRCode 访客通行二维码
// GET /api/v1/schedules/:id/visitors/:visitorId/qrcode
func (h *ScheduleHandler) VisitorQRCode(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	img, err := h.scheduleSvc.VisitorQRCode(c.Request.Context(), caller, c.Param("id"), c.Param("visitorId"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", img)
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, response.CodeScheduleNotFound, service.MsgScheduleNotFound)
	case errors.Is(err, service.ErrVisitorNotFound):
		response.NotFound(c, response.CodeVisitorNotFound, service.MsgVisitorNotFound)
	case errors.Is(err, service.ErrScheduleInactive):
		response.Forbidden(c, response.CodeScheduleInactive, service.MsgScheduleInactive)
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, "Forbidden")
	default:
		response.InternalError(c)
	}
}
