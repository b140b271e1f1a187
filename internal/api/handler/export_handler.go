package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"visitor-gate/internal/service"
	"visitor-gate/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportEntryLogs 导出出入记录
// GET /api/v1/schedules/:id/entry-logs/export
func (h *ExportHandler) ExportEntryLogs(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportEntryLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, response.CodeScheduleNotFound, service.MsgScheduleNotFound)
	case errors.Is(err, service.ErrExportNoLogs):
		response.NotFound(c, response.CodeExportNoLogs, "No entry logs for this schedule")
	default:
		response.InternalError(c)
	}
}
