package handler

import (
	"github.com/gin-gonic/gin"

	"visitor-gate/internal/dto"
	"visitor-gate/internal/service"
)

// VisitHandler 访客出入登记 HTTP 处理器
type VisitHandler struct {
	visitSvc service.VisitService
}

// NewVisitHandler 创建 VisitHandler
func NewVisitHandler(visitSvc service.VisitService) *VisitHandler {
	return &VisitHandler{visitSvc: visitSvc}
}

// Action 登记访客出入
// POST /api/v1/visits/action
//
// 响应体为 ActionResult，HTTP 状态码与 result.code 一致
func (h *VisitHandler) Action(c *gin.Context) {
	var req dto.VisitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 请求体无法解析时按空请求处理：先鉴权，再报缺少字段
		req = dto.VisitActionRequest{}
	}

	result := h.visitSvc.HandleAction(c.Request.Context(), CallerFromContext(c), &req)
	c.JSON(result.Code, result)
}
