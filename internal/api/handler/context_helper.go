package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"visitor-gate/internal/api/middleware"
	"visitor-gate/internal/dto"
	"visitor-gate/pkg/response"
)

// CallerFromContext 返回认证中间件注入的调用者，匿名请求返回 nil
func CallerFromContext(c *gin.Context) *dto.Caller {
	userID := c.GetString(middleware.CtxUserID)
	role := c.GetString(middleware.CtxRole)
	if userID == "" || role == "" {
		return nil
	}
	return &dto.Caller{UserID: userID, Role: role}
}

// MustGetCaller 从 Gin 上下文中安全提取调用者。
// 如果 JWT 中间件未正确注入身份，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (*dto.Caller, bool) {
	caller := CallerFromContext(c)
	if caller == nil {
		response.Unauthorized(c, response.CodeUnauthorized, "Unauthorized")
		return nil, false
	}
	return caller, true
}

// tokenMeta 当前 Token 的 jti 与过期时间
func tokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString(middleware.CtxTokenJTI)
	exp, _ := c.Get(middleware.CtxTokenExp)
	expAt, _ := exp.(time.Time)
	return jti, expAt
}
