package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,notblank"`
}

// Caller 当前请求的调用者身份（由认证中间件解析，未登录时为 nil）
type Caller struct {
	UserID string
	Role   string
}
