// Package response 排期、认证、导出等接口的统一 JSON 信封
//
//	{"code": 0, "message": "success", "data": {...}}
//
// code 为 0 表示成功，非 0 为业务码（见下方常量），HTTP 状态码与之同时给出。
// POST /visits 不走此信封，直接返回 dto.ActionResult（success/code/message），
// 以便门岗终端按 success 字段统一处理。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 业务码：1xxxx 通用，11xxx 认证，12xxx 排期/访客，16xxx 导出，5xxxx 服务端
const (
	CodeOK               = 0
	CodeInvalidParams    = 10001
	CodeUnauthorized     = 10002
	CodeForbidden        = 10003
	CodeTooManyRequests  = 10004
	CodeBodyTooLarge     = 10005
	CodeBadCredentials   = 11001
	CodeUserNotFound     = 11002
	CodeScheduleNotFound = 12001
	CodeVisitorNotFound  = 12002
	CodeScheduleInactive = 12003
	CodeExportNoLogs     = 16101
	CodeInternal         = 50000
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 出入记录等列表接口的分页数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// OK 200
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

// OKPage 200 分页；pageSize 非正数时视为单页
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 0
	switch {
	case pageSize <= 0:
		if total > 0 {
			totalPages = 1
		}
	default:
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Error 写入错误信封但不中断处理链，中间件需自行 Abort
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// InvalidParams 参数绑定或校验失败
func InvalidParams(c *gin.Context) {
	BadRequest(c, CodeInvalidParams, "Invalid request parameters")
}

func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// TooManyRequests 429，登录限流使用
func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, CodeTooManyRequests, "Too many requests, please try again later")
}

// BodyTooLarge 413
func BodyTooLarge(c *gin.Context) {
	Error(c, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Request body too large")
}

// InternalError 500，不向客户端暴露内部错误
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "Internal server error.")
}
