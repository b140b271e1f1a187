package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-gate/config"
	"visitor-gate/internal/api/handler"
	"visitor-gate/internal/api/middleware"
	"visitor-gate/internal/dto"
	"visitor-gate/internal/model"
	"visitor-gate/pkg/jwt"
	"visitor-gate/pkg/redis"
)

// 登录接口限流：每 IP 每分钟 10 次
const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎；rdb 可为 nil
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}

	// 避免把 nil 指针装进接口
	var (
		blacklist middleware.BlacklistChecker
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	staff := middleware.RoleAuth(model.RoleAdmin, model.RoleSecurity)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login", middleware.RateLimit(limiter, loginRateLimit, loginRateWindow), h.Auth.Login)

		// 访客出入：匿名请求由业务层返回 401 结果体
		v1.POST("/visits/action", middleware.OptionalAuth(jwtMgr, blacklist, logger), h.Visit.Action)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 访客排期（住户只能访问自己的排期，Service 层鉴权）
			schedules := authorized.Group("/schedules/:id")
			{
				schedules.GET("", h.Schedule.GetDetail)
				schedules.GET("/calendar.ics", h.Schedule.CalendarICS)
				schedules.GET("/visitors/:visitorId/qrcode", h.Schedule.VisitorQRCode)
				schedules.GET("/entry-logs", staff, h.Schedule.ListEntryLogs)
				schedules.GET("/entry-logs/export", adminOnly, h.Export.ExportEntryLogs)
			}
		}
	}

	return r, nil
}
