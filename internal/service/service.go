package service

import (
	"go.uber.org/zap"

	"visitor-gate/config"
	"visitor-gate/internal/repository"
	"visitor-gate/pkg/jwt"
)

// Infra 可选的外部依赖，均可为 nil（对应能力降级为空实现）
type Infra struct {
	Cache     CacheStore
	Blacklist TokenBlacklist
	Mail      MailSender
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth     AuthService
	Visit    VisitService
	Schedule ScheduleService
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	infra Infra,
	logger *zap.Logger,
) *Service {
	loc := cfg.Visit.Location()
	invalidator := NewScheduleInvalidator(infra.Cache, logger)
	notifier := NewVisitNotifier(infra.Mail, repo.User, loc, logger)

	return &Service{
		Auth:  NewAuthService(cfg, repo, jwtMgr, infra.Blacklist, logger),
		Visit: NewVisitService(repo, invalidator, notifier, loc, logger),
		Schedule: NewScheduleService(repo, ScheduleServiceOptions{
			Cache:       infra.Cache,
			CacheTTL:    cfg.Redis.DetailCacheTTL,
			Invalidator: invalidator,
			BaseURL:     cfg.Server.BaseURL,
			Location:    loc,
		}, logger),
		Export: NewExportService(repo, loc, logger),
	}
}
