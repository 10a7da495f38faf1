package service

import (
	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Plan         PlanService
	Group        GroupService
	Membership   MembershipService
	Topic        TopicService
	Submission   SubmissionService
	Notification NotificationService
	Export       ExportService
}

// NewService 创建 Service 聚合；各编排服务共享同一个事件投递出口
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	events EventSink,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		User:         NewUserService(repo, logger),
		Plan:         NewPlanService(repo, events, logger),
		Group:        NewGroupService(cfg.Grouping, repo, events, logger),
		Membership:   NewMembershipService(cfg.Membership, repo, events, logger),
		Topic:        NewTopicService(repo, events, logger),
		Submission:   NewSubmissionService(repo, events, logger),
		Notification: NewNotificationService(repo, logger),
		Export:       NewExportService(repo, logger),
	}
}
