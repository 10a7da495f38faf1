package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/api/handler"
	"github.com/Ynate-byte/gradpro-sub001/internal/api/middleware"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/pkg/jwt"
	"github.com/Ynate-byte/gradpro-sub001/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(cfg.Server.Security))
	r.Use(middleware.CORS(cfg.Server.CORS))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// rdb 为 nil 时不能直接传入接口，否则会对 typed nil 调用
	var (
		checker middleware.TokenChecker
		limiter middleware.Limiter
	)
	if rdb != nil {
		checker = rdb
		limiter = rdb
	}

	bodyLimit := middleware.BodyLimit(cfg.Server.MaxBodyBytes)
	uploadLimit := middleware.BodyLimit(cfg.Server.MaxUploadBytes)
	loginLimit := middleware.RateLimit(limiter, "login", cfg.RateLimit.Login, middleware.ByLoginCode)
	importLimit := middleware.RateLimit(limiter, "import", cfg.RateLimit.Import, middleware.ByActor)
	autoGroupLimit := middleware.RateLimit(limiter, "auto_group", cfg.RateLimit.AutoGroup, middleware.ByActor)

	manager := middleware.RoleAuth(model.RoleAdvisor, model.RoleDepartmentHead, model.RoleAdmin)
	admin := middleware.RoleAuth(model.RoleAdmin)
	student := middleware.RoleAuth(model.RoleStudent)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", bodyLimit, loginLimit, h.Auth.Login)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, checker))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 用户目录
			authorized.GET("/majors", h.User.ListMajors)
			authorized.POST("/majors", admin, h.User.CreateMajor)
			users := authorized.Group("/users")
			{
				users.GET("", manager, h.User.ListUsers)
				users.POST("", admin, bodyLimit, h.User.CreateUser)
				users.POST("/import", admin, importLimit, uploadLimit, h.User.ImportUsers)
				users.PUT("/:id/active", admin, h.User.SetActive)
				users.POST("/:id/reset-password", admin, h.User.ResetPassword)
			}

			// 计划模块
			plans := authorized.Group("/plans")
			{
				plans.GET("", h.Plan.ListPlans)
				plans.GET("/:id", h.Plan.GetPlan)
				plans.POST("", manager, bodyLimit, h.Plan.CreatePlan)
				plans.PUT("/:id", manager, bodyLimit, h.Plan.UpdatePlan)
				plans.POST("/:id/milestones", manager, h.Plan.AddMilestone)
				plans.DELETE("/:id/milestones/:milestone_id", manager, h.Plan.RemoveMilestone)

				plans.POST("/:id/submit", manager, h.Plan.SubmitPlan)
				plans.POST("/:id/resubmit", manager, h.Plan.ResubmitPlan)
				plans.POST("/:id/decision", manager, h.Plan.DecidePlan)
				plans.POST("/:id/activate", manager, h.Plan.ActivatePlan)
				plans.POST("/:id/complete", manager, h.Plan.CompletePlan)
				plans.POST("/:id/cancel", manager, h.Plan.CancelPlan)

				plans.GET("/:id/participants", h.Plan.ListParticipants)
				plans.POST("/:id/participants", manager, bodyLimit, h.Plan.EnrollStudents)
				plans.POST("/:id/participants/import", manager, importLimit, uploadLimit, h.Plan.ImportParticipants)
				plans.PUT("/:id/participants/:student_id/eligibility", manager, h.Plan.SetEligibility)
				plans.DELETE("/:id/participants/:student_id", manager, h.Plan.RemoveParticipant)

				plans.GET("/:id/groups", h.Group.ListGroups)
				plans.POST("/:id/auto-group", manager, autoGroupLimit, h.Group.AutoGroup)

				plans.GET("/:id/export/roster", manager, h.Export.ExportRoster)
				plans.GET("/:id/export/milestones.ics", h.Export.ExportMilestones)
			}

			// 小组模块（细粒度权限在 Service 层判定）
			groups := authorized.Group("/groups")
			{
				groups.POST("", h.Group.CreateGroup)
				groups.POST("/leave", student, h.Membership.Leave)
				groups.GET("/:id", h.Group.GetGroup)
				groups.POST("/:id/members", manager, h.Group.AddStudent)
				groups.DELETE("/:id/members/:user_id", h.Group.RemoveMember)
				groups.PUT("/:id/leader", h.Group.TransferLeadership)
				groups.PUT("/:id/lock", manager, h.Group.SetLocked)
				groups.POST("/:id/invitations", student, h.Membership.Invite)
				groups.POST("/:id/join-requests", student, h.Membership.RequestJoin)
				groups.GET("/:id/requests", h.Membership.GroupRequests)
				groups.GET("/:id/assignment", h.Topic.GetGroupAssignment)
			}

			invitations := authorized.Group("/invitations")
			{
				invitations.GET("/me", h.Membership.MyInvitations)
				invitations.POST("/:id/respond", student, h.Membership.RespondInvitation)
				invitations.DELETE("/:id", student, h.Membership.CancelInvitation)
			}

			joinRequests := authorized.Group("/join-requests")
			{
				joinRequests.POST("/:id/respond", student, h.Membership.RespondJoinRequest)
				joinRequests.DELETE("/:id", student, h.Membership.CancelJoinRequest)
			}

			// 课题模块
			topics := authorized.Group("/topics")
			{
				topics.GET("", h.Topic.ListTopics)
				topics.GET("/:id", h.Topic.GetTopic)
				topics.POST("", manager, bodyLimit, h.Topic.ProposeTopic)
				topics.PUT("/:id", manager, bodyLimit, h.Topic.UpdateTopic)
				topics.POST("/:id/submit", manager, h.Topic.SubmitTopic)
				topics.POST("/:id/resubmit", manager, h.Topic.ResubmitTopic)
				topics.POST("/:id/decision", admin, h.Topic.DecideTopic)
				topics.POST("/:id/lock", admin, h.Topic.LockTopic)
				topics.POST("/:id/register", student, h.Topic.RegisterTopic)
			}

			// 提交物模块
			authorized.GET("/assignments/:id/submissions", h.Submission.ListSubmissions)
			authorized.POST("/assignments/:id/submissions", student, bodyLimit, h.Submission.CreateSubmission)
			authorized.POST("/submissions/:id/confirm", manager, h.Submission.ConfirmSubmission)
			authorized.POST("/submissions/:id/request-resubmission", manager, h.Submission.RequestResubmission)

			// 站内通知
			authorized.GET("/notifications", h.Notification.ListNotifications)
			authorized.PUT("/notifications/read", h.Notification.MarkRead)
		}
	}

	return r
}
