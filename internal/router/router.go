package router

import (
	"time"

	"plforum/internal/handlers"
	"plforum/internal/metrics"
	"plforum/internal/middleware"
	"plforum/internal/rbac"
	"plforum/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps 路由所需的共享组件
type Deps struct {
	DB          *gorm.DB
	Services    *services.Services
	Enforcer    *rbac.Enforcer
	JWTSecret   string
	JWTTTL      time.Duration
	RateLimiter *middleware.RateLimiter
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	authHandler := handlers.NewAuthHandler(d.Services, d.JWTSecret, d.JWTTTL)
	userHandler := handlers.NewUserHandler(d.Services, d.DB)
	postHandler := handlers.NewPostHandler(d.Services)
	resourceHandler := handlers.NewResourceHandler(d.Services)
	notificationHandler := handlers.NewNotificationHandler(d.Services.Notifications)
	adminHandler := handlers.NewAdminHandler(d.Services)
	rbacHandler := handlers.NewRBACHandler(d.Enforcer, d.Services.Audit)

	limited := d.RateLimiter.Handler()
	policy := func(obj, act string) gin.HandlerFunc {
		return middleware.RequirePolicy(d.Enforcer, obj, act)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.LoadUser(d.DB, d.JWTSecret))

	// 公共路由
	api.GET("/boards", postHandler.ListBoards)               // 板块列表
	api.GET("/posts", postHandler.List)                      // 帖子列表
	api.GET("/posts/hot", postHandler.Hot)                   // 热门
	api.GET("/posts/rankings", postHandler.Rankings)         // 周榜/月榜
	api.GET("/posts/:id", postHandler.Detail)                // 帖子详情
	api.GET("/posts/:id/comments", postHandler.ListComments) // 评论列表
	api.GET("/users/:id", userHandler.Profile)               // 用户主页
	api.POST("/auth/register", authHandler.Register)         // 注册
	api.POST("/auth/login", limited, authHandler.Login)      // 登录
	api.POST("/auth/logout", authHandler.Logout)             // 退出登录

	// 受保护路由
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/me", userHandler.Me)
		authorized.POST("/me/checkin", userHandler.CheckIn)                  // 每日签到
		authorized.GET("/me/points", userHandler.PointLogs)                  // 积分明细
		authorized.GET("/me/downloads", userHandler.DownloadQuota)           // 当日下载用量
		authorized.GET("/me/favorites", userHandler.Favorites)               // 我的收藏
		authorized.PUT("/me/bio", userHandler.UpdateBio)                     // 修改简介
		authorized.PUT("/me/nickname", userHandler.ChangeNickname())         // 修改昵称
		authorized.PUT("/me/username", userHandler.ChangeUsername())         // 修改用户名
		authorized.PUT("/me/avatar", userHandler.ChangeAvatar())             // 修改头像
		authorized.PUT("/me/password", userHandler.ChangePassword)           // 修改密码
		authorized.POST("/users/:id/follow", userHandler.ToggleFollow)       // 关注/取消关注用户
		authorized.POST("/boards/:id/follow", postHandler.ToggleBoardFollow) // 关注/取消关注板块

		authorized.POST("/posts", postHandler.Create)                                                // 发帖
		authorized.PUT("/posts/:id", postHandler.Update)                                             // 编辑帖子
		authorized.DELETE("/posts/:id", postHandler.Delete)                                          // 删除帖子
		authorized.POST("/posts/:id/like", postHandler.ToggleLike)                                   // 点赞/取消
		authorized.POST("/posts/:id/favorite", postHandler.ToggleFavorite)                           // 收藏/取消
		authorized.POST("/posts/:id/comments", limited, postHandler.CreateComment)                   // 发表评论
		authorized.DELETE("/comments/:id", postHandler.DeleteComment)                                // 删除评论
		authorized.POST("/resources/:id/links/:link_id/download", limited, resourceHandler.Download) // 获取资源地址

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
	}

	// 审核路由，板块级权限在服务层判断
	moderation := api.Group("/moderation")
	moderation.Use(middleware.RequireStaff())
	{
		moderation.GET("/pending", postHandler.PendingQueue)
		moderation.POST("/posts/:id/approve", postHandler.Approve)
		moderation.POST("/posts/:id/reject", postHandler.Reject)
		moderation.PUT("/posts/:id/flags", postHandler.SetFlags)
		moderation.GET("/posts/:id/revisions", postHandler.Revisions)
		moderation.GET("/posts/:id/revisions/:rev_id/diff", postHandler.RevisionDiff)
	}

	// 后台路由：先过 RBAC，再由服务层做等级校验
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("/users", policy("admin.users", "read"), adminHandler.ListUsers)
		admin.POST("/users/:id/ban", policy("admin.users", "ban"), adminHandler.Ban())
		admin.POST("/users/:id/unban", policy("admin.users", "unban"), adminHandler.Unban())
		admin.POST("/users/:id/mute", policy("admin.users", "mute"), adminHandler.Mute())
		admin.POST("/users/:id/unmute", policy("admin.users", "unmute"), adminHandler.Unmute())
		admin.POST("/users/:id/grant-staff", policy("admin.users", "grant_staff"), adminHandler.GrantStaff())
		admin.POST("/users/:id/revoke-staff", policy("admin.users", "revoke_staff"), adminHandler.RevokeStaff())
		admin.GET("/users/:id/board-perms", policy("admin.users", "board_perms"), adminHandler.GetBoardPerms)
		admin.PUT("/users/:id/board-perms", policy("admin.users", "board_perms"), adminHandler.PutBoardPerms)
		admin.POST("/punishments/sweep", policy("admin.users", "unban"), adminHandler.Sweep)
		admin.GET("/audit", policy("admin.audit", "read"), adminHandler.AuditLogs)

		admin.GET("/rbac", policy("rbac", "manage"), rbacHandler.ListPolicies)
		admin.POST("/rbac/policies", policy("rbac", "manage"), rbacHandler.AddPolicy)
		admin.DELETE("/rbac/policies", policy("rbac", "manage"), rbacHandler.RemovePolicy)
		admin.POST("/rbac/assignments", policy("rbac", "manage"), rbacHandler.AddAssignment)
		admin.DELETE("/rbac/assignments", policy("rbac", "manage"), rbacHandler.RemoveAssignment)
	}
}
