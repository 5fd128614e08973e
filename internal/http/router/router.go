package router

import (
	"github.com/gin-gonic/gin"

	"github.com/danmainah/resolveit-app/internal/config"
	"github.com/danmainah/resolveit-app/internal/http/handlers"
	"github.com/danmainah/resolveit-app/internal/http/middleware"
	"github.com/danmainah/resolveit-app/internal/metrics"
)

func SetupRouter(
	cfg *config.Config,
	tokens middleware.TokenParser,
	authHandler *handlers.AuthHandler,
	caseHandler *handlers.CaseHandler,
	adminHandler *handlers.AdminHandler,
	agreementHandler *handlers.AgreementHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(metrics.Middleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Токен передаётся в query, так как браузер не шлёт заголовки при рукопожатии.
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/cases", caseHandler.FileCase)
		protected.GET("/cases/my", caseHandler.ListMyCases)
		protected.GET("/cases/:id", middleware.UUIDValidator("id"), caseHandler.GetCase)
		protected.GET("/cases/:id/timeline", middleware.UUIDValidator("id"), caseHandler.Timeline)
		protected.GET("/cases/:id/panel", middleware.UUIDValidator("id"), caseHandler.GetPanel)
		protected.PATCH("/cases/:id/status", middleware.UUIDValidator("id"), caseHandler.UpdateStatus)

		protected.GET("/agreements/templates", agreementHandler.ListTemplates)
		protected.POST("/agreements/templates", agreementHandler.CreateTemplate)
		protected.POST("/agreements", agreementHandler.CreateAgreement)
		protected.GET("/agreements/case/:caseId", middleware.UUIDValidator("caseId"), agreementHandler.GetByCase)
		protected.PUT("/agreements/:id", middleware.UUIDValidator("id"), agreementHandler.EditAgreement)
		protected.POST("/agreements/:id/request-signatures", middleware.UUIDValidator("id"), agreementHandler.RequestSignatures)
		protected.POST("/agreements/:id/sign", middleware.UUIDValidator("id"), agreementHandler.Sign)
		protected.POST("/agreements/:id/execute", middleware.UUIDValidator("id"), agreementHandler.Execute)
		protected.GET("/agreements/:id/export", middleware.UUIDValidator("id"), agreementHandler.Export)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	// Роль администратора проверяется в сервисах.
	admin := protected.Group("/admin")
	{
		admin.GET("/cases", adminHandler.ListCases)
		admin.POST("/cases/:id/contact", middleware.UUIDValidator("id"), adminHandler.ContactOppositeParty)
		admin.POST("/cases/:id/response", middleware.UUIDValidator("id"), adminHandler.RecordResponse)
		admin.POST("/cases/:id/panel", middleware.UUIDValidator("id"), adminHandler.FormPanel)
		admin.POST("/cases/:id/mediation", middleware.UUIDValidator("id"), adminHandler.StartMediation)
		admin.POST("/cases/:id/resolve", middleware.UUIDValidator("id"), adminHandler.Resolve)
		admin.GET("/panel-members", adminHandler.PanelMembers)
		admin.PUT("/users/:id/verify", middleware.UUIDValidator("id"), adminHandler.VerifyUser)
	}

	return r
}
