package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/health"
	"tempbox/backend/internal/middleware"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/service"
	"tempbox/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	EmailService   *service.EmailService
	Metrics        *monitoring.Metrics
	Health         *health.HealthChecker
	WebSocketHub   *websocket.Hub // 可选
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(deps.Metrics, deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(1 << 20))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时必须关闭凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.MailboxService, deps.EmailService, deps.Config)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		api.GET("/config", handler.getConfig)

		api.POST("/mailboxes", handler.createMailbox)
		api.GET("/mailboxes/:address", handler.getMailbox)
		api.DELETE("/mailboxes/:address", handler.deleteMailbox)
		api.GET("/mailboxes/:address/emails", handler.listEmails)

		api.GET("/emails/:id", handler.getEmail)
		api.DELETE("/emails/:id", handler.deleteEmail)
		api.GET("/emails/:id/attachments", handler.listAttachments)

		api.GET("/attachments/:id", handler.getAttachment)

		if deps.WebSocketHub != nil {
			api.GET("/mailboxes/:address/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
