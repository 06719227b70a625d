package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsdash/backend/internal/cache"
	"opsdash/backend/internal/config"
	"opsdash/backend/internal/health"
	"opsdash/backend/internal/middleware"
	"opsdash/backend/internal/monitoring"
	"opsdash/backend/internal/service"
	"opsdash/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	EmailService  *service.EmailService
	WebSocketHub  *websocket.Hub
	Metrics       *monitoring.Metrics
	HealthChecker *health.HealthChecker
	ProxyCache    *cache.LocalCache
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	emailHandler := NewEmailHandler(deps.EmailService, deps.Metrics, deps.Logger)
	proxyHandler := NewProxyHandler(deps.Config.Supabase, deps.Config.N8N, deps.ProxyCache, deps.Metrics, deps.Logger)

	// 写操作限流；读操作和健康检查不限流
	rateLimit := middleware.NewRateLimiter(deps.Config.RateLimit.RPS, deps.Config.RateLimit.Burst, deps.Logger).Handler()

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapH(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapH(deps.HealthChecker.ReadyHandler()))
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		// ========== Email Routes ==========
		api.GET("/emails", emailHandler.ListEmails)
		api.POST("/emails", rateLimit, emailHandler.IngestEmails)
		api.POST("/emails/:emailId/actions", rateLimit, emailHandler.ApplyAction)

		// ========== Legacy Webhook Routes (兼容层) ==========
		// 既有的 n8n 工作流仍指向旧路径，处理函数与 /api/emails 共用
		api.GET("/n8n-webhook", emailHandler.ListEmails)
		api.POST("/n8n-webhook", rateLimit, emailHandler.IngestEmails)
		api.POST("/n8n-webhook/:emailId/actions", rateLimit, emailHandler.ApplyAction)

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			api.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}

		// ========== Supabase Proxy Routes ==========
		if proxyHandler.SupabaseEnabled() {
			api.GET("/revenue", proxyHandler.GetRevenue)
			api.GET("/expenses", proxyHandler.GetExpenses)
			api.POST("/expenses", rateLimit, proxyHandler.CreateExpense)

			authRoutes := api.Group("/auth")
			{
				authRoutes.POST("/login", rateLimit, proxyHandler.Login)
				authRoutes.POST("/refresh", rateLimit, proxyHandler.Refresh)
				authRoutes.POST("/logout", proxyHandler.Logout)
			}
		}

		// ========== Automation Webhook Routes ==========
		if deps.Config.N8N.PublishDraftURL != "" {
			api.POST("/publish-draft", rateLimit, proxyHandler.PublishDraft)
		}
		if deps.Config.N8N.ModifyImageURL != "" {
			api.POST("/modify-image", rateLimit, proxyHandler.ModifyImage)
		}
		if deps.Config.N8N.UpscaleImageURL != "" {
			api.POST("/upscale-image", rateLimit, proxyHandler.UpscaleImage)
		}
	}

	return router
}
