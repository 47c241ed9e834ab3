package router

import (
	"github.com/gin-gonic/gin"

	"sudooom.chat/internal/config"
	"sudooom.chat/internal/handler"
	"sudooom.chat/internal/health"
	"sudooom.chat/internal/middleware"
	"sudooom.chat/internal/push"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	checker *health.Checker,
	gateway *push.Gateway,
	messageHandler *handler.MessageHandler,
) *gin.Engine {
	// 设置 Gin 模式
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// 健康检查
	r.GET("/health", gin.WrapH(checker))
	r.GET("/ready", func(c *gin.Context) {
		if checker.IsHealthy(c.Request.Context()) {
			c.String(200, "OK")
		} else {
			c.String(503, "NOT READY")
		}
	})

	// 推送长连接入口，鉴权在握手后的 userId 参数上完成
	r.GET("/ws", gateway.HandleWS)

	// 消息接口
	messages := r.Group("/api/messages")
	messages.Use(middleware.TokenAuth(cfg.Auth.TokenSecret))
	messages.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	{
		messages.GET("/users", messageHandler.Contacts)
		messages.GET("/:id", messageHandler.History)
		messages.POST("/send/:id", messageHandler.Send)
		messages.PUT("/mark/:id", messageHandler.MarkSeen)
		messages.DELETE("/delete/:id", messageHandler.Delete)
	}

	return r
}
