package server

import (
	"net/http"
	"time"

	"shopadmin/internal/auth"
	"shopadmin/internal/config"
	"shopadmin/internal/metrics"
	"shopadmin/internal/mw"
	"shopadmin/internal/service"
	"shopadmin/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLog())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	userSvc := service.NewUserService(db, cfg)
	chatSvc := service.NewChatService(db, hub)
	h := NewHandler(userSvc, chatSvc)

	api := r.Group("/api")

	authAPI := api.Group("/Auth")
	authAPI.POST("/register", h.Register)
	authAPI.POST("/login", h.Login)
	authAPI.POST("/refresh-token", h.RefreshToken)
	authAPI.POST("/logout", h.Logout)
	authAPI.GET("/me", h.Me)

	authedAuth := authAPI.Group("")
	authedAuth.Use(auth.AuthMiddleware(cfg, db))
	authedAuth.POST("/update-role", h.UpdateRole)
	authedAuth.GET("/users", auth.RequireRole(auth.RoleAdmin), h.ListUsers)
	authedAuth.GET("/users/:userName", auth.RequireRole(auth.RoleAdmin), h.GetUser)

	chat := api.Group("/chat")
	chat.Use(auth.AuthMiddleware(cfg, db))
	chat.POST("/send", h.SendMessage)
	chat.GET("/conversations", h.ListConversations)
	chat.GET("/messages/:otherUserId", h.GetHistory)
	chat.PUT("/messages/:messageId", h.EditMessage)
	chat.DELETE("/messages/:messageId", h.DeleteMessage)

	r.GET("/chathub", ws.Serve(hub, db, cfg))

	return r
}
