package router

import (
	"log/slog"
	"net/http"

	"bugmarket/api"
	"bugmarket/config"
	_ "bugmarket/docs"
	"bugmarket/middleware"
	"bugmarket/policy"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options 路由依赖，均可为 nil
type Options struct {
	Logger  *slog.Logger
	Redis   *redis.Client
	Monitor *service.Monitor
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, opts Options) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Metrics())

	// CORS 中间件
	r.Use(CORSMiddleware(cfg.Server.CORSOrigins))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	authHandler := api.NewAuthHandler(cfg)
	userHandler := api.NewUserHandler()
	bugHandler := api.NewBugHandler()
	orderHandler := api.NewOrderHandler()
	adminHandler := api.NewAdminHandler(cfg, opts.Monitor)
	adminUserHandler := api.NewAdminUserHandler()
	exportHandler := api.NewExportHandler()

	root := r.Group("/api")

	// 无需登录
	root.POST("/auth/login",
		middleware.LoginRateLimit(opts.Redis, cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow),
		authHandler.Login)
	root.POST("/user/register", userHandler.Register)
	root.GET("/bug", bugHandler.List)
	root.GET("/bug/:id", bugHandler.Get)

	// 需要登录
	authed := root.Group("")
	authed.Use(middleware.JWTAuth(), middleware.CurrentUser())
	{
		authed.GET("/user/profile", userHandler.GetProfile)
		authed.PUT("/user/password", userHandler.ChangePassword)

		authed.POST("/bug", middleware.Require(policy.ActionBugCreate), bugHandler.Create)
		authed.POST("/bug/:id/take", middleware.Require(policy.ActionBugTake), bugHandler.Take)
		authed.POST("/bug/:id/status", middleware.Require(policy.ActionBugUpdateStatus), bugHandler.UpdateStatus)

		authed.GET("/order/my", orderHandler.My)
		authed.GET("/order/published", orderHandler.Published)
	}

	// 后台
	admin := authed.Group("/admin")
	{
		admin.GET("/orders", middleware.Require(policy.ActionOrderView), adminHandler.ListOrders)
		admin.GET("/orders/stats", middleware.Require(policy.ActionOrderView), adminHandler.GetOrderStats)
		admin.GET("/orders/export", middleware.Require(policy.ActionOrderExport), exportHandler.ExportOrders)
		admin.GET("/orders/:id", middleware.Require(policy.ActionOrderView), adminHandler.GetOrder)
		admin.GET("/overdue-bugs", middleware.Require(policy.ActionOrderView), adminHandler.OverdueBugs)
		admin.POST("/manual-intervention", middleware.Require(policy.ActionManualIntervention), adminHandler.ManualIntervention)

		admin.GET("/time-rules", middleware.Require(policy.ActionTimeRuleView), adminHandler.ListTimeRules)
		admin.PUT("/time-rules/:id", middleware.Require(policy.ActionTimeRuleEdit), adminHandler.UpdateTimeRule)
		admin.POST("/time-rules/sweep", middleware.Require(policy.ActionSweep), adminHandler.RunSweep)

		admin.GET("/operation-logs", middleware.Require(policy.ActionLogView), adminHandler.ListOperationLogs)

		admin.GET("/users", middleware.Require(policy.ActionUserView), adminUserHandler.ListUsers)
		admin.GET("/users/:id", middleware.Require(policy.ActionUserView), adminUserHandler.GetUser)
		admin.POST("/users", middleware.Require(policy.ActionUserManage), adminUserHandler.CreateUser)
		admin.PUT("/users/:id", middleware.Require(policy.ActionUserManage), adminUserHandler.UpdateUser)
		admin.DELETE("/users/:id", middleware.Require(policy.ActionUserManage), adminUserHandler.DeleteUser)
		admin.PUT("/users/:id/role", middleware.Require(policy.ActionUserManage), adminUserHandler.AssignRole)
		admin.PUT("/users/:id/status", middleware.Require(policy.ActionUserManage), adminUserHandler.UpdateUserStatus)

		admin.POST("/db/reset", middleware.Require(policy.ActionDBReset), adminHandler.ResetDatabase)
	}

	r.NoRoute(func(c *gin.Context) {
		api.NotFound(c, "接口不存在")
	})

	return r
}

// CORSMiddleware CORS 跨域中间件，origins 为空时允许任意来源
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowed) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
