package main

import (
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/push"
	"storefront/internal/pkg/registry"
	"storefront/pkg/database"
	"storefront/pkg/logger"
	"storefront/pkg/store"

	// 模块通过 init() 自注册
	_ "storefront/internal/domain/cart"
	_ "storefront/internal/domain/order"
	_ "storefront/internal/domain/payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title Storefront API
// @version 1.0
// @description 订单、支付与购物车服务
// @BasePath /
func main() {
	config.LoadConfig()
	logger.Init()
	defer logger.Sync()

	db := database.InitDatabase()
	redisClient := database.InitRedis()
	recordStore := store.NewRedisStore(redisClient)

	// 推送是可选能力，配置缺失不阻塞启动
	if err := push.InitPushService(); err != nil {
		logger.Log.Warn("push service disabled", zap.Error(err))
	}

	if config.GlobalConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.LoggerMiddleware(),
		middleware.TraceMiddleware(),
		middleware.RateLimitMiddleware(),
		middleware.MetricsMiddleware(),
		cors.Default(),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ctx := &registry.ModuleContext{
		DB:     db,
		Redis:  redisClient,
		Store:  recordStore,
		Router: r,
	}
	if err := registry.InitModules(ctx); err != nil {
		logger.Log.Fatal("failed to init modules", zap.Error(err))
	}

	addr := ":" + config.GlobalConfig.Server.Port
	logger.Log.Info("server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Log.Fatal("server exited", zap.Error(err))
	}
}
