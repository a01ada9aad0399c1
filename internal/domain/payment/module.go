package payment

import (
	cartService "storefront/internal/domain/cart/service"
	orderRepo "storefront/internal/domain/order/repository"
	"storefront/internal/domain/payment/gateway"
	"storefront/internal/domain/payment/handler"
	"storefront/internal/domain/payment/repository"
	"storefront/internal/domain/payment/service"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GlobalService 支付协调器实例，订单模块下单时用它开结算会话
var GlobalService service.PaymentService

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 订单模块依赖支付协调器，支付先初始化
	return 10
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	sessionRepo := repository.NewSessionRepository(ctx.Store)
	auditRepo := repository.NewAuditRepository(ctx.DB)
	oRepo := orderRepo.NewOrderRepository(ctx.Store)

	// 没有真实网关密钥时退回演示网关，保证本地起服务不依赖外部账号
	var gw gateway.CheckoutGateway
	cfg := config.GlobalConfig.Gateway
	if cfg.DemoMode || cfg.SecretKey == "" {
		gw = gateway.NewDemoGateway()
		logger.Log.Info("payment gateway running in demo mode")
	} else {
		gw = gateway.NewPayMongoGateway()
	}

	// 支付模块依赖购物车服务做支付后的扣减
	cart := cartService.NewCartService(ctx.Store)

	GlobalService = service.NewPaymentService(oRepo, sessionRepo, auditRepo, gw, cart)
	pHandler := handler.NewPaymentHandler(GlobalService)

	// 2. 路由注册
	setupRoutes(ctx.Router, pHandler)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler) {
	g := r.Group("/payment")

	// 回跳和验证允许匿名访问，带凭证时占位符会话号才有兜底范围
	optional := g.Group("")
	optional.Use(middleware.OptionalAuthMiddleware())
	{
		optional.GET("/return", h.Return)
		optional.POST("/verify", h.Verify)
		// 续开会话允许游客订单，带凭证时校验归属
		optional.POST("/sessions", h.CreateSession)
	}

	// 审计流水只开放给管理员
	admin := r.Group("/admin/payments")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("", h.AdminListAudits)
	}
}
