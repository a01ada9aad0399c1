package order

import (
	"fmt"

	cartService "storefront/internal/domain/cart/service"
	"storefront/internal/domain/order/handler"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/service"
	"storefront/internal/domain/payment"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	// 依赖支付协调器，必须晚于支付模块初始化
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	if payment.GlobalService == nil {
		return fmt.Errorf("payment module must be initialized before order module")
	}

	// 1. 依赖注入
	oRepo := repository.NewOrderRepository(ctx.Store)
	cart := cartService.NewCartService(ctx.Store)
	oService := service.NewOrderService(oRepo, cart, payment.GlobalService)
	oHandler := handler.NewOrderHandler(oService)

	// 2. 路由注册
	setupRoutes(ctx.Router, oHandler)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	g := r.Group("/orders")

	// 结算允许游客下单，带凭证时归属到客户
	guest := g.Group("")
	guest.Use(middleware.OptionalAuthMiddleware())
	{
		guest.POST("/checkout", h.Checkout)
	}

	// 订单历史和自助操作需要登录
	authorized := g.Group("")
	authorized.Use(middleware.AuthMiddleware())
	{
		authorized.GET("", h.GetOrders)
		authorized.GET("/:id", h.GetOrder)
		authorized.POST("/:id/cancel", h.CancelOrder)
	}

	// 管理端
	admin := r.Group("/admin/orders")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("", h.AdminListOrders)
		admin.PUT("/:id/status", h.AdminUpdateStatus)
	}
}
