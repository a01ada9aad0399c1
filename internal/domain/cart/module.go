package cart

import (
	"storefront/internal/domain/cart/handler"
	"storefront/internal/domain/cart/service"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CartModule 购物车模块
type CartModule struct{}

func init() {
	registry.Register(&CartModule{})
}

func (m *CartModule) Name() string {
	return "cart"
}

func (m *CartModule) Priority() int {
	return 5
}

func (m *CartModule) Init(ctx *registry.ModuleContext) error {
	cService := service.NewCartService(ctx.Store)
	cHandler := handler.NewCartHandler(cService)

	setupRoutes(ctx.Router, cHandler)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CartHandler) {
	g := r.Group("/cart")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.GetCart)
		g.PUT("", h.PutCart)
	}
}
