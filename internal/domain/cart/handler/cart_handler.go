package handler

import (
	"net/http"

	"storefront/internal/domain/cart/model"
	"storefront/internal/domain/cart/service"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	service service.CartService
}

func NewCartHandler(s service.CartService) *CartHandler {
	return &CartHandler{service: s}
}

// GetCart 获取购物车
// @Summary 获取购物车
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Response{data=model.Cart}
// @Router /cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.service.GetCart(c.Request.Context(), customerID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, cart)
}

type PutCartInput struct {
	Lines []model.CartLine `json:"lines" binding:"required"`
}

// PutCart 整车覆盖保存
// @Summary 保存购物车
// @Tags Cart
// @Accept json
// @Produce json
// @Param input body PutCartInput true "Cart Lines"
// @Success 200 {object} response.Response{data=model.Cart}
// @Router /cart [put]
func (h *CartHandler) PutCart(c *gin.Context) {
	var input PutCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	cart, err := h.service.PutCart(c.Request.Context(), customerID(c), input.Lines)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, cart)
}

func customerID(c *gin.Context) string {
	val, _ := c.Get("customerID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
