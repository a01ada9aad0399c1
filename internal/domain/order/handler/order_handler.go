package handler

import (
	"errors"
	"net/http"

	"storefront/internal/domain/order/lifecycle"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/service"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type CheckoutItemInput struct {
	ProductID string  `json:"productId" binding:"required"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice" binding:"gte=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
}

type CheckoutInput struct {
	Items         []CheckoutItemInput `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string              `json:"paymentMethod" binding:"required,oneof=cash-on-delivery gcash paymaya card"`
	CustomerName  string              `json:"customerName"`
	CustomerEmail string              `json:"customerEmail"`
	Discount      float64             `json:"discount" binding:"gte=0"`
}

// Checkout 结算下单
// @Summary 结算下单
// @Tags Order
// @Accept json
// @Produce json
// @Param input body CheckoutInput true "Checkout Info"
// @Success 200 {object} response.Response{data=service.CheckoutResult}
// @Router /orders/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	items := make([]model.OrderItem, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	result, err := h.service.Checkout(c.Request.Context(), &service.CheckoutInput{
		CustomerID:    getCustomerIDFromContext(c),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		Items:         items,
		PaymentMethod: input.PaymentMethod,
		Discount:      input.Discount,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidOrderInput) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidOrderInput, err.Error())
			return
		}
		// 网关开会话失败：订单已创建，连同通知带回给客户端，可从订单页续开会话
		if result != nil {
			response.Fail(c, response.ErrGatewayUnavailable, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, result)
}

// GetOrders 客户订单历史
// @Summary 客户订单历史
// @Tags Order
// @Produce json
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /orders [get]
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	orders, err := h.service.GetOrders(c.Request.Context(), getCustomerIDFromContext(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, paginate(orders, &p))
}

// GetOrder 单个订单详情
// @Summary 单个订单详情
// @Tags Order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), getCustomerIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, order)
}

// CancelOrder 客户自助取消
// @Summary 客户自助取消
// @Tags Order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.service.CancelOrder(c.Request.Context(), getCustomerIDFromContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
		case errors.Is(err, lifecycle.ErrIneligibleForCancellation):
			// 把具体拒绝原因透传给客户
			response.Fail(c, response.ErrCancelNotAllowed, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, order)
}

// AdminListOrders 管理端订单列表 (reconcile all)
// @Summary 管理端订单列表
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /admin/orders [get]
func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	orders, err := h.service.AdminListOrders(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, paginate(orders, &p))
}

type UpdateStatusInput struct {
	Status string `json:"status" binding:"required,oneof=processing shipped delivered cancelled return_requested refunded"`
}

// AdminUpdateStatus 管理端履约流转
// @Summary 管理端履约流转
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body UpdateStatusInput true "Next Status"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /admin/orders/{id}/status [put]
func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.service.AdminUpdateStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			response.Fail(c, response.ErrInvalidTransition, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, order)
}

// paginate 内存分页：归并结果本来就是整集重算的
func paginate(orders []model.Order, p *utils.Pagination) *utils.PageResult {
	offset, limit := p.GetPageOffset()
	total := int64(len(orders))

	if offset >= len(orders) {
		return &utils.PageResult{List: []model.Order{}, Total: total, Page: p.Page, Limit: p.Limit}
	}
	end := offset + limit
	if end > len(orders) {
		end = len(orders)
	}
	return &utils.PageResult{List: orders[offset:end], Total: total, Page: p.Page, Limit: p.Limit}
}

func getCustomerIDFromContext(c *gin.Context) string {
	val, _ := c.Get("customerID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
