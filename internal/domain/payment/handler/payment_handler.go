package handler

import (
	"errors"
	"net/http"

	orderModel "storefront/internal/domain/order/model"
	orderRepo "storefront/internal/domain/order/repository"
	"storefront/internal/domain/payment/gateway"
	"storefront/internal/domain/payment/repository"
	"storefront/internal/domain/payment/service"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(s service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type CreateSessionInput struct {
	OrderID string `json:"orderId" binding:"required"`
}

// CreateSession 为待支付订单续开结算会话
// @Summary 续开结算会话
// @Tags Payment
// @Accept json
// @Produce json
// @Param input body CreateSessionInput true "Order ID"
// @Success 200 {object} response.Response
// @Router /payment/sessions [post]
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var input CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	checkoutURL, sessionID, err := h.service.ResumeCheckout(
		c.Request.Context(), getCustomerIDFromContext(c), input.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, orderRepo.ErrOrderNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
		case errors.Is(err, orderModel.ErrInvalidOrderInput):
			response.Error(c, http.StatusBadRequest, response.ErrInvalidOrderInput, err.Error())
		case errors.Is(err, gateway.ErrUnavailable):
			response.Fail(c, response.ErrGatewayUnavailable, err.Error())
		default:
			response.Fail(c, response.ErrVerificationFailed, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"checkoutUrl": checkoutURL,
		"sessionId":   sessionID,
	})
}

type VerifyInput struct {
	SessionID string `json:"sessionId"`
}

// Verify 核实会话支付结果
// @Summary 核实会话支付结果
// @Tags Payment
// @Accept json
// @Produce json
// @Param input body VerifyInput true "Session ID"
// @Success 200 {object} response.Response{data=model.PaymentResult}
// @Router /payment/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	var input VerifyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.VerifySession(c.Request.Context(), getCustomerIDFromContext(c), input.SessionID)
	if err != nil {
		writeVerifyError(c, err)
		return
	}
	response.Success(c, result)
}

// Return 网关回跳落地页接口
// 回跳地址的 session_id 可能是未替换的占位符，服务层只在本客户的未决会话里兜底
// @Summary 网关回跳
// @Tags Payment
// @Produce json
// @Param session_id query string false "Session ID"
// @Param canceled query bool false "Canceled"
// @Success 200 {object} response.Response{data=model.PaymentResult}
// @Router /payment/return [get]
func (h *PaymentHandler) Return(c *gin.Context) {
	sessionID := c.Query("session_id")
	canceled := c.Query("canceled") == "true"

	result, err := h.service.HandleReturn(c.Request.Context(), getCustomerIDFromContext(c), sessionID, canceled)
	if err != nil {
		writeVerifyError(c, err)
		return
	}
	response.Success(c, result)
}

// AdminListAudits 收款审计流水
// @Summary 收款审计流水
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /admin/payments [get]
func (h *PaymentHandler) AdminListAudits(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	offset, limit := p.GetPageOffset()
	audits, total, err := h.service.ListAudits(offset, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, &utils.PageResult{
		List:  audits,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	})
}

func writeVerifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.ErrSessionNotFound, "payment session not found")
	case errors.Is(err, orderRepo.ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
	case errors.Is(err, gateway.ErrUnavailable):
		response.Fail(c, response.ErrGatewayUnavailable, err.Error())
	default:
		response.Fail(c, response.ErrVerificationFailed, err.Error())
	}
}

func getCustomerIDFromContext(c *gin.Context) string {
	val, _ := c.Get("customerID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
