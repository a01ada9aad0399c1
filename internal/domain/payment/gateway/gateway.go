// Package gateway 对接第三方结算网关
// 只负责会话创建与状态查询，订单状态流转由支付协调器处理
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable 网关暂时不可达 (超时/网络错误)
// 调用方不得据此把订单标记为失败
var ErrUnavailable = errors.New("checkout gateway unavailable")

// 网关会话状态
const (
	SessionStatusPaid     = "paid"
	SessionStatusUnpaid   = "unpaid"
	SessionStatusExpired  = "expired"
	SessionStatusCanceled = "canceled"
)

// LineItem 发给网关的订单行
type LineItem struct {
	Name      string
	Amount    float64 // 单价，主货币单位
	Quantity  int
	Currency  string
	Reference string // 商品标识，回查用
}

// CheckoutRequest 创建结算会话的入参
type CheckoutRequest struct {
	OrderID       string
	OrderNumber   string
	PaymentMethod string
	Total         float64
	Items         []LineItem
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession 网关侧会话
type CheckoutSession struct {
	ID          string
	CheckoutURL string
	Status      string
	PaidAt      time.Time
}

// CheckoutGateway 结算网关
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}
