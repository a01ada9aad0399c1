package model

import (
	"errors"
	"math"
	"time"
)

// 支付状态
const (
	PaymentStatusPending    = "pending"     // 在线支付已创建，等待网关结果
	PaymentStatusPendingCOD = "pending_cod" // 货到付款，送达时收款
	PaymentStatusPaid       = "paid"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

// 履约状态
const (
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusProcessing      = "processing"
	OrderStatusShipped         = "shipped"
	OrderStatusDelivered       = "delivered"
	OrderStatusCancelled       = "cancelled"
	OrderStatusReturnRequested = "return_requested"
	OrderStatusRefunded        = "refunded"
)

// 支付方式
const (
	MethodCashOnDelivery = "cash-on-delivery"
	MethodGcash          = "gcash"
	MethodPaymaya        = "paymaya"
	MethodCard           = "card"
)

// GuestCustomerID 游客订单的占位客户标识
const GuestCustomerID = "guest"

// MoneyTolerance 金额校验容差 (半个最小货币单位)
const MoneyTolerance = 0.005

// ErrInvalidOrderInput 空订单项或非正金额，入库前拒绝
var ErrInvalidOrderInput = errors.New("invalid order input")

// OrderItem 订单行
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Order 订单
// 会被多个调用方冗余写入多个存储位置，字段可能残缺，读取时归并
type Order struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"orderNumber"`
	CustomerID    string      `json:"customerId"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerEmail string      `json:"customerEmail,omitempty"`
	Items         []OrderItem `json:"items"`

	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`

	PaymentMethod string `json:"paymentMethod"`
	// OriginalPaymentMethod 保留客户最初的选择，后续字段被改写时仍可追溯
	OriginalPaymentMethod string `json:"originalPaymentMethod,omitempty"`

	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`

	// 在线支付未决期间才存在
	GatewaySessionID   string `json:"gatewaySessionId,omitempty"`
	GatewayCheckoutURL string `json:"gatewayCheckoutUrl,omitempty"`

	// 生命周期时间戳，只写一次，不覆盖
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	OrderDate         *time.Time `json:"orderDate,omitempty"` // 下单时间，createdAt 缺失时的排序兜底
	PaymentDate       *time.Time `json:"paymentDate,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt       *time.Time `json:"cancelledAt,omitempty"`
	ReturnRequestedAt *time.Time `json:"returnRequestedAt,omitempty"`
}

// IsOnlineMethod 是否走网关的支付方式
func IsOnlineMethod(method string) bool {
	switch method {
	case MethodGcash, MethodPaymaya, MethodCard:
		return true
	}
	return false
}

// ItemsSubtotal 按订单行计算小计
func (o *Order) ItemsSubtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}

// RecomputeTotals 补齐缺失的金额字段
// total = subtotal + shipping + tax - discount，读取时重算
func (o *Order) RecomputeTotals() {
	if o.Subtotal == 0 && len(o.Items) > 0 {
		o.Subtotal = o.ItemsSubtotal()
	}
	if o.Total == 0 {
		o.Total = o.Subtotal + o.Shipping + o.Tax - o.Discount
	}
}

// TotalsConsistent 金额恒等式校验
func (o *Order) TotalsConsistent() bool {
	return math.Abs(o.Total-(o.Subtotal+o.Shipping+o.Tax-o.Discount)) <= MoneyTolerance
}

// IsGuest 无法归属到具体客户的订单
func (o *Order) IsGuest() bool {
	return o.CustomerID == "" || o.CustomerID == GuestCustomerID
}

// EffectiveCreatedAt 排序用时间：createdAt 优先，缺失时退回 orderDate
// 两者都缺失返回 (zero, false)，这类记录排在最后
func (o *Order) EffectiveCreatedAt() (time.Time, bool) {
	if o.CreatedAt != nil {
		return *o.CreatedAt, true
	}
	if o.OrderDate != nil {
		return *o.OrderDate, true
	}
	return time.Time{}, false
}

// FillFrom 用 src 中已填充的字段补齐 o 的空缺字段
// 只填空，不覆盖；状态字段不在此处理，由生命周期规则重新推导
func (o *Order) FillFrom(src *Order) {
	if o.OrderNumber == "" {
		o.OrderNumber = src.OrderNumber
	}
	if o.CustomerID == "" {
		o.CustomerID = src.CustomerID
	}
	if o.CustomerName == "" {
		o.CustomerName = src.CustomerName
	}
	if o.CustomerEmail == "" {
		o.CustomerEmail = src.CustomerEmail
	}
	if len(o.Items) == 0 {
		o.Items = src.Items
	}
	if o.Subtotal == 0 {
		o.Subtotal = src.Subtotal
	}
	if o.Shipping == 0 {
		o.Shipping = src.Shipping
	}
	if o.Tax == 0 {
		o.Tax = src.Tax
	}
	if o.Discount == 0 {
		o.Discount = src.Discount
	}
	if o.Total == 0 {
		o.Total = src.Total
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = src.PaymentMethod
	}
	if o.OriginalPaymentMethod == "" {
		o.OriginalPaymentMethod = src.OriginalPaymentMethod
	}
	if o.GatewaySessionID == "" {
		o.GatewaySessionID = src.GatewaySessionID
	}
	if o.GatewayCheckoutURL == "" {
		o.GatewayCheckoutURL = src.GatewayCheckoutURL
	}
	if o.CreatedAt == nil {
		o.CreatedAt = src.CreatedAt
	}
	if o.OrderDate == nil {
		o.OrderDate = src.OrderDate
	}
	if o.PaymentDate == nil {
		o.PaymentDate = src.PaymentDate
	}
	if o.ShippedAt == nil {
		o.ShippedAt = src.ShippedAt
	}
	if o.DeliveredAt == nil {
		o.DeliveredAt = src.DeliveredAt
	}
	if o.CancelledAt == nil {
		o.CancelledAt = src.CancelledAt
	}
	if o.ReturnRequestedAt == nil {
		o.ReturnRequestedAt = src.ReturnRequestedAt
	}
}
