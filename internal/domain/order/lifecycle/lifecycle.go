// Package lifecycle 订单生命周期状态机
// 所有状态推导都只依赖存储字段本身，幂等可重算，视图层不得自行推断
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/order/model"
)

var (
	// ErrInvalidTransition 非法履约状态流转
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrIneligibleForCancellation 客户自助取消被拒，原因通过 %w 包装给出
	ErrIneligibleForCancellation = errors.New("order is not eligible for cancellation")
)

// CancelWindow 客户自助取消窗口
const CancelWindow = 24 * time.Hour

// StatusesForNewOrder 下单时的初始状态
// 货到付款直接进入履约；在线支付等待网关结果
func StatusesForNewOrder(method string) (paymentStatus, orderStatus string) {
	if method == model.MethodCashOnDelivery {
		return model.PaymentStatusPendingCOD, model.OrderStatusProcessing
	}
	return model.PaymentStatusPending, model.OrderStatusPendingPayment
}

// ApplyGatewaySuccess 网关支付成功回调
// 仅当订单仍在待支付状态时生效，重复调用是无操作，返回是否实际应用
func ApplyGatewaySuccess(o *model.Order, paidAt time.Time) bool {
	if o.PaymentStatus == model.PaymentStatusPaid {
		return false
	}
	if o.PaymentStatus != model.PaymentStatusPending &&
		o.OrderStatus != model.OrderStatusPendingPayment {
		return false
	}

	o.PaymentStatus = model.PaymentStatusPaid
	o.OrderStatus = model.OrderStatusProcessing
	if o.PaymentDate == nil {
		t := paidAt
		o.PaymentDate = &t
	}
	return true
}

// ApplyGatewayFailure 网关失败/取消回调
// 货到付款订单没有网关交互，不受影响
func ApplyGatewayFailure(o *model.Order, at time.Time) bool {
	if o.PaymentMethod == model.MethodCashOnDelivery ||
		o.PaymentStatus == model.PaymentStatusPendingCOD {
		return false
	}
	if o.PaymentStatus == model.PaymentStatusPaid {
		return false
	}

	o.PaymentStatus = model.PaymentStatusFailed
	o.OrderStatus = model.OrderStatusCancelled
	if o.CancelledAt == nil {
		t := at
		o.CancelledAt = &t
	}
	return true
}

// fulfillmentNext 管理端合法流转表
var fulfillmentNext = map[string][]string{
	model.OrderStatusPendingPayment:  {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing:      {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:         {model.OrderStatusDelivered},
	model.OrderStatusDelivered:       {model.OrderStatusReturnRequested},
	model.OrderStatusReturnRequested: {model.OrderStatusRefunded},
}

// CanTransition 判断履约流转是否合法
func CanTransition(from, to string) bool {
	for _, next := range fulfillmentNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyFulfillment 应用管理端履约流转
// from 状态取展示状态：已收款但履约字段残留 pending_payment 的订单
// 允许直接按 processing 流转。时间戳只写一次；
// 送达的货到付款订单同时标记为已收款
func ApplyFulfillment(o *model.Order, next string, at time.Time) error {
	from := DisplayStatus(o)
	if !CanTransition(from, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	o.OrderStatus = next
	t := at

	switch next {
	case model.OrderStatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &t
		}
	case model.OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &t
		}
		// 货到付款在送达时完成收款 (显式的管理端流转，不走网关)
		if o.PaymentStatus == model.PaymentStatusPendingCOD {
			o.PaymentStatus = model.PaymentStatusPaid
			if o.PaymentDate == nil {
				o.PaymentDate = &t
			}
		}
	case model.OrderStatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &t
		}
		if o.PaymentStatus == model.PaymentStatusPending ||
			o.PaymentStatus == model.PaymentStatusPendingCOD {
			o.PaymentStatus = model.PaymentStatusCancelled
		}
	case model.OrderStatusReturnRequested:
		if o.ReturnRequestedAt == nil {
			o.ReturnRequestedAt = &t
		}
	}

	return nil
}

// DisplayStatus 推导展示状态
// 已收款但履约字段还停在 pending_payment 时展示 processing，
// 不修改存储字段；每次读取重新推导，不信任历史推导结果
func DisplayStatus(o *model.Order) string {
	if o.OrderStatus == "" {
		return deriveFromPayment(o.PaymentStatus)
	}
	if o.PaymentStatus == model.PaymentStatusPaid &&
		o.OrderStatus == model.OrderStatusPendingPayment {
		return model.OrderStatusProcessing
	}
	return o.OrderStatus
}

// deriveFromPayment 履约状态缺失时从支付状态兜底推导
func deriveFromPayment(paymentStatus string) string {
	switch paymentStatus {
	case model.PaymentStatusPaid, model.PaymentStatusPendingCOD:
		return model.OrderStatusProcessing
	case model.PaymentStatusFailed, model.PaymentStatusCancelled:
		return model.OrderStatusCancelled
	default:
		return model.OrderStatusPendingPayment
	}
}

// 状态推进程度，归并时冲突取推进最远的一方，保证结果与发现顺序无关
var paymentRank = map[string]int{
	model.PaymentStatusPending:    1,
	model.PaymentStatusPendingCOD: 1,
	model.PaymentStatusCancelled:  2,
	model.PaymentStatusFailed:     3,
	model.PaymentStatusPaid:       4,
}

var fulfillmentRank = map[string]int{
	model.OrderStatusPendingPayment:  1,
	model.OrderStatusProcessing:      2,
	model.OrderStatusCancelled:       3,
	model.OrderStatusShipped:         4,
	model.OrderStatusDelivered:       5,
	model.OrderStatusReturnRequested: 6,
	model.OrderStatusRefunded:        7,
}

// ResolvePaymentStatus 两个来源的支付状态归并
func ResolvePaymentStatus(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if paymentRank[b] > paymentRank[a] {
		return b
	}
	return a
}

// ResolveOrderStatus 两个来源的履约状态归并
func ResolveOrderStatus(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if fulfillmentRank[b] > fulfillmentRank[a] {
		return b
	}
	return a
}

// CanCancel 客户自助取消资格
// 已收款、已发货/送达、超出取消窗口都会被拒并给出具体原因
// window <= 0 时使用默认的 24 小时窗口
func CanCancel(o *model.Order, now time.Time, window time.Duration) error {
	if window <= 0 {
		window = CancelWindow
	}
	if o.PaymentStatus == model.PaymentStatusPaid {
		return fmt.Errorf("%w: order already paid", ErrIneligibleForCancellation)
	}
	switch o.OrderStatus {
	case model.OrderStatusShipped, model.OrderStatusDelivered,
		model.OrderStatusReturnRequested, model.OrderStatusRefunded:
		return fmt.Errorf("%w: order already shipped", ErrIneligibleForCancellation)
	case model.OrderStatusCancelled:
		return fmt.Errorf("%w: order already cancelled", ErrIneligibleForCancellation)
	}
	if o.CreatedAt != nil && now.Sub(*o.CreatedAt) > window {
		return fmt.Errorf("%w: cancellation window expired", ErrIneligibleForCancellation)
	}
	return nil
}
