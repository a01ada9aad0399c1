package model

import (
	"time"

	baseModel "storefront/pkg/model"
)

// 支付结果状态
const (
	ResultPaid    = "paid"
	ResultPending = "pending"
	ResultFailed  = "failed"
)

// PendingPaymentSession 网关结算会话的本地关联记录
// 在会话创建和结果验证之间存活，验证完成后删除
type PendingPaymentSession struct {
	SessionID     string    `json:"sessionId"`
	OrderID       string    `json:"orderId"`
	CustomerID    string    `json:"customerId,omitempty"`
	PaymentMethod string    `json:"paymentMethod"`
	CheckoutURL   string    `json:"checkoutUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Demo          bool      `json:"demo,omitempty"`
}

// PaymentResult 一次验证的结论
type PaymentResult struct {
	Status    string `json:"status"` // paid / pending / failed
	OrderID   string `json:"orderId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentAudit 收款审计流水，落库存档
type PaymentAudit struct {
	baseModel.BaseModel
	OrderID       string    `gorm:"type:varchar(64);not null;index" json:"order_id"`
	SessionID     string    `gorm:"type:varchar(128);index" json:"session_id"`
	PaymentMethod string    `gorm:"type:varchar(32);not null" json:"payment_method"`
	Amount        float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaidAt        time.Time `gorm:"not null" json:"paid_at"`
}

func (PaymentAudit) TableName() string {
	return "payment_audits"
}
