package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront/internal/domain/order/lifecycle"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/pkg/config"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartAdjuster 下单后从购物车扣减已购数量
type CartAdjuster interface {
	AdjustAfterPurchase(ctx context.Context, customerID string, items []model.OrderItem) error
}

// SessionStarter 为在线支付订单开启网关结算会话
// 由支付协调器实现；订单域只消费跳转地址
type SessionStarter interface {
	StartSession(ctx context.Context, order *model.Order) (checkoutURL, sessionID string, err error)
}

// CheckoutInput 结算入参，订单项来自购物车协作方
type CheckoutInput struct {
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Items         []model.OrderItem
	PaymentMethod string
	Discount      float64
}

// CheckoutResult 结算结果
type CheckoutResult struct {
	Order       *model.Order `json:"order"`
	CheckoutURL string       `json:"checkoutUrl,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
}

type OrderService interface {
	Checkout(ctx context.Context, input *CheckoutInput) (*CheckoutResult, error)
	// GetOrders 客户订单历史，reconcile(customer) 的归并视图
	GetOrders(ctx context.Context, customerID string) ([]model.Order, error)
	GetOrder(ctx context.Context, customerID, orderID string) (*model.Order, error)
	CancelOrder(ctx context.Context, customerID, orderID string) (*model.Order, error)
	// AdminListOrders reconcile(all)，游客订单聚合到合成身份
	AdminListOrders(ctx context.Context) ([]model.Order, error)
	AdminUpdateStatus(ctx context.Context, orderID, next string) (*model.Order, error)
}

type orderService struct {
	repo     repository.OrderRepository
	cart     CartAdjuster
	sessions SessionStarter
}

func NewOrderService(repo repository.OrderRepository, cart CartAdjuster, sessions SessionStarter) OrderService {
	return &orderService{
		repo:     repo,
		cart:     cart,
		sessions: sessions,
	}
}

func (s *orderService) Checkout(ctx context.Context, input *CheckoutInput) (*CheckoutResult, error) {
	if err := validateCheckout(input); err != nil {
		return nil, err
	}

	cfg := config.GlobalConfig.Checkout
	now := time.Now()

	order := &model.Order{
		ID:                    uuid.New().String(),
		CustomerID:            input.CustomerID,
		CustomerName:          input.CustomerName,
		CustomerEmail:         input.CustomerEmail,
		Items:                 input.Items,
		Discount:              round2(input.Discount),
		PaymentMethod:         input.PaymentMethod,
		OriginalPaymentMethod: input.PaymentMethod,
		CreatedAt:             &now,
		OrderDate:             &now,
	}
	if order.CustomerID == "" {
		order.CustomerID = model.GuestCustomerID
	}
	order.OrderNumber = orderNumberFor(order.ID)

	order.Subtotal = round2(order.ItemsSubtotal())
	order.Shipping = cfg.ShippingFee
	if order.Subtotal > cfg.FreeShippingOver {
		order.Shipping = 0
	}
	order.Tax = round2(order.Subtotal * cfg.TaxRate)
	order.Total = round2(order.Subtotal + order.Shipping + order.Tax - order.Discount)

	if order.Total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", model.ErrInvalidOrderInput)
	}

	order.PaymentStatus, order.OrderStatus = lifecycle.StatusesForNewOrder(input.PaymentMethod)

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	metrics.Default.RecordOrderCreated(order.PaymentMethod)

	result := &CheckoutResult{Order: order}

	if model.IsOnlineMethod(input.PaymentMethod) {
		checkoutURL, sessionID, err := s.sessions.StartSession(ctx, order)
		if err != nil {
			// 网关不可达时订单留在待支付，可事后续开会话；订单连同错误一起返回
			return result, err
		}
		result.CheckoutURL = checkoutURL
		result.SessionID = sessionID
		return result, nil
	}

	// 货到付款：下单即进入履约，立刻扣减购物车
	if err := s.cart.AdjustAfterPurchase(ctx, order.CustomerID, order.Items); err != nil {
		logger.Log.Warn("cart adjustment after COD checkout failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	return result, nil
}

func validateCheckout(input *CheckoutInput) error {
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: empty items", model.ErrInvalidOrderInput)
	}
	for _, it := range input.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return fmt.Errorf("%w: bad line item %q", model.ErrInvalidOrderInput, it.ProductID)
		}
	}
	switch input.PaymentMethod {
	case model.MethodCashOnDelivery, model.MethodGcash, model.MethodPaymaya, model.MethodCard:
	default:
		return fmt.Errorf("%w: unsupported payment method %q", model.ErrInvalidOrderInput, input.PaymentMethod)
	}
	if input.Discount < 0 {
		return fmt.Errorf("%w: negative discount", model.ErrInvalidOrderInput)
	}
	return nil
}

func (s *orderService) GetOrders(ctx context.Context, customerID string) ([]model.Order, error) {
	records, skipped, err := s.repo.LoadForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	orders, conflicts := reconcileRecords(records)
	metrics.Default.RecordReconcileScan(len(records), skipped, conflicts)
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, customerID, orderID string) (*model.Order, error) {
	orders, err := s.GetOrders(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == orderID {
			return &orders[i], nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (s *orderService) CancelOrder(ctx context.Context, customerID, orderID string) (*model.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, repository.ErrOrderNotFound
	}

	window := time.Duration(config.GlobalConfig.Checkout.CancelWindowHours) * time.Hour
	if err := lifecycle.CanCancel(order, time.Now(), window); err != nil {
		metrics.Default.RecordCancellation("rejected")
		return nil, err
	}

	if err := lifecycle.ApplyFulfillment(order, model.OrderStatusCancelled, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	metrics.Default.RecordCancellation("allowed")
	metrics.Default.RecordOrderTransition(model.OrderStatusCancelled)
	return order, nil
}

func (s *orderService) AdminListOrders(ctx context.Context) ([]model.Order, error) {
	records, skipped, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	orders, conflicts := reconcileRecords(records)
	attributeGuests(orders)
	metrics.Default.RecordReconcileScan(len(records), skipped, conflicts)
	return orders, nil
}

func (s *orderService) AdminUpdateStatus(ctx context.Context, orderID, next string) (*model.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.ApplyFulfillment(order, next, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	metrics.Default.RecordOrderTransition(next)
	return order, nil
}

// orderNumberFor 从订单 id 派生展示用单号
func orderNumberFor(id string) string {
	seg := id
	if i := strings.Index(id, "-"); i > 0 {
		seg = id[:i]
	}
	return "ORD-" + strings.ToUpper(seg)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
