package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	orderModel "storefront/internal/domain/order/model"
	orderRepo "storefront/internal/domain/order/repository"
	"storefront/internal/domain/payment/gateway"
	"storefront/internal/domain/payment/model"
	"storefront/internal/domain/payment/repository"
	"storefront/pkg/logger"
	"storefront/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// MockGateway is a mock of CheckoutGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *MockGateway) GetSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

// stubAuditRepo 线程安全的内存审计实现，异步任务会写它
type stubAuditRepo struct {
	mu     sync.Mutex
	audits []model.PaymentAudit
}

func (s *stubAuditRepo) Create(audit *model.PaymentAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *audit)
	return nil
}

func (s *stubAuditRepo) ExistsForSession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.audits {
		if a.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAuditRepo) List(offset, limit int) ([]model.PaymentAudit, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentAudit{}, s.audits...), int64(len(s.audits)), nil
}

type stubCart struct{}

func (stubCart) AdjustAfterPurchase(ctx context.Context, customerID string, items []orderModel.OrderItem) error {
	return nil
}

type fixture struct {
	service  PaymentService
	orders   orderRepo.OrderRepository
	sessions repository.SessionRepository
	gateway  *MockGateway
}

func newFixture() *fixture {
	st := store.NewMemoryStore()
	gw := new(MockGateway)
	orders := orderRepo.NewOrderRepository(st)
	sessions := repository.NewSessionRepository(st)

	return &fixture{
		service:  NewPaymentService(orders, sessions, &stubAuditRepo{}, gw, stubCart{}),
		orders:   orders,
		sessions: sessions,
		gateway:  gw,
	}
}

func pendingOrder(id string) *orderModel.Order {
	now := time.Now()
	return &orderModel.Order{
		ID:            id,
		OrderNumber:   "ORD-TEST",
		CustomerID:    "cust-1",
		PaymentMethod: orderModel.MethodGcash,
		PaymentStatus: orderModel.PaymentStatusPending,
		OrderStatus:   orderModel.OrderStatusPendingPayment,
		Total:         108,
		Items: []orderModel.OrderItem{
			{ProductID: "p1", Name: "Shirt", UnitPrice: 50, Quantity: 2},
		},
		CreatedAt: &now,
	}
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Session is recorded locally and on the order", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		assert.NoError(t, f.orders.Save(ctx, order))

		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(&gateway.CheckoutSession{
				ID:          "cs_123",
				CheckoutURL: "https://gateway.test/cs_123",
				Status:      gateway.SessionStatusUnpaid,
			}, nil)

		url, sessionID, err := f.service.StartSession(ctx, order)
		assert.NoError(t, err)
		assert.Equal(t, "https://gateway.test/cs_123", url)
		assert.Equal(t, "cs_123", sessionID)

		record, err := f.sessions.Get(ctx, "cs_123")
		assert.NoError(t, err)
		assert.Equal(t, "o1", record.OrderID)

		saved, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, "cs_123", saved.GatewaySessionID)
	})

	t.Run("Gateway outage leaves the order pending for a later retry", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		assert.NoError(t, f.orders.Save(ctx, order))

		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(nil, gateway.ErrUnavailable).Once()

		_, _, err := f.service.StartSession(ctx, order)
		assert.ErrorIs(t, err, gateway.ErrUnavailable)

		saved, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusPending, saved.PaymentStatus,
			"an unreachable gateway must not fail the payment")
		assert.Equal(t, orderModel.OrderStatusPendingPayment, saved.OrderStatus)
		assert.Nil(t, saved.CancelledAt)

		_, err = f.sessions.LatestForCustomer(ctx, "cust-1")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)

		// 网关恢复后同一订单能续开会话
		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(&gateway.CheckoutSession{
				ID:          "cs_retry",
				CheckoutURL: "https://gateway.test/cs_retry",
			}, nil).Once()

		_, sessionID, err := f.service.ResumeCheckout(ctx, "cust-1", "o1")
		assert.NoError(t, err)
		assert.Equal(t, "cs_retry", sessionID)
	})

	t.Run("Gateway rejection marks the payment failed", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		assert.NoError(t, f.orders.Save(ctx, order))

		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(nil, errors.New("amount below gateway minimum"))

		_, _, err := f.service.StartSession(ctx, order)
		assert.Error(t, err)

		saved, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusFailed, saved.PaymentStatus)
		assert.Equal(t, orderModel.OrderStatusCancelled, saved.OrderStatus)
	})

	t.Run("Order with nothing to pay for is rejected", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		order.Items = nil

		_, _, err := f.service.StartSession(ctx, order)
		assert.ErrorIs(t, err, orderModel.ErrInvalidOrderInput)
		f.gateway.AssertNotCalled(t, "CreateCheckoutSession", ctx, mock.Anything)
	})
}

func startedFixture(t *testing.T, ctx context.Context) *fixture {
	t.Helper()
	f := newFixture()
	order := pendingOrder("o1")
	assert.NoError(t, f.orders.Save(ctx, order))

	f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
		Return(&gateway.CheckoutSession{
			ID:          "cs_123",
			CheckoutURL: "https://gateway.test/cs_123",
			Status:      gateway.SessionStatusUnpaid,
		}, nil).Once()

	_, _, err := f.service.StartSession(ctx, order)
	assert.NoError(t, err)
	return f
}

func TestVerifySession(t *testing.T) {
	ctx := context.Background()

	t.Run("Paid session settles the order", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusPaid,
				PaidAt: time.Now(),
			}, nil)

		result, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.NoError(t, err)
		assert.Equal(t, model.ResultPaid, result.Status)
		assert.Equal(t, "o1", result.OrderID)

		order, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusPaid, order.PaymentStatus)
		assert.Equal(t, orderModel.OrderStatusProcessing, order.OrderStatus)
		assert.NotNil(t, order.PaymentDate)

		_, err = f.sessions.Get(ctx, "cs_123")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound, "settled session is removed")
	})

	t.Run("Re-verifying a settled session is idempotent", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusPaid,
				PaidAt: time.Now(),
			}, nil).Once()

		_, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.NoError(t, err)

		// 第二次验证：会话记录已删，按订单侧状态回答，不再询问网关
		result, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.NoError(t, err)
		assert.Equal(t, model.ResultPaid, result.Status)
		f.gateway.AssertNumberOfCalls(t, "GetSession", 1)
	})

	t.Run("Placeholder session id resolves to the customer's pending session", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusPaid,
				PaidAt: time.Now(),
			}, nil)

		result, err := f.service.VerifySession(ctx, "cust-1", PlaceholderSessionID)
		assert.NoError(t, err)
		assert.Equal(t, model.ResultPaid, result.Status)
		assert.Equal(t, "cs_123", result.SessionID)

		// 占位符绝不发给网关
		f.gateway.AssertNotCalled(t, "GetSession", ctx, PlaceholderSessionID)
	})

	t.Run("Placeholder without a customer scope is refused", func(t *testing.T) {
		f := startedFixture(t, ctx)

		_, err := f.service.VerifySession(ctx, "", PlaceholderSessionID)
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
		f.gateway.AssertNotCalled(t, "GetSession", ctx, mock.Anything)
	})

	t.Run("Empty session id with nothing pending is not found", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.VerifySession(ctx, "cust-1", "")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})

	t.Run("Gateway outage leaves the order pending", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(nil, gateway.ErrUnavailable)

		_, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.ErrorIs(t, err, gateway.ErrUnavailable)

		order, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusPending, order.PaymentStatus,
			"an unreachable gateway must not fail the payment")

		_, err = f.sessions.Get(ctx, "cs_123")
		assert.NoError(t, err, "session is kept for a later verification")
	})

	t.Run("Expired session fails the order", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusExpired,
			}, nil)

		result, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.NoError(t, err)
		assert.Equal(t, model.ResultFailed, result.Status)

		order, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusFailed, order.PaymentStatus)
		assert.Equal(t, orderModel.OrderStatusCancelled, order.OrderStatus)
	})

	t.Run("Unpaid session stays pending", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusUnpaid,
			}, nil)

		result, err := f.service.VerifySession(ctx, "cust-1", "cs_123")
		assert.NoError(t, err)
		assert.Equal(t, model.ResultPending, result.Status)

		_, err = f.sessions.Get(ctx, "cs_123")
		assert.NoError(t, err)
	})
}

func TestHandleReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("Canceled return abandons the payment", func(t *testing.T) {
		f := startedFixture(t, ctx)

		result, err := f.service.HandleReturn(ctx, "cust-1", "cs_123", true)
		assert.NoError(t, err)
		assert.Equal(t, model.ResultFailed, result.Status)
		assert.Equal(t, "canceled", result.Reason)

		order, err := f.orders.GetByID(ctx, "o1")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusFailed, order.PaymentStatus)
		assert.Equal(t, orderModel.OrderStatusCancelled, order.OrderStatus)

		_, err = f.sessions.Get(ctx, "cs_123")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)

		// 放弃路径不问网关
		f.gateway.AssertNotCalled(t, "GetSession", ctx, "cs_123")
	})

	t.Run("Success return is verified, not trusted", func(t *testing.T) {
		f := startedFixture(t, ctx)
		f.gateway.On("GetSession", ctx, "cs_123").
			Return(&gateway.CheckoutSession{
				ID:     "cs_123",
				Status: gateway.SessionStatusUnpaid,
			}, nil)

		result, err := f.service.HandleReturn(ctx, "cust-1", "cs_123", false)
		assert.NoError(t, err)
		assert.Equal(t, model.ResultPending, result.Status,
			"a success redirect alone does not mark the order paid")
	})

	t.Run("Placeholder cancel only touches the caller's own session", func(t *testing.T) {
		f := newFixture()

		first := pendingOrder("ord-a")
		assert.NoError(t, f.orders.Save(ctx, first))
		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(&gateway.CheckoutSession{ID: "cs_a", CheckoutURL: "https://gateway.test/cs_a"}, nil).Once()
		_, _, err := f.service.StartSession(ctx, first)
		assert.NoError(t, err)

		// 另一个客户随后开了更新的会话
		second := pendingOrder("ord-b")
		second.CustomerID = "cust-2"
		assert.NoError(t, f.orders.Save(ctx, second))
		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(&gateway.CheckoutSession{ID: "cs_b", CheckoutURL: "https://gateway.test/cs_b"}, nil).Once()
		_, _, err = f.service.StartSession(ctx, second)
		assert.NoError(t, err)

		result, err := f.service.HandleReturn(ctx, "cust-1", PlaceholderSessionID, true)
		assert.NoError(t, err)
		assert.Equal(t, "ord-a", result.OrderID)

		// cust-2 的订单和会话不受 cust-1 放弃支付的影响
		other, err := f.orders.GetByID(ctx, "ord-b")
		assert.NoError(t, err)
		assert.Equal(t, orderModel.PaymentStatusPending, other.PaymentStatus)
		_, err = f.sessions.Get(ctx, "cs_b")
		assert.NoError(t, err)
	})
}

func TestResumeCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("Existing pending session is reused", func(t *testing.T) {
		f := startedFixture(t, ctx)

		url, sessionID, err := f.service.ResumeCheckout(ctx, "cust-1", "o1")
		assert.NoError(t, err)
		assert.Equal(t, "cs_123", sessionID)
		assert.Equal(t, "https://gateway.test/cs_123", url)
		f.gateway.AssertNumberOfCalls(t, "CreateCheckoutSession", 1)
	})

	t.Run("New session is opened when none is pending", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		assert.NoError(t, f.orders.Save(ctx, order))

		f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).
			Return(&gateway.CheckoutSession{
				ID:          "cs_456",
				CheckoutURL: "https://gateway.test/cs_456",
			}, nil)

		_, sessionID, err := f.service.ResumeCheckout(ctx, "cust-1", "o1")
		assert.NoError(t, err)
		assert.Equal(t, "cs_456", sessionID)
	})

	t.Run("Paid order cannot reopen a session", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		order.PaymentStatus = orderModel.PaymentStatusPaid
		assert.NoError(t, f.orders.Save(ctx, order))

		_, _, err := f.service.ResumeCheckout(ctx, "cust-1", "o1")
		assert.Error(t, err)
	})

	t.Run("COD order has no gateway session", func(t *testing.T) {
		f := newFixture()
		order := pendingOrder("o1")
		order.PaymentMethod = orderModel.MethodCashOnDelivery
		assert.NoError(t, f.orders.Save(ctx, order))

		_, _, err := f.service.ResumeCheckout(ctx, "cust-1", "o1")
		assert.Error(t, err)
	})

	t.Run("Another customer's order is hidden", func(t *testing.T) {
		f := newFixture()
		assert.NoError(t, f.orders.Save(ctx, pendingOrder("o1")))

		_, _, err := f.service.ResumeCheckout(ctx, "cust-2", "o1")
		assert.ErrorIs(t, err, orderRepo.ErrOrderNotFound)
	})
}
