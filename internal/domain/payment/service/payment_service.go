package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderLifecycle "storefront/internal/domain/order/lifecycle"
	orderModel "storefront/internal/domain/order/model"
	orderRepo "storefront/internal/domain/order/repository"
	"storefront/internal/domain/payment/gateway"
	"storefront/internal/domain/payment/model"
	"storefront/internal/domain/payment/repository"
	"storefront/internal/pkg/push"
	"storefront/internal/pkg/worker"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"go.uber.org/zap"
)

// PlaceholderSessionID 网关回跳地址里未被替换的会话号占位符
// 某些跳转路径会原样带回，当作会话号缺失处理，绝不发给网关
const PlaceholderSessionID = "{CHECKOUT_SESSION_ID}"

// PaymentService 支付协调器
// 串起网关会话、订单状态流转和支付后的异步跟进
type PaymentService interface {
	// StartSession 为在线支付订单创建网关结算会话
	StartSession(ctx context.Context, order *orderModel.Order) (checkoutURL, sessionID string, err error)
	// VerifySession 向网关核实会话结果并推进订单状态，幂等
	// customerID 用于占位符会话号的本地兜底，只在自己的未决会话里找
	VerifySession(ctx context.Context, customerID, sessionID string) (*model.PaymentResult, error)
	// HandleReturn 处理网关回跳；canceled 回跳直接按放弃处理，其余核实后定论
	HandleReturn(ctx context.Context, customerID, sessionID string, canceled bool) (*model.PaymentResult, error)
	// ResumeCheckout 为留在待支付状态的订单续开结算会话 (创建时网关不可用的补救路径)
	ResumeCheckout(ctx context.Context, customerID, orderID string) (checkoutURL, sessionID string, err error)
	ListAudits(offset, limit int) ([]model.PaymentAudit, int64, error)
}

type paymentService struct {
	orders   orderRepo.OrderRepository
	sessions repository.SessionRepository
	audits   repository.AuditRepository
	gateway  gateway.CheckoutGateway
	pool     *worker.WorkerPool
}

func NewPaymentService(
	orders orderRepo.OrderRepository,
	sessions repository.SessionRepository,
	audits repository.AuditRepository,
	gw gateway.CheckoutGateway,
	cart worker.CartAdjuster,
) PaymentService {
	s := &paymentService{
		orders:   orders,
		sessions: sessions,
		audits:   audits,
		gateway:  gw,
	}

	s.pool = worker.NewWorkerPool(cart, &auditRecorder{repo: audits}, &pushNotifier{}, 4, 256)
	s.pool.Start()
	return s
}

func (s *paymentService) StartSession(ctx context.Context, order *orderModel.Order) (string, string, error) {
	if len(order.Items) == 0 || order.Total <= 0 {
		return "", "", fmt.Errorf("%w: order %s has nothing to pay for", orderModel.ErrInvalidOrderInput, order.ID)
	}

	req := &gateway.CheckoutRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
	}
	for _, it := range order.Items {
		req.Items = append(req.Items, gateway.LineItem{
			Name:      it.Name,
			Amount:    it.UnitPrice,
			Quantity:  it.Quantity,
			Reference: it.ProductID,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			// 网关不可达不是支付失败，订单留在待支付，客户之后走续开会话补救
			metrics.Default.RecordPaymentSession("unavailable")
			return "", "", fmt.Errorf("create checkout session: %w", err)
		}
		// 网关明确拒绝才按支付失败处理
		if orderLifecycle.ApplyGatewayFailure(order, time.Now()) {
			if saveErr := s.orders.Save(ctx, order); saveErr != nil {
				logger.Log.Error("failed to mark order after gateway rejection",
					zap.String("order_id", order.ID),
					zap.Error(saveErr),
				)
			}
		}
		metrics.Default.RecordPaymentSession("failed")
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}

	record := &model.PendingPaymentSession{
		SessionID:     session.ID,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		PaymentMethod: order.PaymentMethod,
		CheckoutURL:   session.CheckoutURL,
		CreatedAt:     time.Now(),
		Demo:          len(session.ID) > 5 && session.ID[:5] == "demo_",
	}
	if err := s.sessions.Save(ctx, record); err != nil {
		return "", "", err
	}

	// 会话号写回订单，验证时反查用
	order.GatewaySessionID = session.ID
	order.GatewayCheckoutURL = session.CheckoutURL
	if err := s.orders.Save(ctx, order); err != nil {
		return "", "", err
	}

	metrics.Default.RecordPaymentSession("created")
	return session.CheckoutURL, session.ID, nil
}

func (s *paymentService) VerifySession(ctx context.Context, customerID, sessionID string) (*model.PaymentResult, error) {
	sessionID, err := s.resolveSessionID(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}

	record, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		// 会话记录已删除：多半是重复验证，按订单侧状态回答
		return s.verifyWithoutSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	gwSession, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		// 网关不可达不是支付失败，订单保持待支付等下次验证
		metrics.Default.RecordPaymentVerification("unavailable")
		return nil, err
	}

	switch gwSession.Status {
	case gateway.SessionStatusPaid:
		return s.settlePaid(ctx, record, gwSession)
	case gateway.SessionStatusExpired, gateway.SessionStatusCanceled:
		return s.settleFailed(ctx, record, gwSession.Status)
	default:
		metrics.Default.RecordPaymentVerification("pending")
		return &model.PaymentResult{
			Status:    model.ResultPending,
			OrderID:   record.OrderID,
			SessionID: sessionID,
		}, nil
	}
}

func (s *paymentService) HandleReturn(ctx context.Context, customerID, sessionID string, canceled bool) (*model.PaymentResult, error) {
	if !canceled {
		// 成功回跳也不信任查询参数，照常向网关核实
		return s.VerifySession(ctx, customerID, sessionID)
	}

	sessionID, err := s.resolveSessionID(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	record, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return s.verifyWithoutSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return s.settleFailed(ctx, record, "canceled")
}

func (s *paymentService) ResumeCheckout(ctx context.Context, customerID, orderID string) (string, string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", "", err
	}
	if customerID != "" && order.CustomerID != customerID && !order.IsGuest() {
		return "", "", orderRepo.ErrOrderNotFound
	}
	if order.PaymentStatus != orderModel.PaymentStatusPending {
		return "", "", fmt.Errorf("order %s is not awaiting online payment", orderID)
	}
	if !orderModel.IsOnlineMethod(order.PaymentMethod) {
		return "", "", fmt.Errorf("order %s is not an online payment order", orderID)
	}

	// 未决会话还在时直接复用，不重复开会话
	if existing, err := s.sessions.GetByOrder(ctx, orderID); err == nil {
		return existing.CheckoutURL, existing.SessionID, nil
	}

	return s.StartSession(ctx, order)
}

func (s *paymentService) ListAudits(offset, limit int) ([]model.PaymentAudit, int64, error) {
	return s.audits.List(offset, limit)
}

// resolveSessionID 占位符和空会话号回退到本客户最近创建的未决会话
// 匿名请求没有可信的归属范围，拒绝兜底而不是拿全局最新会话冒充
func (s *paymentService) resolveSessionID(ctx context.Context, customerID, sessionID string) (string, error) {
	if sessionID != "" && sessionID != PlaceholderSessionID {
		return sessionID, nil
	}
	if customerID == "" {
		return "", repository.ErrSessionNotFound
	}

	latest, err := s.sessions.LatestForCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	logger.Log.Info("session id missing from return url, using customer's latest pending session",
		zap.String("session_id", latest.SessionID),
		zap.String("order_id", latest.OrderID),
		zap.String("customer_id", customerID),
	)
	return latest.SessionID, nil
}

// verifyWithoutSession 会话记录已不存在时的幂等应答
func (s *paymentService) verifyWithoutSession(ctx context.Context, sessionID string) (*model.PaymentResult, error) {
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, orderRepo.ErrOrderNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}

	result := &model.PaymentResult{OrderID: order.ID, SessionID: sessionID}
	switch order.PaymentStatus {
	case orderModel.PaymentStatusPaid:
		result.Status = model.ResultPaid
	case orderModel.PaymentStatusFailed, orderModel.PaymentStatusCancelled:
		result.Status = model.ResultFailed
	default:
		result.Status = model.ResultPending
	}
	metrics.Default.RecordPaymentVerification("replay")
	return result, nil
}

func (s *paymentService) settlePaid(ctx context.Context, record *model.PendingPaymentSession, gwSession *gateway.CheckoutSession) (*model.PaymentResult, error) {
	order, err := s.orders.GetByID(ctx, record.OrderID)
	if err != nil {
		return nil, err
	}

	paidAt := gwSession.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	if orderLifecycle.ApplyGatewaySuccess(order, paidAt) {
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, err
		}

		snapshot := *order
		s.pool.AddTask(worker.PaymentFollowUpTask{
			Kind: worker.TaskCartAdjust, Order: snapshot,
			SessionID: record.SessionID, PaidAt: paidAt,
		})
		s.pool.AddTask(worker.PaymentFollowUpTask{
			Kind: worker.TaskAudit, Order: snapshot,
			SessionID: record.SessionID, PaidAt: paidAt,
		})
		s.pool.AddTask(worker.PaymentFollowUpTask{
			Kind: worker.TaskNotify, Order: snapshot,
			SessionID: record.SessionID, PaidAt: paidAt,
		})
	}

	if err := s.sessions.Delete(ctx, record.SessionID); err != nil {
		logger.Log.Warn("failed to delete settled session",
			zap.String("session_id", record.SessionID),
			zap.Error(err),
		)
	}

	metrics.Default.RecordPaymentVerification("paid")
	return &model.PaymentResult{
		Status:    model.ResultPaid,
		OrderID:   order.ID,
		SessionID: record.SessionID,
	}, nil
}

func (s *paymentService) settleFailed(ctx context.Context, record *model.PendingPaymentSession, reason string) (*model.PaymentResult, error) {
	order, err := s.orders.GetByID(ctx, record.OrderID)
	if err != nil {
		return nil, err
	}

	if orderLifecycle.ApplyGatewayFailure(order, time.Now()) {
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, err
		}
	}

	if err := s.sessions.Delete(ctx, record.SessionID); err != nil {
		logger.Log.Warn("failed to delete abandoned session",
			zap.String("session_id", record.SessionID),
			zap.Error(err),
		)
	}

	metrics.Default.RecordPaymentVerification("failed")
	return &model.PaymentResult{
		Status:    model.ResultFailed,
		OrderID:   order.ID,
		SessionID: record.SessionID,
		Reason:    reason,
	}, nil
}

// auditRecorder 收款审计落库，同一会话只记一次
type auditRecorder struct {
	repo repository.AuditRepository
}

func (a *auditRecorder) RecordPayment(order *orderModel.Order, sessionID string, paidAt time.Time) error {
	exists, err := a.repo.ExistsForSession(sessionID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.repo.Create(&model.PaymentAudit{
		OrderID:       order.ID,
		SessionID:     sessionID,
		PaymentMethod: order.PaymentMethod,
		Amount:        order.Total,
		PaidAt:        paidAt,
	})
}

// pushNotifier 收款通知，未配置推送时为无操作
type pushNotifier struct{}

func (n *pushNotifier) NotifyPaid(order *orderModel.Order) error {
	if push.GlobalPushService == nil || order.IsGuest() {
		return nil
	}
	return push.GlobalPushService.PushToAccount(
		order.CustomerID,
		"Payment received",
		fmt.Sprintf("Order %s has been paid, total %.2f", order.OrderNumber, order.Total),
		map[string]string{"order_id": order.ID},
	)
}
