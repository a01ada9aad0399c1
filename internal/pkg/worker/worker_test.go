package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/order/model"
	"storefront/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

type stubCartAdjuster struct {
	mu       sync.Mutex
	failures int // 前 N 次调用返回错误
	calls    int
	done     chan struct{}
}

func (s *stubCartAdjuster) AdjustAfterPurchase(_ context.Context, _ string, _ []model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("redis unavailable")
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return nil
}

type stubAuditRecorder struct {
	mu       sync.Mutex
	sessions []string
}

func (s *stubAuditRecorder) RecordPayment(_ *model.Order, sessionID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
	return nil
}

type stubNotifier struct {
	mu    sync.Mutex
	calls int
}

func (s *stubNotifier) NotifyPaid(_ *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func sampleOrder() model.Order {
	return model.Order{
		ID:         "ord_1",
		CustomerID: "cust_1",
		Items:      []model.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
	}
}

func TestProcessTask(t *testing.T) {
	t.Run("按任务类型分发", func(t *testing.T) {
		cart := &stubCartAdjuster{}
		audit := &stubAuditRecorder{}
		notifier := &stubNotifier{}
		pool := NewWorkerPool(cart, audit, notifier, 1, 8)

		order := sampleOrder()
		assert.NoError(t, pool.processTask(PaymentFollowUpTask{Kind: TaskCartAdjust, Order: order}))
		assert.NoError(t, pool.processTask(PaymentFollowUpTask{Kind: TaskAudit, Order: order, SessionID: "cs_1"}))
		assert.NoError(t, pool.processTask(PaymentFollowUpTask{Kind: TaskNotify, Order: order}))

		assert.Equal(t, 1, cart.calls)
		assert.Equal(t, []string{"cs_1"}, audit.sessions)
		assert.Equal(t, 1, notifier.calls)
	})

	t.Run("未配置通知器时通知任务不报错", func(t *testing.T) {
		pool := NewWorkerPool(&stubCartAdjuster{}, &stubAuditRecorder{}, nil, 1, 8)
		assert.NoError(t, pool.processTask(PaymentFollowUpTask{Kind: TaskNotify, Order: sampleOrder()}))
	})

	t.Run("未知任务类型忽略", func(t *testing.T) {
		pool := NewWorkerPool(&stubCartAdjuster{}, &stubAuditRecorder{}, nil, 1, 8)
		assert.NoError(t, pool.processTask(PaymentFollowUpTask{Kind: "unknown", Order: sampleOrder()}))
	})
}

func TestRetryPath(t *testing.T) {
	t.Run("首次失败的任务经重试队列后成功", func(t *testing.T) {
		done := make(chan struct{})
		cart := &stubCartAdjuster{failures: 1, done: done}
		pool := NewWorkerPool(cart, &stubAuditRecorder{}, nil, 1, 8)
		pool.Start()

		pool.AddTask(PaymentFollowUpTask{Kind: TaskCartAdjust, Order: sampleOrder()})

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("task was not retried to success")
		}

		cart.mu.Lock()
		defer cart.mu.Unlock()
		assert.Equal(t, 2, cart.calls)
	})
}

func TestAddTaskOverflow(t *testing.T) {
	t.Run("队列满时任务进入死信而不阻塞", func(t *testing.T) {
		// 不启动 worker，队列容量 1
		pool := NewWorkerPool(&stubCartAdjuster{}, &stubAuditRecorder{}, nil, 1, 1)

		finished := make(chan struct{})
		go func() {
			pool.AddTask(PaymentFollowUpTask{Kind: TaskAudit, Order: sampleOrder()})
			pool.AddTask(PaymentFollowUpTask{Kind: TaskAudit, Order: sampleOrder()})
			close(finished)
		}()

		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("AddTask blocked on a full queue")
		}
		assert.Len(t, pool.TaskQueue, 1)
	})
}
