// Package worker 支付完成后的异步跟进任务池
// 购物车扣减、审计落库、通知推送都不在验证请求的同步路径上做
package worker

import (
	"context"
	"time"

	"storefront/internal/domain/order/model"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"go.uber.org/zap"
)

// 任务类型
const (
	TaskCartAdjust = "cart-adjust"
	TaskAudit      = "audit"
	TaskNotify     = "notify"
)

// PaymentFollowUpTask 支付确认后的跟进任务
// 携带订单快照，执行时不回读存储
type PaymentFollowUpTask struct {
	Kind      string
	Order     model.Order
	SessionID string
	PaidAt    time.Time
	Retry     int
}

// CartAdjuster 购物车扣减
type CartAdjuster interface {
	AdjustAfterPurchase(ctx context.Context, customerID string, items []model.OrderItem) error
}

// AuditRecorder 收款审计落库
type AuditRecorder interface {
	RecordPayment(order *model.Order, sessionID string, paidAt time.Time) error
}

// Notifier 收款通知
type Notifier interface {
	NotifyPaid(order *model.Order) error
}

type WorkerPool struct {
	TaskQueue  chan PaymentFollowUpTask
	RetryQueue chan PaymentFollowUpTask
	WorkerNum  int
	MaxRetry   int

	cart     CartAdjuster
	audit    AuditRecorder
	notifier Notifier // 可以为 nil (未配置推送)
}

func NewWorkerPool(cart CartAdjuster, audit AuditRecorder, notifier Notifier, workerNum, bufferSize int) *WorkerPool {
	return &WorkerPool{
		TaskQueue:  make(chan PaymentFollowUpTask, bufferSize),
		RetryQueue: make(chan PaymentFollowUpTask, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3,
		cart:       cart,
		audit:      audit,
		notifier:   notifier,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	go p.retryWorker()
	logger.Log.Info("payment follow-up worker pool started",
		zap.Int("workers", p.WorkerNum),
	)
}

func (p *WorkerPool) worker(id int) {
	for task := range p.TaskQueue {
		metrics.Default.SetWorkerQueueDepth(len(p.TaskQueue))

		if err := p.processTask(task); err != nil {
			metrics.Default.RecordWorkerTask(task.Kind, "failed")
			logger.Log.Warn("follow-up task failed",
				zap.Int("worker", id),
				zap.String("kind", task.Kind),
				zap.String("order_id", task.Order.ID),
				zap.Error(err),
			)

			if task.Retry < p.MaxRetry {
				task.Retry++
				select {
				case p.RetryQueue <- task:
				default:
					p.logFailedTask(task, err)
				}
			} else {
				p.logFailedTask(task, err)
			}
			continue
		}
		metrics.Default.RecordWorkerTask(task.Kind, "ok")
	}
}

func (p *WorkerPool) retryWorker() {
	for task := range p.RetryQueue {
		// 退避重试，避免立即重试
		time.Sleep(time.Duration(task.Retry) * time.Second)

		select {
		case p.TaskQueue <- task:
		default:
			p.logFailedTask(task, nil)
		}
	}
}

func (p *WorkerPool) processTask(task PaymentFollowUpTask) error {
	switch task.Kind {
	case TaskCartAdjust:
		return p.cart.AdjustAfterPurchase(context.Background(), task.Order.CustomerID, task.Order.Items)
	case TaskAudit:
		return p.audit.RecordPayment(&task.Order, task.SessionID, task.PaidAt)
	case TaskNotify:
		if p.notifier == nil {
			return nil
		}
		return p.notifier.NotifyPaid(&task.Order)
	}
	return nil
}

func (p *WorkerPool) logFailedTask(task PaymentFollowUpTask, err error) {
	// 死信只记日志；跟进任务都可以人工补账
	metrics.Default.RecordWorkerTask(task.Kind, "dead")
	logger.Log.Error("follow-up task dropped permanently",
		zap.String("kind", task.Kind),
		zap.String("order_id", task.Order.ID),
		zap.String("session_id", task.SessionID),
		zap.Error(err),
	)
}

func (p *WorkerPool) AddTask(task PaymentFollowUpTask) {
	select {
	case p.TaskQueue <- task:
		metrics.Default.SetWorkerQueueDepth(len(p.TaskQueue))
	default:
		p.logFailedTask(task, nil)
	}
}
