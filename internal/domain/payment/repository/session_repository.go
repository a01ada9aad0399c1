package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/payment/model"
	"storefront/pkg/store"
)

// ErrSessionNotFound 本地没有对应的未决会话记录
var ErrSessionNotFound = errors.New("pending payment session not found")

// SessionRepository 未决会话存储，验证完成后删除
type SessionRepository interface {
	Save(ctx context.Context, session *model.PendingPaymentSession) error
	Get(ctx context.Context, sessionID string) (*model.PendingPaymentSession, error)
	GetByOrder(ctx context.Context, orderID string) (*model.PendingPaymentSession, error)
	Delete(ctx context.Context, sessionID string) error
	// LatestForCustomer 指定客户最近创建的未决会话，回跳地址丢失会话号时的兜底
	LatestForCustomer(ctx context.Context, customerID string) (*model.PendingPaymentSession, error)
}

type sessionRepository struct {
	store store.Store
}

func NewSessionRepository(st store.Store) SessionRepository {
	return &sessionRepository{store: st}
}

func (r *sessionRepository) Save(ctx context.Context, session *model.PendingPaymentSession) error {
	return r.store.Set(ctx, store.NamespaceSessions, session.SessionID, session)
}

func (r *sessionRepository) Get(ctx context.Context, sessionID string) (*model.PendingPaymentSession, error) {
	var session model.PendingPaymentSession
	err := r.store.Get(ctx, store.NamespaceSessions, sessionID, &session)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetByOrder(ctx context.Context, orderID string) (*model.PendingPaymentSession, error) {
	sessions, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.OrderID == orderID {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.store.Remove(ctx, store.NamespaceSessions, sessionID)
}

func (r *sessionRepository) LatestForCustomer(ctx context.Context, customerID string) (*model.PendingPaymentSession, error) {
	sessions, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	var latest *model.PendingPaymentSession
	for _, s := range sessions {
		if s.CustomerID != customerID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrSessionNotFound
	}
	return latest, nil
}

func (r *sessionRepository) all(ctx context.Context) ([]*model.PendingPaymentSession, error) {
	keys, err := r.store.Keys(ctx, store.NamespaceSessions)
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.PendingPaymentSession, 0, len(keys))
	for _, key := range keys {
		var session model.PendingPaymentSession
		if err := r.store.Get(ctx, store.NamespaceSessions, key, &session); err != nil {
			// 坏记录跳过，不影响其余会话
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}
