package repository

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/order/model"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"
	"storefront/pkg/store"

	"go.uber.org/zap"
)

// ErrOrderNotFound 订单在任何存储位置都不存在
var ErrOrderNotFound = errors.New("order not found")

// SourcedOrder 带来源的原始订单记录，归并引擎需要知道记录来自哪个命名空间
type SourcedOrder struct {
	Order  model.Order
	Source store.Namespace
}

// OrderRepository 订单存储
// 写入冗余落到全局列表、按客户列表和最近一单缓存三个位置；
// 保存前先读出已有记录做整条归并，避免旧写入者覆盖新字段
type OrderRepository interface {
	Save(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
	// LoadAll 读出所有存储位置的原始记录，坏记录跳过并记录日志
	LoadAll(ctx context.Context) ([]SourcedOrder, int, error)
	// LoadForCustomer 读出指定客户可达的原始记录
	LoadForCustomer(ctx context.Context, customerID string) ([]SourcedOrder, int, error)
	// FindBySessionID 按网关会话号定位订单 (幂等校验用)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error)
}

type orderRepository struct {
	store store.Store
}

func NewOrderRepository(st store.Store) OrderRepository {
	return &orderRepository{store: st}
}

// Save 读-改-写保存
// 先取全局记录把写入者缺失的字段补回来，再整条写入所有位置
func (r *orderRepository) Save(ctx context.Context, order *model.Order) error {
	var existing model.Order
	err := r.store.Get(ctx, store.NamespaceGlobalOrders, order.ID, &existing)
	if err == nil {
		order.FillFrom(&existing)
	}

	if err := r.store.Set(ctx, store.NamespaceGlobalOrders, order.ID, order); err != nil {
		metrics.Default.RecordStoreOperation(string(store.NamespaceGlobalOrders), "set", err)
		return err
	}
	metrics.Default.RecordStoreOperation(string(store.NamespaceGlobalOrders), "set", nil)

	customerID := order.CustomerID
	if customerID == "" {
		customerID = model.GuestCustomerID
	}
	if err := r.store.Set(ctx, store.NamespaceCustomerOrders,
		store.CustomerOrderKey(customerID, order.ID), order); err != nil {
		return err
	}

	// 最近一单缓存：同客户较新的订单不被旧订单覆盖
	var recent model.Order
	if err := r.store.Get(ctx, store.NamespaceRecentOrder, customerID, &recent); err == nil {
		if newer(&recent, order) {
			return nil
		}
	}
	return r.store.Set(ctx, store.NamespaceRecentOrder, customerID, order)
}

// newer a 的创建时间是否晚于 b
func newer(a, b *model.Order) bool {
	at, aok := a.EffectiveCreatedAt()
	bt, bok := b.EffectiveCreatedAt()
	if !aok || !bok {
		return aok
	}
	return at.After(bt) && a.ID != b.ID
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.store.Get(ctx, store.NamespaceGlobalOrders, orderID, &order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// 全局列表没有时兜底扫按客户列表 (历史写入路径不保证全局列表完整)
	keys, err := r.store.Keys(ctx, store.NamespaceCustomerOrders)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if strings.HasSuffix(key, ":"+orderID) {
			if err := r.store.Get(ctx, store.NamespaceCustomerOrders, key, &order); err == nil {
				return &order, nil
			}
		}
	}
	return nil, ErrOrderNotFound
}

func (r *orderRepository) LoadAll(ctx context.Context) ([]SourcedOrder, int, error) {
	var (
		records []SourcedOrder
		skipped int
	)

	for _, ns := range []store.Namespace{
		store.NamespaceGlobalOrders,
		store.NamespaceCustomerOrders,
		store.NamespaceRecentOrder,
	} {
		loaded, bad, err := r.loadNamespace(ctx, ns, "")
		if err != nil {
			return nil, skipped, err
		}
		records = append(records, loaded...)
		skipped += bad
	}

	return records, skipped, nil
}

func (r *orderRepository) LoadForCustomer(ctx context.Context, customerID string) ([]SourcedOrder, int, error) {
	var (
		records []SourcedOrder
		skipped int
	)

	// 按客户列表只扫该客户前缀
	loaded, bad, err := r.loadNamespace(ctx, store.NamespaceCustomerOrders, customerID+":")
	if err != nil {
		return nil, skipped, err
	}
	records = append(records, loaded...)
	skipped += bad

	// 全局列表可能含有其他写入路径落下的同客户订单
	loaded, bad, err = r.loadNamespace(ctx, store.NamespaceGlobalOrders, "")
	if err != nil {
		return nil, skipped, err
	}
	for _, rec := range loaded {
		if rec.Order.CustomerID == customerID {
			records = append(records, rec)
		}
	}
	skipped += bad

	var recent model.Order
	if err := r.store.Get(ctx, store.NamespaceRecentOrder, customerID, &recent); err == nil {
		records = append(records, SourcedOrder{Order: recent, Source: store.NamespaceRecentOrder})
	} else if isDecodeError(err) {
		skipped++
	}

	return records, skipped, nil
}

// loadNamespace 读出一个命名空间的全部记录，keyPrefix 为空时不过滤
func (r *orderRepository) loadNamespace(ctx context.Context, ns store.Namespace, keyPrefix string) ([]SourcedOrder, int, error) {
	keys, err := r.store.Keys(ctx, ns)
	if err != nil {
		metrics.Default.RecordStoreOperation(string(ns), "keys", err)
		return nil, 0, err
	}

	var (
		records []SourcedOrder
		skipped int
	)
	for _, key := range keys {
		if keyPrefix != "" && !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		var order model.Order
		if err := r.store.Get(ctx, ns, key, &order); err != nil {
			// 坏记录跳过，不中断归并
			if isDecodeError(err) {
				skipped++
				if logger.Log != nil {
					logger.Log.Warn("skipping malformed order record",
						zap.String("namespace", string(ns)),
						zap.String("key", key),
						zap.Error(err),
					)
				}
				continue
			}
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, skipped, err
		}
		if order.ID == "" {
			// 无法去重的记录同样按坏记录处理
			skipped++
			continue
		}
		records = append(records, SourcedOrder{Order: order, Source: ns})
	}

	return records, skipped, nil
}

func (r *orderRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	loaded, _, err := r.loadNamespace(ctx, store.NamespaceGlobalOrders, "")
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		if loaded[i].Order.GatewaySessionID == sessionID {
			return &loaded[i].Order, nil
		}
	}
	return nil, ErrOrderNotFound
}

func isDecodeError(err error) bool {
	var de *store.DecodeError
	return errors.As(err, &de)
}
