package service

import (
	"sort"
	"strings"

	"storefront/internal/domain/order/lifecycle"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/pkg/logger"
	"storefront/pkg/store"

	"go.uber.org/zap"
)

// mergedOrder 归并中间态
type mergedOrder struct {
	order model.Order
	rank  int // 当前身份字段来源的权威程度
}

// sourceRank 来源权威程度：按客户列表 > 全局列表 > 最近一单缓存
func sourceRank(ns store.Namespace) int {
	switch ns {
	case store.NamespaceCustomerOrders:
		return 3
	case store.NamespaceGlobalOrders:
		return 2
	default:
		return 1
	}
}

// GuestIdentity 游客订单的合成客户标识
// 重复的游客订单在管理端按邮箱聚合到同一个伪客户下
func GuestIdentity(o *model.Order) string {
	email := strings.ToLower(strings.TrimSpace(o.CustomerEmail))
	if email == "" {
		return model.GuestCustomerID + ":anonymous"
	}
	return model.GuestCustomerID + ":" + email
}

// reconcileRecords 把多个存储位置发现的原始记录归并成去重有序的订单集
// 结果与记录发现顺序无关：
//   - 按 id 去重，字段只填空不覆盖
//   - 身份字段以按客户列表为权威，不可变字段冲突记日志后取权威一方
//   - 状态字段不取先到值，按生命周期推进程度归并后重新推导展示状态
//
// 返回归并结果和检测到的不可变字段冲突数
func reconcileRecords(records []repository.SourcedOrder) ([]model.Order, int) {
	merged := make(map[string]*mergedOrder)
	conflicts := 0

	for i := range records {
		rec := &records[i]
		id := rec.Order.ID

		cur, exists := merged[id]
		if !exists {
			cp := rec.Order
			merged[id] = &mergedOrder{order: cp, rank: sourceRank(rec.Source)}
			continue
		}

		if conflictsOnImmutable(&cur.order, &rec.Order) {
			conflicts++
			if logger.Log != nil {
				logger.Log.Warn("order records disagree on immutable fields",
					zap.String("order_id", id),
					zap.String("source", string(rec.Source)),
				)
			}
		}

		// 更权威的来源后到时，身份字段以它为准；
		// 同级冲突按客户标识取定值，保证与发现顺序无关
		rank := sourceRank(rec.Source)
		if rank > cur.rank ||
			(rank == cur.rank && rec.Order.CustomerID != "" && rec.Order.CustomerID < cur.order.CustomerID) {
			promoteIdentity(&cur.order, &rec.Order)
			cur.rank = rank
		}

		// 状态单独归并，其余字段只填空
		paymentStatus := lifecycle.ResolvePaymentStatus(cur.order.PaymentStatus, rec.Order.PaymentStatus)
		orderStatus := lifecycle.ResolveOrderStatus(cur.order.OrderStatus, rec.Order.OrderStatus)
		cur.order.FillFrom(&rec.Order)
		cur.order.PaymentStatus = paymentStatus
		cur.order.OrderStatus = orderStatus
	}

	result := make([]model.Order, 0, len(merged))
	for _, m := range merged {
		m.order.RecomputeTotals()
		// 展示状态每次读取重新推导
		m.order.OrderStatus = lifecycle.DisplayStatus(&m.order)
		result = append(result, m.order)
	}

	sortOrders(result)
	return result, conflicts
}

// promoteIdentity 用权威记录覆盖身份字段
func promoteIdentity(dst, src *model.Order) {
	if src.CustomerName != "" {
		dst.CustomerName = src.CustomerName
	}
	if src.CustomerEmail != "" {
		dst.CustomerEmail = src.CustomerEmail
	}
	if src.CustomerID != "" {
		dst.CustomerID = src.CustomerID
	}
	if len(src.Items) > 0 {
		dst.Items = src.Items
	}
}

// conflictsOnImmutable 两条同 id 记录在不可变字段上是否矛盾
func conflictsOnImmutable(a, b *model.Order) bool {
	if a.CustomerName != "" && b.CustomerName != "" && a.CustomerName != b.CustomerName {
		return true
	}
	if a.CustomerEmail != "" && b.CustomerEmail != "" && a.CustomerEmail != b.CustomerEmail {
		return true
	}
	if len(a.Items) > 0 && len(b.Items) > 0 && len(a.Items) != len(b.Items) {
		return true
	}
	return false
}

// sortOrders 按创建时间倒序；没有任何时间戳的记录排在最后
func sortOrders(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		ti, iok := orders[i].EffectiveCreatedAt()
		tj, jok := orders[j].EffectiveCreatedAt()
		if iok != jok {
			return iok
		}
		if !iok {
			return orders[i].ID < orders[j].ID
		}
		if ti.Equal(tj) {
			return orders[i].ID < orders[j].ID
		}
		return ti.After(tj)
	})
}

// attributeGuests 管理端视图：无法归属的订单并入合成游客身份
func attributeGuests(orders []model.Order) {
	for i := range orders {
		if orders[i].IsGuest() {
			orders[i].CustomerID = GuestIdentity(&orders[i])
		}
	}
}
