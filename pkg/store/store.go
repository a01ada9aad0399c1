package store

import (
	"context"
	"errors"
	"fmt"
)

// Namespace 逻辑记录集合
// 订单记录会被多个调用方冗余写入多个命名空间，读取时再做归并
type Namespace string

const (
	// NamespaceGlobalOrders 全局订单列表，key = orderID
	NamespaceGlobalOrders Namespace = "orders:global"
	// NamespaceCustomerOrders 按客户的订单列表，key = customerID + ":" + orderID
	NamespaceCustomerOrders Namespace = "orders:customer"
	// NamespaceRecentOrder 最近一单缓存，key = customerID
	NamespaceRecentOrder Namespace = "orders:recent"
	// NamespaceSessions 待支付会话缓存，key = sessionID
	NamespaceSessions Namespace = "payment:sessions"
	// NamespaceCart 购物车，key = customerID
	NamespaceCart Namespace = "cart"
)

// CustomerOrderKey 拼接按客户命名空间下的订单 key
func CustomerOrderKey(customerID, orderID string) string {
	return customerID + ":" + orderID
}

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// DecodeError 记录存在但无法反序列化
// 归并读取时此类记录会被跳过而不是中断整个流程
type DecodeError struct {
	Namespace Namespace
	Key       string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed record %s/%s: %v", e.Namespace, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Store 记录存储适配器
// 所有订单/会话/购物车的读写都经过这里，单点保证读-改-写
type Store interface {
	Get(ctx context.Context, ns Namespace, key string, dest interface{}) error
	Set(ctx context.Context, ns Namespace, key string, value interface{}) error
	Remove(ctx context.Context, ns Namespace, key string) error
	// Keys 枚举命名空间下的所有 key，供归并引擎遍历
	Keys(ctx context.Context, ns Namespace) ([]string, error)
}
