package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/cart/model"
	orderModel "storefront/internal/domain/order/model"
	"storefront/pkg/logger"
	"storefront/pkg/store"

	"go.uber.org/zap"
)

// CartService 购物车
// 购买后的扣减要求幂等：重复扣减同一订单只会把数量减到零为止
type CartService interface {
	GetCart(ctx context.Context, customerID string) (*model.Cart, error)
	PutCart(ctx context.Context, customerID string, lines []model.CartLine) (*model.Cart, error)
	// AdjustAfterPurchase 按订单行扣减购物车数量，减到零的行移除
	AdjustAfterPurchase(ctx context.Context, customerID string, items []orderModel.OrderItem) error
}

type cartService struct {
	store store.Store
}

func NewCartService(st store.Store) CartService {
	return &cartService{store: st}
}

func (s *cartService) GetCart(ctx context.Context, customerID string) (*model.Cart, error) {
	var cart model.Cart
	err := s.store.Get(ctx, store.NamespaceCart, customerID, &cart)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Cart{CustomerID: customerID, Lines: []model.CartLine{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *cartService) PutCart(ctx context.Context, customerID string, lines []model.CartLine) (*model.Cart, error) {
	cart := &model.Cart{
		CustomerID: customerID,
		Lines:      mergeLines(lines),
		UpdatedAt:  time.Now(),
	}

	if len(cart.Lines) == 0 {
		if err := s.store.Remove(ctx, store.NamespaceCart, customerID); err != nil {
			return nil, err
		}
		return cart, nil
	}

	if err := s.store.Set(ctx, store.NamespaceCart, customerID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) AdjustAfterPurchase(ctx context.Context, customerID string, items []orderModel.OrderItem) error {
	cart, err := s.GetCart(ctx, customerID)
	if err != nil {
		return err
	}
	if len(cart.Lines) == 0 {
		// 游客或清空过的购物车，没有可扣减的内容
		return nil
	}

	purchased := make(map[string]int, len(items))
	for _, it := range items {
		line := model.CartLine{ProductID: it.ProductID, Size: it.Size, Color: it.Color}
		purchased[line.Key()] += it.Quantity
	}

	remaining := cart.Lines[:0]
	for _, line := range cart.Lines {
		if qty, ok := purchased[line.Key()]; ok {
			line.Quantity -= qty
		}
		if line.Quantity > 0 {
			remaining = append(remaining, line)
		}
	}
	cart.Lines = remaining
	cart.UpdatedAt = time.Now()

	logger.Log.Debug("cart adjusted after purchase",
		zap.String("customer_id", customerID),
		zap.Int("remaining_lines", len(cart.Lines)),
	)

	if len(cart.Lines) == 0 {
		return s.store.Remove(ctx, store.NamespaceCart, customerID)
	}
	return s.store.Set(ctx, store.NamespaceCart, customerID, cart)
}

// mergeLines 同 key 的行合并数量，去掉非正数量的行
func mergeLines(lines []model.CartLine) []model.CartLine {
	index := make(map[string]int)
	merged := make([]model.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.Key()]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.Key()] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
