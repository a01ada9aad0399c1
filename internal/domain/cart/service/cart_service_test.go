package service

import (
	"context"
	"os"
	"testing"

	"storefront/internal/domain/cart/model"
	orderModel "storefront/internal/domain/order/model"
	"storefront/pkg/logger"
	"storefront/pkg/store"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func seedCart(t *testing.T, ctx context.Context, s CartService, customerID string) {
	t.Helper()
	_, err := s.PutCart(ctx, customerID, []model.CartLine{
		{ProductID: "p1", Name: "Shirt", UnitPrice: 25, Quantity: 3, Size: "M"},
		{ProductID: "p1", Name: "Shirt", UnitPrice: 25, Quantity: 1, Size: "L"},
		{ProductID: "p2", Name: "Shorts", UnitPrice: 50, Quantity: 2},
	})
	assert.NoError(t, err)
}

func TestPutCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Lines with the same variant merge", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		cart, err := s.PutCart(ctx, "cust-1", []model.CartLine{
			{ProductID: "p1", Quantity: 1, Size: "M"},
			{ProductID: "p1", Quantity: 2, Size: "M"},
			{ProductID: "p1", Quantity: 1, Size: "L"},
		})

		assert.NoError(t, err)
		assert.Len(t, cart.Lines, 2)
		assert.Equal(t, 3, cart.Lines[0].Quantity)
	})

	t.Run("Non-positive quantities are dropped", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		cart, err := s.PutCart(ctx, "cust-1", []model.CartLine{
			{ProductID: "p1", Quantity: 0},
			{ProductID: "p2", Quantity: -1},
		})

		assert.NoError(t, err)
		assert.Empty(t, cart.Lines)
	})
}

func TestGetCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing cart reads as empty", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		cart, err := s.GetCart(ctx, "cust-1")
		assert.NoError(t, err)
		assert.Empty(t, cart.Lines)
	})
}

func TestAdjustAfterPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("Purchased quantities are deducted per variant", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		seedCart(t, ctx, s, "cust-1")

		err := s.AdjustAfterPurchase(ctx, "cust-1", []orderModel.OrderItem{
			{ProductID: "p1", Quantity: 2, Size: "M"},
		})
		assert.NoError(t, err)

		cart, _ := s.GetCart(ctx, "cust-1")
		assert.Len(t, cart.Lines, 3)
		for _, line := range cart.Lines {
			if line.ProductID == "p1" && line.Size == "M" {
				assert.Equal(t, 1, line.Quantity)
			}
		}
	})

	t.Run("Lines reduced to zero are removed", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		seedCart(t, ctx, s, "cust-1")

		err := s.AdjustAfterPurchase(ctx, "cust-1", []orderModel.OrderItem{
			{ProductID: "p1", Quantity: 3, Size: "M"},
			{ProductID: "p1", Quantity: 1, Size: "L"},
		})
		assert.NoError(t, err)

		cart, _ := s.GetCart(ctx, "cust-1")
		assert.Len(t, cart.Lines, 1)
		assert.Equal(t, "p2", cart.Lines[0].ProductID)
	})

	t.Run("Buying more than carted clears the line", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		seedCart(t, ctx, s, "cust-1")

		err := s.AdjustAfterPurchase(ctx, "cust-1", []orderModel.OrderItem{
			{ProductID: "p2", Quantity: 10},
		})
		assert.NoError(t, err)

		cart, _ := s.GetCart(ctx, "cust-1")
		for _, line := range cart.Lines {
			assert.NotEqual(t, "p2", line.ProductID)
		}
	})

	t.Run("Empty cart is a no-op", func(t *testing.T) {
		s := NewCartService(store.NewMemoryStore())
		err := s.AdjustAfterPurchase(ctx, "guest", []orderModel.OrderItem{
			{ProductID: "p1", Quantity: 1},
		})
		assert.NoError(t, err)
	})

	t.Run("Fully purchased cart is deleted", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := NewCartService(st)
		_, err := s.PutCart(ctx, "cust-1", []model.CartLine{
			{ProductID: "p1", Quantity: 1},
		})
		assert.NoError(t, err)

		assert.NoError(t, s.AdjustAfterPurchase(ctx, "cust-1", []orderModel.OrderItem{
			{ProductID: "p1", Quantity: 1},
		}))

		var raw model.Cart
		assert.ErrorIs(t, st.Get(ctx, store.NamespaceCart, "cust-1", &raw), store.ErrNotFound)
	})
}
