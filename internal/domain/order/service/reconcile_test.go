package service

import (
	"testing"
	"time"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/pkg/store"

	"github.com/stretchr/testify/assert"
)

func sourced(o model.Order, ns store.Namespace) repository.SourcedOrder {
	return repository.SourcedOrder{Order: o, Source: ns}
}

func orderAt(id string, createdAt time.Time) model.Order {
	t := createdAt
	return model.Order{
		ID:            id,
		CustomerID:    "cust-1",
		PaymentMethod: model.MethodGcash,
		PaymentStatus: model.PaymentStatusPending,
		OrderStatus:   model.OrderStatusPendingPayment,
		CreatedAt:     &t,
	}
}

func TestReconcileRecords(t *testing.T) {
	now := time.Now()

	t.Run("Same order across all locations collapses to one", func(t *testing.T) {
		o := orderAt("o1", now)
		records := []repository.SourcedOrder{
			sourced(o, store.NamespaceGlobalOrders),
			sourced(o, store.NamespaceCustomerOrders),
			sourced(o, store.NamespaceRecentOrder),
		}

		orders, conflicts := reconcileRecords(records)
		assert.Len(t, orders, 1)
		assert.Zero(t, conflicts)
	})

	t.Run("Fields are gap-filled across records", func(t *testing.T) {
		full := orderAt("o1", now)
		full.CustomerName = "Maria Santos"
		full.Total = 108

		partial := model.Order{ID: "o1", PaymentStatus: model.PaymentStatusPending}

		orders, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(partial, store.NamespaceRecentOrder),
			sourced(full, store.NamespaceGlobalOrders),
		})

		assert.Len(t, orders, 1)
		assert.Equal(t, "Maria Santos", orders[0].CustomerName)
		assert.Equal(t, 108.0, orders[0].Total)
	})

	t.Run("Customer record is authoritative for identity", func(t *testing.T) {
		global := orderAt("o1", now)
		global.CustomerName = "M. Santos"

		customer := orderAt("o1", now)
		customer.CustomerName = "Maria Santos"

		orders, conflicts := reconcileRecords([]repository.SourcedOrder{
			sourced(global, store.NamespaceGlobalOrders),
			sourced(customer, store.NamespaceCustomerOrders),
		})

		assert.Equal(t, "Maria Santos", orders[0].CustomerName)
		assert.Equal(t, 1, conflicts)
	})

	t.Run("Result does not depend on discovery order", func(t *testing.T) {
		paid := orderAt("o1", now)
		paid.PaymentStatus = model.PaymentStatusPaid

		stale := orderAt("o1", now)

		forward, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(paid, store.NamespaceGlobalOrders),
			sourced(stale, store.NamespaceRecentOrder),
		})
		backward, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(stale, store.NamespaceRecentOrder),
			sourced(paid, store.NamespaceGlobalOrders),
		})

		assert.Equal(t, forward, backward)
		assert.Equal(t, model.PaymentStatusPaid, forward[0].PaymentStatus)
	})

	t.Run("Paid with stale pending_payment displays processing", func(t *testing.T) {
		paid := orderAt("o1", now)
		paid.PaymentStatus = model.PaymentStatusPaid
		paid.OrderStatus = ""

		stale := orderAt("o1", now)

		orders, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(stale, store.NamespaceRecentOrder),
			sourced(paid, store.NamespaceGlobalOrders),
		})

		assert.Equal(t, model.PaymentStatusPaid, orders[0].PaymentStatus)
		assert.Equal(t, model.OrderStatusProcessing, orders[0].OrderStatus)
	})

	t.Run("Totals are recomputed from parts", func(t *testing.T) {
		o := model.Order{
			ID:         "o1",
			CustomerID: "cust-1",
			Items: []model.OrderItem{
				{ProductID: "p1", UnitPrice: 50, Quantity: 2},
			},
			Shipping: 0,
			Tax:      8,
		}

		orders, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(o, store.NamespaceGlobalOrders),
		})

		assert.Equal(t, 100.0, orders[0].Subtotal)
		assert.Equal(t, 108.0, orders[0].Total)
		assert.True(t, orders[0].TotalsConsistent())
	})

	t.Run("Sorted newest first with dateless records last", func(t *testing.T) {
		older := orderAt("older", now.Add(-time.Hour))
		newer := orderAt("newer", now)
		dateless := model.Order{ID: "dateless", CustomerID: "cust-1"}

		orders, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(dateless, store.NamespaceGlobalOrders),
			sourced(older, store.NamespaceGlobalOrders),
			sourced(newer, store.NamespaceGlobalOrders),
		})

		assert.Equal(t, []string{"newer", "older", "dateless"},
			[]string{orders[0].ID, orders[1].ID, orders[2].ID})
	})

	t.Run("OrderDate is the sort fallback", func(t *testing.T) {
		d := now.Add(-30 * time.Minute)
		fallback := model.Order{ID: "fallback", CustomerID: "cust-1", OrderDate: &d}
		older := orderAt("older", now.Add(-time.Hour))

		orders, _ := reconcileRecords([]repository.SourcedOrder{
			sourced(older, store.NamespaceGlobalOrders),
			sourced(fallback, store.NamespaceGlobalOrders),
		})

		assert.Equal(t, "fallback", orders[0].ID)
	})
}

func TestAttributeGuests(t *testing.T) {
	t.Run("Guest orders group by email", func(t *testing.T) {
		orders := []model.Order{
			{ID: "o1", CustomerID: model.GuestCustomerID, CustomerEmail: "Ana@Example.com"},
			{ID: "o2", CustomerID: "", CustomerEmail: "ana@example.com"},
			{ID: "o3", CustomerID: model.GuestCustomerID},
			{ID: "o4", CustomerID: "cust-1", CustomerEmail: "real@example.com"},
		}

		attributeGuests(orders)

		assert.Equal(t, "guest:ana@example.com", orders[0].CustomerID)
		assert.Equal(t, "guest:ana@example.com", orders[1].CustomerID)
		assert.Equal(t, "guest:anonymous", orders[2].CustomerID)
		assert.Equal(t, "cust-1", orders[3].CustomerID)
	})
}
