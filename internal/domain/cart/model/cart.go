package model

import "time"

// CartLine 购物车行，按商品+规格区分
type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Cart 客户购物车
type Cart struct {
	CustomerID string     `json:"customerId"`
	Lines      []CartLine `json:"lines"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Key 同一商品不同规格算不同的行
func (l *CartLine) Key() string {
	return l.ProductID + "|" + l.Size + "|" + l.Color
}
