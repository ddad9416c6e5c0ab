package models

import (
	"time"
)

type Order struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"type:varchar(255);not null" json:"email"`
	TotalCents int64     `gorm:"not null" json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64    `gorm:"not null;index" json:"order_id"`
	Order     *Order   `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	ProductID int64    `gorm:"not null;index" json:"product_id"`
	Product   *Product `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Quantity  int      `gorm:"not null;default:1" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderLine is an order item joined with the product it references.
type OrderLine struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"-"`
	ProductID  int64  `json:"product_id"`
	SKU        string `gorm:"column:sku" json:"sku"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

func (l OrderLine) SubtotalCents() int64 {
	return l.PriceCents * int64(l.Quantity)
}
