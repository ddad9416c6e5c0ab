package models

// Product is a catalog entry. Products are inserted by seeding and never
// change afterwards; SKU is the only identifier exposed to clients.
type Product struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU        string `gorm:"column:sku;type:varchar(64);uniqueIndex;not null" json:"sku"`
	Title      string `gorm:"type:varchar(255);not null" json:"title"`
	PriceCents int64  `gorm:"not null" json:"price_cents"`
}

func (Product) TableName() string {
	return "products"
}
