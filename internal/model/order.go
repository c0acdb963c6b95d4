package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer purchase placed at a store. TotalAmount is
// maintained by the order lifecycle, not by order-item insertion.
type Order struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	CustomerID  uint            `json:"customer_id" gorm:"index:idx_customer_order;not null"`
	Customer    *Customer       `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	StoreID     uint            `json:"store_id" gorm:"index;not null"`
	Store       *Store          `json:"store,omitempty" gorm:"foreignKey:StoreID"`
	OrderDate   time.Time       `json:"order_date" gorm:"index:idx_customer_order;not null"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null;default:0;check:total_amount >= 0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem is a line on an order. Rows are only created by the inventory
// guard, which decrements product stock in the same transaction.
type OrderItem struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	OrderID   uint      `json:"order_id" gorm:"index;not null"`
	Order     *Order    `json:"order,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	Product   *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	CreatedAt time.Time `json:"created_at"`
}
