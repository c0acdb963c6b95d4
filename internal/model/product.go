package model

import (
	"time"
)

// Product represents a sellable item and its on-hand stock.
//
// Stock only ever decreases through inventory.Guard.PlaceOrderItem; the
// check constraint is a backstop, not the enforcement path.
type Product struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;index"`
	Stock     int       `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
