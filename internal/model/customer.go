package model

import (
	"time"
)

// Customer represents a registered shopper
type Customer struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;unique"`
	Phone     string    `json:"phone" gorm:"type:varchar(15);not null;unique"`
	City      string    `json:"city" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
