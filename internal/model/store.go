package model

import (
	"time"
)

// Store represents a physical retail location
type Store struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;unique"`
	Location  string    `json:"location" gorm:"type:varchar(255);not null"`
	ManagerID *uint     `json:"manager_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
