package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee represents a member of staff assigned to a store.
//
// ManagerID is a self-reference onto employees. The schema cannot prevent a
// cycle through that edge, so hierarchy traversal must be cycle-safe (see
// internal/hierarchy).
type Employee struct {
	ID        uint            `json:"id" gorm:"primarykey"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Role      string          `json:"role" gorm:"type:varchar(100);not null"`
	StoreID   uint            `json:"store_id" gorm:"index;not null"`
	Store     *Store          `json:"store,omitempty" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	Salary    decimal.Decimal `json:"salary" gorm:"type:decimal(10,2);not null;check:salary > 0"`
	ManagerID *uint           `json:"manager_id" gorm:"index"`
	Manager   *Employee       `json:"manager,omitempty" gorm:"foreignKey:ManagerID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
