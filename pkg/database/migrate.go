package database

import (
	"fmt"

	"shopease-backend/internal/model"

	"gorm.io/gorm"
)

// Read-only reporting views over the business tables. These are recreated on
// every migration run so view definitions stay in lockstep with the schema.
const topSellingProductsView = `
CREATE OR REPLACE VIEW top_selling_products AS
SELECT oi.product_id, p.name AS product_name, SUM(oi.quantity) AS total_sold
FROM order_items oi
JOIN products p ON oi.product_id = p.id
GROUP BY oi.product_id, p.name
ORDER BY total_sold DESC;
`

const storeRevenueView = `
CREATE OR REPLACE VIEW store_revenue AS
SELECT o.store_id, s.name AS store_name, SUM(o.total_amount) AS total_revenue
FROM orders o
JOIN stores s ON o.store_id = s.id
GROUP BY o.store_id, s.name
ORDER BY total_revenue DESC;
`

// Migrate runs schema migrations for all models and recreates the reporting
// views.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	for _, view := range []string{topSellingProductsView, storeRevenueView} {
		if err := db.Exec(view).Error; err != nil {
			return fmt.Errorf("failed to create reporting view: %w", err)
		}
	}

	return nil
}
