package handler

import (
	"net/http"

	"shopease-backend/pkg/database"
	"shopease-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// TopProductEntry is one row of the top_selling_products view
type TopProductEntry struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	TotalSold   int64  `json:"total_sold"`
}

// StoreRevenueEntry is one row of the store_revenue view
type StoreRevenueEntry struct {
	StoreID      uint            `json:"store_id"`
	StoreName    string          `json:"store_name"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// GetTopSellingProducts reads the top_selling_products view, ordered by units
// sold descending.
func GetTopSellingProducts(c echo.Context) error {
	log := logger.FromContext(c)

	ctx := c.Request().Context()
	var entries []TopProductEntry
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return database.GetDB().WithContext(ctx).
			Raw(`SELECT product_id, product_name, total_sold FROM top_selling_products`).
			Scan(&entries).Error
	})
	if err != nil {
		return writeError(c, log, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// GetStoreRevenue reads the store_revenue view, ordered by revenue
// descending.
func GetStoreRevenue(c echo.Context) error {
	log := logger.FromContext(c)

	ctx := c.Request().Context()
	var entries []StoreRevenueEntry
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return database.GetDB().WithContext(ctx).
			Raw(`SELECT store_id, store_name, total_revenue FROM store_revenue`).
			Scan(&entries).Error
	})
	if err != nil {
		return writeError(c, log, err)
	}
	return c.JSON(http.StatusOK, entries)
}
