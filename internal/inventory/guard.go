// Package inventory enforces the stock-consistency invariant: an order item
// is only ever inserted together with an atomic decrement of the product's
// stock, so concurrent orders can never oversell a product.
package inventory

import (
	"context"
	"strconv"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/database"
	"shopease-backend/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Guard is the sole write path for order items. All stock decrements go
// through PlaceOrderItem.
type Guard struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Guard bound to the given database handle.
func New(db *gorm.DB, log *zap.Logger) *Guard {
	return &Guard{db: db, log: log}
}

// PlaceOrderItem inserts an order item after atomically reserving stock.
//
// The check "stock >= quantity" and the decrement are a single conditional
// UPDATE, so two concurrent calls on the same product serialize on the stock
// row inside the database. Reading the stock first and deciding in the
// application would race: both callers could pass the check before either
// decrement lands.
//
// Returns OutOfStockError when the product has fewer than quantity units,
// NotFoundError when the order or product does not exist, and
// ConstraintViolationError for invalid input. On any error the transaction
// is rolled back and no stock is decremented.
func (g *Guard) PlaceOrderItem(ctx context.Context, orderID, productID uint, quantity int) (*model.OrderItem, error) {
	if quantity <= 0 {
		return nil, &model.ConstraintViolationError{
			Constraint: "order_items_quantity_check",
			Detail:     "quantity must be greater than zero",
		}
	}

	var item *model.OrderItem
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Select("id").First(&order, orderID).Error; err != nil {
			return database.TranslateNotFound(err, "order", orderID)
		}

		// Atomic check-and-decrement. RowsAffected == 0 means the product
		// either does not exist or has insufficient stock.
		res := tx.Model(&model.Product{}).
			Where("id = ? AND stock >= ?", productID, quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
		if res.Error != nil {
			return database.TranslateError(res.Error)
		}
		if res.RowsAffected == 0 {
			var product model.Product
			if err := tx.First(&product, productID).Error; err != nil {
				return database.TranslateNotFound(err, "product", productID)
			}
			return &model.OutOfStockError{
				ProductID: productID,
				Requested: quantity,
				Available: product.Stock,
			}
		}

		item = &model.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if err := tx.Create(item).Error; err != nil {
			return database.TranslateError(err)
		}
		return nil
	})
	if err != nil {
		g.recordFailure(orderID, productID, quantity, err)
		return nil, err
	}

	prometheus.RecordOrderItemOperation("placed")
	g.refreshInventoryGauge(ctx, productID)
	g.log.Info("order item placed",
		zap.Uint("order_id", orderID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity))
	return item, nil
}

func (g *Guard) recordFailure(orderID, productID uint, quantity int, err error) {
	if oos, ok := err.(*model.OutOfStockError); ok {
		prometheus.RecordOrderItemOperation("out_of_stock")
		prometheus.OutOfStockCounter.WithLabelValues(strconv.FormatUint(uint64(productID), 10)).Inc()
		g.log.Warn("order item rejected: insufficient stock",
			zap.Uint("order_id", orderID),
			zap.Uint("product_id", productID),
			zap.Int("requested", oos.Requested),
			zap.Int("available", oos.Available))
		return
	}
	prometheus.RecordOrderItemOperation("error")
	g.log.Error("order item placement failed",
		zap.Uint("order_id", orderID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Error(err))
}

func (g *Guard) refreshInventoryGauge(ctx context.Context, productID uint) {
	var product model.Product
	if err := g.db.WithContext(ctx).Select("id, stock").First(&product, productID).Error; err != nil {
		return
	}
	prometheus.ProductInventoryGauge.
		WithLabelValues(strconv.FormatUint(uint64(productID), 10)).
		Set(float64(product.Stock))
}
