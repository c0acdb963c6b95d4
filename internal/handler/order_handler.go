package handler

import (
	"net/http"
	"strconv"

	"shopease-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OrderItemRequest defines the structure for order item placement requests
type OrderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// PlaceOrderItem handles adding an item to an order through the inventory
// guard. Stock is checked and decremented atomically; oversell is rejected
// with 409.
func PlaceOrderItem(c echo.Context) error {
	log := logger.FromContext(c)

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	var req OrderItemRequest
	if err := c.Bind(&req); err != nil {
		log.Error("invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	item, err := guard.PlaceOrderItem(c.Request().Context(), uint(orderID), req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, log, err)
	}

	return c.JSON(http.StatusCreated, item)
}
