package handler

import (
	"errors"
	"net/http"

	"shopease-backend/internal/hierarchy"
	"shopease-backend/internal/inventory"
	"shopease-backend/internal/model"
	"shopease-backend/internal/scheduler"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	guard    *inventory.Guard
	resolver *hierarchy.Resolver
	sched    *scheduler.Scheduler
)

// Init wires the handler package to the application services. Must be called
// before routes are served.
func Init(g *inventory.Guard, r *hierarchy.Resolver, s *scheduler.Scheduler) {
	guard = g
	resolver = r
	sched = s
}

// writeError maps an application error onto an HTTP response.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var oos *model.OutOfStockError
	if errors.As(err, &oos) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      "insufficient stock",
			"product_id": oos.ProductID,
			"requested":  oos.Requested,
			"available":  oos.Available,
		})
	}

	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
	}

	var cv *model.ConstraintViolationError
	if errors.As(err, &cv) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": cv.Error()})
	}

	var cyc *model.CyclicHierarchyError
	if errors.As(err, &cyc) {
		// Data-integrity fault: surfaced loudly, never truncated away.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": cyc.Error()})
	}

	var conn *model.ConnectionError
	if errors.As(err, &conn) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
	}

	log.Error("unhandled error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
