package handler

import (
	"net/http"

	"shopease-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetEmployeeHierarchy returns every employee annotated with its level in the
// management tree, ordered by (level, manager_id).
func GetEmployeeHierarchy(c echo.Context) error {
	log := logger.FromContext(c)

	entries, err := resolver.Resolve(c.Request().Context())
	if err != nil {
		return writeError(c, log, err)
	}

	log.Info("employee hierarchy resolved", zap.Int("employees", len(entries)))
	return c.JSON(http.StatusOK, echo.Map{"hierarchy": entries})
}
