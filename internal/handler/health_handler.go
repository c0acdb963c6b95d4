package handler

import (
	"net/http"

	"shopease-backend/pkg/database"

	"github.com/labstack/echo/v4"
)

// HealthCheck returns service and database health
func HealthCheck(c echo.Context) error {
	dbStatus := "ok"
	if sqlDB, err := database.GetDB().DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unavailable"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}
