package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopease-backend/internal/model"
	"shopease-backend/internal/report"
	"shopease-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ReportRequest defines the structure for report submission requests
type ReportRequest struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// SubmitReport enqueues a report task and returns its id without waiting for
// the computation.
func SubmitReport(c echo.Context) error {
	log := logger.FromContext(c)

	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		log.Error("invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if !report.ValidKind(req.Kind) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "unknown report kind",
			"kinds": report.Kinds(),
		})
	}

	task, err := sched.Submit(c.Request().Context(), req.Kind, string(req.Params))
	if err != nil {
		return writeError(c, log, err)
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// GetReportStatus returns the current status of a report task and, once it
// has succeeded, the artifact location.
func GetReportStatus(c echo.Context) error {
	log := logger.FromContext(c)

	task, err := sched.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, log, err)
	}

	resp := echo.Map{
		"task_id":    task.ID,
		"kind":       task.Kind,
		"status":     task.Status,
		"attempts":   task.Attempts,
		"created_at": task.CreatedAt,
	}
	if task.ResultRef != nil {
		resp["result_ref"] = *task.ResultRef
	}
	if task.LastError != nil {
		resp["last_error"] = *task.LastError
	}
	if task.CompletedAt != nil {
		resp["completed_at"] = *task.CompletedAt
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelReport cancels a pending report task. Running tasks are left to
// finish.
func CancelReport(c echo.Context) error {
	log := logger.FromContext(c)

	err := sched.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		var cv *model.ConstraintViolationError
		if errors.As(err, &cv) {
			return c.JSON(http.StatusConflict, echo.Map{"error": cv.Error()})
		}
		return writeError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.TaskStatusCancelled})
}
