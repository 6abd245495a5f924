package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/alertengine"
	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/model"
)

// AlertsHandler serves the alert catalog: listing and the two operator
// mutations (acknowledge, resolve). Both mutations go through the engine
// rather than the store directly, since the engine also cancels any
// in-flight auto-investigation and fires the resolved notification.
type AlertsHandler struct {
	engine *alertengine.Engine
}

func NewAlertsHandler(engine *alertengine.Engine) *AlertsHandler {
	return &AlertsHandler{engine: engine}
}

// List godoc
// @Summary List alerts
// @Tags alerts
// @Produce json
// @Param status query string false "active|acknowledged|resolved"
// @Param severity query string false "info|notable|urgent"
// @Param page query int false "page number, 1-based"
// @Success 200 {object} map[string]interface{} "alerts ([]model.AlertListResponse), total, page"
// @Failure 400 {object} model.ErrorResponse
// @Router /alerts [get]
func (h *AlertsHandler) List(c *gin.Context) {
	page, err := parsePage(c.Query("page"))
	if err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "page must be a positive integer"))
		return
	}

	alerts, total, err := h.engine.ListAlerts(c.Request.Context(), c.Query("status"), c.Query("severity"), page, defaultPageSize)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to list alerts", err))
		return
	}

	out := make([]model.AlertListResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, model.AlertListResponse{
			ID:       a.ID,
			RuleID:   a.RuleID,
			Title:    a.Title,
			Severity: a.Severity,
			Status:   a.Status,
			Source:   a.Source,
			FiredAt:  a.FiredAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out, "total": total, "page": page})
}

// Acknowledge godoc
// @Summary Acknowledge an alert
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404,409 {object} model.ErrorResponse
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertsHandler) Acknowledge(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAPIError(c, apierr.New(apierr.Unauthorized, "unauthorized"))
		return
	}

	if err := h.engine.Acknowledge(c.Request.Context(), c.Param("id"), user.LoginID); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "acknowledged"})
}

// Resolve godoc
// @Summary Resolve an alert
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404,409 {object} model.ErrorResponse
// @Router /alerts/{id}/resolve [post]
func (h *AlertsHandler) Resolve(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAPIError(c, apierr.New(apierr.Unauthorized, "unauthorized"))
		return
	}

	if err := h.engine.Resolve(c.Request.Context(), c.Param("id"), user.LoginID); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "resolved"})
}

const defaultPageSize = 25

// parsePage parses an optional 1-based page query param, defaulting to 1.
func parsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("invalid page")
	}
	return n, nil
}
