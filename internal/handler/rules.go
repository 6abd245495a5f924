package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/alertengine"
	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/model"
)

// RulesHandler serves the rule catalog and its two mute mutations. Both
// mutations flow through the engine so its in-memory cache stays in sync
// with the store immediately, rather than waiting on the next LoadRules poll.
type RulesHandler struct {
	engine *alertengine.Engine
}

func NewRulesHandler(engine *alertengine.Engine) *RulesHandler {
	return &RulesHandler{engine: engine}
}

// List godoc
// @Summary List alert rules
// @Tags rules
// @Produce json
// @Success 200 {object} map[string]interface{} "rules ([]model.AlertRule)"
// @Router /rules [get]
func (h *RulesHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.engine.Rules()})
}

// Mute godoc
// @Summary Mute a rule for a duration
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body model.MuteRequest true "Mute duration"
// @Success 200 {object} model.StatusResponse
// @Failure 400,404 {object} model.ErrorResponse
// @Router /rules/{id}/mute [post]
func (h *RulesHandler) Mute(c *gin.Context) {
	var req model.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DurationHours <= 0 {
		writeAPIError(c, apierr.New(apierr.Validation, "duration_hours must be a positive number"))
		return
	}

	duration := time.Duration(req.DurationHours * float64(time.Hour))
	if err := h.engine.Mute(c.Request.Context(), c.Param("id"), duration); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "muted"})
}

// Unmute godoc
// @Summary Clear a rule's mute
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} model.StatusResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /rules/{id}/unmute [post]
func (h *RulesHandler) Unmute(c *gin.Context) {
	if err := h.engine.Unmute(c.Request.Context(), c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "unmuted"})
}
