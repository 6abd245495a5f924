package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
)

// InvestigationsHandler lists past and in-flight auto-investigations.
type InvestigationsHandler struct {
	store *db.Postgres
}

func NewInvestigationsHandler(store *db.Postgres) *InvestigationsHandler {
	return &InvestigationsHandler{store: store}
}

// List godoc
// @Summary List investigations
// @Tags investigations
// @Produce json
// @Param page query int false "page number, 1-based"
// @Success 200 {object} map[string]interface{} "investigations ([]model.InvestigationListResponse), page"
// @Failure 400 {object} model.ErrorResponse
// @Router /investigations [get]
func (h *InvestigationsHandler) List(c *gin.Context) {
	page, err := parsePage(c.Query("page"))
	if err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "page must be a positive integer"))
		return
	}

	invs, err := h.store.ListInvestigations(c.Request.Context(), page, defaultPageSize)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to list investigations", err))
		return
	}

	out := make([]model.InvestigationListResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, model.InvestigationListResponse{
			ID:        inv.ID,
			AlertID:   inv.AlertID,
			Status:    inv.Status,
			StartedAt: inv.StartedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"investigations": out, "page": page})
}
