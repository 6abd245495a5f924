package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/timeseries"
)

const defaultLogWindow = 24 * time.Hour

// LogsHandler queries the ingested log index. Severity filtering is
// best-effort: severity is an Event-layer classification, not a promoted
// timeseries column, so it is matched against whatever "severity" key the
// collector put in the row's fields, if any.
type LogsHandler struct {
	store *timeseries.Store
}

func NewLogsHandler(store *timeseries.Store) *LogsHandler {
	return &LogsHandler{store: store}
}

// List godoc
// @Summary Query recent ingested logs
// @Tags logs
// @Produce json
// @Param severity query string false "filter by severity field, if present"
// @Param limit query int false "max rows, default 200"
// @Success 200 {object} model.LogsResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /logs [get]
func (h *LogsHandler) List(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(c, apierr.New(apierr.Validation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	now := time.Now()
	rows, truncated, err := h.store.Query(c.Request.Context(), timeseries.KindLog, timeseries.Filter{
		Tenant: "default",
		From:   now.Add(-defaultLogWindow),
		To:     now,
		Limit:  limit,
	})
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to query logs", err))
		return
	}

	severity := c.Query("severity")
	entries := make([]model.LogEntry, 0, len(rows))
	for _, r := range rows {
		rowSeverity, _ := r.Fields["severity"].(string)
		if severity != "" && rowSeverity != severity {
			continue
		}
		entries = append(entries, model.LogEntry{
			ID:       r.ID,
			At:       r.At,
			Host:     r.Host,
			Message:  r.Message,
			Severity: rowSeverity,
		})
	}
	c.JSON(http.StatusOK, model.LogsResponse{Entries: entries, Truncated: truncated})
}
