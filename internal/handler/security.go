package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
)

// SecurityHandler serves the operator-facing security/activity feed. No
// store distinct from the append-only audit trail exists, since every
// Alert/Action state transition the core cares about already flows through
// AppendAudit.
type SecurityHandler struct {
	store *db.Postgres
}

func NewSecurityHandler(store *db.Postgres) *SecurityHandler {
	return &SecurityHandler{store: store}
}

// Get godoc
// @Summary Recent security/activity feed
// @Tags security
// @Produce json
// @Success 200 {object} model.SecurityResponse
// @Router /security [get]
func (h *SecurityHandler) Get(c *gin.Context) {
	entries, err := h.store.ListRecentAudit(c.Request.Context(), 100)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to load audit log", err))
		return
	}
	c.JSON(http.StatusOK, model.SecurityResponse{RecentActivity: entries})
}

// Audit godoc
// @Summary Query the audit log for one resource
// @Tags security
// @Produce json
// @Param resource query string true "resource:resource_id, e.g. alert:abc123"
// @Param limit query int false "max rows, default 100"
// @Success 200 {object} model.SecurityResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /audit [get]
func (h *SecurityHandler) Audit(c *gin.Context) {
	resource, resourceID, ok := splitResourceRef(c.Query("resource"))
	if !ok {
		writeAPIError(c, apierr.New(apierr.Validation, "resource must be formatted resource:resource_id"))
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(c, apierr.New(apierr.Validation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.store.ListAuditForResource(c.Request.Context(), resource, resourceID, limit)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to load audit log", err))
		return
	}
	c.JSON(http.StatusOK, model.SecurityResponse{RecentActivity: entries})
}

// splitResourceRef parses the "resource:resource_id" query form GET /audit
// takes its resource param in, e.g. "alert:abc123" -> ("alert", "abc123").
func splitResourceRef(raw string) (resource, resourceID string, ok bool) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}
