package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/ingest"
	"github.com/argus-core/backend/internal/model"
)

type IngestHandler struct {
	svc *ingest.Service
}

func NewIngestHandler(svc *ingest.Service) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// Ingest godoc
// @Summary Ingest a telemetry event batch
// @Tags ingest
// @Accept json
// @Produce json
// @Param request body model.IngestBatchRequest true "Event batch"
// @Success 200 {object} model.IngestResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Router /ingest [post]
func (h *IngestHandler) Ingest(c *gin.Context) {
	tenant, ok := h.svc.Authenticate(c.GetHeader("x-argus-key"))
	if !ok {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Detail: "invalid ingestion key"})
		return
	}

	var req model.IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Detail: "invalid request body"})
		return
	}

	resp, err := h.svc.Ingest(c.Request.Context(), tenant, req.Events)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeAPIError renders an apierr.Error (or an opaque error) as the
// conventional {detail} body with the taxonomy's HTTP status and, for
// rate-limited/backpressure kinds, a Retry-After header.
func writeAPIError(c *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Detail: "internal error"})
		return
	}
	if apiErr.RetryAfter > 0 {
		c.Header("Retry-After", itoa(apiErr.RetryAfter))
	}
	c.JSON(apierr.HTTPStatus(apiErr.Kind), model.ErrorResponse{
		Detail: apiErr.Message,
		Code:   string(apiErr.Kind),
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
