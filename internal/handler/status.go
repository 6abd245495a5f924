package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/budget"
	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/model"
)

// statusTopics is the fixed set of topics worth reporting subscriber counts
// for; internal-only topics (react.delta) are omitted as operator noise.
var statusTopics = []bus.Topic{
	bus.TopicTelemetryRaw,
	bus.TopicEventsClassified,
	bus.TopicAlertsFired,
	bus.TopicAlertsState,
	bus.TopicBudgetUpdate,
}

// StatusHandler reports the core's own health: how long it's been up, how
// many alerts are currently active, and the budget/bus state downstream of
// that. It never probes any system the tools investigate.
type StatusHandler struct {
	store     *db.Postgres
	budgetMgr *budget.Manager
	publisher *bus.Bus
	startedAt time.Time
}

func NewStatusHandler(store *db.Postgres, budgetMgr *budget.Manager, publisher *bus.Bus, startedAt time.Time) *StatusHandler {
	return &StatusHandler{store: store, budgetMgr: budgetMgr, publisher: publisher, startedAt: startedAt}
}

// Get godoc
// @Summary Core health snapshot
// @Tags status
// @Produce json
// @Success 200 {object} model.SystemStatusResponse
// @Router /status [get]
func (h *StatusHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	_, activeCount, err := h.store.ListAlerts(ctx, string(model.AlertActive), "", 1, 1)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to count active alerts", err))
		return
	}

	subs := make(map[string]int, len(statusTopics))
	for _, t := range statusTopics {
		subs[string(t)] = h.publisher.SubscriberCount(t)
	}

	c.JSON(http.StatusOK, model.SystemStatusResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		ActiveAlerts:   activeCount,
		Budget:         h.budgetMgr.Status(ctx),
		BusSubscribers: subs,
	})
}
