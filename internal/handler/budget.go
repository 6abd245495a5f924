package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/budget"
)

// BudgetHandler exposes the token budget manager's read-only snapshot.
type BudgetHandler struct {
	mgr *budget.Manager
}

func NewBudgetHandler(mgr *budget.Manager) *BudgetHandler {
	return &BudgetHandler{mgr: mgr}
}

// Get godoc
// @Summary Get current token budget status
// @Tags budget
// @Produce json
// @Success 200 {object} model.BudgetStatus
// @Router /budget [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.mgr.Status(c.Request.Context()))
}
