package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/settings"
)

// SettingsHandler exposes the hot-reloadable settings overlay.
type SettingsHandler struct {
	store *settings.Store
}

func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get godoc
// @Summary Get the current settings overlay
// @Tags settings
// @Produce json
// @Success 200 {object} model.SettingsResponse
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, model.SettingsResponse{Settings: h.store.All()})
}

// Put godoc
// @Summary Set a settings overlay key
// @Tags settings
// @Accept json
// @Produce json
// @Param request body model.SettingsResponse true "key/value to merge"
// @Success 200 {object} model.SettingsResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /settings [put]
func (h *SettingsHandler) Put(c *gin.Context) {
	var req model.SettingsResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "invalid request body"))
		return
	}
	for k, v := range req.Settings {
		h.store.Set(k, v)
	}
	c.JSON(http.StatusOK, model.SettingsResponse{Settings: h.store.All()})
}
