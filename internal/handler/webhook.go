package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/argus-core/backend/internal/apierr"
	"github.com/argus-core/backend/internal/model"
)

// webhookService is the CRUD surface WebhookSettingsHandler binds to.
type webhookService interface {
	ListWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error)
	GetWebhookConfig(ctx context.Context, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, req model.WebhookConfigRequest) (int, error)
	UpdateWebhookConfig(ctx context.Context, id int, req model.WebhookConfigRequest) error
	DeleteWebhookConfig(ctx context.Context, id int) error
}

// WebhookSettingsHandler serves the operator-configured webhook sink CRUD
// surface under /api/v1/settings/webhooks.
type WebhookSettingsHandler struct {
	svc webhookService
}

func NewWebhookSettingsHandler(svc webhookService) *WebhookSettingsHandler {
	return &WebhookSettingsHandler{svc: svc}
}

// ListWebhookConfigs godoc
// @Summary List webhook configs
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.WebhookConfigListResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [get]
func (h *WebhookSettingsHandler) ListWebhookConfigs(c *gin.Context) {
	configs, err := h.svc.ListWebhookConfigs(c.Request.Context())
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to list webhook configs", err))
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigListResponse{Status: "success", Data: configs})
}

// GetWebhookConfig godoc
// @Summary Get a webhook config by ID
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Success 200 {object} model.WebhookConfigResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [get]
func (h *WebhookSettingsHandler) GetWebhookConfig(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "id must be an integer"))
		return
	}
	cfg, err := h.svc.GetWebhookConfig(c.Request.Context(), id)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.NotFound, "webhook config not found", err))
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigResponse{Status: "success", Data: cfg})
}

// CreateWebhookConfig godoc
// @Summary Create a webhook config
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 201 {object} model.WebhookConfigMutationResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [post]
func (h *WebhookSettingsHandler) CreateWebhookConfig(c *gin.Context) {
	var req model.WebhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Validation, "invalid webhook config body", err))
		return
	}
	id, err := h.svc.CreateWebhookConfig(c.Request.Context(), req)
	if err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to create webhook config", err))
		return
	}
	c.JSON(http.StatusCreated, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "webhook config created",
		ID:      id,
	})
}

// UpdateWebhookConfig godoc
// @Summary Update a webhook config
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [put]
func (h *WebhookSettingsHandler) UpdateWebhookConfig(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "id must be an integer"))
		return
	}
	var req model.WebhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Validation, "invalid webhook config body", err))
		return
	}
	if err := h.svc.UpdateWebhookConfig(c.Request.Context(), id, req); err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to update webhook config", err))
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "webhook config updated",
		ID:      id,
	})
}

// DeleteWebhookConfig godoc
// @Summary Delete a webhook config
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [delete]
func (h *WebhookSettingsHandler) DeleteWebhookConfig(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeAPIError(c, apierr.New(apierr.Validation, "id must be an integer"))
		return
	}
	if err := h.svc.DeleteWebhookConfig(c.Request.Context(), id); err != nil {
		writeAPIError(c, apierr.Wrap(apierr.Internal, "failed to delete webhook config", err))
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "webhook config deleted",
		ID:      id,
	})
}
