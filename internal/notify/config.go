package notify

import (
	"context"

	"github.com/argus-core/backend/internal/model"
)

type configRepo interface {
	GetWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error)
	GetWebhookConfigByID(ctx context.Context, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error)
	UpdateWebhookConfig(ctx context.Context, id int, cfg model.WebhookConfig) error
	DeleteWebhookConfig(ctx context.Context, id int) error
}

// ConfigService is the CRUD surface backing the webhook-config admin
// endpoints, kept separate from Notifier's delivery path so the handler
// layer doesn't need a Slack client or HTTP client to manage configs.
type ConfigService struct {
	db configRepo
}

func NewConfigService(db configRepo) *ConfigService {
	return &ConfigService{db: db}
}

func (s *ConfigService) ListWebhookConfigs(ctx context.Context) ([]model.WebhookConfig, error) {
	return s.db.GetWebhookConfigs(ctx)
}

func (s *ConfigService) GetWebhookConfig(ctx context.Context, id int) (*model.WebhookConfig, error) {
	return s.db.GetWebhookConfigByID(ctx, id)
}

func (s *ConfigService) CreateWebhookConfig(ctx context.Context, req model.WebhookConfigRequest) (int, error) {
	cfg := model.WebhookConfig{
		URL:    req.URL,
		Method: req.Method,
		Body:   req.Body,
	}
	if req.Headers != nil {
		cfg.Headers = req.Headers
	} else {
		cfg.Headers = []model.WebhookHeader{}
	}
	return s.db.CreateWebhookConfig(ctx, cfg)
}

func (s *ConfigService) UpdateWebhookConfig(ctx context.Context, id int, req model.WebhookConfigRequest) error {
	cfg := model.WebhookConfig{
		URL:    req.URL,
		Method: req.Method,
		Body:   req.Body,
	}
	if req.Headers != nil {
		cfg.Headers = req.Headers
	} else {
		cfg.Headers = []model.WebhookHeader{}
	}
	return s.db.UpdateWebhookConfig(ctx, id, cfg)
}

func (s *ConfigService) DeleteWebhookConfig(ctx context.Context, id int) error {
	return s.db.DeleteWebhookConfig(ctx, id)
}
