package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func (p *Postgres) EnsureRuleSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alert_rules (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			kinds              JSONB NOT NULL DEFAULT '[]',
			min_severity       TEXT NOT NULL,
			max_severity       TEXT NOT NULL,
			cooldown_seconds   INTEGER NOT NULL DEFAULT 300,
			auto_investigate   BOOLEAN NOT NULL DEFAULT FALSE,
			mute_until         TIMESTAMPTZ,
			channel_selector   JSONB NOT NULL DEFAULT '[]',
			flap_suppression   BOOLEAN NOT NULL DEFAULT FALSE,
			flap_window_seconds INTEGER NOT NULL DEFAULT 0,
			flap_threshold     INTEGER NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create alert_rules table: %w", err)
	}
	return nil
}

func scanRule(row interface {
	Scan(dest ...any) error
}) (*model.AlertRule, error) {
	var r model.AlertRule
	var kindsJSON, channelsJSON []byte
	var cooldownSeconds, flapWindowSeconds int
	if err := row.Scan(
		&r.ID, &r.Name, &kindsJSON, &r.MinSeverity, &r.MaxSeverity,
		&cooldownSeconds, &r.AutoInvestigate, &r.MuteUntil, &channelsJSON,
		&r.FlapSuppression, &flapWindowSeconds, &r.FlapThreshold,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(kindsJSON, &r.Kinds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule kinds: %w", err)
	}
	if err := json.Unmarshal(channelsJSON, &r.ChannelSelector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule channel selector: %w", err)
	}
	r.Cooldown = time.Duration(cooldownSeconds) * time.Second
	r.FlapWindow = time.Duration(flapWindowSeconds) * time.Second
	return &r, nil
}

func (p *Postgres) ListRules(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT id, name, kinds, min_severity, max_severity, cooldown_seconds,
		       auto_investigate, mute_until, channel_selector, flap_suppression,
		       flap_window_seconds, flap_threshold, created_at, updated_at
		FROM alert_rules ORDER BY name;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if out == nil {
		out = []model.AlertRule{}
	}
	return out, nil
}

func (p *Postgres) GetRule(ctx context.Context, id string) (*model.AlertRule, error) {
	row := p.Pool.QueryRow(ctx, `
		SELECT id, name, kinds, min_severity, max_severity, cooldown_seconds,
		       auto_investigate, mute_until, channel_selector, flap_suppression,
		       flap_window_seconds, flap_threshold, created_at, updated_at
		FROM alert_rules WHERE id = $1;
	`, id)
	return scanRule(row)
}

func (p *Postgres) UpsertRule(ctx context.Context, r model.AlertRule) error {
	kindsJSON, err := json.Marshal(r.Kinds)
	if err != nil {
		return fmt.Errorf("failed to marshal rule kinds: %w", err)
	}
	channelsJSON, err := json.Marshal(r.ChannelSelector)
	if err != nil {
		return fmt.Errorf("failed to marshal rule channel selector: %w", err)
	}
	_, err = p.Pool.Exec(ctx, `
		INSERT INTO alert_rules (
			id, name, kinds, min_severity, max_severity, cooldown_seconds,
			auto_investigate, mute_until, channel_selector, flap_suppression,
			flap_window_seconds, flap_threshold, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, kinds = EXCLUDED.kinds,
			min_severity = EXCLUDED.min_severity, max_severity = EXCLUDED.max_severity,
			cooldown_seconds = EXCLUDED.cooldown_seconds, auto_investigate = EXCLUDED.auto_investigate,
			mute_until = EXCLUDED.mute_until, channel_selector = EXCLUDED.channel_selector,
			flap_suppression = EXCLUDED.flap_suppression, flap_window_seconds = EXCLUDED.flap_window_seconds,
			flap_threshold = EXCLUDED.flap_threshold, updated_at = NOW();
	`, r.ID, r.Name, kindsJSON, r.MinSeverity, r.MaxSeverity, int(r.Cooldown.Seconds()),
		r.AutoInvestigate, r.MuteUntil, channelsJSON, r.FlapSuppression,
		int(r.FlapWindow.Seconds()), r.FlapThreshold)
	return err
}

func (p *Postgres) MuteRule(ctx context.Context, id string, until time.Time) error {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE alert_rules
		SET mute_until = CASE
			WHEN mute_until IS NOT NULL AND mute_until > NOW() THEN GREATEST(mute_until, $2)
			ELSE $2
		END,
		updated_at = NOW()
		WHERE id = $1;
	`, id, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}

func (p *Postgres) UnmuteRule(ctx context.Context, id string) error {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE alert_rules SET mute_until = NULL, updated_at = NOW() WHERE id = $1;
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}
