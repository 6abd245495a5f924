package db

import (
	"context"
	"fmt"
	"time"

	"github.com/argus-core/backend/internal/model"
)

func (p *Postgres) EnsureAlertSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id                TEXT PRIMARY KEY,
			rule_id           TEXT NOT NULL,
			dedup_key         TEXT NOT NULL,
			severity          TEXT NOT NULL,
			title             TEXT NOT NULL,
			summary           TEXT NOT NULL DEFAULT '',
			source            TEXT NOT NULL DEFAULT '',
			fired_at          TIMESTAMPTZ NOT NULL,
			status            TEXT NOT NULL,
			resolved_at       TIMESTAMPTZ,
			acknowledged_at   TIMESTAMPTZ,
			acknowledged_by   TEXT NOT NULL DEFAULT '',
			resolved_by       TEXT NOT NULL DEFAULT '',
			investigation_id  TEXT NOT NULL DEFAULT '',
			flapping          BOOLEAN NOT NULL DEFAULT FALSE,
			thread_ts         TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS alerts_rule_dedup_idx ON alerts(rule_id, dedup_key, fired_at DESC);
		CREATE INDEX IF NOT EXISTS alerts_status_idx ON alerts(status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}
	return nil
}

func scanAlert(row interface {
	Scan(dest ...any) error
}) (*model.Alert, error) {
	var a model.Alert
	if err := row.Scan(
		&a.ID, &a.RuleID, &a.DedupKey, &a.Severity, &a.Title, &a.Summary, &a.Source,
		&a.FiredAt, &a.Status, &a.ResolvedAt, &a.AcknowledgedAt, &a.AcknowledgedBy,
		&a.ResolvedBy, &a.InvestigationID, &a.Flapping, &a.ThreadTS,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

const alertColumns = `id, rule_id, dedup_key, severity, title, summary, source, fired_at, status,
	resolved_at, acknowledged_at, acknowledged_by, resolved_by, investigation_id, flapping, thread_ts`

// ActiveAlertForDedupKey returns the most recent non-resolved alert for (ruleID, dedupKey), if any.
func (p *Postgres) ActiveAlertForDedupKey(ctx context.Context, ruleID, dedupKey string) (*model.Alert, error) {
	row := p.Pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE rule_id = $1 AND dedup_key = $2 AND status != 'resolved'
		ORDER BY fired_at DESC LIMIT 1;
	`, ruleID, dedupKey)
	a, err := scanAlert(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (p *Postgres) InsertAlert(ctx context.Context, a model.Alert) error {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);
	`, a.ID, a.RuleID, a.DedupKey, a.Severity, a.Title, a.Summary, a.Source, a.FiredAt, a.Status,
		a.ResolvedAt, a.AcknowledgedAt, a.AcknowledgedBy, a.ResolvedBy, a.InvestigationID, a.Flapping, a.ThreadTS)
	return err
}

func (p *Postgres) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	row := p.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1;`, id)
	return scanAlert(row)
}

func (p *Postgres) ListAlerts(ctx context.Context, status, severity string, page, pageSize int) ([]model.Alert, int, error) {
	where := "WHERE TRUE"
	args := []any{}
	argN := 1
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, status)
		argN++
	}
	if severity != "" {
		where += fmt.Sprintf(" AND severity = $%d", argN)
		args = append(args, severity)
		argN++
	}

	var total int
	if err := p.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := p.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM alerts %s ORDER BY fired_at DESC LIMIT $%d OFFSET $%d;
	`, alertColumns, where, argN, argN+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	if out == nil {
		out = []model.Alert{}
	}
	return out, total, nil
}

func (p *Postgres) AcknowledgeAlert(ctx context.Context, id, operatorID string, at time.Time) error {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE alerts SET status = 'acknowledged', acknowledged_at = $2, acknowledged_by = $3
		WHERE id = $1 AND status = 'active';
	`, id, at, operatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert not acknowledgeable: %s", id)
	}
	return nil
}

func (p *Postgres) ResolveAlert(ctx context.Context, id, operatorID string, at time.Time) error {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2, resolved_by = $3
		WHERE id = $1 AND status IN ('active', 'acknowledged');
	`, id, at, operatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert not resolvable: %s", id)
	}
	return nil
}

func (p *Postgres) SetAlertInvestigation(ctx context.Context, id, investigationID string) error {
	_, err := p.Pool.Exec(ctx, `UPDATE alerts SET investigation_id = $2 WHERE id = $1;`, id, investigationID)
	return err
}

func (p *Postgres) SetAlertThreadTS(ctx context.Context, id, threadTS string) error {
	_, err := p.Pool.Exec(ctx, `UPDATE alerts SET thread_ts = $2 WHERE id = $1;`, id, threadTS)
	return err
}

func (p *Postgres) SetAlertFlapping(ctx context.Context, id string, flapping bool) error {
	_, err := p.Pool.Exec(ctx, `UPDATE alerts SET flapping = $2 WHERE id = $1;`, id, flapping)
	return err
}
