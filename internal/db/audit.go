package db

import (
	"context"
	"fmt"

	"github.com/argus-core/backend/internal/model"
)

func (p *Postgres) EnsureAuditSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			sequence    BIGSERIAL PRIMARY KEY,
			at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resource    TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			action      TEXT NOT NULL,
			actor       TEXT NOT NULL DEFAULT '',
			detail      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON audit_log(resource, resource_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_log table: %w", err)
	}
	return nil
}

// AppendAudit writes one audit entry and returns it with its assigned sequence number.
// The table's BIGSERIAL primary key is the append-only monotonic sequence the
// catalog's audit surface is keyed on.
func (p *Postgres) AppendAudit(ctx context.Context, e model.AuditEntry) (model.AuditEntry, error) {
	err := p.Pool.QueryRow(ctx, `
		INSERT INTO audit_log (resource, resource_id, action, actor, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sequence, at;
	`, e.Resource, e.ResourceID, e.Action, e.Actor, e.Detail).Scan(&e.Sequence, &e.At)
	return e, err
}

// ListRecentAudit returns the most recent audit entries across every
// resource, for the operator-facing security/activity feed.
func (p *Postgres) ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT sequence, at, resource, resource_id, action, actor, detail
		FROM audit_log
		ORDER BY sequence DESC LIMIT $1;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Sequence, &e.At, &e.Resource, &e.ResourceID, &e.Action, &e.Actor, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if out == nil {
		out = []model.AuditEntry{}
	}
	return out, nil
}

func (p *Postgres) ListAuditForResource(ctx context.Context, resource, resourceID string, limit int) ([]model.AuditEntry, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT sequence, at, resource, resource_id, action, actor, detail
		FROM audit_log
		WHERE resource = $1 AND resource_id = $2
		ORDER BY sequence DESC LIMIT $3;
	`, resource, resourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Sequence, &e.At, &e.Resource, &e.ResourceID, &e.Action, &e.Actor, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if out == nil {
		out = []model.AuditEntry{}
	}
	return out, nil
}
