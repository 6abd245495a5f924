package db

import (
	"context"
	"fmt"

	"github.com/argus-core/backend/internal/model"
	"github.com/pgvector/pgvector-go"
)

func (p *Postgres) EnsureInvestigationSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS investigations (
			id          TEXT PRIMARY KEY,
			alert_id    TEXT NOT NULL DEFAULT '',
			run_id      TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			ended_at    TIMESTAMPTZ,
			summary     TEXT NOT NULL DEFAULT '',
			tokens_used BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS investigations_alert_idx ON investigations(alert_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create investigations table: %w", err)
	}
	return nil
}

const investigationColumns = `id, alert_id, run_id, status, started_at, ended_at, summary, tokens_used`

func scanInvestigation(row interface {
	Scan(dest ...any) error
}) (*model.Investigation, error) {
	var inv model.Investigation
	if err := row.Scan(&inv.ID, &inv.AlertID, &inv.RunID, &inv.Status, &inv.StartedAt, &inv.EndedAt, &inv.Summary, &inv.TokensUsed); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (p *Postgres) InsertInvestigation(ctx context.Context, inv model.Investigation) error {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO investigations (`+investigationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
	`, inv.ID, inv.AlertID, inv.RunID, inv.Status, inv.StartedAt, inv.EndedAt, inv.Summary, inv.TokensUsed)
	return err
}

func (p *Postgres) UpdateInvestigation(ctx context.Context, inv model.Investigation) error {
	_, err := p.Pool.Exec(ctx, `
		UPDATE investigations SET status = $2, ended_at = $3, summary = $4, tokens_used = $5
		WHERE id = $1;
	`, inv.ID, inv.Status, inv.EndedAt, inv.Summary, inv.TokensUsed)
	return err
}

func (p *Postgres) GetInvestigation(ctx context.Context, id string) (*model.Investigation, error) {
	row := p.Pool.QueryRow(ctx, `SELECT `+investigationColumns+` FROM investigations WHERE id = $1;`, id)
	return scanInvestigation(row)
}

func (p *Postgres) ListInvestigations(ctx context.Context, page, pageSize int) ([]model.Investigation, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT `+investigationColumns+` FROM investigations
		ORDER BY started_at DESC LIMIT $1 OFFSET $2;
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Investigation
	for rows.Next() {
		inv, err := scanInvestigation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	if out == nil {
		out = []model.Investigation{}
	}
	return out, nil
}

// NearestSimilar uses pgvector cosine distance over investigation summary embeddings
// to surface prior investigations with a comparable root cause.
func (p *Postgres) NearestSimilar(ctx context.Context, embedding []float32, limit int) ([]model.SimilarIncident, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT investigation_id, summary, embedding <=> $1 AS distance
		FROM investigation_embeddings
		ORDER BY distance ASC
		LIMIT $2;
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar investigations: %w", err)
	}
	defer rows.Close()

	var out []model.SimilarIncident
	for rows.Next() {
		var s model.SimilarIncident
		if err := rows.Scan(&s.InvestigationID, &s.Summary, &s.Distance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) EnsureSimilarityIndex(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS investigation_embeddings (
			investigation_id TEXT PRIMARY KEY,
			summary           TEXT NOT NULL,
			model             TEXT NOT NULL,
			embedding         vector(768) NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (p *Postgres) InsertInvestigationEmbedding(ctx context.Context, investigationID, summary, embeddingModel string, embedding []float32) error {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO investigation_embeddings (investigation_id, summary, model, embedding, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (investigation_id) DO UPDATE SET summary = EXCLUDED.summary, model = EXCLUDED.model, embedding = EXCLUDED.embedding;
	`, investigationID, summary, embeddingModel, pgvector.NewVector(embedding))
	return err
}
