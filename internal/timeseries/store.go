// Package timeseries is the append/query interface over the seven telemetry
// tables (system metrics, log index, SDK events, spans, dependency calls, SDK
// metrics, deploy events). It is the sole source of truth tools consult for
// historical data.
package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind names one of the seven logical tables.
type Kind string

const (
	KindSystemMetric  Kind = "system_metric"
	KindLog           Kind = "log"
	KindSDKEvent      Kind = "sdk_event"
	KindSpan          Kind = "span"
	KindDependency    Kind = "dependency"
	KindSDKMetric     Kind = "sdk_metric"
	KindDeployEvent   Kind = "deploy_event"
)

var allKinds = []Kind{KindSystemMetric, KindLog, KindSDKEvent, KindSpan, KindDependency, KindSDKMetric, KindDeployEvent}

const queryDeadline = 5 * time.Second

// Row is a single telemetry record. Fields is kind-specific and stored as JSONB;
// Name/Value/Host are promoted columns used by threshold and aggregate queries.
type Row struct {
	ID        string
	Tenant    string
	Host      string
	Name      string
	Value     float64
	Message   string
	At        time.Time
	ReceiptAt time.Time
	Fields    map[string]any
}

// Filter narrows a query to a tenant, host/name match, and time window.
type Filter struct {
	Tenant string
	Host   string
	Name   string
	From   time.Time
	To     time.Time
	Limit  int
}

// AggregateResult is one time bucket of an aggregate query.
type AggregateResult struct {
	BucketStart time.Time
	GroupKey    string
	Count       int64
	Sum         float64
	Min         float64
	Max         float64
	P50         float64
	P95         float64
	P99         float64
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, kind := range allKinds {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS ts_%s (
				id         TEXT PRIMARY KEY,
				tenant     TEXT NOT NULL DEFAULT '',
				host       TEXT NOT NULL DEFAULT '',
				name       TEXT NOT NULL DEFAULT '',
				value      DOUBLE PRECISION NOT NULL DEFAULT 0,
				message    TEXT NOT NULL DEFAULT '',
				at         TIMESTAMPTZ NOT NULL,
				receipt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				fields     JSONB NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS ts_%s_window_idx ON ts_%s (tenant, name, at DESC);
		`, kind, kind, kind)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create ts_%s: %w", kind, err)
		}
	}
	return nil
}

// Append batch-inserts rows for one kind, atomic per batch.
func (s *Store) Append(ctx context.Context, kind Kind, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	table := "ts_" + string(kind)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range rows {
		fieldsJSON, err := json.Marshal(row.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, tenant, host, name, value, message, at, receipt_at, fields)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO NOTHING;
		`, table), row.ID, row.Tenant, row.Host, row.Name, row.Value, row.Message, row.At, row.ReceiptAt, fieldsJSON); err != nil {
			return fmt.Errorf("failed to append row to %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// Query returns rows for kind within the filter's window, bounded by Limit.
// Truncated is true when more rows existed than Limit allowed.
func (s *Store) Query(ctx context.Context, kind Kind, f Filter) (rows []Row, truncated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, queryDeadline)
	defer cancel()

	table := "ts_" + string(kind)
	limit := f.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	where := "WHERE tenant = $1 AND at >= $2 AND at <= $3"
	args := []any{f.Tenant, f.From, f.To}
	argN := 4
	if f.Host != "" {
		where += fmt.Sprintf(" AND host = $%d", argN)
		args = append(args, f.Host)
		argN++
	}
	if f.Name != "" {
		where += fmt.Sprintf(" AND name = $%d", argN)
		args = append(args, f.Name)
		argN++
	}
	args = append(args, limit+1)

	dbRows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, tenant, host, name, value, message, at, receipt_at, fields
		FROM %s %s ORDER BY at DESC LIMIT $%d;
	`, table, where, argN), args...)
	if err != nil {
		return nil, false, fmt.Errorf("query failed: %w", err)
	}
	defer dbRows.Close()

	for dbRows.Next() {
		var r Row
		var fieldsJSON []byte
		if err := dbRows.Scan(&r.ID, &r.Tenant, &r.Host, &r.Name, &r.Value, &r.Message, &r.At, &r.ReceiptAt, &fieldsJSON); err != nil {
			return nil, false, err
		}
		if err := json.Unmarshal(fieldsJSON, &r.Fields); err != nil {
			return nil, false, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
		rows = append(rows, r)
	}

	if len(rows) > limit {
		rows = rows[:limit]
		truncated = true
	}
	return rows, truncated, nil
}

// Aggregate buckets values by time-bucket and host, computing count/sum/min/max
// and approximate percentiles (via PERCENTILE_CONT) over the window.
func (s *Store) Aggregate(ctx context.Context, kind Kind, f Filter, bucket time.Duration) ([]AggregateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryDeadline)
	defer cancel()

	table := "ts_" + string(kind)
	where := "WHERE tenant = $1 AND at >= $2 AND at <= $3"
	args := []any{f.Tenant, f.From, f.To}
	argN := 4
	if f.Name != "" {
		where += fmt.Sprintf(" AND name = $%d", argN)
		args = append(args, f.Name)
		argN++
	}
	args = append(args, bucket.Seconds())

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT to_timestamp(floor(extract(epoch from at) / $%d) * $%d) AS bucket_start,
		       host,
		       count(*) AS n,
		       coalesce(sum(value), 0),
		       coalesce(min(value), 0),
		       coalesce(max(value), 0),
		       coalesce(percentile_cont(0.5) WITHIN GROUP (ORDER BY value), 0),
		       coalesce(percentile_cont(0.95) WITHIN GROUP (ORDER BY value), 0),
		       coalesce(percentile_cont(0.99) WITHIN GROUP (ORDER BY value), 0)
		FROM %s %s
		GROUP BY bucket_start, host
		ORDER BY bucket_start ASC;
	`, argN, argN, table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate failed: %w", err)
	}
	defer rows.Close()

	var out []AggregateResult
	for rows.Next() {
		var a AggregateResult
		if err := rows.Scan(&a.BucketStart, &a.GroupKey, &a.Count, &a.Sum, &a.Min, &a.Max, &a.P50, &a.P95, &a.P99); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Purge deletes rows older than retention for every kind, returning rows deleted.
func (s *Store) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	var total int64
	for _, kind := range allKinds {
		tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM ts_%s WHERE at < $1;`, kind), cutoff)
		if err != nil {
			return total, fmt.Errorf("purge failed for %s: %w", kind, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
