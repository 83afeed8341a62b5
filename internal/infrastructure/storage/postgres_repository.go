package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
    url               TEXT PRIMARY KEY,
    title             TEXT NOT NULL,
    category          TEXT NOT NULL,
    source_domain     TEXT NOT NULL DEFAULT '',
    validation_status TEXT NOT NULL,
    credibility_score INT NOT NULL,
    payload           JSONB NOT NULL,
    user_feedback     TEXT NOT NULL DEFAULT '',
    fetched_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS items_fetched_at_idx ON items (fetched_at DESC);

CREATE TABLE IF NOT EXISTS digests (
    run_id     TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    body       TEXT NOT NULL,
    items      JSONB NOT NULL,
    stats      JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    sent_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS digests_status_created_idx ON digests (status, created_at DESC);

CREATE TABLE IF NOT EXISTS agent_runs (
    run_id     TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    origin     TEXT NOT NULL DEFAULT '',
    stats      JSONB NOT NULL DEFAULT '{}',
    errors     TEXT[] NOT NULL DEFAULT '{}',
    started_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists items, digests and runs into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.Store = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SeenSince returns the urls already stored with fetched_at >= since.
func (r *PostgresRepository) SeenSince(ctx context.Context, urls []string, since time.Time) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := seenSinceQuery(urls, since).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// SaveValidated upserts validated items by url. Existing feedback is kept.
func (r *PostgresRepository) SaveValidated(ctx context.Context, items []domain.ValidatedItem, fetchedAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	builder, rows, err := upsertItemsQuery(items, fetchedAt)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert items: %w", err)
	}
	return nil
}

// SetFeedback stores feedback for one item.
func (r *PostgresRepository) SetFeedback(ctx context.Context, url, feedback string) error {
	query, args, err := psql.Update("items").
		Set("user_feedback", feedback).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build feedback update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// RecentItems returns the newest items, optionally for one category.
func (r *PostgresRepository) RecentItems(ctx context.Context, limit int, category domain.Category) ([]domain.ValidatedItem, error) {
	query, args, err := recentItemsQuery(limit, category).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []domain.ValidatedItem
	for rows.Next() {
		var (
			payload  []byte
			feedback string
			item     domain.ValidatedItem
		)
		if err := rows.Scan(&payload, &feedback); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		item.UserFeedback = feedback
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// CountItems returns the number of stored items.
func (r *PostgresRepository) CountItems(ctx context.Context) (int, error) {
	return r.count(ctx, "items")
}

// CreateDigest inserts a digest.
func (r *PostgresRepository) CreateDigest(ctx context.Context, d domain.Digest) error {
	items, err := json.Marshal(d.Items)
	if err != nil {
		return fmt.Errorf("encode digest items: %w", err)
	}
	stats, err := json.Marshal(d.Stats)
	if err != nil {
		return fmt.Errorf("encode digest stats: %w", err)
	}

	query, args, err := psql.Insert("digests").
		Columns("run_id", "status", "body", "items", "stats", "created_at", "updated_at", "sent_at").
		Values(d.RunID, string(d.Status), d.Body, string(items), string(stats), d.CreatedAt, d.UpdatedAt, d.SentAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build digest insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}
	return nil
}

// LatestDigest returns the newest digest in one of statuses (any when empty).
func (r *PostgresRepository) LatestDigest(ctx context.Context, statuses ...domain.DigestStatus) (domain.Digest, error) {
	query, args, err := digestsQuery(1, statuses).ToSql()
	if err != nil {
		return domain.Digest{}, fmt.Errorf("build digest query: %w", err)
	}

	d, err := scanDigest(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Digest{}, ports.ErrNotFound
	}
	return d, err
}

// TransitionDigest updates the status only while the digest is still in from.
func (r *PostgresRepository) TransitionDigest(ctx context.Context, runID string, from, to domain.DigestStatus, at time.Time) (bool, error) {
	query, args, err := transitionQuery(runID, from, to, at).ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition digest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RejectPending marks every pending digest rejected.
func (r *PostgresRepository) RejectPending(ctx context.Context, at time.Time) (int, error) {
	query, args, err := psql.Update("digests").
		Set("status", string(domain.DigestRejected)).
		Set("updated_at", at).
		Where(sq.Eq{"status": string(domain.DigestPending)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reject: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reject pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ListDigests returns the newest digests first.
func (r *PostgresRepository) ListDigests(ctx context.Context, limit int) ([]domain.Digest, error) {
	query, args, err := digestsQuery(limit, nil).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digests query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	var out []domain.Digest
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// StartRun inserts a running record.
func (r *PostgresRepository) StartRun(ctx context.Context, run domain.RunRecord) error {
	return r.upsertRun(ctx, run)
}

// FinishRun overwrites the run with its final state. Last writer wins.
func (r *PostgresRepository) FinishRun(ctx context.Context, run domain.RunRecord) error {
	return r.upsertRun(ctx, run)
}

func (r *PostgresRepository) upsertRun(ctx context.Context, run domain.RunRecord) error {
	builder, err := upsertRunQuery(run)
	if err != nil {
		return err
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build run upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun loads one run.
func (r *PostgresRepository) GetRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	query, args, err := runsQuery(1).Where(sq.Eq{"run_id": runID}).ToSql()
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("build run query: %w", err)
	}
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, ports.ErrNotFound
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (r *PostgresRepository) LatestRun(ctx context.Context) (domain.RunRecord, error) {
	query, args, err := runsQuery(1).ToSql()
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("build run query: %w", err)
	}
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, ports.ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first.
func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	query, args, err := runsQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// CountRuns returns the number of recorded runs.
func (r *PostgresRepository) CountRuns(ctx context.Context) (int, error) {
	return r.count(ctx, "agent_runs")
}

func (r *PostgresRepository) count(ctx context.Context, table string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func seenSinceQuery(urls []string, since time.Time) sq.SelectBuilder {
	return psql.Select("url").
		From("items").
		Where(sq.Expr("url = ANY(?)", pq.Array(urls))).
		Where(sq.GtOrEq{"fetched_at": since})
}

func upsertItemsQuery(items []domain.ValidatedItem, fetchedAt time.Time) (sq.InsertBuilder, int, error) {
	builder := psql.Insert("items").
		Columns("url", "title", "category", "source_domain", "validation_status", "credibility_score", "payload", "fetched_at")

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.URL == "" || seen[item.URL] {
			continue
		}
		seen[item.URL] = true

		payload, err := json.Marshal(item)
		if err != nil {
			return builder, 0, fmt.Errorf("encode item %s: %w", item.URL, err)
		}
		builder = builder.Values(item.URL, item.Title, string(item.Category), item.SourceDomain,
			string(item.Status), item.CredibilityScore, string(payload), fetchedAt)
	}

	return builder.Suffix(`ON CONFLICT (url) DO UPDATE SET
        title = EXCLUDED.title,
        category = EXCLUDED.category,
        source_domain = EXCLUDED.source_domain,
        validation_status = EXCLUDED.validation_status,
        credibility_score = EXCLUDED.credibility_score,
        payload = EXCLUDED.payload,
        fetched_at = EXCLUDED.fetched_at`), len(seen), nil
}

func recentItemsQuery(limit int, category domain.Category) sq.SelectBuilder {
	builder := psql.Select("payload", "user_feedback").
		From("items").
		OrderBy("fetched_at DESC", "url")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": string(category)})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return builder
}

func digestsQuery(limit int, statuses []domain.DigestStatus) sq.SelectBuilder {
	builder := psql.Select("run_id", "status", "body", "items", "stats", "created_at", "updated_at", "sent_at").
		From("digests").
		OrderBy("created_at DESC")
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = string(s)
		}
		builder = builder.Where(sq.Eq{"status": values})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return builder
}

func transitionQuery(runID string, from, to domain.DigestStatus, at time.Time) sq.UpdateBuilder {
	builder := psql.Update("digests").
		Set("status", string(to)).
		Set("updated_at", at)
	if to == domain.DigestSent {
		builder = builder.Set("sent_at", at)
	}
	return builder.Where(sq.Eq{"run_id": runID, "status": string(from)})
}

func upsertRunQuery(run domain.RunRecord) (sq.InsertBuilder, error) {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encode run stats: %w", err)
	}
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}

	return psql.Insert("agent_runs").
		Columns("run_id", "status", "origin", "stats", "errors", "started_at", "updated_at").
		Values(run.RunID, string(run.Status), run.Origin, string(stats), pq.Array(errs), run.StartedAt, run.UpdatedAt).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET
        status = EXCLUDED.status,
        stats = EXCLUDED.stats,
        errors = EXCLUDED.errors,
        updated_at = EXCLUDED.updated_at`), nil
}

func runsQuery(limit int) sq.SelectBuilder {
	builder := psql.Select("run_id", "status", "origin", "stats", "errors", "started_at", "updated_at").
		From("agent_runs").
		OrderBy("started_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return builder
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDigest(row rowScanner) (domain.Digest, error) {
	var (
		d      domain.Digest
		status string
		items  []byte
		stats  []byte
		sentAt sql.NullTime
	)
	if err := row.Scan(&d.RunID, &status, &d.Body, &items, &stats, &d.CreatedAt, &d.UpdatedAt, &sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scan digest: %w", err)
	}
	d.Status = domain.DigestStatus(status)
	if err := json.Unmarshal(items, &d.Items); err != nil {
		return d, fmt.Errorf("decode digest items: %w", err)
	}
	if err := json.Unmarshal(stats, &d.Stats); err != nil {
		return d, fmt.Errorf("decode digest stats: %w", err)
	}
	if sentAt.Valid {
		t := sentAt.Time
		d.SentAt = &t
	}
	return d, nil
}

func scanRun(row rowScanner) (domain.RunRecord, error) {
	var (
		run    domain.RunRecord
		status string
		stats  []byte
		errs   pq.StringArray
	)
	if err := row.Scan(&run.RunID, &status, &run.Origin, &stats, &errs, &run.StartedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	run.Errors = []string(errs)
	if err := json.Unmarshal(stats, &run.Stats); err != nil {
		return run, fmt.Errorf("decode run stats: %w", err)
	}
	return run, nil
}
