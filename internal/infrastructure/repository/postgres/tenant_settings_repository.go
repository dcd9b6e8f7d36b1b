package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// TenantSettingsRepository reads per-tenant retrieval overrides. Rows are
// written by the tenant-administration service; this side only reads them on
// the query path.
type TenantSettingsRepository struct {
	db *sql.DB
}

func NewTenantSettingsRepository(db *sql.DB) *TenantSettingsRepository {
	return &TenantSettingsRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *TenantSettingsRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across instance startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tenant_retrieval_settings (
	tenant_id TEXT PRIMARY KEY,
	vector_weight DOUBLE PRECISION,
	lexical_weight DOUBLE PRECISION,
	rerank_weight DOUBLE PRECISION,
	similarity_threshold DOUBLE PRECISION,
	rerank_top_n INTEGER,
	cache_ttl_seconds INTEGER,
	prioritize_recent BOOLEAN,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create tenant settings table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// GetSettings returns (nil, nil) for tenants without an override row.
func (r *TenantSettingsRepository) GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	const query = `
SELECT tenant_id, vector_weight, lexical_weight, rerank_weight,
       similarity_threshold, rerank_top_n, cache_ttl_seconds, prioritize_recent
FROM tenant_retrieval_settings
WHERE tenant_id = $1`

	var (
		settings            domain.TenantSettings
		vectorWeight        sql.NullFloat64
		lexicalWeight       sql.NullFloat64
		rerankWeight        sql.NullFloat64
		similarityThreshold sql.NullFloat64
		rerankTopN          sql.NullInt64
		cacheTTLSeconds     sql.NullInt64
		prioritizeRecent    sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&settings.TenantID,
		&vectorWeight,
		&lexicalWeight,
		&rerankWeight,
		&similarityThreshold,
		&rerankTopN,
		&cacheTTLSeconds,
		&prioritizeRecent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant settings: %w", err)
	}

	if vectorWeight.Valid {
		settings.VectorWeight = &vectorWeight.Float64
	}
	if lexicalWeight.Valid {
		settings.LexicalWeight = &lexicalWeight.Float64
	}
	if rerankWeight.Valid {
		settings.RerankWeight = &rerankWeight.Float64
	}
	if similarityThreshold.Valid {
		settings.SimilarityThreshold = &similarityThreshold.Float64
	}
	if rerankTopN.Valid {
		v := int(rerankTopN.Int64)
		settings.RerankTopN = &v
	}
	if cacheTTLSeconds.Valid {
		v := int(cacheTTLSeconds.Int64)
		settings.CacheTTLSeconds = &v
	}
	if prioritizeRecent.Valid {
		settings.PrioritizeRecent = &prioritizeRecent.Bool
	}
	return &settings, nil
}
