// Package artifact owns the lifecycle of generated receipt documents: a
// small sqlite index of {key -> file pair} plus the list/delete/reconcile
// operations over the artifact directory.
package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	key          TEXT PRIMARY KEY,
	payer_id     TEXT NOT NULL,
	primary_path TEXT NOT NULL DEFAULT '',
	durable_path TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_payer_idx ON artifacts (payer_id);
`

// Record is one indexed artifact pair.
type Record struct {
	Key         string
	PayerID     string
	PrimaryPath string
	DurablePath string
	CreatedAt   time.Time
}

// Index is the persistent artifact index. It is the authoritative list for
// lifecycle operations; the files themselves remain the source of truth
// and Reconcile re-derives rows from the directory.
type Index struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open artifact index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init artifact index: %w", err)
	}
	logger.Debug("artifact.index_opened", zap.String("path", path))
	return &Index{db: db, logger: logger}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert inserts or refreshes the row for a key. The original creation
// time survives a refresh so listing order stays stable.
func (ix *Index) Upsert(ctx context.Context, rec Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO artifacts (key, payer_id, primary_path, durable_path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payer_id     = excluded.payer_id,
			primary_path = excluded.primary_path,
			durable_path = excluded.durable_path`,
		rec.Key, rec.PayerID, rec.PrimaryPath, rec.DurablePath, created.Unix())
	if err != nil {
		return fmt.Errorf("index upsert %s: %w", rec.Key, err)
	}
	return nil
}

// ListByPayer returns the payer's artifacts in stable creation order.
func (ix *Index) ListByPayer(ctx context.Context, payerID string) ([]Record, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT key, payer_id, primary_path, durable_path, created_at
		FROM artifacts WHERE payer_id = ?
		ORDER BY created_at, key`, payerID)
	if err != nil {
		return nil, fmt.Errorf("index list for %s: %w", payerID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// All returns every indexed artifact.
func (ix *Index) All(ctx context.Context) ([]Record, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT key, payer_id, primary_path, durable_path, created_at
		FROM artifacts ORDER BY created_at, key`)
	if err != nil {
		return nil, fmt.Errorf("index list all: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes the row for a key. Deleting an absent key is not an error.
func (ix *Index) Delete(ctx context.Context, key string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM artifacts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("index delete %s: %w", key, err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var (
			rec     Record
			created int64
		)
		if err := rows.Scan(&rec.Key, &rec.PayerID, &rec.PrimaryPath, &rec.DurablePath, &created); err != nil {
			return nil, fmt.Errorf("index scan: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
