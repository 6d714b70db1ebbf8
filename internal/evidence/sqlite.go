package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Index is the local SQLite catalog of sealed bundles.
type Index struct {
	db *sql.DB
}

// OpenIndex opens the bundle index at path, creating the schema on first
// use.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open evidence index: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate evidence index: %w", err)
	}
	return idx, nil
}

func (i *Index) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS bundles (
		bundle_id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		asset TEXT,
		as_of TEXT NOT NULL,
		watermark TEXT NOT NULL,
		conflicts_count INTEGER NOT NULL DEFAULT 0,
		hash TEXT NOT NULL,
		freshness_sla_met INTEGER NOT NULL DEFAULT 1,
		items JSON
	);
	CREATE INDEX IF NOT EXISTS idx_bundles_asset ON bundles(asset, as_of);`
	_, err := i.db.ExecContext(context.Background(), query)
	return err
}

// Insert catalogs one sealed bundle.
func (i *Index) Insert(ctx context.Context, b *Bundle) error {
	items, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = i.db.ExecContext(ctx, `INSERT INTO bundles
		(bundle_id, tool, asset, as_of, watermark, conflicts_count, hash, freshness_sla_met, items)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BundleID, b.Tool, b.Asset, b.AsOf, b.Watermark, b.ConflictsCount,
		b.Hash, boolInt(b.FreshnessSLAMet), string(items))
	if err != nil {
		return fmt.Errorf("insert bundle %s: %w", b.BundleID, err)
	}
	return nil
}

// Recent returns up to limit bundles, newest first.
func (i *Index) Recent(ctx context.Context, limit int) ([]*Bundle, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT
		bundle_id, tool, asset, as_of, watermark, conflicts_count, hash, freshness_sla_met, items
		FROM bundles ORDER BY as_of DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Bundle
	for rows.Next() {
		var b Bundle
		var sla int
		var items string
		if err := rows.Scan(&b.BundleID, &b.Tool, &b.Asset, &b.AsOf, &b.Watermark,
			&b.ConflictsCount, &b.Hash, &sla, &items); err != nil {
			return nil, err
		}
		b.FreshnessSLAMet = sla != 0
		if err := json.Unmarshal([]byte(items), &b.Items); err != nil {
			return nil, fmt.Errorf("decode items of %s: %w", b.BundleID, err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
