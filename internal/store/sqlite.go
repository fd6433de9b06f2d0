package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  BLOB NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);`

// SQLiteDB is a SQLite database holding any number of collections.
// Vectors are stored as little-endian float32 blobs and ranked in Go.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	path = util.ExpandHome(path)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Collection returns a handle to the named collection
func (s *SQLiteDB) Collection(name string, embedder embed.Embedder) *SQLiteCollection {
	return &SQLiteCollection{db: s.db, name: name, embedder: embedder}
}

// SQLiteCollection is one collection within a SQLiteDB
type SQLiteCollection struct {
	db       *sql.DB
	name     string
	embedder embed.Embedder
}

// Name returns the collection name
func (c *SQLiteCollection) Name() string {
	return c.name
}

// Query scans the collection's vectors and returns the n most similar records
func (c *SQLiteCollection) Query(ctx context.Context, text string, n int) ([]model.Match, error) {
	q, err := embedQuery(ctx, c.embedder, text)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding FROM records WHERE collection = ? ORDER BY rowid`, c.name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []candidate
	for rows.Next() {
		var rec model.Record
		var meta string
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.Document, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		if err := decodeMetadata(meta, &rec); err != nil {
			return nil, err
		}
		vec, err := embed.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode vector %s: %w", rec.ID, err)
		}
		candidates = append(candidates, candidate{record: rec, vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}

	return rankTopN(q, candidates, n)
}

// Get returns the stored records for ids in request order
func (c *SQLiteCollection) Get(ctx context.Context, ids []string) ([]model.Record, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []model.Record{}, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, c.name)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, document, metadata FROM records WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]model.Record, len(ids))
	for rows.Next() {
		var rec model.Record
		var meta string
		if err := rows.Scan(&rec.ID, &rec.Document, &meta); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		if err := decodeMetadata(meta, &rec); err != nil {
			return nil, err
		}
		found[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}

	return inRequestOrder(ids, found), nil
}

// Upsert embeds and writes records in a single transaction
func (c *SQLiteCollection) Upsert(ctx context.Context, records []model.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	vectors, err := embedRecords(ctx, c.embedder, records)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, document, metadata, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, r.ID, r.Document, string(meta), embed.EncodeVector(vectors[i])); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Count returns the number of records in the collection
func (c *SQLiteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, c.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// All returns every record ordered by id
func (c *SQLiteCollection) All(ctx context.Context) ([]model.Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, document, metadata FROM records WHERE collection = ? ORDER BY id`, c.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Record
	for rows.Next() {
		var rec model.Record
		var meta string
		if err := rows.Scan(&rec.ID, &rec.Document, &meta); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		if err := decodeMetadata(meta, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeMetadata(raw string, rec *model.Record) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
		return fmt.Errorf("decode metadata %s: %w", rec.ID, err)
	}
	return nil
}
