package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
)

// pgRecord is the row shape of the qbot_records table
type pgRecord struct {
	Collection string          `gorm:"type:text;primaryKey"`
	ID         string          `gorm:"type:text;primaryKey"`
	Document   string          `gorm:"type:text;not null"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (pgRecord) TableName() string {
	return "qbot_records"
}

func (r pgRecord) toModel() (model.Record, error) {
	rec := model.Record{ID: r.ID, Document: r.Document}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return model.Record{}, fmt.Errorf("decode metadata %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// PostgresDB is a Postgres database with the pgvector extension.
// Similarity ranking is done by the database with the <=> cosine operator.
type PostgresDB struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn, enables pgvector and migrates the table
func OpenPostgres(ctx context.Context, dsn string) (*PostgresDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required (set store.dsn or QBOT_PG_DSN)")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&pgRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the underlying connection pool
func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Collection returns a handle to the named collection
func (p *PostgresDB) Collection(name string, embedder embed.Embedder) *PostgresCollection {
	return &PostgresCollection{db: p.db, name: name, embedder: embedder}
}

// PostgresCollection is one collection within a PostgresDB
type PostgresCollection struct {
	db       *gorm.DB
	name     string
	embedder embed.Embedder
}

// Name returns the collection name
func (c *PostgresCollection) Name() string {
	return c.name
}

// Query orders rows by cosine distance to the embedded text
func (c *PostgresCollection) Query(ctx context.Context, text string, n int) ([]model.Match, error) {
	q, err := embedQuery(ctx, c.embedder, text)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 10
	}

	type scored struct {
		pgRecord
		Distance float64
	}
	var rows []scored

	err = c.db.WithContext(ctx).
		Model(&pgRecord{}).
		Select("*, embedding <=> ? AS distance", pgvector.NewVector(q)).
		Where("collection = ?", c.name).
		Order("distance").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}

	matches := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toModel()
		if err != nil {
			return nil, err
		}
		// <=> is cosine distance: 1 - similarity
		matches = append(matches, model.Match{Record: rec, Score: 1 - r.Distance})
	}
	return matches, nil
}

// Get returns the stored records for ids in request order
func (c *PostgresCollection) Get(ctx context.Context, ids []string) ([]model.Record, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []model.Record{}, nil
	}

	var rows []pgRecord
	err := c.db.WithContext(ctx).
		Omit("embedding").
		Where("collection = ? AND id IN ?", c.name, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.name, err)
	}

	found := make(map[string]model.Record, len(rows))
	for _, r := range rows {
		rec, err := r.toModel()
		if err != nil {
			return nil, err
		}
		found[rec.ID] = rec
	}
	return inRequestOrder(ids, found), nil
}

// Upsert embeds records and inserts them, updating rows on id conflict
func (c *PostgresCollection) Upsert(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	vectors, err := embedRecords(ctx, c.embedder, records)
	if err != nil {
		return err
	}

	rows := make([]pgRecord, len(records))
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", r.ID, err)
		}
		rows[i] = pgRecord{
			Collection: c.name,
			ID:         r.ID,
			Document:   r.Document,
			Metadata:   datatypes.JSON(meta),
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "metadata", "embedding", "updated_at"}),
		}).
		CreateInBatches(rows, 200).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", c.name, err)
	}
	return nil
}

// Count returns the number of records in the collection
func (c *PostgresCollection) Count(ctx context.Context) (int, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&pgRecord{}).Where("collection = ?", c.name).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return int(n), nil
}

// All returns every record ordered by id
func (c *PostgresCollection) All(ctx context.Context) ([]model.Record, error) {
	var rows []pgRecord
	err := c.db.WithContext(ctx).
		Omit("embedding").
		Where("collection = ?", c.name).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}

	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
