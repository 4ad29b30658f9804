package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"study-assistant/internal/config"
	"study-assistant/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	SourceID      string          `bun:"source_id,notnull"`
	DocID         string          `bun:"doc_id,notnull"`
	Content       string          `bun:"content,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	ChunkSize     int             `bun:"chunk_size,notnull"`
	TotalChunks   int             `bun:"total_chunks,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
	Score         float64         `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver: bun's pgdriver or lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch cfg.Driver {
	case config.DriverPG, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case config.DriverPostgres:
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("documents_source_id_idx").
		Column("source_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// DropDocuments drops the documents table with every source in it.
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store keeps every source in the documents table, partitioned by source_id.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Location(sourceID string) string {
	return "documents?source_id=" + sourceID
}

// Replace deletes the rows of the source and inserts docs in one transaction.
func (s *Store) Replace(ctx context.Context, handle models.IndexHandle, docs []models.DocumentRecord, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	rows := toRows(handle.SourceID, docs, vectors)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*Document)(nil)).Where("source_id = ?", handle.SourceID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear source: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Debug().Str("source", handle.SourceID).Int64("rows", n).Msg("Dropped previous index")
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store documents: %w", err)
		}
		return nil
	})
}

// Remove deletes the rows of the source.
func (s *Store) Remove(ctx context.Context, handle models.IndexHandle) error {
	res, err := s.removeQuery(handle.SourceID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Debug().Str("source", handle.SourceID).Int64("rows", n).Msg("Removed index")
	return nil
}

// RemoveAll drops the documents table and recreates it empty.
func (s *Store) RemoveAll(ctx context.Context) error {
	if err := DropDocuments(ctx, s.db); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	return InitDB(ctx, s.db)
}

func (s *Store) removeQuery(sourceID string) *bun.DeleteQuery {
	return s.db.NewDelete().Model((*Document)(nil)).Where("source_id = ?", sourceID)
}

// Search orders the rows of the source by cosine distance. Score is cosine similarity.
func (s *Store) Search(ctx context.Context, handle models.IndexHandle, vector []float32, k int) ([]models.ScoredDocument, error) {
	exists, err := s.db.NewSelect().Model((*Document)(nil)).Where("source_id = ?", handle.SourceID).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: no rows for source %s", models.ErrIndexUnavailable, handle.SourceID)
	}

	var rows []Document
	if err := s.searchQuery(&rows, handle.SourceID, vector, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return fromRows(rows), nil
}

func (s *Store) searchQuery(rows *[]Document, sourceID string, vector []float32, k int) *bun.SelectQuery {
	vec := pgvector.NewVector(vector)
	return s.db.NewSelect().
		Model(rows).
		ColumnExpr("d.*").
		ColumnExpr("1 - (d.embedding <=> ?) AS score", vec).
		Where("d.source_id = ?", sourceID).
		OrderExpr("d.embedding <=> ?", vec).
		OrderExpr("d.chunk_id ASC").
		Limit(k)
}

func toRows(sourceID string, docs []models.DocumentRecord, vectors [][]float32) []Document {
	rows := make([]Document, len(docs))
	for i, doc := range docs {
		rows[i] = Document{
			SourceID:    sourceID,
			DocID:       doc.ID,
			Content:     doc.Content,
			ChunkID:     doc.Metadata.ChunkID,
			ChunkSize:   doc.Metadata.ChunkSize,
			TotalChunks: doc.Metadata.TotalChunks,
			Embedding:   pgvector.NewVector(vectors[i]),
		}
	}
	return rows
}

func fromRows(rows []Document) []models.ScoredDocument {
	scored := make([]models.ScoredDocument, len(rows))
	for i, row := range rows {
		scored[i] = models.ScoredDocument{
			Document: models.DocumentRecord{
				ID:      row.DocID,
				Content: row.Content,
				Metadata: models.DocumentMetadata{
					Source:      row.SourceID,
					ChunkID:     row.ChunkID,
					ChunkSize:   row.ChunkSize,
					TotalChunks: row.TotalChunks,
				},
			},
			Score: row.Score,
		}
	}
	return scored
}
