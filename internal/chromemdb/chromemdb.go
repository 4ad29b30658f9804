package chromemdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"study-assistant/internal/helper"
	"study-assistant/internal/models"
)

// VectorDBManager keeps one chromem database per source, each in its own
// directory under rootDir (or in memory).
type VectorDBManager struct {
	rootDir       string
	inMemory      bool
	compress      bool
	encryptionKey string

	mu  sync.Mutex
	dbs map[string]*chromem.DB
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(rootDir string, inMemory, compress bool, encryptionKey string) (*VectorDBManager, error) {
	if !inMemory {
		if err := helper.CreateFolder(rootDir); err != nil {
			return nil, fmt.Errorf("failed to create store folder: %w", err)
		}
	}
	return &VectorDBManager{
		rootDir:       rootDir,
		inMemory:      inMemory,
		compress:      compress,
		encryptionKey: encryptionKey,
		dbs:           make(map[string]*chromem.DB),
	}, nil
}

// Location derives the persistence directory of a source.
func (m *VectorDBManager) Location(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	return filepath.Join(m.rootDir, models.LocationPrefix+hex.EncodeToString(sum[:8]))
}

// Replace stores docs and their vectors as the whole index of handle. An
// existing index at the same location is dropped first.
func (m *VectorDBManager) Replace(ctx context.Context, handle models.IndexHandle, docs []models.DocumentRecord, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.open(m.location(handle), true)
	if err != nil {
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata.ToMap(),
			Embedding: vectors[i],
		}
	}
	return writeCollection(ctx, db, handle.SourceID, chromemDocs)
}

// writeCollection drops the collection of db, if any, and fills a new one with docs.
func writeCollection(ctx context.Context, db *chromem.DB, sourceID string, docs []chromem.Document) error {
	if db.GetCollection(models.DefaultCollection, nil) != nil {
		log.Debug().Str("source", sourceID).Msg("Dropping previous index")
		if err := db.DeleteCollection(models.DefaultCollection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	c, err := db.GetOrCreateCollection(models.DefaultCollection, map[string]string{models.MetaSource: sourceID}, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns the k documents of handle most similar to vector.
func (m *VectorDBManager) Search(ctx context.Context, handle models.IndexHandle, vector []float32, k int) ([]models.ScoredDocument, error) {
	m.mu.Lock()
	db, err := m.open(m.location(handle), false)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c := db.GetCollection(models.DefaultCollection, nil)
	if c == nil {
		return nil, fmt.Errorf("%w: no collection for source %s", models.ErrIndexUnavailable, handle.SourceID)
	}

	// chromem rejects nResults above the collection size
	n := min(k, c.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	scored := make([]models.ScoredDocument, len(results))
	for i, r := range results {
		scored[i] = models.ScoredDocument{
			Document: models.DocumentRecord{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: models.MetadataFromMap(r.Metadata),
			},
			Score: float64(r.Similarity),
		}
	}
	return scored, nil
}

// Exists reports whether an index has been built for handle.
func (m *VectorDBManager) Exists(handle models.IndexHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.open(m.location(handle), false)
	if err != nil {
		return false
	}
	return db.GetCollection(models.DefaultCollection, nil) != nil
}

// Remove deletes the index of handle. Removing an index that was never built is a no-op.
func (m *VectorDBManager) Remove(ctx context.Context, handle models.IndexHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	location := m.location(handle)
	delete(m.dbs, location)
	if m.inMemory {
		return nil
	}
	if err := os.RemoveAll(location); err != nil {
		return fmt.Errorf("failed to remove %s: %w", location, err)
	}
	log.Debug().Str("location", location).Str("source", handle.SourceID).Msg("Removed index")
	return nil
}

// RemoveAll deletes every index under the root directory.
func (m *VectorDBManager) RemoveAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dbs = make(map[string]*chromem.DB)
	if m.inMemory {
		return nil
	}
	locations, err := filepath.Glob(filepath.Join(m.rootDir, models.LocationPrefix+"*"))
	if err != nil {
		return err
	}
	for _, location := range locations {
		if err := os.RemoveAll(location); err != nil {
			return fmt.Errorf("failed to remove %s: %w", location, err)
		}
	}
	log.Debug().Str("root", m.rootDir).Int("indexes", len(locations)).Msg("Removed all indexes")
	return nil
}

// Export writes the index of handle to an encrypted file
func (m *VectorDBManager) Export(ctx context.Context, handle models.IndexHandle, filePath string) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.open(m.location(handle), false)
	if err != nil {
		return err
	}

	log.Debug().Str("file", filePath).Bool("compress", m.compress).Str("source", handle.SourceID).Msg("Exporting index")
	if err := db.ExportToFile(filePath, m.compress, m.encryptionKey, models.DefaultCollection); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads an exported index into the location of handle, replacing what is there.
// Documents are read back by their ordinal ids doc_0..doc_n-1.
func (m *VectorDBManager) Import(ctx context.Context, handle models.IndexHandle, filePath string) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	src := chromem.NewDB()
	if err := src.ImportFromFile(filePath, m.encryptionKey, models.DefaultCollection); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := src.GetCollection(models.DefaultCollection, nil)
	if c == nil {
		return fmt.Errorf("%w: %s has no %s collection", models.ErrUnreadableSource, filePath, models.DefaultCollection)
	}

	docs := make([]chromem.Document, 0, c.Count())
	for i := 0; i < c.Count(); i++ {
		doc, err := c.GetByID(ctx, models.DocID(i))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", models.DocID(i), err)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]string{}
		}
		doc.Metadata[models.MetaSource] = handle.SourceID
		docs = append(docs, doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.open(m.location(handle), true)
	if err != nil {
		return err
	}
	log.Debug().Str("file", filePath).Int("documents", len(docs)).Str("source", handle.SourceID).Msg("Importing index")
	return writeCollection(ctx, db, handle.SourceID, docs)
}

func (m *VectorDBManager) location(handle models.IndexHandle) string {
	if handle.Location != "" {
		return handle.Location
	}
	return m.Location(handle.SourceID)
}

// open returns the database at location. Without create, a location that was
// never written yields ErrIndexUnavailable. Callers hold m.mu.
func (m *VectorDBManager) open(location string, create bool) (*chromem.DB, error) {
	if db, ok := m.dbs[location]; ok {
		return db, nil
	}

	if m.inMemory {
		if !create {
			return nil, fmt.Errorf("%w: %s", models.ErrIndexUnavailable, location)
		}
		db := chromem.NewDB()
		m.dbs[location] = db
		return db, nil
	}

	if !create {
		if _, err := os.Stat(location); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrIndexUnavailable, location)
		}
	}

	db, err := chromem.NewPersistentDB(location, m.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	m.dbs[location] = db
	return db, nil
}
