package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"study-assistant/internal/catalog"
	"study-assistant/internal/chromemdb"
	"study-assistant/internal/config"
	"study-assistant/internal/db"
	"study-assistant/internal/embedding"
	"study-assistant/internal/helper"
	"study-assistant/internal/llmservice"
	"study-assistant/internal/models"
	"study-assistant/internal/rag"
)

// newModels builds the embedding and chat collaborators.
var newModels = func(cfg *config.Config) (embedding.Embedder, llmservice.ChatModel, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	model, err := llmservice.NewChatModel(&cfg.ChatLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return embedder, model, nil
}

// indexStore is a vector store that can also drop indexes.
type indexStore interface {
	rag.VectorStore
	Remove(ctx context.Context, handle models.IndexHandle) error
	RemoveAll(ctx context.Context) error
}

type app struct {
	cfg     *config.Config
	rag     *rag.RAG
	store   indexStore
	vectors *chromemdb.VectorDBManager
	catalog *catalog.Catalog
	closers []func() error
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	cfg := a.cfg
	var err error

	var store indexStore
	switch cfg.RAG.Store {
	case config.StoreChromem:
		a.vectors, err = chromemdb.NewVectorDBManager(cfg.RAG.StoreDir, cfg.RAG.InMemory, cfg.RAG.Compress, cfg.RAG.EncryptionKey)
		if err != nil {
			return err
		}
		store = a.vectors
	case config.StorePGVector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, bunDB.Close)
		if err := db.InitDB(ctx, bunDB); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		store = db.NewStore(bunDB)
	default:
		return fmt.Errorf("unknown store: %s", cfg.RAG.Store)
	}

	if err := helper.CreateFolder(filepath.Dir(cfg.RAG.CatalogPath)); err != nil {
		return err
	}
	a.catalog, err = catalog.Open(cfg.RAG.CatalogPath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.catalog.Close)

	embedder, model, err := newModels(cfg)
	if err != nil {
		return err
	}

	a.rag = rag.NewRAG(store, embedder, model,
		rag.WithTopK(cfg.RAG.TopK),
		rag.WithScores(cfg.RAG.IncludeScores),
		rag.WithPromptTemplate(cfg.RAG.PromptTemplate),
		rag.WithMaxChunkChars(cfg.RAG.MaxChunkChars, cfg.RAG.ChunkOverlap),
	)
	a.store = store
	return nil
}

// ingestion looks up a source previously indexed or imported.
func (a *app) ingestion(sourceID string) (*catalog.Ingestion, error) {
	ing, err := a.catalog.Get(sourceID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", models.ErrIndexUnavailable, err)
	}
	return ing, err
}

func (a *app) chromem() (*chromemdb.VectorDBManager, error) {
	if a.vectors == nil {
		return nil, fmt.Errorf("export and import need the %s store, configured store is %s", config.StoreChromem, a.cfg.RAG.Store)
	}
	return a.vectors, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
