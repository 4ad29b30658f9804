package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"study-assistant/internal/embedding"
	"study-assistant/internal/llmservice"
	"study-assistant/internal/models"
	"study-assistant/internal/parser"
)

// VectorStore is the storage and similarity search collaborator. Replace
// overwrites whatever index already exists for the handle.
type VectorStore interface {
	Location(sourceID string) string
	Replace(ctx context.Context, handle models.IndexHandle, docs []models.DocumentRecord, vectors [][]float32) error
	Search(ctx context.Context, handle models.IndexHandle, vector []float32, k int) ([]models.ScoredDocument, error)
}

type RAG struct {
	store         VectorStore
	embedder      embedding.Embedder
	model         llmservice.ChatModel
	prompt        prompts.PromptTemplate
	topK          int
	includeScores bool
	maxChunkChars int
	chunkOverlap  int
}

type Option func(*RAG)

// WithTopK sets the number of chunks retrieved when callers pass k <= 0.
func WithTopK(k int) Option {
	return func(r *RAG) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithScores prefixes every chunk of the prompt context with its relevance score.
func WithScores(include bool) Option {
	return func(r *RAG) { r.includeScores = include }
}

// WithPromptTemplate replaces the tutor template. It must reference
// {{.study_material}} and {{.question}}.
func WithPromptTemplate(template string) Option {
	return func(r *RAG) {
		if strings.TrimSpace(template) != "" {
			r.prompt = newPrompt(template)
		}
	}
}

// WithMaxChunkChars splits paragraphs longer than maxChars before indexing.
func WithMaxChunkChars(maxChars, overlap int) Option {
	return func(r *RAG) {
		r.maxChunkChars = maxChars
		r.chunkOverlap = overlap
	}
}

func NewRAG(store VectorStore, embedder embedding.Embedder, model llmservice.ChatModel, opts ...Option) *RAG {
	r := &RAG{
		store:    store,
		embedder: embedder,
		model:    model,
		prompt:   newPrompt(models.StudyPromptTemplate),
		topK:     models.DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newPrompt(template string) prompts.PromptTemplate {
	return prompts.NewPromptTemplate(template, []string{models.StudyMaterialKey, models.QuestionKey})
}

// SplitText returns the chunks ChunkAndIndex would index for text.
func (r *RAG) SplitText(text string) []string {
	return parser.SplitOversized(parser.Chunk(text), r.maxChunkChars, r.chunkOverlap)
}

// ChunkAndIndex chunks text and builds the index of sourceID from it.
func (r *RAG) ChunkAndIndex(ctx context.Context, text, sourceID string) (models.IndexHandle, error) {
	chunks := r.SplitText(text)
	log.Debug().Str("source", sourceID).Int("chunks", len(chunks)).Msg("Chunked content")

	docs, ids := parser.BuildDocuments(chunks, sourceID)
	return r.BuildIndex(ctx, docs, ids, sourceID)
}

// BuildIndex embeds every document and stores the set as the index of sourceID.
// Nothing is persisted when docs is empty. A failure half way through may leave
// a partial index behind.
func (r *RAG) BuildIndex(ctx context.Context, docs []models.DocumentRecord, ids []string, sourceID string) (models.IndexHandle, error) {
	if len(docs) == 0 {
		return models.IndexHandle{}, models.ErrEmptyCorpus
	}
	if len(ids) != len(docs) {
		return models.IndexHandle{}, fmt.Errorf("documents and ids length mismatch: %d != %d", len(docs), len(ids))
	}
	if sourceID == "" {
		return models.IndexHandle{}, errors.New("source identifier is required")
	}

	texts := make([]string, len(docs))
	records := make([]models.DocumentRecord, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
		records[i] = doc
		records[i].ID = ids[i]
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return models.IndexHandle{}, fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(records) {
		return models.IndexHandle{}, fmt.Errorf("%w: got %d vectors for %d documents", models.ErrEmbeddingFailure, len(vectors), len(records))
	}

	handle := models.IndexHandle{SourceID: sourceID, Location: r.store.Location(sourceID)}
	if err := r.store.Replace(ctx, handle, records, vectors); err != nil {
		return models.IndexHandle{}, err
	}

	log.Info().Str("source", sourceID).Str("location", handle.Location).Int("documents", len(records)).Msg("Index built")
	return handle, nil
}

// Retriever applies a fixed top-k similarity policy to one index.
type Retriever struct {
	rag    *RAG
	handle models.IndexHandle
}

func (r *RAG) Retriever(handle models.IndexHandle) *Retriever {
	return &Retriever{rag: r, handle: handle}
}

// Retrieve returns at most k documents ordered by decreasing score. Equal
// scores keep chunk order. k <= 0 uses the configured default.
func (rt *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	if rt.handle.IsZero() {
		return nil, fmt.Errorf("%w: index was never built", models.ErrIndexUnavailable)
	}
	if k <= 0 {
		k = rt.rag.topK
	}

	vector, err := rt.rag.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
	}

	results, err := rt.rag.store.Search(ctx, rt.handle, vector, k)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.Metadata.ChunkID < results[j].Document.Metadata.ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}

	log.Debug().Str("source", rt.handle.SourceID).Int("k", k).Int("results", len(results)).Msg("Retrieved documents")
	return results, nil
}

// AssembleContext joins the retrieved contents with blank lines, optionally
// prefixed by their scores. No results give an empty string.
func AssembleContext(results []models.ScoredDocument, includeScores bool) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		if includeScores {
			parts = append(parts, fmt.Sprintf(models.ScoreFormat, res.Score, res.Document.Content))
			continue
		}
		parts = append(parts, res.Document.Content)
	}
	return strings.Join(parts, models.ChunkSeparator)
}

// Answer fills the tutor template and submits it in a single blocking call.
func (r *RAG) Answer(ctx context.Context, studyMaterial, question string) (string, error) {
	prompt, err := r.prompt.Format(map[string]any{
		models.StudyMaterialKey: studyMaterial,
		models.QuestionKey:      question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	answer, err := llmservice.GenerateContent(ctx, r.model, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrCompletionFailure, err)
	}
	return answer, nil
}

// Query retrieves context for question from handle and answers it.
func (r *RAG) Query(ctx context.Context, handle models.IndexHandle, question string, k int) (*models.PromptResponse, error) {
	results, err := r.Retriever(handle).Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	studyMaterial := AssembleContext(results, r.includeScores)
	if studyMaterial == "" {
		log.Warn().Str("source", handle.SourceID).Msg("No context retrieved")
	}

	answer, err := r.Answer(ctx, studyMaterial, question)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  handle.SourceID,
		Content: answer,
		Context: studyMaterial,
		Sources: results,
	}, nil
}
