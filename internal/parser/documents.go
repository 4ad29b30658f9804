package parser

import (
	"unicode/utf8"

	"study-assistant/internal/models"
)

// BuildDocuments wraps each chunk in a DocumentRecord tagged with sourceID and
// returns the records together with their ids (doc_0 ... doc_{n-1}).
func BuildDocuments(chunks []string, sourceID string) ([]models.DocumentRecord, []string) {
	docs := make([]models.DocumentRecord, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = models.DocID(i)
		docs[i] = models.DocumentRecord{
			ID:      ids[i],
			Content: chunk,
			Metadata: models.DocumentMetadata{
				Source:      sourceID,
				ChunkID:     i,
				ChunkSize:   utf8.RuneCountInString(chunk),
				TotalChunks: len(chunks),
			},
		}
	}
	return docs, ids
}
