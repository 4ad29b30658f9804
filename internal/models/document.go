package models

import (
	"fmt"
	"strconv"
)

// DocumentMetadata carries the provenance of a DocumentRecord.
type DocumentMetadata struct {
	Source      string `json:"source"`
	ChunkID     int    `json:"chunk_id"`
	ChunkSize   int    `json:"chunk_size"`
	TotalChunks int    `json:"total_chunks"`
}

// DocumentRecord is the unit stored in a vector index. ID is unique within its
// source only.
type DocumentRecord struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// ScoredDocument is one entry of a retrieval result.
type ScoredDocument struct {
	Document DocumentRecord `json:"document"`
	Score    float64        `json:"score"`
}

// IndexHandle identifies a built index. It is returned by the build step and
// passed explicitly to every query.
type IndexHandle struct {
	SourceID string `json:"source_id"`
	Location string `json:"location"`
}

// IsZero reports whether the handle was never assigned.
func (h IndexHandle) IsZero() bool {
	return h.SourceID == "" && h.Location == ""
}

type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
	Context string
	Sources []ScoredDocument
}

// DocID returns the identifier of the i-th chunk of a source.
func DocID(i int) string {
	return fmt.Sprintf("%s%d", DocIDPrefix, i)
}

// ToMap flattens the metadata for stores that only keep string values.
func (m DocumentMetadata) ToMap() map[string]string {
	return map[string]string{
		MetaSource:      m.Source,
		MetaChunkID:     strconv.Itoa(m.ChunkID),
		MetaChunkSize:   strconv.Itoa(m.ChunkSize),
		MetaTotalChunks: strconv.Itoa(m.TotalChunks),
	}
}

// MetadataFromMap is the inverse of ToMap. Missing or malformed numbers are left at zero.
func MetadataFromMap(meta map[string]string) DocumentMetadata {
	atoi := func(key string) int {
		v, err := strconv.Atoi(meta[key])
		if err != nil {
			return 0
		}
		return v
	}
	return DocumentMetadata{
		Source:      meta[MetaSource],
		ChunkID:     atoi(MetaChunkID),
		ChunkSize:   atoi(MetaChunkSize),
		TotalChunks: atoi(MetaTotalChunks),
	}
}
