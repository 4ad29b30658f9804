package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocuments(t *testing.T) {
	chunks := []string{"Cats are mammals.", "Dogs are mammals too.", "Héllo"}
	docs, ids := BuildDocuments(chunks, "source-1")

	require.Len(t, docs, len(chunks))
	require.Len(t, ids, len(chunks))

	seen := map[string]bool{}
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprintf("doc_%d", i), ids[i])
		assert.Equal(t, ids[i], doc.ID)
		assert.Equal(t, chunks[i], doc.Content)
		assert.Equal(t, "source-1", doc.Metadata.Source)
		assert.Equal(t, i, doc.Metadata.ChunkID)
		assert.Equal(t, len(chunks), doc.Metadata.TotalChunks)
		assert.False(t, seen[ids[i]], "duplicate id %s", ids[i])
		seen[ids[i]] = true
	}

	assert.Equal(t, 17, docs[0].Metadata.ChunkSize)
	// sizes count characters, not bytes
	assert.Equal(t, 5, docs[2].Metadata.ChunkSize)
}

func TestBuildDocuments_Deterministic(t *testing.T) {
	chunks := []string{"a", "b"}
	docs1, ids1 := BuildDocuments(chunks, "s")
	docs2, ids2 := BuildDocuments(chunks, "s")

	assert.Equal(t, docs1, docs2)
	assert.Equal(t, ids1, ids2)
}

func TestBuildDocuments_Empty(t *testing.T) {
	docs, ids := BuildDocuments(nil, "s")
	assert.Empty(t, docs)
	assert.Empty(t, ids)
}
