package generation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizedChunksPrefersExplicitList(t *testing.T) {
	citation := SourceCitation{
		URL:            "https://example.com",
		RelevanceScore: 0.9,
		ChunkText:      "ignored when a list exists",
		Chunks: []ChunkCitation{
			{Content: "one", RelevanceScore: 0.8},
			{Content: "two", RelevanceScore: 0.7},
		},
	}
	chunks := citation.NormalizedChunks()
	require.Len(t, chunks, 2)
	require.Equal(t, "one", chunks[0].Content)
}

func TestNormalizedChunksSynthesizesFromLegacyFields(t *testing.T) {
	citation := SourceCitation{
		URL:            "https://example.com",
		RelevanceScore: 0.65,
		ChunkText:      "legacy body",
		ChunkSize:      11,
		DocumentID:     "doc-1",
		Metadata:       map[string]string{"page": "3"},
	}
	chunks := citation.NormalizedChunks()
	require.Len(t, chunks, 1)
	require.Equal(t, "legacy body", chunks[0].Content)
	require.Equal(t, 11, chunks[0].ChunkSize)
	require.Equal(t, "doc-1", chunks[0].DocumentID)
	require.Equal(t, "3", chunks[0].Metadata["page"])
	require.InDelta(t, 0.65, chunks[0].RelevanceScore, 1e-9)
}

func TestNormalizedChunksEmptyWhenNothingCited(t *testing.T) {
	citation := SourceCitation{URL: "https://example.com", RelevanceScore: 0.5}
	require.Empty(t, citation.NormalizedChunks())
}

func TestResponsePayloadDecodesLegacyShape(t *testing.T) {
	raw := `{
		"response": "the answer",
		"sources": [
			{
				"url": "https://example.com/doc",
				"title": "Doc",
				"relevance_score": 0.82,
				"chunk_text": "body",
				"chunk_size": 4,
				"document_id": "d-1"
			}
		],
		"usage": {"model": "gpt-4", "prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
	var payload ResponsePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Equal(t, "the answer", payload.Response)
	require.Len(t, payload.Sources, 1)
	require.Equal(t, "body", payload.Sources[0].ChunkText)
	require.NotNil(t, payload.Usage)
	require.Equal(t, 15, payload.Usage.TotalTokens)
}
