package generation

// ResponsePayload is what the generation service returns for a single
// answer. Field presence is optional unless noted; the ingestion layer
// treats the whole structure as untrusted input.
type ResponsePayload struct {
	Response string           `json:"response"`
	Sources  []SourceCitation `json:"sources"`
	Usage    *UsageData       `json:"usage,omitempty"`
}

// SourceCitation cites one external document. Newer payloads carry an
// explicit chunk list; legacy payloads put the single retrieved chunk
// flat on the citation itself (chunk_text/chunk_size/document_id/
// metadata).
type SourceCitation struct {
	URL            string            `json:"url"`
	Title          string            `json:"title,omitempty"`
	Excerpt        string            `json:"excerpt,omitempty"`
	RelevanceScore float64           `json:"relevance_score"`
	Chunks         []ChunkCitation   `json:"chunks,omitempty"`
	ChunkText      string            `json:"chunk_text,omitempty"`
	ChunkSize      int               `json:"chunk_size,omitempty"`
	DocumentID     string            `json:"document_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type ChunkCitation struct {
	Content        string            `json:"content"`
	ChunkType      string            `json:"chunk_type,omitempty"`
	Excerpt        string            `json:"excerpt,omitempty"`
	ChunkSize      int               `json:"chunk_size,omitempty"`
	DocumentID     string            `json:"document_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RelevanceScore float64           `json:"relevance_score"`
}

type UsageData struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ResponseTimeMs   int    `json:"response_time_ms,omitempty"`
}

// ComparisonPayload answers the same query once per generation
// strategy, for side by side evaluation.
type ComparisonPayload struct {
	Responses []VariantResponse `json:"responses"`
}

type VariantResponse struct {
	VariantName    string           `json:"variant_name"`
	Response       string           `json:"response"`
	Sources        []SourceCitation `json:"sources,omitempty"`
	ProcessingTime float64          `json:"processing_time,omitempty"`
	Usage          *UsageData       `json:"usage,omitempty"`
}

// NormalizedChunks returns the citation's chunk list, synthesizing a
// single chunk from the legacy flat fields when no explicit list was
// sent. The synthesized chunk inherits the citation's relevance score.
func (s *SourceCitation) NormalizedChunks() []ChunkCitation {
	if len(s.Chunks) > 0 {
		return s.Chunks
	}
	if s.ChunkText == "" {
		return nil
	}
	return []ChunkCitation{{
		Content:        s.ChunkText,
		ChunkSize:      s.ChunkSize,
		DocumentID:     s.DocumentID,
		Metadata:       s.Metadata,
		RelevanceScore: s.RelevanceScore,
	}}
}
