package model

const (
	ChunkTypeFixed    = "fixed"
	ChunkTypeSemantic = "semantic"
)

func IsValidChunkType(t string) bool {
	return t == ChunkTypeFixed || t == ChunkTypeSemantic
}

// Chunk is a retrieved fragment of a source's text. Identity is
// (source_id, content, chunk_type): byte equality of content, not
// similarity.
type Chunk struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	Content    string            `json:"content"`
	ChunkType  string            `json:"chunk_type"`
	Excerpt    string            `json:"excerpt"`
	ChunkSize  int               `json:"chunk_size"`
	DocumentID string            `json:"document_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Ctime      int64             `json:"ctime"`
}

// FormattedExcerpt falls back to a truncation of content when no
// explicit excerpt was cited. The fallback is computed at read time and
// never stored.
func (c *Chunk) FormattedExcerpt() string {
	if c.Excerpt != "" {
		return c.Excerpt
	}
	runes := []rune(c.Content)
	if len(runes) <= 200 {
		return c.Content
	}
	return string(runes[:200])
}
