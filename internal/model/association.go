package model

// TurnSource links a turn to a cited source with a relevance score.
// At most one row exists per (turn, source) pair; the first persisted
// score wins.
type TurnSource struct {
	ID             string  `json:"id"`
	TurnID         string  `json:"turn_id"`
	SourceID       string  `json:"source_id"`
	RelevanceScore float64 `json:"relevance_score"`
	Ctime          int64   `json:"ctime"`
}

// TurnChunk links a turn to a retrieved chunk, same uniqueness and
// first-score-wins semantics as TurnSource.
type TurnChunk struct {
	ID             string  `json:"id"`
	TurnID         string  `json:"turn_id"`
	ChunkID        string  `json:"chunk_id"`
	RelevanceScore float64 `json:"relevance_score"`
	Ctime          int64   `json:"ctime"`
}
