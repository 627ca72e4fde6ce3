package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
)

type turnStore interface {
	Create(ctx context.Context, turn *model.Turn) error
}

type sourceRegistry interface {
	Upsert(ctx context.Context, input SourceInput) (*model.Source, error)
}

type chunkRegistry interface {
	Upsert(ctx context.Context, source *model.Source, input ChunkInput) (*model.Chunk, error)
}

type associator interface {
	AssociateSource(ctx context.Context, turnID, sourceID string, score float64) (*model.TurnSource, error)
	AssociateChunk(ctx context.Context, turnID, chunkID string, score float64) (*model.TurnChunk, error)
}

type usageRecorder interface {
	Record(ctx context.Context, turn *model.Turn, data *generation.UsageData) (*model.APIUsage, error)
}

// IngestService converts a generation response into normalized rows:
// one assistant turn, deduplicated sources and chunks, write-once
// relevance associations and a priced usage record. The turn insert is
// the primary write; everything after it is best-effort enrichment
// collected into per-item results instead of aborting the turn.
type IngestService struct {
	turns   turnStore
	sources sourceRegistry
	chunks  chunkRegistry
	assoc   associator
	usage   usageRecorder
}

func NewIngestService(turns turnStore, sources sourceRegistry, chunks chunkRegistry, assoc associator, usage usageRecorder) *IngestService {
	return &IngestService{turns: turns, sources: sources, chunks: chunks, assoc: assoc, usage: usage}
}

// ChunkResult is the outcome of persisting one cited chunk.
type ChunkResult struct {
	ChunkID string `json:"chunk_id,omitempty"`
	Err     error  `json:"-"`
}

// SourceResult is the outcome of persisting one cited source and its
// chunks. Err covers the source row and its association; chunk-level
// failures are tracked per chunk and do not fail the source.
type SourceResult struct {
	URL      string        `json:"url"`
	SourceID string        `json:"source_id,omitempty"`
	Score    float64       `json:"relevance_score"`
	Chunks   []ChunkResult `json:"chunks,omitempty"`
	Err      error         `json:"-"`
}

// IngestResult reports one turn's ingestion. Err is only set on the
// comparison path when a variant's turn itself could not be created.
type IngestResult struct {
	Turn    *model.Turn     `json:"turn,omitempty"`
	Variant string          `json:"variant,omitempty"`
	Sources []SourceResult  `json:"sources,omitempty"`
	Usage   *model.APIUsage `json:"usage,omitempty"`
	Err     error           `json:"-"`
}

// FailedSources counts sources whose row or association did not
// persist.
func (r *IngestResult) FailedSources() int {
	n := 0
	for _, src := range r.Sources {
		if src.Err != nil {
			n++
		}
	}
	return n
}

// Ingest handles a single-answer payload: create the assistant turn,
// then enrich it. A failure on the turn insert is fatal; a failure on
// any individual source, chunk, association or the usage record is
// recorded and the rest proceeds.
func (s *IngestService) Ingest(ctx context.Context, chatID string, payload *generation.ResponsePayload) (*IngestResult, error) {
	if payload == nil || payload.Response == "" {
		return nil, fmt.Errorf("%w: payload response is required", appErr.ErrInvalid)
	}
	turn := &model.Turn{
		ID:      newID(),
		ChatID:  chatID,
		Role:    model.RoleAssistant,
		Content: payload.Response,
		Ctime:   timeutil.NowUnix(),
	}
	if err := s.turns.Create(ctx, turn); err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}
	result := s.enrich(ctx, turn, payload.Sources, payload.Usage)
	s.logResult(ctx, result)
	return result, nil
}

// IngestComparison fans a multi-variant payload out into sibling
// assistant turns sharing one comparison group id. Variants are
// independent: any per-variant failure is recorded on that variant's
// result and never touches its siblings.
func (s *IngestService) IngestComparison(ctx context.Context, chatID string, payload *generation.ComparisonPayload) ([]*IngestResult, error) {
	if payload == nil || len(payload.Responses) == 0 {
		return nil, fmt.Errorf("%w: comparison payload has no responses", appErr.ErrInvalid)
	}
	groupID := newID()
	results := make([]*IngestResult, 0, len(payload.Responses))
	for _, variant := range payload.Responses {
		turn := &model.Turn{
			ID:                newID(),
			ChatID:            chatID,
			Role:              model.RoleAssistant,
			Content:           variant.Response,
			Variant:           variant.VariantName,
			ComparisonGroupID: groupID,
			ProcessingTime:    variant.ProcessingTime,
			Ctime:             timeutil.NowUnix(),
		}
		if err := s.turns.Create(ctx, turn); err != nil {
			logutil.GetLogger(ctx).Error("persist variant turn failed",
				zap.String("chat_id", chatID),
				zap.String("variant", variant.VariantName),
				zap.Error(err))
			results = append(results, &IngestResult{Variant: variant.VariantName, Err: err})
			continue
		}
		result := s.enrich(ctx, turn, variant.Sources, variant.Usage)
		result.Variant = variant.VariantName
		s.logResult(ctx, result)
		results = append(results, result)
	}
	return results, nil
}

func (s *IngestService) enrich(ctx context.Context, turn *model.Turn, sources []generation.SourceCitation, usageData *generation.UsageData) *IngestResult {
	result := &IngestResult{Turn: turn}
	for _, citation := range dedupeByURL(sources) {
		result.Sources = append(result.Sources, s.persistSource(ctx, turn, citation))
	}
	usage, err := s.usage.Record(ctx, turn, usageData)
	if err != nil {
		// Cost is best-effort telemetry; the answer already persisted.
		logutil.GetLogger(ctx).Error("record usage failed",
			zap.String("turn_id", turn.ID), zap.Error(err))
	} else {
		result.Usage = usage
	}
	return result
}

func (s *IngestService) persistSource(ctx context.Context, turn *model.Turn, citation generation.SourceCitation) SourceResult {
	result := SourceResult{URL: citation.URL, Score: citation.RelevanceScore}
	source, err := s.sources.Upsert(ctx, SourceInput{
		URL:     citation.URL,
		Title:   citation.Title,
		Excerpt: citation.Excerpt,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.SourceID = source.ID
	if _, err := s.assoc.AssociateSource(ctx, turn.ID, source.ID, citation.RelevanceScore); err != nil {
		result.Err = err
		return result
	}
	for _, chunkCitation := range citation.NormalizedChunks() {
		result.Chunks = append(result.Chunks, s.persistChunk(ctx, turn, source, chunkCitation))
	}
	return result
}

func (s *IngestService) persistChunk(ctx context.Context, turn *model.Turn, source *model.Source, citation generation.ChunkCitation) ChunkResult {
	chunk, err := s.chunks.Upsert(ctx, source, ChunkInput{
		Content:    citation.Content,
		ChunkType:  citation.ChunkType,
		Excerpt:    citation.Excerpt,
		ChunkSize:  citation.ChunkSize,
		DocumentID: citation.DocumentID,
		Metadata:   citation.Metadata,
	})
	if err != nil {
		return ChunkResult{Err: err}
	}
	if _, err := s.assoc.AssociateChunk(ctx, turn.ID, chunk.ID, citation.RelevanceScore); err != nil {
		return ChunkResult{ChunkID: chunk.ID, Err: err}
	}
	return ChunkResult{ChunkID: chunk.ID}
}

// dedupeByURL collapses repeated citations of the same URL before any
// registry call, keeping the first occurrence. Association uniqueness
// then holds trivially instead of leaning on conflict handling alone.
func dedupeByURL(sources []generation.SourceCitation) []generation.SourceCitation {
	if len(sources) < 2 {
		return sources
	}
	seen := make(map[string]struct{}, len(sources))
	out := make([]generation.SourceCitation, 0, len(sources))
	for _, src := range sources {
		if _, ok := seen[src.URL]; ok {
			continue
		}
		seen[src.URL] = struct{}{}
		out = append(out, src)
	}
	return out
}

// logResult emits one aggregate line per ingested turn instead of a
// rescue block per item.
func (s *IngestService) logResult(ctx context.Context, result *IngestResult) {
	failedChunks := 0
	for _, src := range result.Sources {
		if src.Err != nil {
			logutil.GetLogger(ctx).Error("persist source failed",
				zap.String("turn_id", result.Turn.ID),
				zap.String("url", src.URL),
				zap.Error(src.Err))
		}
		for _, chunk := range src.Chunks {
			if chunk.Err != nil {
				failedChunks++
			}
		}
	}
	logutil.GetLogger(ctx).Info("turn ingested",
		zap.String("turn_id", result.Turn.ID),
		zap.String("variant", result.Variant),
		zap.Int("sources", len(result.Sources)),
		zap.Int("sources_failed", result.FailedSources()),
		zap.Int("chunks_failed", failedChunks),
		zap.Bool("usage_recorded", result.Usage != nil))
}
