package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type fakeTurnStore struct {
	turns      []*model.Turn
	failOnText string
}

func (f *fakeTurnStore) Create(ctx context.Context, turn *model.Turn) error {
	if f.failOnText != "" && turn.Content == f.failOnText {
		return fmt.Errorf("insert turn: connection reset")
	}
	f.turns = append(f.turns, turn)
	return nil
}

type fakeSourceRegistry struct {
	byURL   map[string]*model.Source
	calls   []SourceInput
	failURL string
}

func newFakeSourceRegistry() *fakeSourceRegistry {
	return &fakeSourceRegistry{byURL: map[string]*model.Source{}}
}

func (f *fakeSourceRegistry) Upsert(ctx context.Context, input SourceInput) (*model.Source, error) {
	f.calls = append(f.calls, input)
	if input.URL == f.failURL {
		return nil, appErr.ErrPersistenceConflict
	}
	if existing, ok := f.byURL[input.URL]; ok {
		return existing, nil
	}
	src := &model.Source{ID: fmt.Sprintf("src-%d", len(f.byURL)+1), URL: input.URL, Title: input.Title}
	f.byURL[input.URL] = src
	return src, nil
}

type chunkKey struct {
	sourceID  string
	content   string
	chunkType string
}

type fakeChunkRegistry struct {
	byKey map[chunkKey]*model.Chunk
	calls []ChunkInput
}

func newFakeChunkRegistry() *fakeChunkRegistry {
	return &fakeChunkRegistry{byKey: map[chunkKey]*model.Chunk{}}
}

func (f *fakeChunkRegistry) Upsert(ctx context.Context, source *model.Source, input ChunkInput) (*model.Chunk, error) {
	f.calls = append(f.calls, input)
	chunkType := input.ChunkType
	if chunkType == "" {
		chunkType = model.ChunkTypeFixed
	}
	key := chunkKey{sourceID: source.ID, content: input.Content, chunkType: chunkType}
	if existing, ok := f.byKey[key]; ok {
		return existing, nil
	}
	chunk := &model.Chunk{ID: fmt.Sprintf("chunk-%d", len(f.byKey)+1), SourceID: source.ID, Content: input.Content, ChunkType: chunkType}
	f.byKey[key] = chunk
	return chunk, nil
}

type fakeAssociator struct {
	sourceScores map[string]float64
	chunkScores  map[string]float64
}

func newFakeAssociator() *fakeAssociator {
	return &fakeAssociator{sourceScores: map[string]float64{}, chunkScores: map[string]float64{}}
}

func (f *fakeAssociator) AssociateSource(ctx context.Context, turnID, sourceID string, score float64) (*model.TurnSource, error) {
	if !validScore(score) {
		return nil, appErr.ErrInvalidScore
	}
	key := turnID + "/" + sourceID
	if existing, ok := f.sourceScores[key]; ok {
		return &model.TurnSource{TurnID: turnID, SourceID: sourceID, RelevanceScore: existing}, nil
	}
	f.sourceScores[key] = score
	return &model.TurnSource{TurnID: turnID, SourceID: sourceID, RelevanceScore: score}, nil
}

func (f *fakeAssociator) AssociateChunk(ctx context.Context, turnID, chunkID string, score float64) (*model.TurnChunk, error) {
	if !validScore(score) {
		return nil, appErr.ErrInvalidScore
	}
	key := turnID + "/" + chunkID
	if existing, ok := f.chunkScores[key]; ok {
		return &model.TurnChunk{TurnID: turnID, ChunkID: chunkID, RelevanceScore: existing}, nil
	}
	f.chunkScores[key] = score
	return &model.TurnChunk{TurnID: turnID, ChunkID: chunkID, RelevanceScore: score}, nil
}

type fakeUsageRecorder struct {
	records []*generation.UsageData
	err     error
}

func (f *fakeUsageRecorder) Record(ctx context.Context, turn *model.Turn, data *generation.UsageData) (*model.APIUsage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if data == nil || data.TotalTokens <= 0 {
		return nil, nil
	}
	f.records = append(f.records, data)
	return &model.APIUsage{TurnID: turn.ID, Model: data.Model, TotalTokens: data.TotalTokens}, nil
}

type ingestFixture struct {
	turns   *fakeTurnStore
	sources *fakeSourceRegistry
	chunks  *fakeChunkRegistry
	assoc   *fakeAssociator
	usage   *fakeUsageRecorder
	svc     *IngestService
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		turns:   &fakeTurnStore{},
		sources: newFakeSourceRegistry(),
		chunks:  newFakeChunkRegistry(),
		assoc:   newFakeAssociator(),
		usage:   &fakeUsageRecorder{},
	}
	f.svc = NewIngestService(f.turns, f.sources, f.chunks, f.assoc, f.usage)
	return f
}

func TestIngestPersistsTurnSourcesChunksAndUsage(t *testing.T) {
	f := newIngestFixture()
	payload := &generation.ResponsePayload{
		Response: "answer text",
		Sources: []generation.SourceCitation{
			{
				URL:            "https://example.com/a",
				Title:          "A",
				RelevanceScore: 0.9,
				Chunks: []generation.ChunkCitation{
					{Content: "first chunk", ChunkType: model.ChunkTypeSemantic, RelevanceScore: 0.8},
					{Content: "second chunk", ChunkType: model.ChunkTypeSemantic, RelevanceScore: 0.7},
				},
			},
		},
		Usage: &generation.UsageData{Model: "gpt-4", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}

	result, err := f.svc.Ingest(context.Background(), "chat-1", payload)
	require.NoError(t, err)

	require.Len(t, f.turns.turns, 1)
	turn := f.turns.turns[0]
	require.Equal(t, model.RoleAssistant, turn.Role)
	require.Equal(t, "answer text", turn.Content)
	require.Equal(t, "chat-1", turn.ChatID)

	require.Len(t, result.Sources, 1)
	require.NoError(t, result.Sources[0].Err)
	require.Len(t, result.Sources[0].Chunks, 2)
	require.Equal(t, 0, result.FailedSources())

	require.InDelta(t, 0.9, f.assoc.sourceScores[turn.ID+"/"+result.Sources[0].SourceID], 1e-9)
	require.NotNil(t, result.Usage)
	require.Len(t, f.usage.records, 1)
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	f := newIngestFixture()

	_, err := f.svc.Ingest(context.Background(), "chat-1", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.Ingest(context.Background(), "chat-1", &generation.ResponsePayload{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Empty(t, f.turns.turns)
}

func TestIngestTurnFailureIsFatal(t *testing.T) {
	f := newIngestFixture()
	f.turns.failOnText = "doomed"

	_, err := f.svc.Ingest(context.Background(), "chat-1", &generation.ResponsePayload{
		Response: "doomed",
		Sources:  []generation.SourceCitation{{URL: "https://example.com", RelevanceScore: 0.5}},
	})
	require.Error(t, err)
	require.Empty(t, f.sources.calls, "no enrichment after a failed turn insert")
}

func TestIngestDeduplicatesRepeatedURLs(t *testing.T) {
	f := newIngestFixture()
	payload := &generation.ResponsePayload{
		Response: "answer",
		Sources: []generation.SourceCitation{
			{URL: "https://example.com/dup", RelevanceScore: 0.9},
			{URL: "https://example.com/other", RelevanceScore: 0.4},
			{URL: "https://example.com/dup", RelevanceScore: 0.1},
		},
	}

	result, err := f.svc.Ingest(context.Background(), "chat-1", payload)
	require.NoError(t, err)

	require.Len(t, result.Sources, 2)
	require.Len(t, f.sources.calls, 2)

	// First occurrence wins the score.
	turn := f.turns.turns[0]
	require.InDelta(t, 0.9, f.assoc.sourceScores[turn.ID+"/"+result.Sources[0].SourceID], 1e-9)
}

func TestIngestSourceFailureDoesNotAbortSiblings(t *testing.T) {
	f := newIngestFixture()
	f.sources.failURL = "https://example.com/bad"
	payload := &generation.ResponsePayload{
		Response: "answer",
		Sources: []generation.SourceCitation{
			{URL: "https://example.com/bad", RelevanceScore: 0.9},
			{URL: "https://example.com/good", RelevanceScore: 0.8},
		},
		Usage: &generation.UsageData{Model: "gpt-4", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	result, err := f.svc.Ingest(context.Background(), "chat-1", payload)
	require.NoError(t, err, "per-source failures never fail the ingestion")

	require.Equal(t, 1, result.FailedSources())
	require.Error(t, result.Sources[0].Err)
	require.NoError(t, result.Sources[1].Err)
	require.NotEmpty(t, result.Sources[1].SourceID)
	require.NotNil(t, result.Usage, "usage accounting is independent of source failures")
}

func TestIngestOutOfRangeScoreFailsOnlyThatSource(t *testing.T) {
	f := newIngestFixture()
	payload := &generation.ResponsePayload{
		Response: "answer",
		Sources: []generation.SourceCitation{
			{URL: "https://example.com/broken", RelevanceScore: 1.5},
			{URL: "https://example.com/fine", RelevanceScore: 1.0},
		},
	}

	result, err := f.svc.Ingest(context.Background(), "chat-1", payload)
	require.NoError(t, err)

	require.ErrorIs(t, result.Sources[0].Err, appErr.ErrInvalidScore)
	require.NoError(t, result.Sources[1].Err)
}

func TestIngestUsageFailureIsTolerated(t *testing.T) {
	f := newIngestFixture()
	f.usage.err = fmt.Errorf("pricing backend down")

	result, err := f.svc.Ingest(context.Background(), "chat-1", &generation.ResponsePayload{
		Response: "answer",
		Usage:    &generation.UsageData{Model: "gpt-4", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
	require.NoError(t, err)
	require.Nil(t, result.Usage)
	require.Len(t, f.turns.turns, 1)
}

func TestIngestLegacyFlatChunkFields(t *testing.T) {
	f := newIngestFixture()
	payload := &generation.ResponsePayload{
		Response: "answer",
		Sources: []generation.SourceCitation{
			{
				URL:            "https://example.com/legacy",
				RelevanceScore: 0.6,
				ChunkText:      "legacy chunk body",
				ChunkSize:      17,
				DocumentID:     "doc-9",
			},
		},
	}

	result, err := f.svc.Ingest(context.Background(), "chat-1", payload)
	require.NoError(t, err)

	require.Len(t, f.chunks.calls, 1)
	require.Equal(t, "legacy chunk body", f.chunks.calls[0].Content)
	require.Equal(t, "doc-9", f.chunks.calls[0].DocumentID)
	require.Empty(t, f.chunks.calls[0].ChunkType, "legacy payloads carry no chunk type")

	// The synthesized chunk inherits the citation's relevance score.
	turn := f.turns.turns[0]
	chunkID := result.Sources[0].Chunks[0].ChunkID
	require.InDelta(t, 0.6, f.assoc.chunkScores[turn.ID+"/"+chunkID], 1e-9)
}

func TestIngestComparisonVariantIsolation(t *testing.T) {
	f := newIngestFixture()
	f.turns.failOnText = "variant b answer"
	payload := &generation.ComparisonPayload{
		Responses: []generation.VariantResponse{
			{VariantName: "fixed", Response: "variant a answer", Sources: []generation.SourceCitation{{URL: "https://example.com/a", RelevanceScore: 0.9}}},
			{VariantName: "semantic", Response: "variant b answer"},
			{VariantName: "hybrid", Response: "variant c answer", Usage: &generation.UsageData{Model: "gpt-4", PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}},
		},
	}

	results, err := f.svc.IngestComparison(context.Background(), "chat-1", payload)
	require.NoError(t, err, "variant failures never fail the whole comparison")
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Turn)
	require.Len(t, results[0].Sources, 1)

	require.Error(t, results[1].Err)
	require.Nil(t, results[1].Turn)
	require.Equal(t, "semantic", results[1].Variant)

	require.NoError(t, results[2].Err)
	require.NotNil(t, results[2].Usage)

	// Surviving siblings share one comparison group.
	require.NotEmpty(t, results[0].Turn.ComparisonGroupID)
	require.Equal(t, results[0].Turn.ComparisonGroupID, results[2].Turn.ComparisonGroupID)
	require.NotEqual(t, results[0].Turn.ID, results[2].Turn.ID)
}

func TestIngestComparisonRejectsEmptyPayload(t *testing.T) {
	f := newIngestFixture()

	_, err := f.svc.IngestComparison(context.Background(), "chat-1", nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = f.svc.IngestComparison(context.Background(), "chat-1", &generation.ComparisonPayload{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
