package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

// maxUpsertAttempts bounds the insert/re-read loop under concurrent
// creators of the same natural key. A lost race where the winner has
// not committed yet shows up as "insert skipped, re-read empty"; after
// this many rounds we surface ErrPersistenceConflict instead of
// spinning.
const maxUpsertAttempts = 3

// SourceRegistry deduplicates cited sources by URL. The unique index on
// sources.url is the actual arbiter; the registry only turns conflicts
// into a re-read of the winning row, so the first persisted
// title/excerpt always survive.
type SourceRegistry struct {
	sources *repo.SourceRepo
}

func NewSourceRegistry(sources *repo.SourceRepo) *SourceRegistry {
	return &SourceRegistry{sources: sources}
}

type SourceInput struct {
	URL     string
	Title   string
	Excerpt string
}

func (s *SourceRegistry) Upsert(ctx context.Context, input SourceInput) (*model.Source, error) {
	if input.URL == "" {
		return nil, fmt.Errorf("%w: source url is required", appErr.ErrInvalid)
	}
	now := timeutil.NowUnix()
	candidate := &model.Source{
		ID:      newID(),
		URL:     input.URL,
		Title:   input.Title,
		Excerpt: input.Excerpt,
		Ctime:   now,
		Mtime:   now,
	}
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		inserted, err := s.sources.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if inserted {
			return candidate, nil
		}
		existing, err := s.sources.GetByURL(ctx, input.URL)
		if err == nil {
			return existing, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, appErr.ErrPersistenceConflict
}

// ChunkRegistry deduplicates retrieved text chunks by
// (source, content, chunk_type), with the same race handling as the
// source registry.
type ChunkRegistry struct {
	chunks *repo.ChunkRepo
}

func NewChunkRegistry(chunks *repo.ChunkRepo) *ChunkRegistry {
	return &ChunkRegistry{chunks: chunks}
}

type ChunkInput struct {
	Content    string
	ChunkType  string
	Excerpt    string
	ChunkSize  int
	DocumentID string
	Metadata   map[string]string
}

func (s *ChunkRegistry) Upsert(ctx context.Context, source *model.Source, input ChunkInput) (*model.Chunk, error) {
	if input.Content == "" {
		return nil, fmt.Errorf("%w: chunk content is required", appErr.ErrInvalid)
	}
	chunkType := input.ChunkType
	if chunkType == "" {
		chunkType = model.ChunkTypeFixed
	}
	if !model.IsValidChunkType(chunkType) {
		return nil, fmt.Errorf("%w: %q", appErr.ErrInvalidChunkType, input.ChunkType)
	}
	size := input.ChunkSize
	if size <= 0 {
		size = len(input.Content)
	}
	candidate := &model.Chunk{
		ID:         newID(),
		SourceID:   source.ID,
		Content:    input.Content,
		ChunkType:  chunkType,
		Excerpt:    input.Excerpt,
		ChunkSize:  size,
		DocumentID: input.DocumentID,
		Metadata:   input.Metadata,
		Ctime:      timeutil.NowUnix(),
	}
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		inserted, err := s.chunks.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if inserted {
			return candidate, nil
		}
		existing, err := s.chunks.GetByIdentity(ctx, source.ID, input.Content, chunkType)
		if err == nil {
			return existing, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, appErr.ErrPersistenceConflict
}
