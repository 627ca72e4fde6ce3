package service

import (
	"context"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

// Associator links turns to sources and chunks with a relevance score.
// Associations are write-once: a duplicate call returns the existing
// row untouched, so within one ingestion the first occurrence in
// citation order keeps the score the generator intended.
type Associator struct {
	turnSources *repo.TurnSourceRepo
	turnChunks  *repo.TurnChunkRepo
}

func NewAssociator(turnSources *repo.TurnSourceRepo, turnChunks *repo.TurnChunkRepo) *Associator {
	return &Associator{turnSources: turnSources, turnChunks: turnChunks}
}

// Out-of-range scores are rejected, not clamped: a generator handing us
// 1.5 is a bug upstream and silently storing 1.0 would hide it.
func validScore(score float64) bool {
	return score >= 0.0 && score <= 1.0
}

func (s *Associator) AssociateSource(ctx context.Context, turnID, sourceID string, score float64) (*model.TurnSource, error) {
	if !validScore(score) {
		return nil, appErr.ErrInvalidScore
	}
	candidate := &model.TurnSource{
		ID:             newID(),
		TurnID:         turnID,
		SourceID:       sourceID,
		RelevanceScore: score,
		Ctime:          timeutil.NowUnix(),
	}
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		inserted, err := s.turnSources.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if inserted {
			return candidate, nil
		}
		existing, err := s.turnSources.Get(ctx, turnID, sourceID)
		if err == nil {
			return existing, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, appErr.ErrPersistenceConflict
}

func (s *Associator) AssociateChunk(ctx context.Context, turnID, chunkID string, score float64) (*model.TurnChunk, error) {
	if !validScore(score) {
		return nil, appErr.ErrInvalidScore
	}
	candidate := &model.TurnChunk{
		ID:             newID(),
		TurnID:         turnID,
		ChunkID:        chunkID,
		RelevanceScore: score,
		Ctime:          timeutil.NowUnix(),
	}
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		inserted, err := s.turnChunks.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if inserted {
			return candidate, nil
		}
		existing, err := s.turnChunks.Get(ctx, turnID, chunkID)
		if err == nil {
			return existing, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, appErr.ErrPersistenceConflict
}
