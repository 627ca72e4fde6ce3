package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type TurnChunkRepo struct {
	db *sql.DB
}

func NewTurnChunkRepo(db *sql.DB) *TurnChunkRepo {
	return &TurnChunkRepo{db: db}
}

func (r *TurnChunkRepo) InsertIfAbsent(ctx context.Context, assoc *model.TurnChunk) (bool, error) {
	const query = `
		INSERT INTO turn_chunks (id, turn_id, chunk_id, relevance_score, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (turn_id, chunk_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, assoc.ID, assoc.TurnID, assoc.ChunkID, assoc.RelevanceScore, assoc.Ctime)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TurnChunkRepo) Get(ctx context.Context, turnID, chunkID string) (*model.TurnChunk, error) {
	const query = `
		SELECT id, turn_id, chunk_id, relevance_score, ctime
		FROM turn_chunks
		WHERE turn_id = $1 AND chunk_id = $2
	`
	rows, err := r.db.QueryContext(ctx, query, turnID, chunkID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var assoc model.TurnChunk
	if err := rows.Scan(&assoc.ID, &assoc.TurnID, &assoc.ChunkID, &assoc.RelevanceScore, &assoc.Ctime); err != nil {
		return nil, err
	}
	return &assoc, nil
}

func (r *TurnChunkRepo) ListByTurn(ctx context.Context, turnID string) ([]model.TurnChunk, error) {
	const query = `
		SELECT id, turn_id, chunk_id, relevance_score, ctime
		FROM turn_chunks
		WHERE turn_id = $1
		ORDER BY relevance_score DESC
	`
	rows, err := r.db.QueryContext(ctx, query, turnID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.TurnChunk
	for rows.Next() {
		var assoc model.TurnChunk
		if err := rows.Scan(&assoc.ID, &assoc.TurnID, &assoc.ChunkID, &assoc.RelevanceScore, &assoc.Ctime); err != nil {
			return nil, err
		}
		items = append(items, assoc)
	}
	return items, rows.Err()
}
