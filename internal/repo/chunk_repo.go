package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertIfAbsent inserts the chunk unless one with the same
// (source, content, chunk_type) identity exists. Content equality is
// enforced through the md5 expression index, so the conflict target
// must match it exactly.
func (r *ChunkRepo) InsertIfAbsent(ctx context.Context, chunk *model.Chunk) (bool, error) {
	meta, err := marshalMetadata(chunk.Metadata)
	if err != nil {
		return false, err
	}
	const query = `
		INSERT INTO chunks (id, source_id, content, chunk_type, excerpt, chunk_size, document_id, metadata, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_id, md5(content), chunk_type) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, chunk.ID, chunk.SourceID, chunk.Content, chunk.ChunkType,
		chunk.Excerpt, chunk.ChunkSize, chunk.DocumentID, meta, chunk.Ctime)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ChunkRepo) GetByIdentity(ctx context.Context, sourceID, content, chunkType string) (*model.Chunk, error) {
	const query = `
		SELECT id, source_id, content, chunk_type, excerpt, chunk_size, document_id, metadata, ctime
		FROM chunks
		WHERE source_id = $1 AND md5(content) = md5($2) AND content = $2 AND chunk_type = $3
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID, content, chunkType)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanChunk(rows)
}

func (r *ChunkRepo) ListBySource(ctx context.Context, sourceID string) ([]model.Chunk, error) {
	const query = `
		SELECT id, source_id, content, chunk_type, excerpt, chunk_size, document_id, metadata, ctime
		FROM chunks
		WHERE source_id = $1
		ORDER BY ctime
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var chunks []model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows) (*model.Chunk, error) {
	var chunk model.Chunk
	var meta []byte
	if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Content, &chunk.ChunkType,
		&chunk.Excerpt, &chunk.ChunkSize, &chunk.DocumentID, &meta, &chunk.Ctime); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
			return nil, err
		}
	}
	return &chunk, nil
}

func marshalMetadata(meta map[string]string) (interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
