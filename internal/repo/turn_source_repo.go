package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type TurnSourceRepo struct {
	db *sql.DB
}

func NewTurnSourceRepo(db *sql.DB) *TurnSourceRepo {
	return &TurnSourceRepo{db: db}
}

// InsertIfAbsent creates the (turn, source) association unless one
// already exists. The first persisted score wins; a duplicate insert is
// a no-op and the caller re-reads the existing row.
func (r *TurnSourceRepo) InsertIfAbsent(ctx context.Context, assoc *model.TurnSource) (bool, error) {
	const query = `
		INSERT INTO turn_sources (id, turn_id, source_id, relevance_score, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (turn_id, source_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, assoc.ID, assoc.TurnID, assoc.SourceID, assoc.RelevanceScore, assoc.Ctime)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TurnSourceRepo) Get(ctx context.Context, turnID, sourceID string) (*model.TurnSource, error) {
	const query = `
		SELECT id, turn_id, source_id, relevance_score, ctime
		FROM turn_sources
		WHERE turn_id = $1 AND source_id = $2
	`
	rows, err := r.db.QueryContext(ctx, query, turnID, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var assoc model.TurnSource
	if err := rows.Scan(&assoc.ID, &assoc.TurnID, &assoc.SourceID, &assoc.RelevanceScore, &assoc.Ctime); err != nil {
		return nil, err
	}
	return &assoc, nil
}

func (r *TurnSourceRepo) ListByTurn(ctx context.Context, turnID string) ([]model.TurnSource, error) {
	const query = `
		SELECT id, turn_id, source_id, relevance_score, ctime
		FROM turn_sources
		WHERE turn_id = $1
		ORDER BY relevance_score DESC
	`
	rows, err := r.db.QueryContext(ctx, query, turnID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.TurnSource
	for rows.Next() {
		var assoc model.TurnSource
		if err := rows.Scan(&assoc.ID, &assoc.TurnID, &assoc.SourceID, &assoc.RelevanceScore, &assoc.Ctime); err != nil {
			return nil, err
		}
		items = append(items, assoc)
	}
	return items, rows.Err()
}
