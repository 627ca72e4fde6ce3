package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

var sourceFields = []string{"id", "url", "title", "excerpt", "ctime", "mtime"}

// InsertIfAbsent inserts the source unless a row with the same URL
// already exists. It reports whether the insert won; on a lost race the
// caller re-reads the winning row, so existing title/excerpt are never
// overwritten.
func (r *SourceRepo) InsertIfAbsent(ctx context.Context, src *model.Source) (bool, error) {
	const query = `
		INSERT INTO sources (id, url, title, excerpt, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, src.ID, src.URL, src.Title, src.Excerpt, src.Ctime, src.Mtime)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SourceRepo) GetByURL(ctx context.Context, url string) (*model.Source, error) {
	return r.getOne(ctx, map[string]interface{}{"url": url})
}

func (r *SourceRepo) GetByID(ctx context.Context, id string) (*model.Source, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

func (r *SourceRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Source, error) {
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var src model.Source
	if err := rows.Scan(&src.ID, &src.URL, &src.Title, &src.Excerpt, &src.Ctime, &src.Mtime); err != nil {
		return nil, err
	}
	return &src, nil
}

// SourcePopularity is a source together with the number of turns that
// cite it.
type SourcePopularity struct {
	Source    model.Source `json:"source"`
	TurnCount int          `json:"turn_count"`
}

func (r *SourceRepo) ListByPopularity(ctx context.Context, limit uint) ([]SourcePopularity, error) {
	const query = `
		SELECT s.id, s.url, s.title, s.excerpt, s.ctime, s.mtime, COUNT(ts.id) AS turn_count
		FROM sources s
		LEFT JOIN turn_sources ts ON ts.source_id = s.id
		GROUP BY s.id
		ORDER BY turn_count DESC, s.ctime DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]SourcePopularity, 0, limit)
	for rows.Next() {
		var item SourcePopularity
		if err := rows.Scan(&item.Source.ID, &item.Source.URL, &item.Source.Title, &item.Source.Excerpt,
			&item.Source.Ctime, &item.Source.Mtime, &item.TurnCount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteOrphans removes sources older than the cutoff that no turn
// cites anymore. Chunk rows follow by cascade.
func (r *SourceRepo) DeleteOrphans(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM sources s
		WHERE s.ctime < $1
		  AND NOT EXISTS (SELECT 1 FROM turn_sources ts WHERE ts.source_id = s.id)
		  AND NOT EXISTS (
			SELECT 1 FROM turn_chunks tc
			JOIN chunks c ON c.id = tc.chunk_id
			WHERE c.source_id = s.id
		  )
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
