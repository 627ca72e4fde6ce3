package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var chatFields = []string{"id", "owner_kind", "owner_id", "title", "ctime", "mtime"}

func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	data := map[string]interface{}{
		"id":         chat.ID,
		"owner_kind": chat.OwnerKind,
		"owner_id":   chat.OwnerID,
		"title":      chat.Title,
		"ctime":      chat.Ctime,
		"mtime":      chat.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chats", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatRepo) GetByID(ctx context.Context, chatID string) (*model.Chat, error) {
	return r.getOne(ctx, map[string]interface{}{"id": chatID})
}

// FindLatestByOwner returns the most recent chat for an owner, used to
// resume anonymous sessions.
func (r *ChatRepo) FindLatestByOwner(ctx context.Context, ownerKind, ownerID string) (*model.Chat, error) {
	return r.getOne(ctx, map[string]interface{}{
		"owner_kind": ownerKind,
		"owner_id":   ownerID,
		"_orderby":   "ctime desc",
		"_limit":     []uint{0, 1},
	})
}

func (r *ChatRepo) ListByOwner(ctx context.Context, ownerKind, ownerID string, limit, offset uint) ([]model.Chat, error) {
	where := map[string]interface{}{
		"owner_kind": ownerKind,
		"owner_id":   ownerID,
		"_orderby":   "mtime desc",
		"_limit":     []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("chats", where, chatFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var chats []model.Chat
	for rows.Next() {
		var chat model.Chat
		if err := rows.Scan(&chat.ID, &chat.OwnerKind, &chat.OwnerID, &chat.Title, &chat.Ctime, &chat.Mtime); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) UpdateTitle(ctx context.Context, chatID, title string, mtime int64) error {
	sqlStr, args, err := builder.BuildUpdate("chats",
		map[string]interface{}{"id": chatID},
		map[string]interface{}{"title": title, "mtime": mtime})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ChatRepo) Touch(ctx context.Context, chatID string, mtime int64) error {
	sqlStr, args, err := builder.BuildUpdate("chats",
		map[string]interface{}{"id": chatID},
		map[string]interface{}{"mtime": mtime})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Chat, error) {
	sqlStr, args, err := builder.BuildSelect("chats", where, chatFields)
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
	var chat model.Chat
	if err := rows.Scan(&chat.ID, &chat.OwnerKind, &chat.OwnerID, &chat.Title, &chat.Ctime, &chat.Mtime); err != nil {
		return nil, err
	}
	return &chat, nil
}
