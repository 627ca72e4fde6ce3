package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type TurnRepo struct {
	db *sql.DB
}

func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

const turnColumns = "id, chat_id, role, content, variant, comparison_group_id, processing_time, total_cost_usd, token_usage, ctime"

func (r *TurnRepo) Create(ctx context.Context, turn *model.Turn) error {
	const query = `
		INSERT INTO turns (id, chat_id, role, content, variant, comparison_group_id, processing_time, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, turn.ID, turn.ChatID, turn.Role, turn.Content,
		turn.Variant, turn.ComparisonGroupID, turn.ProcessingTime, turn.Ctime)
	return err
}

// SetCost writes the denormalized cost fields after a usage record was
// persisted with resolved pricing. Turns are otherwise immutable.
func (r *TurnRepo) SetCost(ctx context.Context, turnID string, cost decimal.Decimal, usage *model.TokenUsage) error {
	buf, err := json.Marshal(usage)
	if err != nil {
		return err
	}
	const query = `UPDATE turns SET total_cost_usd = $1, token_usage = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, cost, buf, turnID)
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

func (r *TurnRepo) GetByID(ctx context.Context, turnID string) (*model.Turn, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+turnColumns+" FROM turns WHERE id = $1", turnID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanTurn(rows)
}

func (r *TurnRepo) ListByChat(ctx context.Context, chatID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+turnColumns+" FROM turns WHERE chat_id = $1 ORDER BY ctime, id", chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var turns []model.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

func (r *TurnRepo) ListByComparisonGroup(ctx context.Context, groupID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+turnColumns+" FROM turns WHERE comparison_group_id = $1 ORDER BY ctime, id", groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var turns []model.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

func (r *TurnRepo) CountByChatRole(ctx context.Context, chatID, role string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns WHERE chat_id = $1 AND role = $2", chatID, role).Scan(&count)
	return count, err
}

func scanTurn(rows *sql.Rows) (*model.Turn, error) {
	var turn model.Turn
	var tokenUsage []byte
	if err := rows.Scan(&turn.ID, &turn.ChatID, &turn.Role, &turn.Content, &turn.Variant,
		&turn.ComparisonGroupID, &turn.ProcessingTime, &turn.TotalCostUSD, &tokenUsage, &turn.Ctime); err != nil {
		return nil, err
	}
	if len(tokenUsage) > 0 {
		var usage model.TokenUsage
		if err := json.Unmarshal(tokenUsage, &usage); err != nil {
			return nil, err
		}
		turn.TokenUsage = &usage
	}
	return &turn, nil
}
