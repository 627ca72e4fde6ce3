package repo

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// InsertIfAbsent persists the usage record unless the turn already has
// one. Usage rows are immutable; a retried delivery is a no-op.
func (r *UsageRepo) InsertIfAbsent(ctx context.Context, usage *model.APIUsage) (bool, error) {
	const query = `
		INSERT INTO api_usages (id, turn_id, model, prompt_tokens, completion_tokens, total_tokens,
			cost_usd, pricing_known, request_timestamp, response_time_ms, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (turn_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, usage.ID, usage.TurnID, usage.Model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		usage.CostUSD, usage.PricingKnown, usage.RequestTimestamp, usage.ResponseTimeMs, usage.Ctime)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *UsageRepo) GetByTurn(ctx context.Context, turnID string) (*model.APIUsage, error) {
	const query = `
		SELECT id, turn_id, model, prompt_tokens, completion_tokens, total_tokens,
			cost_usd, pricing_known, request_timestamp, response_time_ms, ctime
		FROM api_usages
		WHERE turn_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, turnID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var usage model.APIUsage
	if err := rows.Scan(&usage.ID, &usage.TurnID, &usage.Model, &usage.PromptTokens,
		&usage.CompletionTokens, &usage.TotalTokens, &usage.CostUSD, &usage.PricingKnown,
		&usage.RequestTimestamp, &usage.ResponseTimeMs, &usage.Ctime); err != nil {
		return nil, err
	}
	return &usage, nil
}

// UsageTotals aggregates cost and token counts over a time range.
type UsageTotals struct {
	TotalCostUSD decimal.Decimal `json:"total_cost_usd"`
	TotalTokens  int64           `json:"total_tokens"`
	RequestCount int64           `json:"request_count"`
}

func (r *UsageRepo) Totals(ctx context.Context, from, to int64) (*UsageTotals, error) {
	const query = `
		SELECT COALESCE(SUM(cost_usd), 0), COALESCE(SUM(total_tokens), 0), COUNT(*)
		FROM api_usages
		WHERE request_timestamp >= $1 AND request_timestamp < $2
	`
	var totals UsageTotals
	if err := r.db.QueryRowContext(ctx, query, from, to).
		Scan(&totals.TotalCostUSD, &totals.TotalTokens, &totals.RequestCount); err != nil {
		return nil, err
	}
	return &totals, nil
}

// ModelUsage is the per-model breakdown of UsageTotals.
type ModelUsage struct {
	Model string `json:"model"`
	UsageTotals
}

func (r *UsageRepo) TotalsByModel(ctx context.Context, from, to int64) ([]ModelUsage, error) {
	const query = `
		SELECT model, COALESCE(SUM(cost_usd), 0), COALESCE(SUM(total_tokens), 0), COUNT(*)
		FROM api_usages
		WHERE request_timestamp >= $1 AND request_timestamp < $2
		GROUP BY model
		ORDER BY SUM(cost_usd) DESC
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []ModelUsage
	for rows.Next() {
		var item ModelUsage
		if err := rows.Scan(&item.Model, &item.TotalCostUSD, &item.TotalTokens, &item.RequestCount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DailyUsage is the per-day breakdown of UsageTotals.
type DailyUsage struct {
	Date string `json:"date"`
	UsageTotals
}

func (r *UsageRepo) TotalsByDay(ctx context.Context, from, to int64) ([]DailyUsage, error) {
	const query = `
		SELECT TO_CHAR(TO_TIMESTAMP(request_timestamp) AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COALESCE(SUM(cost_usd), 0), COALESCE(SUM(total_tokens), 0), COUNT(*)
		FROM api_usages
		WHERE request_timestamp >= $1 AND request_timestamp < $2
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []DailyUsage
	for rows.Next() {
		var item DailyUsage
		if err := rows.Scan(&item.Date, &item.TotalCostUSD, &item.TotalTokens, &item.RequestCount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
