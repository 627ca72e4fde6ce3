package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type PricingRepo struct {
	db *sql.DB
}

func NewPricingRepo(db *sql.DB) *PricingRepo {
	return &PricingRepo{db: db}
}

const pricingColumns = "id, model_name, input_cost_per_1k, output_cost_per_1k, effective_from, is_active, ctime"

// ResolveActive returns the pricing in effect for a model as of the
// given time: the newest active row whose effective_from is not in the
// future. ErrNotFound means cost is unknown, not that anything failed.
func (r *PricingRepo) ResolveActive(ctx context.Context, modelName string, asOf int64) (*model.ModelPricing, error) {
	const query = `
		SELECT ` + pricingColumns + `
		FROM model_pricings
		WHERE model_name = $1 AND is_active AND effective_from <= $2
		ORDER BY effective_from DESC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, modelName, asOf)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanPricing(rows)
}

// Set appends a new pricing row for the model and deactivates the
// previous active one in the same transaction, so the partial unique
// index on (model_name) WHERE is_active never sees two winners.
func (r *PricingRepo) Set(ctx context.Context, pricing *model.ModelPricing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE model_pricings SET is_active = FALSE WHERE model_name = $1 AND is_active", pricing.ModelName); err != nil {
		return err
	}
	const insert = `
		INSERT INTO model_pricings (id, model_name, input_cost_per_1k, output_cost_per_1k, effective_from, is_active, ctime)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`
	if _, err := tx.ExecContext(ctx, insert, pricing.ID, pricing.ModelName,
		pricing.InputCostPer1K, pricing.OutputCostPer1K, pricing.EffectiveFrom, pricing.Ctime); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return tx.Commit()
}

func (r *PricingRepo) ListActive(ctx context.Context) ([]model.ModelPricing, error) {
	const query = `
		SELECT ` + pricingColumns + `
		FROM model_pricings
		WHERE is_active
		ORDER BY model_name
	`
	return r.list(ctx, query)
}

func (r *PricingRepo) ListByModel(ctx context.Context, modelName string) ([]model.ModelPricing, error) {
	const query = `
		SELECT ` + pricingColumns + `
		FROM model_pricings
		WHERE model_name = $1
		ORDER BY effective_from DESC
	`
	return r.list(ctx, query, modelName)
}

func (r *PricingRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.ModelPricing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.ModelPricing
	for rows.Next() {
		pricing, err := scanPricing(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *pricing)
	}
	return items, rows.Err()
}

func scanPricing(rows *sql.Rows) (*model.ModelPricing, error) {
	var pricing model.ModelPricing
	if err := rows.Scan(&pricing.ID, &pricing.ModelName, &pricing.InputCostPer1K,
		&pricing.OutputCostPer1K, &pricing.EffectiveFrom, &pricing.IsActive, &pricing.Ctime); err != nil {
		return nil, err
	}
	return &pricing, nil
}
