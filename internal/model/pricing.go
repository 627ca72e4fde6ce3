package model

import "github.com/shopspring/decimal"

// ModelPricing is one entry in the append-only per-model pricing log.
// Rates are USD per 1000 tokens. At most one active row exists per
// model, enforced by a partial unique index; "current" is always a
// query over the log, never a hand-synchronized flag.
type ModelPricing struct {
	ID              string          `json:"id"`
	ModelName       string          `json:"model_name"`
	InputCostPer1K  decimal.Decimal `json:"input_cost_per_1k_tokens"`
	OutputCostPer1K decimal.Decimal `json:"output_cost_per_1k_tokens"`
	EffectiveFrom   int64           `json:"effective_from"`
	IsActive        bool            `json:"is_active"`
	Ctime           int64           `json:"ctime"`
}
