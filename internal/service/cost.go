package service

import (
	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

var tokensPerRate = decimal.NewFromInt(1000)

// CostScale is the fixed-point precision of every monetary value the
// pipeline produces. Matches the NUMERIC(10,6) storage columns.
const CostScale = 6

// CalculateCost prices a generation call: rates are USD per 1000
// tokens, split into input (prompt) and output (completion) rates.
// Decimal arithmetic throughout; float accumulation drift across
// millions of turns is not acceptable in an accounting path.
func CalculateCost(promptTokens, completionTokens int, pricing *model.ModelPricing) (decimal.Decimal, error) {
	if promptTokens <= 0 || completionTokens < 0 {
		return decimal.Zero, appErr.ErrInvalidUsage
	}
	inputCost := decimal.NewFromInt(int64(promptTokens)).
		Div(tokensPerRate).
		Mul(pricing.InputCostPer1K)
	outputCost := decimal.NewFromInt(int64(completionTokens)).
		Div(tokensPerRate).
		Mul(pricing.OutputCostPer1K)
	return inputCost.Add(outputCost).Round(CostScale), nil
}
