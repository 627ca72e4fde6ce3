package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
)

type pricingResolver interface {
	Resolve(ctx context.Context, modelName string, asOf int64) (*model.ModelPricing, error)
}

type usageStore interface {
	InsertIfAbsent(ctx context.Context, usage *model.APIUsage) (bool, error)
	GetByTurn(ctx context.Context, turnID string) (*model.APIUsage, error)
}

type turnCostSetter interface {
	SetCost(ctx context.Context, turnID string, cost decimal.Decimal, usage *model.TokenUsage) error
}

// UsageService persists one immutable usage record per assistant turn
// and denormalizes the computed cost back onto the turn.
type UsageService struct {
	usages  usageStore
	turns   turnCostSetter
	pricing pricingResolver
}

func NewUsageService(usages usageStore, turns turnCostSetter, pricing pricingResolver) *UsageService {
	return &UsageService{usages: usages, turns: turns, pricing: pricing}
}

// Record prices and persists the usage data for a turn. A nil record
// with nil error means the call was skipped because there was nothing
// to account (total_tokens <= 0). When pricing cannot be resolved the
// record is still written with cost 0 and pricing_known=false; "cost
// unknown" must never masquerade as "free".
func (s *UsageService) Record(ctx context.Context, turn *model.Turn, data *generation.UsageData) (*model.APIUsage, error) {
	if data == nil || data.TotalTokens <= 0 {
		return nil, nil
	}
	if data.PromptTokens <= 0 || data.CompletionTokens < 0 || data.Model == "" {
		return nil, appErr.ErrInvalidUsage
	}
	now := timeutil.NowUnix()

	cost := decimal.Zero
	pricingKnown := false
	pricing, err := s.pricing.Resolve(ctx, data.Model, now)
	switch {
	case err == nil:
		cost, err = CalculateCost(data.PromptTokens, data.CompletionTokens, pricing)
		if err != nil {
			return nil, err
		}
		pricingKnown = true
	case appErr.IsNotFound(err):
		// cost unknown, record anyway
	default:
		return nil, err
	}

	usage := &model.APIUsage{
		ID:               newID(),
		TurnID:           turn.ID,
		Model:            data.Model,
		PromptTokens:     data.PromptTokens,
		CompletionTokens: data.CompletionTokens,
		TotalTokens:      data.TotalTokens,
		CostUSD:          cost,
		PricingKnown:     pricingKnown,
		RequestTimestamp: now,
		ResponseTimeMs:   data.ResponseTimeMs,
		Ctime:            now,
	}
	inserted, err := s.usages.InsertIfAbsent(ctx, usage)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Retried delivery: the first record stands, cost is not
		// counted twice.
		return s.usages.GetByTurn(ctx, turn.ID)
	}
	if pricingKnown {
		tokenUsage := &model.TokenUsage{
			Model:            data.Model,
			PromptTokens:     data.PromptTokens,
			CompletionTokens: data.CompletionTokens,
			TotalTokens:      data.TotalTokens,
		}
		if err := s.turns.SetCost(ctx, turn.ID, cost, tokenUsage); err != nil {
			return nil, err
		}
		turn.TotalCostUSD = decimal.NewNullDecimal(cost)
		turn.TokenUsage = tokenUsage
	}
	return usage, nil
}
