package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

// PricingService resolves the rate card in effect for a model at a
// point in time. The pricing table is an append-only log; "current" is
// always a query, so a short-lived LRU in front of it is safe.
type PricingService struct {
	pricings *repo.PricingRepo
	cache    *expirable.LRU[string, *model.ModelPricing]
}

func NewPricingService(pricings *repo.PricingRepo, cacheSize int, cacheTTL time.Duration) *PricingService {
	s := &PricingService{pricings: pricings}
	if cacheSize > 0 && cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, *model.ModelPricing](cacheSize, nil, cacheTTL)
	}
	return s
}

// Resolve returns the newest active pricing for the model with
// effective_from <= asOf, or ErrNotFound when the model has no usable
// rate. Callers treat ErrNotFound as "cost unknown", not a failure.
func (s *PricingService) Resolve(ctx context.Context, modelName string, asOf int64) (*model.ModelPricing, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(modelName); ok && cached.EffectiveFrom <= asOf {
			return cached, nil
		}
	}
	pricing, err := s.pricings.ResolveActive(ctx, modelName, asOf)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(modelName, pricing)
	}
	return pricing, nil
}

type SetPricingInput struct {
	ModelName       string
	InputCostPer1K  decimal.Decimal
	OutputCostPer1K decimal.Decimal
	EffectiveFrom   int64
}

// SetPricing appends a new rate for the model and retires the previous
// active one. The old log entries stay queryable for historical cost
// audits.
func (s *PricingService) SetPricing(ctx context.Context, input SetPricingInput) (*model.ModelPricing, error) {
	if input.ModelName == "" || !input.InputCostPer1K.IsPositive() || !input.OutputCostPer1K.IsPositive() {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	effective := input.EffectiveFrom
	if effective == 0 {
		effective = now
	}
	pricing := &model.ModelPricing{
		ID:              newID(),
		ModelName:       input.ModelName,
		InputCostPer1K:  input.InputCostPer1K,
		OutputCostPer1K: input.OutputCostPer1K,
		EffectiveFrom:   effective,
		IsActive:        true,
		Ctime:           now,
	}
	if err := s.pricings.Set(ctx, pricing); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Remove(input.ModelName)
	}
	return pricing, nil
}

func (s *PricingService) ListActive(ctx context.Context) ([]model.ModelPricing, error) {
	return s.pricings.ListActive(ctx)
}

func (s *PricingService) History(ctx context.Context, modelName string) ([]model.ModelPricing, error) {
	return s.pricings.ListByModel(ctx, modelName)
}
