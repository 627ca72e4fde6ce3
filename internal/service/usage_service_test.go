package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

type fakePricingResolver struct {
	pricing *model.ModelPricing
}

func (f *fakePricingResolver) Resolve(ctx context.Context, modelName string, asOf int64) (*model.ModelPricing, error) {
	if f.pricing == nil || f.pricing.ModelName != modelName {
		return nil, appErr.ErrNotFound
	}
	return f.pricing, nil
}

type fakeUsageStore struct {
	byTurn map[string]*model.APIUsage
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{byTurn: map[string]*model.APIUsage{}}
}

func (f *fakeUsageStore) InsertIfAbsent(ctx context.Context, usage *model.APIUsage) (bool, error) {
	if _, ok := f.byTurn[usage.TurnID]; ok {
		return false, nil
	}
	f.byTurn[usage.TurnID] = usage
	return true, nil
}

func (f *fakeUsageStore) GetByTurn(ctx context.Context, turnID string) (*model.APIUsage, error) {
	usage, ok := f.byTurn[turnID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return usage, nil
}

type fakeTurnCostSetter struct {
	setCalls int
	lastCost decimal.Decimal
}

func (f *fakeTurnCostSetter) SetCost(ctx context.Context, turnID string, cost decimal.Decimal, usage *model.TokenUsage) error {
	f.setCalls++
	f.lastCost = cost
	return nil
}

func TestUsageRecordSkipsEmptyUsage(t *testing.T) {
	svc := NewUsageService(newFakeUsageStore(), &fakeTurnCostSetter{}, &fakePricingResolver{})
	turn := &model.Turn{ID: "turn-1"}

	usage, err := svc.Record(context.Background(), turn, nil)
	require.NoError(t, err)
	require.Nil(t, usage)

	usage, err = svc.Record(context.Background(), turn, &generation.UsageData{Model: "gpt-4", TotalTokens: 0})
	require.NoError(t, err)
	require.Nil(t, usage)
}

func TestUsageRecordRejectsMalformedUsage(t *testing.T) {
	svc := NewUsageService(newFakeUsageStore(), &fakeTurnCostSetter{}, &fakePricingResolver{})
	turn := &model.Turn{ID: "turn-1"}

	_, err := svc.Record(context.Background(), turn, &generation.UsageData{Model: "gpt-4", PromptTokens: 0, TotalTokens: 10})
	require.ErrorIs(t, err, appErr.ErrInvalidUsage)

	_, err = svc.Record(context.Background(), turn, &generation.UsageData{Model: "", PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10})
	require.ErrorIs(t, err, appErr.ErrInvalidUsage)
}

func TestUsageRecordWithKnownPricing(t *testing.T) {
	setter := &fakeTurnCostSetter{}
	resolver := &fakePricingResolver{pricing: &model.ModelPricing{
		ModelName:       "gpt-4-turbo-preview",
		InputCostPer1K:  decimal.RequireFromString("0.01"),
		OutputCostPer1K: decimal.RequireFromString("0.03"),
	}}
	svc := NewUsageService(newFakeUsageStore(), setter, resolver)
	turn := &model.Turn{ID: "turn-1"}

	usage, err := svc.Record(context.Background(), turn, &generation.UsageData{
		Model: "gpt-4-turbo-preview", PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500,
	})
	require.NoError(t, err)
	require.NotNil(t, usage)
	require.True(t, usage.PricingKnown)
	require.True(t, usage.CostUSD.Equal(decimal.RequireFromString("0.025")), "got %s", usage.CostUSD)

	require.Equal(t, 1, setter.setCalls)
	require.True(t, setter.lastCost.Equal(decimal.RequireFromString("0.025")))
	require.True(t, turn.TotalCostUSD.Valid)
	require.NotNil(t, turn.TokenUsage)
	require.Equal(t, 1500, turn.TokenUsage.TotalTokens)
}

func TestUsageRecordUnknownModelStoresZeroCost(t *testing.T) {
	setter := &fakeTurnCostSetter{}
	svc := NewUsageService(newFakeUsageStore(), setter, &fakePricingResolver{})
	turn := &model.Turn{ID: "turn-1"}

	usage, err := svc.Record(context.Background(), turn, &generation.UsageData{
		Model: "some-unlisted-model", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
	})
	require.NoError(t, err)
	require.NotNil(t, usage)
	require.False(t, usage.PricingKnown)
	require.True(t, usage.CostUSD.IsZero())
	require.Equal(t, 0, setter.setCalls, "unknown cost is never denormalized onto the turn")
}

func TestUsageRecordIsIdempotentPerTurn(t *testing.T) {
	setter := &fakeTurnCostSetter{}
	resolver := &fakePricingResolver{pricing: &model.ModelPricing{
		ModelName:       "gpt-4",
		InputCostPer1K:  decimal.RequireFromString("0.03"),
		OutputCostPer1K: decimal.RequireFromString("0.06"),
	}}
	store := newFakeUsageStore()
	svc := NewUsageService(store, setter, resolver)
	turn := &model.Turn{ID: "turn-1"}
	data := &generation.UsageData{Model: "gpt-4", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}

	first, err := svc.Record(context.Background(), turn, data)
	require.NoError(t, err)

	second, err := svc.Record(context.Background(), turn, data)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "retried delivery returns the original record")
	require.Equal(t, 1, setter.setCalls, "cost is not counted twice")
	require.Len(t, store.byTurn, 1)
}
