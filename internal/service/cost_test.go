package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

func pricingOf(input, output string) *model.ModelPricing {
	return &model.ModelPricing{
		ModelName:       "gpt-4-turbo-preview",
		InputCostPer1K:  decimal.RequireFromString(input),
		OutputCostPer1K: decimal.RequireFromString(output),
	}
}

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name       string
		prompt     int
		completion int
		pricing    *model.ModelPricing
		want       string
	}{
		{
			name:       "split rates",
			prompt:     1000,
			completion: 500,
			pricing:    pricingOf("0.01", "0.03"),
			want:       "0.025",
		},
		{
			name:       "fractional token counts",
			prompt:     123,
			completion: 456,
			pricing:    pricingOf("0.0015", "0.002"),
			want:       "0.001097",
		},
		{
			name:       "zero completion allowed",
			prompt:     1000,
			completion: 0,
			pricing:    pricingOf("0.03", "0.06"),
			want:       "0.03",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateCost(tt.prompt, tt.completion, tt.pricing)
			require.NoError(t, err)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got.String(), tt.want)
		})
	}
}

func TestCalculateCostRejectsInvalidCounts(t *testing.T) {
	pricing := pricingOf("0.01", "0.03")

	_, err := CalculateCost(0, 10, pricing)
	require.ErrorIs(t, err, appErr.ErrInvalidUsage)

	_, err = CalculateCost(-5, 10, pricing)
	require.ErrorIs(t, err, appErr.ErrInvalidUsage)

	_, err = CalculateCost(10, -1, pricing)
	require.ErrorIs(t, err, appErr.ErrInvalidUsage)
}

func TestCalculateCostRoundsToStorageScale(t *testing.T) {
	// 7 / 1000 * 0.0015 = 0.0000105, one digit past NUMERIC(10,6).
	got, err := CalculateCost(7, 0, pricingOf("0.0015", "0.002"))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("0.000011")),
		"unexpected rounding: %s", got.String())
}
