package model

import "github.com/shopspring/decimal"

// APIUsage is the immutable token accounting record of one generation
// call. PricingKnown distinguishes a genuinely free call from one whose
// cost could not be resolved at ingest time.
type APIUsage struct {
	ID               string          `json:"id"`
	TurnID           string          `json:"turn_id"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	CostUSD          decimal.Decimal `json:"cost_usd"`
	PricingKnown     bool            `json:"pricing_known"`
	RequestTimestamp int64           `json:"request_timestamp"`
	ResponseTimeMs   int             `json:"response_time_ms,omitempty"`
	Ctime            int64           `json:"ctime"`
}
