package model

import "github.com/shopspring/decimal"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TokenUsage is the denormalized token accounting stored on a turn for
// fast display; the authoritative record lives in api_usages.
type TokenUsage struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Turn is one message in a chat. Assistant turns produced by a
// comparison run carry the generation strategy in Variant and share a
// ComparisonGroupID with their siblings.
type Turn struct {
	ID                string              `json:"id"`
	ChatID            string              `json:"chat_id"`
	Role              string              `json:"role"`
	Content           string              `json:"content"`
	Variant           string              `json:"variant,omitempty"`
	ComparisonGroupID string              `json:"comparison_group_id,omitempty"`
	ProcessingTime    float64             `json:"processing_time,omitempty"`
	TotalCostUSD      decimal.NullDecimal `json:"total_cost_usd,omitempty"`
	TokenUsage        *TokenUsage         `json:"token_usage,omitempty"`
	Ctime             int64               `json:"ctime"`
}
