package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestUsageAdd(t *testing.T) {
	var u Usage
	p := ResolvePricing("gemini-2.5-flash")

	cost := u.Add(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 100_000, TotalTokens: 1_100_000}, p)
	assert.InDelta(t, 0.30+0.25, cost, 1e-9)

	u.Add(&schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, p)
	assert.Equal(t, 1_000_010, u.PromptTokens)
	assert.Equal(t, 100_005, u.CompletionTokens)
	assert.Equal(t, 1_100_015, u.TotalTokens)

	assert.Zero(t, u.Add(nil, p))
}

func TestUnknownModelIsFree(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 100, CompletionTokens: 100}, ResolvePricing("local-llm"))
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.Zero(t, total)
}
