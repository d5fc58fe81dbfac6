package mcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_NoHitsReturnsNil(t *testing.T) {
	m := Classify([]PageText{{URL: "https://example.com", Text: "a quiet personal blog about gardening"}})
	assert.Nil(t, m)
}

func TestClassify_FinancialServicesMatch(t *testing.T) {
	pages := []PageText{
		{URL: "https://example.com/", Text: "We offer banking, lending and wealth management services with investment advisory and brokerage accounts."},
		{URL: "https://example.com/loans", Text: "Apply for loans and credit card products, plus money transfer and forex."},
	}
	m := Classify(pages)
	require.NotNil(t, m)
	assert.Equal(t, "Services", m.Category)
	assert.Equal(t, "Financial", m.Subcategory)
	assert.Equal(t, "6012", m.Code)
	assert.GreaterOrEqual(t, m.Confidence, minConfidence)
	assert.ElementsMatch(t, []string{"https://example.com/", "https://example.com/loans"}, m.MatchedPages)
}

func TestClassify_BelowThresholdIsFlaggedLowConfidence(t *testing.T) {
	pages := []PageText{{URL: "https://example.com/", Text: "clothing"}}
	m := Classify(pages)
	require.NotNil(t, m)
	assert.True(t, m.LowConfidence)
	assert.Less(t, m.Confidence, minConfidence)
}

func TestClassify_HighestScoreWins(t *testing.T) {
	pages := []PageText{
		{URL: "https://example.com/", Text: "clothing apparel fashion footwear shoes boutique"},
		{URL: "https://example.com/about", Text: "grocery"},
	}
	m := Classify(pages)
	require.NotNil(t, m)
	assert.Equal(t, "Fashion", m.Subcategory)
}

func TestClassify_RunnerUpBecomesSecondary(t *testing.T) {
	pages := []PageText{
		{URL: "https://example.com/", Text: "clothing apparel fashion footwear shoes boutique"},
		{URL: "https://example.com/food", Text: "grocery supermarket"},
	}
	m := Classify(pages)
	require.NotNil(t, m)
	require.NotNil(t, m.Secondary)
	assert.Equal(t, "Fashion", m.Subcategory)
	assert.NotEqual(t, m.Code, m.Secondary.Code)
	assert.Nil(t, m.Secondary.Secondary)
	assert.LessOrEqual(t, m.Secondary.Confidence, m.Confidence)
}
