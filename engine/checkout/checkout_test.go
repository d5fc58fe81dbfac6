package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyScoresStrongCheckoutContentAboveThreshold(t *testing.T) {
	html := "<body>Order Total: $42.00 Payment Method: Visa Billing Address required</body>"
	score, evidence := classify("https://shop.example.com/checkout", html, true)
	assert.GreaterOrEqual(t, score, checkoutThreshold)
	assert.NotEmpty(t, evidence)
}

func TestClassifyPenalizesRepeatedAddToCart(t *testing.T) {
	html := "add to cart add to cart add to cart add to cart"
	score, _ := classify("https://shop.example.com/products", html, false)
	assert.Less(t, score, checkoutThreshold)
}

func TestClassifyScoreNeverNegativeOrAboveOne(t *testing.T) {
	score, _ := classify("https://example.com/products", "add to cart add to cart add to cart add to cart add to cart", false)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestFindCTAsDetectsKeywordCategories(t *testing.T) {
	ctas := findCTAs("Welcome! Buy Now or view our Pricing plans.")
	var categories []string
	for _, c := range ctas {
		categories = append(categories, c.category)
	}
	assert.Contains(t, categories, "buy")
	assert.Contains(t, categories, "pricing")
}

func TestXpathForBuildsCaseVariants(t *testing.T) {
	xpath := xpathFor("buy now")
	assert.Contains(t, xpath, "buy now")
	assert.Contains(t, xpath, "Buy now")
}

// TestValidateDegradesWhenBrowserUnavailable exercises the contract that a
// launch failure (no Chrome binary, denied exec) always yields a degraded
// result rather than an error or panic. Sandboxes without a browser binary
// hit this path deterministically.
func TestValidateDegradesWhenBrowserUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := Validate(ctx, "https://example.com/", nil, nil)
	if result.Degraded {
		assert.NotEmpty(t, result.DegradedReason)
	}
}
