package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/kycscan/engine/models"
)

func graphWithOfferings() *models.NormalizedPageGraph {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://shop.example.com/",
		CanonicalURL: "https://shop.example.com/",
		PageType:     models.PageHome,
		Status:       200,
		HTML: `<html><body>
			<nav>
				<a href="/products/leather-wallets">Leather Wallets</a>
				<a href="/products/handbags">Handbags</a>
				<a href="/about">About</a>
			</nav>
		</body></html>`,
	})
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://shop.example.com/products/leather-wallets",
		CanonicalURL: "https://shop.example.com/products/leather-wallets",
		PageType:     models.PageProduct,
		Status:       200,
		HTML:         `<html><body><h1>Handcrafted Leather Wallets</h1><h2>Card Holders</h2></body></html>`,
		VisibleText:  "Handcrafted Leather Wallets Card Holders",
	})
	return g
}

func TestExtractFindsNavAnchorsAndHeadings(t *testing.T) {
	terms := RuleBased{}.Extract(graphWithOfferings())
	require.NotEmpty(t, terms)
	assert.Contains(t, terms, "Leather Wallets")
	assert.Contains(t, terms, "Handbags")
	assert.Contains(t, terms, "Card Holders")
	assert.NotContains(t, terms, "About")
}

func TestExtractSkipsStructuralAnchors(t *testing.T) {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://x.com/",
		CanonicalURL: "https://x.com/",
		PageType:     models.PageHome,
		Status:       200,
		HTML:         `<html><body><nav><a href="/products">Products</a><a href="/pricing">Pricing</a></nav></body></html>`,
	})
	assert.Empty(t, RuleBased{}.Extract(g))
}

func TestExtractNilGraph(t *testing.T) {
	assert.Empty(t, RuleBased{}.Extract(nil))
}

func TestMatchAllDeclaredItemsFound(t *testing.T) {
	status := Match(
		[]string{"leather wallets", "handbags"},
		[]string{"Leather Wallets", "Handbags", "Card Holders"},
		"we sell handcrafted leather goods",
	)
	assert.Equal(t, models.ProductMatch, status)
}

func TestMatchPartialOverlap(t *testing.T) {
	status := Match(
		[]string{"leather wallets", "industrial solvents"},
		[]string{"Leather Wallets"},
		"handcrafted leather wallets for every occasion",
	)
	assert.Equal(t, models.ProductPartialMatch, status)
}

func TestMatchNothingDeclaredAppearsOnSite(t *testing.T) {
	status := Match(
		[]string{"industrial solvents", "mining equipment"},
		[]string{"Leather Wallets", "Handbags"},
		"handcrafted leather goods and accessories",
	)
	assert.Equal(t, models.ProductMismatch, status)
}

func TestMatchSiteExhibitsNoOffering(t *testing.T) {
	status := Match([]string{"leather wallets"}, nil, "welcome to our website")
	assert.Equal(t, models.ProductMismatch, status)
}

func TestMatchGenericDeclarationIsUnverifiable(t *testing.T) {
	status := Match([]string{"online services", "other products"}, []string{"Leather Wallets"}, "leather goods")
	assert.Equal(t, models.ProductUnableToVerify, status)
}

func TestMatchNoDeclaredItems(t *testing.T) {
	assert.Equal(t, models.ProductUnableToVerify, Match(nil, []string{"x"}, "y"))
}
