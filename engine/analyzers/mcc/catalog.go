// Package mcc classifies a crawled site into a merchant category code by
// scoring keyword hits against a fixed hierarchical catalog.
package mcc

// entry is one leaf of the category/subcategory/code catalog.
type entry struct {
	category    string
	subcategory string
	code        string
	keywords    []string
}

// catalog is the fixed hierarchical dictionary of merchant categories. It is
// trimmed to a representative set, not the full ISO 18245 table.
var catalog = []entry{
	{"Retail", "Fashion", "5651", []string{
		"clothing", "apparel", "fashion", "footwear", "shoes", "boutique", "menswear", "womenswear", "accessories",
	}},
	{"Retail", "Groceries", "5411", []string{
		"grocery", "supermarket", "fresh produce", "organic food", "fmcg", "convenience store",
	}},
	{"Retail", "Electronics", "5732", []string{
		"electronics", "gadgets", "smartphone", "laptop", "computer hardware", "consumer electronics", "appliances",
	}},
	{"Retail", "Home", "5712", []string{
		"furniture", "home decor", "home improvement", "kitchenware", "interior design", "furnishings",
	}},
	{"Services", "Professional", "7392", []string{
		"consulting", "legal services", "accounting", "law firm", "advisory", "audit services",
	}},
	{"Services", "Financial", "6012", []string{
		"banking", "lending", "insurance", "wealth management", "investment advisory", "brokerage", "loans",
		"credit card", "payment processing", "money transfer", "forex",
	}},
	{"Services", "Education", "8299", []string{
		"online course", "e-learning", "tuition", "university", "school", "training program", "certification course",
	}},
	{"Services", "Health", "8011", []string{
		"clinic", "hospital", "telemedicine", "pharmacy", "healthcare", "dental", "physician", "medical services",
	}},
	{"Travel", "Airlines", "4511", []string{
		"flight booking", "airline", "airfare", "boarding pass",
	}},
	{"Travel", "Hospitality", "7011", []string{
		"hotel booking", "resort", "vacation rental", "accommodation", "travel package",
	}},
	{"Entertainment", "Streaming", "7922", []string{
		"streaming service", "video on demand", "music streaming", "subscription entertainment",
	}},
	{"Entertainment", "Gaming", "7994", []string{
		"online casino", "betting", "gambling", "sportsbook", "poker", "slots", "wager",
	}},
}
