package plans

// defaultCatalog mirrors plans.yaml so a fresh checkout runs without the file.
var defaultCatalog = CatalogConfig{
	Version: 1,
	Plans: []PlanConfig{
		{Id: "starter", Name: "Starter Plan", MinAmount: "100", MaxAmount: "999", ProfitPercent: "10", Cycle: "24h", Maturity: "168h"},
		{Id: "professional", Name: "Professional Plan", MinAmount: "1000", MaxAmount: "9999", ProfitPercent: "30", Cycle: "72h", Maturity: "720h"},
		{Id: "premium", Name: "Premium Plan", MinAmount: "10000", MaxAmount: "49999", ProfitPercent: "45", Cycle: "96h", Maturity: "1440h"},
		{Id: "enterprise", Name: "Enterprise Plan", MinAmount: "50000", ProfitPercent: "60", Cycle: "168h", Maturity: "2160h"},
	},
}

// Default returns the built-in catalog
func Default() *Catalog {
	catalog, err := FromConfig(defaultCatalog)
	if err != nil {
		panic("built-in plan catalog is invalid: " + err.Error())
	}
	return catalog
}
