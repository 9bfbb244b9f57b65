package models

// AssetRecord is static descriptive data about one cryptocurrency.
type AssetRecord struct {
	Name                string `json:"-" yaml:"name"`
	PriceTrend          string `json:"price_trend" yaml:"price_trend"`
	MarketCap           string `json:"market_cap" yaml:"market_cap"`
	EnergyUse           string `json:"energy_use" yaml:"energy_use"`
	SustainabilityScore int    `json:"sustainability_score" yaml:"sustainability_score"`
	Sentiment           string `json:"sentiment" yaml:"sentiment"`
	Category            string `json:"category" yaml:"category"`
}
