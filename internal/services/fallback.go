package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cryptopal-backend/internal/assets"
	"cryptopal-backend/internal/models"
)

type keywordResponse struct {
	keyword  string
	response string
}

// Order is significant: the first keyword found in the query wins.
var keywordResponses = []keywordResponse{
	{"hello", "👋 Hello! I'm CryptoPal AI. I can help you with crypto investment advice, market analysis, and more. What interests you about cryptocurrencies?"},
	{"sustain", "🌱 **Sustainable Cryptos**:\n• Cardano (8/10) - Energy-efficient\n• Polkadot (8/10) - Eco-friendly\n• Solana (7/10) - Low energy use\n\nWhat aspect of sustainability interests you?"},
	{"trend", "📈 **Current Trends**:\n• Bitcoin - Rising as digital gold\n• Cardano - Growing adoption\n• Market - Cautiously optimistic\n\nWant analysis on specific coins?"},
	{"profit", "💰 **Profit Potential**:\n• Short-term: Trading opportunities\n• Long-term: BTC, ETH fundamentals\n• Diversify across sectors\n\nWhat's your investment horizon?"},
	{"risk", "⚠️ **Risk Levels**:\n• High: New tokens\n• Medium: Mid-cap coins\n• Lower: Established projects\n\nWhat's your risk tolerance?"},
	{"beginner", "🎯 **For Beginners**:\n1. Start with Bitcoin/ETH\n2. Learn security basics\n3. Use dollar-cost averaging\n4. Stay informed\n\nWhat's your main goal?"},
	{"bitcoin", "₿ **Bitcoin**:\n• Category: Store of Value\n• Trend: Rising\n• Sustainability: 3/10\n• Energy: High (PoW)\n• Sentiment: Bullish\n\nWant to compare with other coins?"},
	{"ethereum", "Ξ **Ethereum**:\n• Category: Smart Contracts\n• Trend: Stable\n• Sustainability: 6/10\n• Energy: Medium\n• Sentiment: Neutral\n\nInterested in Ethereum upgrades?"},
	{"cardano", "ADA **Cardano**:\n• Category: Proof of Stake\n• Trend: Rising\n• Sustainability: 8/10\n• Energy: Low\n• Sentiment: Bullish\n\nWant details on Cardano projects?"},
}

const genericFallbackTemplate = `🤔 I understand you're asking about: "%s"

Based on current crypto data:
• Market offers mixed opportunities
• Sustainable coins gaining traction
• Bitcoin maintains dominance

💡 **Suggestions**:
1. Research before investing
2. Consider sustainability
3. Diversify your portfolio

⚠️ **Remember**: Crypto is volatile. Invest responsibly.

What specific aspect would you like to explore?`

// Fallback answers without the AI capability. Respond is total: it
// always returns non-empty text.
type Fallback struct {
	dataset *assets.Dataset
}

func NewFallback(dataset *assets.Dataset) *Fallback {
	return &Fallback{dataset: dataset}
}

func (f *Fallback) Respond(query string) string {
	lower := strings.ToLower(query)

	for _, kr := range keywordResponses {
		if strings.Contains(lower, kr.keyword) {
			return kr.response
		}
	}

	if f.dataset != nil {
		for _, rec := range f.dataset.Records() {
			if strings.Contains(lower, strings.ToLower(rec.Name)) {
				return assetSummary(rec)
			}
		}
	}

	return fmt.Sprintf(genericFallbackTemplate, query)
}

func assetSummary(rec models.AssetRecord) string {
	// Caser is stateful, one per call.
	title := cases.Title(language.English)
	return fmt.Sprintf("🔍 **%s**:\n• Category: %s\n• Trend: %s\n• Sustainability: %d/10\n• Energy: %s\n• Sentiment: %s\n\nWhat would you like to know about %s?",
		rec.Name,
		rec.Category,
		title.String(rec.PriceTrend),
		rec.SustainabilityScore,
		title.String(rec.EnergyUse),
		title.String(rec.Sentiment),
		rec.Name,
	)
}
