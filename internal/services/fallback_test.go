package services

import (
	"strings"
	"testing"

	"cryptopal-backend/internal/assets"
)

func testDataset(t *testing.T) *assets.Dataset {
	t.Helper()
	ds, err := assets.Default()
	if err != nil {
		t.Fatalf("load default dataset: %v", err)
	}
	return ds
}

func TestFallbackRespond_AlwaysNonEmpty(t *testing.T) {
	f := NewFallback(testDataset(t))

	queries := []string{
		"",
		"   ",
		"¿Qué es una criptomoneda? 🚀",
		strings.Repeat("x", 100_000),
		"\x00\x01",
	}
	for _, q := range queries {
		if got := f.Respond(q); strings.TrimSpace(got) == "" {
			t.Fatalf("expected non-empty response for %q", q)
		}
	}
}

func TestFallbackRespond_KeywordPrecedence(t *testing.T) {
	f := NewFallback(testDataset(t))

	got := f.Respond("hello, tell me about risk")
	if !strings.Contains(got, "I'm CryptoPal AI. I can help you") {
		t.Fatalf("expected greeting to win over risk, got %q", got)
	}

	got = f.Respond("Is BITCOIN risky?")
	if !strings.Contains(got, "Risk Levels") {
		t.Fatalf("expected risk entry to precede bitcoin entry, got %q", got)
	}
}

func TestFallbackRespond_Bitcoin(t *testing.T) {
	f := NewFallback(testDataset(t))

	got := f.Respond("bitcoin")
	for _, want := range []string{"Store of Value", "3/10", "Bullish"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in bitcoin response, got %q", want, got)
		}
	}
}

func TestFallbackRespond_AssetTemplate(t *testing.T) {
	f := NewFallback(testDataset(t))

	got := f.Respond("what about solana?")
	if !strings.HasPrefix(got, "🔍 **Solana**") {
		t.Fatalf("expected asset summary for Solana, got %q", got)
	}
	if !strings.Contains(got, "Sustainability: 7/10") {
		t.Fatalf("expected Solana sustainability score, got %q", got)
	}
	if !strings.Contains(got, "What would you like to know about Solana?") {
		t.Fatalf("expected closing question, got %q", got)
	}
}

func TestFallbackRespond_GenericEchoesQuery(t *testing.T) {
	f := NewFallback(testDataset(t))

	got := f.Respond("What is a DAO?")
	if !strings.Contains(got, `asking about: "What is a DAO?"`) {
		t.Fatalf("expected query echoed in generic response, got %q", got)
	}
	if !strings.Contains(got, "Invest responsibly") {
		t.Fatalf("expected generic advice body, got %q", got)
	}
}

func TestFallbackRespond_NilDataset(t *testing.T) {
	f := NewFallback(nil)
	if got := f.Respond("solana"); !strings.Contains(got, `asking about: "solana"`) {
		t.Fatalf("expected generic response without a dataset, got %q", got)
	}
}
