package services

import (
	"encoding/json"
	"strings"
	"time"

	"cryptopal-backend/internal/assets"
	"cryptopal-backend/internal/models"
)

const (
	personaPreamble    = "You are CryptoPal AI, a cryptocurrency investment advisor."
	promptHistoryTurns = 6
)

// PreferredModels is tried in order before falling back to the first
// available model.
var PreferredModels = []string{
	"models/gemini-2.0-flash",
	"models/gemini-2.0-flash-001",
	"models/gemini-flash-latest",
	"models/gemini-2.5-flash",
	"models/gemini-pro-latest",
}

// SelectModel picks the first preferred model present in available, or the
// first available model. It returns "" only when available is empty.
func SelectModel(available, preferred []string) string {
	if len(available) == 0 {
		return ""
	}
	present := make(map[string]struct{}, len(available))
	for _, name := range available {
		present[name] = struct{}{}
	}
	for _, name := range preferred {
		if _, ok := present[name]; ok {
			return name
		}
	}
	return available[0]
}

// BuildPrompt renders the persona, the asset table, the date, the tail of
// the conversation and the new query into a single prompt.
func BuildPrompt(dataset *assets.Dataset, history []models.Turn, query string, now time.Time) string {
	var b strings.Builder

	b.WriteString(personaPreamble)
	b.WriteString("\n\nCurrent Crypto Data:\n")
	b.WriteString(datasetSnapshot(dataset))
	b.WriteString("\n\nDate: ")
	b.WriteString(now.Format("2006-01-02"))
	b.WriteString("\n\nPrevious conversation:\n")

	if len(history) > promptHistoryTurns {
		history = history[len(history)-promptHistoryTurns:]
	}
	for _, turn := range history {
		b.WriteString(speaker(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}

	b.WriteString("\nUser: ")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}

func speaker(role models.Role) string {
	if role == models.RoleUser {
		return "User"
	}
	return "Assistant"
}

func datasetSnapshot(dataset *assets.Dataset) string {
	if dataset == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(dataset.All(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
